package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"oracle-gateway/internal/metrics"
)

// RandomSource yields a uniform int in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Enumerated draws one of a fixed list of answers uniformly at random.
type Enumerated struct {
	answers []string

	mu  sync.Mutex // *rand.Rand is not safe for concurrent use
	src RandomSource
}

// NewEnumerated copies answers and draws from src. A nil src uses the
// package-level math/rand/v2 generator.
func NewEnumerated(answers []string, src RandomSource) (*Enumerated, error) {
	if len(answers) == 0 {
		return nil, errors.New("generator: at least one answer is required")
	}
	if src == nil {
		src = globalSource{}
	}
	return &Enumerated{
		answers: append([]string(nil), answers...),
		src:     src,
	}, nil
}

// Generate ignores question and never fails.
func (g *Enumerated) Generate(_ context.Context, _ string) (string, error) {
	start := time.Now()

	g.mu.Lock()
	idx := g.src.IntN(len(g.answers))
	g.mu.Unlock()

	metrics.GenerationLatencySeconds.WithLabelValues("enumerated", "ok").Observe(time.Since(start).Seconds())
	return g.answers[idx], nil
}

// Answers returns a copy of the candidate list.
func (g *Enumerated) Answers() []string {
	return append([]string(nil), g.answers...)
}
