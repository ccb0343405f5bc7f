// Package oracle resolves questions to answers through an answer store,
// generating and persisting an answer the first time a question is asked.
package oracle

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"oracle-gateway/internal/metrics"
	"oracle-gateway/pkg/logging/logging"
)

// DefaultPlaceholder is stored like any answer but never served from the store.
const DefaultPlaceholder = "Ask again later."

// Store is the answer persistence the oracle needs.
// Get returns (value, true, nil) on a hit and (nil, false, nil) on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Generator produces a fresh answer.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

type Options struct {
	// Placeholder overrides DefaultPlaceholder.
	Placeholder string
	// SingleFlight collapses concurrent resolutions of the same question into
	// one store round trip and at most one generation. Off by default:
	// concurrent first-time resolutions then race and the last write wins.
	SingleFlight bool
}

// Oracle implements get-or-generate-and-store over a Store.
type Oracle struct {
	store       Store
	gen         Generator
	placeholder string
	flight      *singleflight.Group
}

func New(store Store, gen Generator, opts Options) *Oracle {
	o := &Oracle{
		store:       store,
		gen:         gen,
		placeholder: opts.Placeholder,
	}
	if o.placeholder == "" {
		o.placeholder = DefaultPlaceholder
	}
	if opts.SingleFlight {
		o.flight = &singleflight.Group{}
	}
	return o
}

// Placeholder returns the non-authoritative answer value.
func (o *Oracle) Placeholder() string {
	return o.placeholder
}

// Resolve returns the stored answer for question, or generates, stores and
// returns a new one when nothing is stored or the stored answer is the
// placeholder. A stored non-placeholder answer is returned unchanged and is
// never rewritten. An answer whose write failed is not returned.
// Failures are *Error values.
func (o *Oracle) Resolve(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", newError(KindValidation, "validate", "", ErrEmptyQuestion)
	}

	if o.flight == nil {
		return o.resolve(ctx, question)
	}

	v, err, _ := o.flight.Do(question, func() (interface{}, error) {
		return o.resolve(ctx, question)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (o *Oracle) resolve(ctx context.Context, question string) (answer string, err error) {
	start := time.Now()
	outcome := "miss"

	defer func() {
		if err != nil {
			outcome = "error"
		}
		metrics.OracleResolutionsTotal.WithLabelValues(outcome).Inc()

		fields := []zap.Field{
			zap.String("question", question),
			zap.String("outcome", outcome), // hit | miss | reroll | error
			zap.Duration("latency", time.Since(start)),
		}
		logger := logging.L(ctx)
		if err != nil {
			logger.Warn("oracle_decision", append(fields, zap.Error(err))...)
			return
		}
		logger.Info("oracle_decision", append(fields, zap.String("answer", answer))...)
	}()

	raw, found, err := o.store.Get(ctx, question)
	if err != nil {
		return "", newError(KindStore, "get", question, err)
	}

	if found {
		if !utf8.Valid(raw) {
			return "", newError(KindEncoding, "decode", question, errors.New("stored answer is not valid UTF-8"))
		}
		stored := string(raw)
		if stored != o.placeholder {
			outcome = "hit"
			return stored, nil
		}
		outcome = "reroll"
	}

	answer, err = o.gen.Generate(ctx, question)
	if err != nil {
		return "", newError(KindInference, "generate", question, err)
	}
	if !utf8.ValidString(answer) {
		return "", newError(KindEncoding, "generate", question, errors.New("generated answer is not valid UTF-8"))
	}

	if err := o.store.Set(ctx, question, []byte(answer)); err != nil {
		return "", newError(KindStore, "set", question, err)
	}

	return answer, nil
}
