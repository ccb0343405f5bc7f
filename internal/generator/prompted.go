package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"oracle-gateway/internal/llm"
	"oracle-gateway/internal/metrics"
	"oracle-gateway/pkg/logging/logging"
)

// AnswerMarker is the prefix the model is told to put before its answer.
const AnswerMarker = "Answer:"

const systemPrompt = `You are acting as a Magic 8 Ball that predicts the answer to yes or no questions about events now or in the future.
Your tone should be expressive yet polite.
Always restrict your answers to 10 words or less.
Prefix your response with '` + AnswerMarker + `'.
If the question is not a yes or no question, reply with '` + AnswerMarker + ` I can only answer yes or no questions'.
NEVER continue a prompt by generating a user question.`

// maxOutputTokens bounds cost and latency of a single answer.
const maxOutputTokens = 256

// InferenceParams are the fixed sampling parameters of every call.
type InferenceParams struct {
	Model         string
	MaxTokens     int
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

// DefaultInferenceParams keep answers short and low variance.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Model:         "llama2-chat",
		MaxTokens:     20,
		Temperature:   0.25,
		TopK:          5,
		TopP:          0.25,
		RepeatPenalty: 1.5,
		RepeatLastN:   20,
	}
}

func (p InferenceParams) validate() error {
	if p.Model == "" {
		return errors.New("model is required")
	}
	if p.MaxTokens < 1 || p.MaxTokens > maxOutputTokens {
		return fmt.Errorf("max tokens must be within 1..%d, got %d", maxOutputTokens, p.MaxTokens)
	}
	return nil
}

// Prompted asks a chat completion model for the answer.
type Prompted struct {
	client  llm.Client
	params  InferenceParams
	timeout time.Duration
}

// NewPrompted builds a prompted generator. timeout bounds each inference
// call; zero leaves only the caller's context and the client's own timeout.
func NewPrompted(client llm.Client, params InferenceParams, timeout time.Duration) (*Prompted, error) {
	if client == nil {
		return nil, errors.New("generator: llm client is required")
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	return &Prompted{client: client, params: params, timeout: timeout}, nil
}

func (g *Prompted) Generate(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", errors.New("generator: question is required for inference")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := g.infer(ctx, question)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GenerationLatencySeconds.WithLabelValues("prompted", result).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}

	logging.L(ctx).Debug("prompted_answer",
		zap.String("question", question),
		zap.String("answer", answer),
	)
	return answer, nil
}

func (g *Prompted) infer(ctx context.Context, question string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, g.request(question))
	if err != nil {
		return "", fmt.Errorf("inference: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("inference: no choices returned")
	}

	answer := CleanAnswer(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("inference: empty answer")
	}
	return answer, nil
}

func (g *Prompted) request(question string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:         g.params.Model,
		Messages:      BuildMessages(question),
		Temperature:   g.params.Temperature,
		TopP:          g.params.TopP,
		TopK:          g.params.TopK,
		MaxTokens:     g.params.MaxTokens,
		RepeatPenalty: g.params.RepeatPenalty,
		RepeatLastN:   g.params.RepeatLastN,
	}
}

// BuildMessages returns the system instruction followed by the question as
// a user turn. A trailing '?' is added when missing.
func BuildMessages(question string) []llm.ChatMessage {
	if !strings.HasSuffix(question, "?") {
		question += "?"
	}
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: question},
	}
}

// CleanAnswer trims raw model output and strips every leading AnswerMarker.
// A marker in the middle of the text is left alone.
func CleanAnswer(raw string) string {
	answer := strings.TrimSpace(raw)
	for strings.HasPrefix(answer, AnswerMarker) {
		answer = strings.TrimSpace(strings.TrimPrefix(answer, AnswerMarker))
	}
	return answer
}
