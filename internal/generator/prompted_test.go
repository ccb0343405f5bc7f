package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-gateway/internal/llm"
)

type stubClient struct {
	content string
	err     error
	block   bool

	calls   int
	lastReq *llm.ChatRequest
}

func (s *stubClient) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.calls++
	s.lastReq = req
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: s.content}}},
	}, nil
}

func TestCleanAnswer(t *testing.T) {
	cases := map[string]string{
		"Answer: Answer: Yes, probably.":    "Yes, probably.",
		"  Answer:Absolutely!  ":            "Absolutely!",
		"Answer:   Answer:Answer: No":       "No",
		"Signs point to yes":                "Signs point to yes",
		"Maybe. Answer: yes":                "Maybe. Answer: yes",
		"\n\tAnswer: Outlook not so good\n": "Outlook not so good",
		"Answer:":                           "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, CleanAnswer(raw), "raw %q", raw)
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("Will it rain")
	require.Len(t, msgs, 2)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	for _, want := range []string{"yes or no", "10 words", "'Answer:'", "NEVER continue a prompt by generating a user question"} {
		assert.Contains(t, msgs[0].Content, want)
	}

	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "Will it rain?", msgs[1].Content)

	assert.Equal(t, "Is it sunny?", BuildMessages("Is it sunny?")[1].Content)
}

func TestPrompted_Generate(t *testing.T) {
	client := &stubClient{content: "Answer: Answer: Yes, probably."}
	g, err := NewPrompted(client, DefaultInferenceParams(), time.Second)
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "Will it rain")
	require.NoError(t, err)
	assert.Equal(t, "Yes, probably.", got)

	require.Equal(t, 1, client.calls)
	req := client.lastReq
	assert.Equal(t, "llama2-chat", req.Model)
	assert.Equal(t, 20, req.MaxTokens)
	assert.Equal(t, 5, req.TopK)
	assert.InDelta(t, 0.25, req.Temperature, 1e-6)
	assert.InDelta(t, 0.25, req.TopP, 1e-6)
	assert.InDelta(t, 1.5, req.RepeatPenalty, 1e-6)
	assert.Equal(t, "Will it rain?", req.Messages[len(req.Messages)-1].Content)
}

func TestPrompted_PropagatesErrors(t *testing.T) {
	boom := errors.New("upstream 503")
	g, err := NewPrompted(&stubClient{err: boom}, DefaultInferenceParams(), time.Second)
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "Will it rain?")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got, "no default answer on failure")
}

func TestPrompted_EmptyAnswerIsAnError(t *testing.T) {
	g, err := NewPrompted(&stubClient{content: "  Answer:  "}, DefaultInferenceParams(), time.Second)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "Will it rain?")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "empty answer"))
}

func TestPrompted_Timeout(t *testing.T) {
	g, err := NewPrompted(&stubClient{block: true}, DefaultInferenceParams(), 20*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = g.Generate(context.Background(), "Will it rain?")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewPrompted_Validation(t *testing.T) {
	_, err := NewPrompted(nil, DefaultInferenceParams(), 0)
	assert.Error(t, err)

	p := DefaultInferenceParams()
	p.MaxTokens = 0
	_, err = NewPrompted(&stubClient{}, p, 0)
	assert.Error(t, err)

	p.MaxTokens = 4096
	_, err = NewPrompted(&stubClient{}, p, 0)
	assert.Error(t, err)

	p = DefaultInferenceParams()
	p.Model = ""
	_, err = NewPrompted(&stubClient{}, p, 0)
	assert.Error(t, err)
}

func TestPrompted_RequiresQuestion(t *testing.T) {
	client := &stubClient{content: "Answer: yes"}
	g, err := NewPrompted(client, DefaultInferenceParams(), 0)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "")
	assert.Error(t, err)
	assert.Zero(t, client.calls)
}
