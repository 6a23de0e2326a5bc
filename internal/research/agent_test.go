package research

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteatlas/siteatlas/pkg/anthropic"
	"github.com/siteatlas/siteatlas/pkg/perplexity"
)

type fakeSearch struct {
	lastReq perplexity.ChatCompletionRequest
	answer  string
	err     error
	calls   int
}

func (f *fakeSearch) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{
			{Message: perplexity.Message{Role: "assistant", Content: f.answer}},
		},
	}, nil
}

type fakeLLM struct {
	lastReq anthropic.MessageRequest
	text    string
	err     error
	calls   int
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		ID:         "msg_research",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: f.text}},
		StopReason: "end_turn",
	}, nil
}

func TestResearch_WithSearchContext(t *testing.T) {
	search := &fakeSearch{answer: "Hauz Khas Village sees heavy evening footfall; cafe rents rose 12% in 2025."}
	llm := &fakeLLM{text: "Hauz Khas is a strong cafe market with heavy evening footfall, though rents are rising."}

	agent := NewAgent(search, llm)
	brief, err := agent.Research(context.Background(), "Hauz Khas", "cafe")
	require.NoError(t, err)
	assert.Contains(t, brief, "Hauz Khas")

	assert.Equal(t, 1, search.calls)
	require.Len(t, search.lastReq.Messages, 1)
	assert.Contains(t, search.lastReq.Messages[0].Content, "cafe")
	assert.Contains(t, search.lastReq.Messages[0].Content, "Hauz Khas")
	assert.Contains(t, search.lastReq.Messages[0].Content, "Delhi")

	require.Len(t, llm.lastReq.Messages, 1)
	assert.Contains(t, llm.lastReq.Messages[0].Content, "evening footfall")
	require.Len(t, llm.lastReq.System, 1)
	require.NotNil(t, llm.lastReq.System[0].CacheControl)
	assert.Equal(t, "1h", llm.lastReq.System[0].CacheControl.TTL)
}

func TestResearch_SearchFailureFallsBackToModel(t *testing.T) {
	search := &fakeSearch{err: eris.New("rate limited")}
	llm := &fakeLLM{text: "Karol Bagh is a dense retail market."}

	agent := NewAgent(search, llm)
	brief, err := agent.Research(context.Background(), "Karol Bagh", "electronics store")
	require.NoError(t, err)
	assert.Equal(t, "Karol Bagh is a dense retail market.", brief)

	assert.Contains(t, llm.lastReq.Messages[0].Content, "No recent web research is available")
}

func TestResearch_NilSearchClient(t *testing.T) {
	llm := &fakeLLM{text: "General knowledge brief."}

	agent := NewAgent(nil, llm)
	brief, err := agent.Research(context.Background(), "Saket", "gym")
	require.NoError(t, err)
	assert.Equal(t, "General knowledge brief.", brief)
	assert.Equal(t, 1, llm.calls)
}

func TestResearch_LLMError(t *testing.T) {
	llm := &fakeLLM{err: eris.New("overloaded")}

	agent := NewAgent(nil, llm)
	_, err := agent.Research(context.Background(), "Saket", "gym")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distill brief")
}

func TestResearch_EmptyBriefIsError(t *testing.T) {
	llm := &fakeLLM{text: "   "}

	agent := NewAgent(nil, llm)
	_, err := agent.Research(context.Background(), "Saket", "gym")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty brief")
}

func TestResearch_NoModelConfigured(t *testing.T) {
	agent := NewAgent(nil, nil)
	_, err := agent.Research(context.Background(), "Saket", "gym")
	require.Error(t, err)
}

func TestResearch_Options(t *testing.T) {
	search := &fakeSearch{answer: "context"}
	llm := &fakeLLM{text: "Brief."}

	agent := NewAgent(search, llm,
		WithModel("claude-sonnet-4-5-20250929"),
		WithMaxTokens(256),
		WithCity("Mumbai"),
	)

	_, err := agent.Research(context.Background(), "Bandra", "bakery")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5-20250929", llm.lastReq.Model)
	assert.Equal(t, int64(256), llm.lastReq.MaxTokens)
	assert.Contains(t, search.lastReq.Messages[0].Content, "Mumbai")
}
