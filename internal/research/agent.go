// Package research produces short market briefs for an area and business
// category. It combines live web search through Perplexity with a Claude
// distillation pass, and degrades to the model's own knowledge when search
// is unavailable.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/pkg/anthropic"
	"github.com/siteatlas/siteatlas/pkg/perplexity"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 512
	defaultCity      = "Delhi"

	systemPrompt = `You are a commercial location analyst. You write short,
factual market briefs for entrepreneurs evaluating where to open a business.
Keep every brief to 2-4 sentences. Mention competition, footfall, rents, or
customer demographics only when the provided context supports it. If the
context is thin, say what is generally known about the locality and flag the
uncertainty.`
)

// Agent implements enrich.Provider by searching for recent market signals
// and distilling them into a brief.
type Agent struct {
	search    perplexity.Client
	llm       anthropic.Client
	model     string
	maxTokens int64
	city      string
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel overrides the distillation model.
func WithModel(model string) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int64) Option {
	return func(a *Agent) {
		a.maxTokens = n
	}
}

// WithCity sets the city appended to search queries and prompts.
func WithCity(city string) Option {
	return func(a *Agent) {
		a.city = city
	}
}

// NewAgent creates a research agent. The search client may be nil, in which
// case briefs are produced from the model alone.
func NewAgent(search perplexity.Client, llm anthropic.Client, opts ...Option) *Agent {
	a := &Agent{
		search:    search,
		llm:       llm,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		city:      defaultCity,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Research returns a short market brief for opening a business of the given
// category in the given area.
func (a *Agent) Research(ctx context.Context, area, category string) (string, error) {
	if a.llm == nil {
		return "", eris.New("research: no language model configured")
	}

	webContext := a.gatherContext(ctx, area, category)

	prompt := a.briefPrompt(area, category, webContext)
	resp, err := a.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "research: distill brief")
	}
	resp.Usage.LogCost(a.model, "research")

	brief := strings.TrimSpace(resp.Text())
	if brief == "" {
		return "", eris.New("research: empty brief")
	}
	return brief, nil
}

// gatherContext runs a search-augmented query for recent market signals.
// Failures are tolerated; the brief falls back to the model's own knowledge.
func (a *Agent) gatherContext(ctx context.Context, area, category string) string {
	if a.search == nil {
		return ""
	}

	query := fmt.Sprintf(
		"Market conditions for opening a %s business in %s, %s: competition, footfall, rents, customer demographics, recent trends.",
		category, area, a.city,
	)
	resp, err := a.search.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		zap.L().Warn("research search failed, continuing without web context",
			zap.String("area", area),
			zap.String("category", category),
			zap.Error(err),
		)
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func (a *Agent) briefPrompt(area, category, webContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a market brief for opening a %s business in %s, %s.\n", category, area, a.city)
	if webContext != "" {
		b.WriteString("\nRecent web research:\n")
		b.WriteString(webContext)
		b.WriteString("\n\nGround the brief in this research where it is relevant.")
	} else {
		b.WriteString("\nNo recent web research is available; rely on general knowledge of the locality and note the uncertainty.")
	}
	return b.String()
}
