// Package enrich attaches best-effort market research to ranked
// recommendations. Enrichment never fails a request: slow or failing
// providers simply leave results unenriched.
package enrich

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siteatlas/siteatlas/internal/recommend"
	"github.com/siteatlas/siteatlas/internal/resilience"
)

const (
	// only the head of the ranking is worth a research call
	maxEnriched = 3

	defaultTimeout = 10 * time.Second

	// breaker trip point for a provider that keeps failing
	breakerFailures  = 5
	breakerResetSecs = 30
)

// Provider produces a short research note for an area and category.
type Provider interface {
	Research(ctx context.Context, area, category string) (string, error)
}

// Merger fans research calls out over the top results and joins with a
// timeout. A circuit breaker stops calls to a provider that keeps failing.
type Merger struct {
	provider Provider
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

// NewMerger builds a Merger. A nil provider disables enrichment.
func NewMerger(provider Provider, timeout time.Duration) *Merger {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg := resilience.FromCircuitConfig(breakerFailures, breakerResetSecs)
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("research circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	return &Merger{
		provider: provider,
		timeout:  timeout,
		breaker:  resilience.NewCircuitBreaker(cfg),
	}
}

// Merge fills the Research field of the top results in place. Each call runs
// in its own goroutine with per-task error isolation; whatever has not
// completed when the timeout fires is abandoned. The input is always returned
// usable, enriched or not.
func (m *Merger) Merge(ctx context.Context, category string, recs []recommend.ScoredRecommendation) []recommend.ScoredRecommendation {
	if m == nil || m.provider == nil || len(recs) == 0 {
		return recs
	}

	n := len(recs)
	if n > maxEnriched {
		n = maxEnriched
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type outcome struct {
		idx  int
		note string
	}
	ch := make(chan outcome, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, area string) {
			defer wg.Done()
			note, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) (string, error) {
				return m.provider.Research(ctx, area, category)
			})
			if err != nil {
				zap.L().Debug("enrichment skipped",
					zap.String("area", area),
					zap.Error(err))
				return
			}
			ch <- outcome{idx: idx, note: note}
		}(i, recs[i].Area)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	enriched := 0
	for {
		select {
		case o := <-ch:
			recs[o.idx].Research = o.note
			enriched++
		case <-done:
			// drain anything that raced the close
			for {
				select {
				case o := <-ch:
					recs[o.idx].Research = o.note
					enriched++
				default:
					zap.L().Info("enrichment merged",
						zap.Int("requested", n),
						zap.Int("enriched", enriched))
					return recs
				}
			}
		case <-ctx.Done():
			zap.L().Warn("enrichment timed out",
				zap.Int("requested", n),
				zap.Int("enriched", enriched))
			return recs
		}
	}
}

// Note returns a single best-effort research note, or "" on any failure.
// Same timeout and breaker discipline as Merge.
func (m *Merger) Note(ctx context.Context, area, category string) string {
	if m == nil || m.provider == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	note, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) (string, error) {
		return m.provider.Research(ctx, area, category)
	})
	if err != nil {
		zap.L().Debug("enrichment skipped",
			zap.String("area", area),
			zap.Error(err))
		return ""
	}
	return note
}
