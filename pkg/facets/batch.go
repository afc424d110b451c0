package facets

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/santaclaude2025/insights/pkg/logger"
	"github.com/santaclaude2025/insights/pkg/metrics"
	"github.com/santaclaude2025/insights/pkg/transcript"
)

// Item is one session queued for facet extraction.
type Item struct {
	Events  []transcript.Event
	Metrics *metrics.SessionMetrics
}

// Progress is invoked after each session finishes, successfully or not.
type Progress func(done, total int, sessionID string, err error)

// ExtractAll runs facet extraction over items in fixed-size batches,
// pausing between batches to stay under rate limits. Sessions within a
// batch run concurrently. One session failing never stops the others;
// its error is reported through the progress callback and the session
// is simply absent from the result map.
func (e *Engine) ExtractAll(ctx context.Context, items []Item, progress Progress) map[string]*Facet {
	out := make(map[string]*Facet, len(items))
	done := 0

	for start := 0; start < len(items); start += e.cfg.FacetBatchSize {
		if ctx.Err() != nil {
			return out
		}
		end := start + e.cfg.FacetBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		facetsByIdx := make([]*Facet, len(batch))
		errsByIdx := make([]error, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			g.Go(func() error {
				f, err := e.Extract(gctx, batch[i].Events, batch[i].Metrics)
				facetsByIdx[i] = f
				errsByIdx[i] = err
				return nil
			})
		}
		_ = g.Wait()

		for i := range batch {
			done++
			id := batch[i].Metrics.SessionID
			if err := errsByIdx[i]; err != nil {
				logger.Warn("facet extraction failed", "session_id", id, "error", err)
			} else {
				out[id] = facetsByIdx[i]
			}
			if progress != nil {
				progress(done, len(items), id, errsByIdx[i])
			}
		}

		if end < len(items) {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(e.cfg.FacetBatchDelay):
			}
		}
	}
	return out
}
