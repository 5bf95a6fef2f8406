package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/store"
)

// RunSnapshot holds a point-in-time view of recent backfill runs.
type RunSnapshot struct {
	// Run counts (within lookback window).
	RunsTotal       int     `json:"runs_total"`
	RunsComplete    int     `json:"runs_complete"`
	RunsFailed      int     `json:"runs_failed"`
	RunsInterrupted int     `json:"runs_interrupted"`
	RunsRunning     int     `json:"runs_running"`
	RunFailRate     float64 `json:"run_fail_rate"`

	// Article totals summed over finished runs.
	ArticlesSeen    int     `json:"articles_seen"`
	Submitted       int     `json:"submitted"`
	ArticleFailures int     `json:"article_failures"`
	ArticleFailRate float64 `json:"article_fail_rate"`
	OCRQueued       int     `json:"ocr_queued"`
	OCRSucceeded    int     `json:"ocr_succeeded"`
	OCRCostUSD      float64 `json:"ocr_cost_usd"`
	OCRTokens       int     `json:"ocr_tokens"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the run ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector summarizes recent runs from the ledger.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new run collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*RunSnapshot, error) {
	now := c.now().UTC()
	snap := &RunSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusInterrupted:
			snap.RunsInterrupted++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		s := r.Summary
		if s == nil {
			continue
		}
		snap.ArticlesSeen += s.ArticlesSeen
		snap.Submitted += s.Submitted
		snap.OCRQueued += s.OCRQueued
		snap.OCRSucceeded += s.OCRSucceeded
		snap.OCRCostUSD += s.OCRCost
		snap.OCRTokens += s.OCRInputTokens + s.OCROutputTokens
		for _, n := range s.Failures {
			snap.ArticleFailures += n
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.ArticlesSeen > 0 {
		snap.ArticleFailRate = float64(snap.ArticleFailures) / float64(snap.ArticlesSeen)
	}
	return snap, nil
}
