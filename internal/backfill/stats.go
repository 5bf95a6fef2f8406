package backfill

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/sells-group/evdata-cli/internal/model"
)

// Bucket is one category of the run's error taxonomy.
type Bucket string

const (
	BucketFetch          Bucket = "fetch"
	BucketClassification Bucket = "classification_miss"
	BucketExtraction     Bucket = "extraction"
	BucketOCR            Bucket = "ocr"
	BucketSubmission     Bucket = "submission"
)

// Buckets lists every bucket in summary order.
var Buckets = []Bucket{BucketFetch, BucketClassification, BucketExtraction, BucketOCR, BucketSubmission}

// recentErrors is how many messages each bucket keeps for the summary.
const recentErrors = 5

// EventKind names a change to the run counters.
type EventKind int

const (
	EventPageDone EventKind = iota
	EventArticlesSeen
	EventDuplicate
	EventFailure
	EventExtracted
	EventSubmitted
	EventWouldSubmit
	EventOCRQueued
	EventOCRDone
)

// Event is one counter update. Only the fields the kind needs are read.
type Event struct {
	Kind   EventKind
	Page   int
	N      int
	Table  model.Table
	Bucket Bucket
	Msg    string
	OCR    *model.OCRResult
}

// Stats accumulates the counters of one run. Workers share a Stats and
// mutate it only through Record.
type Stats struct {
	mu      sync.Mutex
	summary model.RunSummary
	buckets map[Bucket]int
	recent  map[Bucket][]string
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{
		summary: model.RunSummary{
			Failures: make(map[string]int),
			ByTable:  make(map[model.Table]int),
		},
		buckets: make(map[Bucket]int),
		recent:  make(map[Bucket][]string),
	}
}

// Record applies one event under the lock.
func (s *Stats) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := &s.summary
	switch ev.Kind {
	case EventPageDone:
		sum.PagesCompleted++
		if ev.Page > sum.LastPage {
			sum.LastPage = ev.Page
		}
	case EventArticlesSeen:
		sum.ArticlesSeen += ev.N
	case EventDuplicate:
		sum.Duplicates++
	case EventFailure:
		s.buckets[ev.Bucket]++
		if ev.Bucket == BucketClassification {
			sum.Skipped++
		} else {
			sum.Failures[string(ev.Bucket)]++
		}
		if ev.Msg != "" {
			r := append(s.recent[ev.Bucket], ev.Msg)
			if len(r) > recentErrors {
				r = r[len(r)-recentErrors:]
			}
			s.recent[ev.Bucket] = r
		}
	case EventExtracted:
		sum.Extracted++
	case EventSubmitted:
		sum.Submitted++
		sum.ByTable[ev.Table]++
	case EventWouldSubmit:
		sum.WouldSubmit++
		sum.ByTable[ev.Table]++
	case EventOCRQueued:
		sum.OCRQueued++
	case EventOCRDone:
		if ev.OCR == nil {
			return
		}
		sum.OCRInputTokens += ev.OCR.InputTokens
		sum.OCROutputTokens += ev.OCR.OutputTokens
		sum.OCRCost += ev.OCR.Cost
		if ev.OCR.Success {
			sum.OCRSucceeded++
			sum.OCRRows += len(ev.OCR.Rows)
		}
	}
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	Summary model.RunSummary
	Buckets map[Bucket]int
	Recent  map[Bucket][]string
}

// Snapshot copies the counters under the lock.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := s.summary
	sum.Failures = make(map[string]int, len(s.summary.Failures))
	for k, v := range s.summary.Failures {
		sum.Failures[k] = v
	}
	sum.ByTable = make(map[model.Table]int, len(s.summary.ByTable))
	for k, v := range s.summary.ByTable {
		sum.ByTable[k] = v
	}

	snap := Snapshot{
		Summary: sum,
		Buckets: make(map[Bucket]int, len(s.buckets)),
		Recent:  make(map[Bucket][]string, len(s.recent)),
	}
	for k, v := range s.buckets {
		snap.Buckets[k] = v
	}
	for k, v := range s.recent {
		snap.Recent[k] = append([]string(nil), v...)
	}
	return snap
}

// Print writes the end-of-run summary.
func (s Snapshot) Print(out io.Writer) {
	sum := s.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if sum.DryRun {
		_, _ = fmt.Fprintln(w, "BACKFILL SUMMARY (dry run, nothing submitted)")
	} else {
		_, _ = fmt.Fprintln(w, "BACKFILL SUMMARY")
	}
	_, _ = fmt.Fprintf(w, "Pages completed:\t%d (last %d)\n", sum.PagesCompleted, sum.LastPage)
	_, _ = fmt.Fprintf(w, "Articles seen:\t%d\n", sum.ArticlesSeen)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", sum.Duplicates)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", sum.Skipped)
	_, _ = fmt.Fprintf(w, "Extracted:\t%d\n", sum.Extracted)
	if sum.DryRun {
		_, _ = fmt.Fprintf(w, "Would submit:\t%d\n", sum.WouldSubmit)
	} else {
		_, _ = fmt.Fprintf(w, "Submitted:\t%d\n", sum.Submitted)
	}
	_, _ = fmt.Fprintf(w, "OCR queued:\t%d\n", sum.OCRQueued)
	_, _ = fmt.Fprintf(w, "OCR succeeded:\t%d (%d rows)\n", sum.OCRSucceeded, sum.OCRRows)
	_, _ = fmt.Fprintf(w, "OCR tokens:\t%d in / %d out\n", sum.OCRInputTokens, sum.OCROutputTokens)
	_, _ = fmt.Fprintf(w, "OCR cost:\t$%.4f\n", sum.OCRCost)
	_ = w.Flush()

	if len(sum.ByTable) > 0 {
		if sum.DryRun {
			_, _ = fmt.Fprintln(out, "\nBy table (would submit):")
		} else {
			_, _ = fmt.Fprintln(out, "\nBy table:")
		}
		tables := make([]string, 0, len(sum.ByTable))
		for t := range sum.ByTable {
			tables = append(tables, string(t))
		}
		sort.Strings(tables)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, t := range tables {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", t, sum.ByTable[model.Table(t)])
		}
		_ = w.Flush()
	}

	_, _ = fmt.Fprintln(out, "\nErrors:")
	for _, b := range Buckets {
		_, _ = fmt.Fprintf(out, "  %s: %d\n", b, s.Buckets[b])
		for _, msg := range s.Recent[b] {
			_, _ = fmt.Fprintf(out, "    - %s\n", msg)
		}
	}
}
