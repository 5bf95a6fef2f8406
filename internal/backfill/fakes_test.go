package backfill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sells-group/evdata-cli/internal/checkpoint"
	"github.com/sells-group/evdata-cli/internal/extract"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/store"
)

type fakeCollector struct {
	mu    sync.Mutex
	pages map[int][]model.Article
	errs  map[int]error
	calls []int
}

func (f *fakeCollector) FetchArticles(_ context.Context, page int) ([]model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return append([]model.Article(nil), f.pages[page]...), nil
}

// fakeClassifier returns the classification registered for a title, SKIP otherwise.
type fakeClassifier map[string]model.Classification

func (f fakeClassifier) Classify(title, _ string) model.Classification {
	if c, ok := f[title]; ok {
		return c
	}
	return model.Classification{ArticleType: model.ArticleTypeSkip, Confidence: 0.5}
}

// fakeExtractor returns the result registered for a title with the source URL filled in.
type fakeExtractor map[string]model.ExtractionResult

func (f fakeExtractor) Extract(in extract.Input) *model.ExtractionResult {
	r, ok := f[in.Title]
	if !ok {
		return nil
	}
	data := map[string]any{model.FieldSourceURL: in.SourceURL}
	for k, v := range r.Data {
		data[k] = v
	}
	r.Data = data
	return &r
}

type submission struct {
	table  model.Table
	record map[string]any
}

type fakeSubmitter struct {
	mu      sync.Mutex
	records []submission
	usage   []model.OCRUsage
	fail    map[model.Table]error
}

func (f *fakeSubmitter) Submit(_ context.Context, table model.Table, record map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[table]; err != nil {
		return err
	}
	f.records = append(f.records, submission{table: table, record: record})
	return nil
}

func (f *fakeSubmitter) TrackOCRUsage(_ context.Context, usage model.OCRUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage = append(f.usage, usage)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeSubmitter) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.records {
		if u, ok := s.record[model.FieldSourceURL].(string); ok {
			out = append(out, u)
		}
	}
	return out
}

type fakeOCR struct {
	mu     sync.Mutex
	result func(imageURL string, kind model.PromptKind) model.OCRResult
	calls  []model.PromptKind
	onCall func()
}

func (f *fakeOCR) Run(_ context.Context, imageURL string, kind model.PromptKind) model.OCRResult {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	return f.result(imageURL, kind)
}

func (f *fakeOCR) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memCheckpoints struct {
	mu     sync.Mutex
	loaded *checkpoint.Checkpoint
	saved  []*checkpoint.Checkpoint
}

func (m *memCheckpoints) Load() (*checkpoint.Checkpoint, error) {
	return m.loaded, nil
}

func (m *memCheckpoints) Save(cp *checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, cp)
	return nil
}

func (m *memCheckpoints) last() *checkpoint.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []model.ArticleOutcome
	usage    []store.OCRUsageRecord
}

func (f *fakeRecorder) RecordOutcomes(_ context.Context, _ string, outcomes []model.ArticleOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcomes...)
	return nil
}

func (f *fakeRecorder) RecordOCRUsage(_ context.Context, _ string, records []store.OCRUsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage = append(f.usage, records...)
	return nil
}

func (f *fakeRecorder) stages() map[string]model.OutcomeStage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.OutcomeStage, len(f.outcomes))
	for _, o := range f.outcomes {
		out[o.URL] = o.Stage
	}
	return out
}

type fakeDedup struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked []string
}

func (f *fakeDedup) Seen(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[url], nil
}

func (f *fakeDedup) Mark(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, url)
	return nil
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(n int)
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	n := len(s.delays)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(n)
	}
	return ctx.Err()
}

var errBoom = errors.New("boom")
