// Package backfill drives pages of collected articles through
// classification, extraction, OCR and submission with bounded concurrency
// and a resumable checkpoint.
package backfill

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/evdata-cli/internal/checkpoint"
	"github.com/sells-group/evdata-cli/internal/extract"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/store"
	"github.com/sells-group/evdata-cli/internal/submit"
)

// Collector yields the articles listed on one page.
type Collector interface {
	FetchArticles(ctx context.Context, page int) ([]model.Article, error)
}

// Classifier assigns a category to an article.
type Classifier interface {
	Classify(title, summary string) model.Classification
}

// Extractor turns a classified article into a record.
type Extractor interface {
	Extract(in extract.Input) *model.ExtractionResult
}

// OCR runs the vision extraction for an article image.
type OCR interface {
	Run(ctx context.Context, imageURL string, kind model.PromptKind) model.OCRResult
}

// Checkpointer persists run progress.
type Checkpointer interface {
	Load() (*checkpoint.Checkpoint, error)
	Save(cp *checkpoint.Checkpoint) error
}

// Recorder is the optional run ledger.
type Recorder interface {
	RecordOutcomes(ctx context.Context, runID string, outcomes []model.ArticleOutcome) error
	RecordOCRUsage(ctx context.Context, runID string, records []store.OCRUsageRecord) error
}

// Dedup remembers URLs across runs.
type Dedup interface {
	Seen(ctx context.Context, url string) (bool, error)
	Mark(ctx context.Context, url string) error
}

// Metrics receives live counters.
type Metrics interface {
	Page(ok bool)
	Article(stage model.OutcomeStage)
	Submission(table model.Table, ok bool)
	OCR(res model.OCRResult)
}

// Options controls one run.
type Options struct {
	StartPage      int
	EndPage        int
	BatchSize      int
	Concurrency    int
	OCRConcurrency int
	EnableOCR      bool
	DryRun         bool
	Resume         bool
	BatchDelay     time.Duration
	PageDelayMin   time.Duration
	PageDelayMax   time.Duration
}

// Deps are the collaborators of a run. Collector, Classifier, Extractor,
// Submitter and Checkpoints are required; the rest may be nil.
type Deps struct {
	Collector   Collector
	Classifier  Classifier
	Extractor   Extractor
	OCR         OCR
	Submitter   submit.Submitter
	Checkpoints Checkpointer
	Recorder    Recorder
	RunID       string
	Dedup       Dedup
	Metrics     Metrics
}

// Orchestrator runs a backfill over a page range.
type Orchestrator struct {
	opts  Options
	deps  Deps
	stats *Stats
	urls  *ledger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
	now    func() time.Time
}

// New validates deps and builds an Orchestrator. In dry-run mode the
// submitter is replaced by one that only counts.
func New(opts Options, deps Deps) (*Orchestrator, error) {
	if deps.Collector == nil || deps.Classifier == nil || deps.Extractor == nil || deps.Checkpoints == nil {
		return nil, eris.New("backfill: collector, classifier, extractor and checkpoints are required")
	}
	if opts.DryRun {
		deps.Submitter = submit.NewDryRun()
	}
	if deps.Submitter == nil {
		return nil, eris.New("backfill: submitter is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if opts.StartPage < 1 {
		opts.StartPage = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.OCRConcurrency < 1 {
		opts.OCRConcurrency = 1
	}
	if opts.PageDelayMax < opts.PageDelayMin {
		opts.PageDelayMax = opts.PageDelayMin
	}

	stats := NewStats()
	stats.summary.DryRun = opts.DryRun

	return &Orchestrator{
		opts:   opts,
		deps:   deps,
		stats:  stats,
		urls:   newLedger(nil),
		sleep:  sleepCtx,
		jitter: uniform,
		now:    time.Now,
	}, nil
}

// Stats returns the live counters of the run.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Run processes pages StartPage..EndPage sequentially. It returns the
// context error when interrupted; article and page failures are counted,
// never returned. The checkpoint is written once more before Run returns.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	log := zap.L().With(zap.String("component", "backfill"))

	start := o.opts.StartPage
	if o.opts.Resume {
		cp, err := o.deps.Checkpoints.Load()
		if err != nil {
			return eris.Wrap(err, "backfill: load checkpoint")
		}
		if cp != nil {
			o.urls = newLedger(cp)
			if cp.LastPage >= start {
				start = cp.LastPage + 1
			}
			log.Info("resuming from checkpoint",
				zap.Int("last_page", cp.LastPage),
				zap.Int("processed_urls", len(cp.ProcessedURLs)),
			)
		}
	}

	ocrOn := o.opts.EnableOCR && o.deps.OCR != nil
	if o.opts.EnableOCR && o.deps.OCR == nil {
		log.Warn("ocr requested but unavailable; continuing without ocr")
	}

	lastDone := start - 1
	defer func() {
		if d, ok := o.deps.Submitter.(*submit.DryRun); ok {
			records, usage := d.Counts()
			fields := []zap.Field{zap.Int("usage_reports", usage)}
			for table, n := range records {
				fields = append(fields, zap.Int(string(table), n))
			}
			log.Info("dry run: records withheld", fields...)
		}
		if saveErr := o.save(lastDone); saveErr != nil {
			log.Error("final checkpoint failed", zap.Error(saveErr))
			if err == nil {
				err = saveErr
			}
		}
	}()

	if start > o.opts.EndPage {
		log.Info("nothing to do", zap.Int("start", start), zap.Int("end", o.opts.EndPage))
		return nil
	}

	log.Info("backfill starting",
		zap.Int("start_page", start),
		zap.Int("end_page", o.opts.EndPage),
		zap.Int("concurrency", o.opts.Concurrency),
		zap.Int("ocr_concurrency", o.opts.OCRConcurrency),
		zap.Bool("ocr", ocrOn),
		zap.Bool("dry_run", o.opts.DryRun),
	)

	inBatch := 0
	for page := start; page <= o.opts.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		o.processPage(ctx, page, ocrOn)
		if err := ctx.Err(); err != nil {
			return err
		}
		lastDone = page
		o.stats.Record(Event{Kind: EventPageDone, Page: page})

		if page == o.opts.EndPage {
			break
		}

		inBatch++
		if inBatch >= o.opts.BatchSize {
			inBatch = 0
			if err := o.save(page); err != nil {
				log.Error("batch checkpoint failed", zap.Int("page", page), zap.Error(err))
			}
			log.Info("batch complete", zap.Int("page", page), zap.Duration("delay", o.opts.BatchDelay))
			if err := o.sleep(ctx, o.opts.BatchDelay); err != nil {
				return err
			}
			continue
		}
		if err := o.sleep(ctx, o.jitter(o.opts.PageDelayMin, o.opts.PageDelayMax)); err != nil {
			return err
		}
	}

	log.Info("backfill finished", zap.Int("last_page", lastDone))
	return nil
}

func (o *Orchestrator) save(lastPage int) error {
	cp := checkpoint.New(lastPage, o.urls.recent(), o.now())
	return eris.Wrap(o.deps.Checkpoints.Save(cp), "backfill: save checkpoint")
}

// pageRun is the state of one page shared by its workers.
type pageRun struct {
	page int

	mu       sync.Mutex
	queue    []ocrJob
	outcomes []model.ArticleOutcome
	usage    []store.OCRUsageRecord
}

func (p *pageRun) enqueue(j ocrJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, j)
}

func (p *pageRun) addOutcome(oc model.ArticleOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, oc)
}

func (p *pageRun) addUsage(rec store.OCRUsageRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = append(p.usage, rec)
}

// processPage runs the text phase over the page's new articles, then the
// OCR phase over whatever the text phase queued.
func (o *Orchestrator) processPage(ctx context.Context, page int, ocrOn bool) {
	log := zap.L().With(zap.String("component", "backfill"), zap.Int("page", page))

	articles, err := o.deps.Collector.FetchArticles(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(BucketFetch, err.Error())
		o.deps.Metrics.Page(false)
		log.Error("fetch page failed", zap.Error(err))
		return
	}
	o.stats.Record(Event{Kind: EventArticlesSeen, N: len(articles)})

	fresh := o.filterNew(ctx, articles)
	log.Info("page fetched", zap.Int("articles", len(articles)), zap.Int("new", len(fresh)))

	pr := &pageRun{page: page}
	forEach(ctx, o.opts.Concurrency, len(fresh), func(i int) {
		o.processArticle(ctx, pr, fresh[i], ocrOn)
	})

	if len(pr.queue) > 0 && ctx.Err() == nil {
		log.Info("ocr phase", zap.Int("queued", len(pr.queue)), zap.Int("concurrency", o.opts.OCRConcurrency))
		forEach(ctx, o.opts.OCRConcurrency, len(pr.queue), func(i int) {
			o.processOCR(ctx, pr, pr.queue[i])
		})
	}

	o.flush(ctx, pr)
	o.deps.Metrics.Page(true)
}

// filterNew drops URLs seen earlier in this run, in the resumed checkpoint
// or, when configured, by any earlier run.
func (o *Orchestrator) filterNew(ctx context.Context, articles []model.Article) []model.Article {
	fresh := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" || !o.urls.claim(a.URL) {
			o.stats.Record(Event{Kind: EventDuplicate})
			continue
		}
		if o.deps.Dedup != nil {
			seen, err := o.deps.Dedup.Seen(ctx, a.URL)
			if err != nil {
				zap.L().Warn("dedup lookup failed", zap.String("url", a.URL), zap.Error(err))
			}
			if seen {
				o.stats.Record(Event{Kind: EventDuplicate})
				continue
			}
		}
		fresh = append(fresh, a)
	}
	return fresh
}

// forEach runs fn for 0..n-1 with at most limit in flight. A limit of one
// or less runs strictly in order on the calling goroutine.
func forEach(ctx context.Context, limit, n int, fn func(i int)) {
	if limit <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// processArticle is the text phase for one article: classify, extract and
// either submit, queue for OCR or drop.
func (o *Orchestrator) processArticle(ctx context.Context, pr *pageRun, a model.Article, ocrOn bool) {
	oc := model.ArticleOutcome{URL: a.URL, Title: a.Title, Page: pr.page}

	c := o.deps.Classifier.Classify(a.Title, a.Summary)
	oc.ArticleType = c.ArticleType
	oc.Table = c.Table
	if c.IsSkip() {
		o.fail(BucketClassification, a.Title)
		o.finish(ctx, pr, oc, model.StageSkipped)
		return
	}

	res := o.deps.Extractor.Extract(extract.InputFromArticle(a, c))
	if res.Submittable() {
		o.stats.Record(Event{Kind: EventExtracted, Table: res.Table})
		if err := o.submit(ctx, res.Table, res.Data); err != nil {
			oc.Error = err.Error()
			o.finish(ctx, pr, oc, model.StageSubmitFailed)
			return
		}
		o.finish(ctx, pr, oc, model.StageSubmitted)
		return
	}

	switch {
	case res == nil:
		oc.Error = "no extraction routine for table"
	case !res.Success:
		oc.Error = res.Error
		o.fail(BucketExtraction, a.URL+": "+res.Error)
		zap.L().Info("extraction failed",
			zap.String("url", a.URL),
			zap.String("table", string(c.Table)),
			zap.String("stage", string(model.StageExtractionFailed)),
			zap.String("error", res.Error),
		)
	default:
		o.stats.Record(Event{Kind: EventExtracted, Table: res.Table})
	}

	if ocrOn && c.OCREligible() && a.PreviewImage != "" {
		o.stats.Record(Event{Kind: EventOCRQueued})
		pr.enqueue(ocrJob{article: a, class: c, result: res, outcome: oc})
		return
	}

	if res != nil && !res.Success {
		o.finish(ctx, pr, oc, model.StageExtractionFailed)
		return
	}
	if oc.Error == "" {
		oc.Error = dropReason(c, a, ocrOn)
	}
	o.finish(ctx, pr, oc, model.StageDropped)
}

func dropReason(c model.Classification, a model.Article, ocrOn bool) string {
	switch {
	case !ocrOn:
		return "needs ocr; ocr disabled"
	case c.PromptKind == model.PromptChart:
		return "chart image; not routed to ocr"
	case a.PreviewImage == "":
		return "needs ocr; article has no image"
	default:
		return "needs ocr; not eligible"
	}
}

// submit posts one record and counts the result.
func (o *Orchestrator) submit(ctx context.Context, table model.Table, record map[string]any) error {
	err := o.deps.Submitter.Submit(ctx, table, record)
	if err != nil {
		if ctx.Err() == nil {
			o.fail(BucketSubmission, err.Error())
			o.deps.Metrics.Submission(table, false)
			zap.L().Warn("submission failed",
				zap.Any("url", record[model.FieldSourceURL]),
				zap.String("table", string(table)),
				zap.String("stage", string(model.StageSubmitFailed)),
				zap.Error(err),
			)
		}
		return err
	}
	if o.opts.DryRun {
		o.stats.Record(Event{Kind: EventWouldSubmit, Table: table})
		return nil
	}
	o.stats.Record(Event{Kind: EventSubmitted, Table: table})
	o.deps.Metrics.Submission(table, true)
	return nil
}

func (o *Orchestrator) fail(b Bucket, msg string) {
	o.stats.Record(Event{Kind: EventFailure, Bucket: b, Msg: msg})
}

// finish records an article's final stage and marks its URL complete. A
// failure caused by cancellation abandons the article instead so a resumed
// run retries it.
func (o *Orchestrator) finish(ctx context.Context, pr *pageRun, oc model.ArticleOutcome, stage model.OutcomeStage) {
	failed := stage == model.StageSubmitFailed || stage == model.StageOCRFailed
	if failed && ctx.Err() != nil {
		o.urls.release(oc.URL)
		return
	}

	oc.Stage = stage
	oc.CreatedAt = o.now().UTC()
	pr.addOutcome(oc)
	o.urls.complete(oc.URL)
	o.deps.Metrics.Article(stage)

	if o.deps.Dedup != nil && !failed {
		if err := o.deps.Dedup.Mark(context.WithoutCancel(ctx), oc.URL); err != nil {
			zap.L().Warn("dedup mark failed", zap.String("url", oc.URL), zap.Error(err))
		}
	}
}

// flush writes the page's outcomes and OCR usage to the run ledger.
func (o *Orchestrator) flush(ctx context.Context, pr *pageRun) {
	if o.deps.Recorder == nil || o.deps.RunID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := o.deps.Recorder.RecordOutcomes(ctx, o.deps.RunID, pr.outcomes); err != nil {
		zap.L().Warn("record outcomes failed", zap.Int("page", pr.page), zap.Error(err))
	}
	if err := o.deps.Recorder.RecordOCRUsage(ctx, o.deps.RunID, pr.usage); err != nil {
		zap.L().Warn("record ocr usage failed", zap.Int("page", pr.page), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

type nopMetrics struct{}

func (nopMetrics) Page(bool)                    {}
func (nopMetrics) Article(model.OutcomeStage)   {}
func (nopMetrics) Submission(model.Table, bool) {}
func (nopMetrics) OCR(model.OCRResult)          {}
