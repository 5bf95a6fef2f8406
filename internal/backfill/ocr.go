package backfill

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/store"
	"github.com/sells-group/evdata-cli/internal/submit"
)

// ocrJob is an article the text phase could not complete.
type ocrJob struct {
	article model.Article
	class   model.Classification
	result  *model.ExtractionResult
	outcome model.ArticleOutcome
}

// kind picks the prompt: the extractor's stub kind first, then the
// classifier's, then general.
func (j ocrJob) kind() model.PromptKind {
	if j.result != nil && j.result.PromptKind != model.PromptNone {
		return j.result.PromptKind
	}
	if j.class.PromptKind != model.PromptNone {
		return j.class.PromptKind
	}
	return model.PromptGeneral
}

func (j ocrJob) source() string {
	if j.article.Source != "" {
		return j.article.Source
	}
	return "backfill"
}

// processOCR runs the vision call for one queued article, reports its usage
// and submits whatever records the rows map to.
func (o *Orchestrator) processOCR(ctx context.Context, pr *pageRun, j ocrJob) {
	a := j.article
	oc := j.outcome
	kind := j.kind()

	res := o.deps.OCR.Run(ctx, a.PreviewImage, kind)
	o.stats.Record(Event{Kind: EventOCRDone, OCR: &res})
	o.deps.Metrics.OCR(res)

	usage := res.Usage(j.source())
	pr.addUsage(store.OCRUsageRecord{URL: a.URL, Usage: usage})
	if err := o.deps.Submitter.TrackOCRUsage(context.WithoutCancel(ctx), usage); err != nil {
		zap.L().Warn("track ocr usage failed", zap.String("url", a.URL), zap.Error(err))
	}

	if !res.Success {
		oc.Error = res.Error
		if ctx.Err() == nil {
			o.fail(BucketOCR, a.URL+": "+res.Error)
			zap.L().Warn("ocr failed",
				zap.String("url", a.URL),
				zap.String("table", string(j.class.Table)),
				zap.String("stage", string(model.StageOCRFailed)),
				zap.String("error", res.Error),
			)
		}
		o.finish(ctx, pr, oc, model.StageOCRFailed)
		return
	}

	records, reason := ocrRecords(j, res.Rows)
	if len(records) == 0 {
		oc.Error = reason
		o.finish(ctx, pr, oc, model.StageDropped)
		return
	}

	var failed int
	for _, rec := range records {
		if err := o.submit(ctx, j.class.Table, rec); err != nil {
			failed++
			oc.Error = err.Error()
		}
	}
	if failed > 0 {
		o.finish(ctx, pr, oc, model.StageSubmitFailed)
		return
	}
	o.finish(ctx, pr, oc, model.StageOCRSubmitted)
}

// ocrRecords maps OCR rows onto submission records for tables that have a
// mapping. When none are produced reason says why.
func ocrRecords(j ocrJob, rows []map[string]any) (records []map[string]any, reason string) {
	if len(rows) == 0 {
		return nil, "ocr returned no rows"
	}
	var base map[string]any
	if j.result != nil {
		base = j.result.Data
	}

	table := j.class.Table
	switch {
	case table.IsRanking():
		if j.result == nil || !j.result.Success {
			return nil, "ranking period unresolved"
		}
		records, skipped := submit.RankingRecords(table, rows, base)
		if skipped > 0 {
			zap.L().Debug("ocr ranking rows skipped",
				zap.String("url", j.article.URL),
				zap.Int("skipped", skipped),
			)
		}
		if len(records) == 0 {
			return nil, "no complete ranking rows"
		}
		return records, ""
	case table == model.TableVehicleSpec:
		if j.result == nil || !j.result.Success {
			return nil, "vehicle not resolvable"
		}
		return []map[string]any{mergeSpec(base, rows[0])}, ""
	default:
		return nil, "no ocr mapping for table " + string(table)
	}
}

// mergeSpec lays the OCR spec row over the title stub. Source fields always
// come from the stub and null values never overwrite.
func mergeSpec(stub, row map[string]any) map[string]any {
	rec := make(map[string]any, len(stub)+len(row))
	for k, v := range stub {
		rec[k] = v
	}
	for k, v := range row {
		if v == nil {
			continue
		}
		switch k {
		case model.FieldSourceURL, model.FieldSourceTitle, model.FieldPublishedAt, model.FieldImageURL:
			continue
		}
		rec[k] = v
	}
	return rec
}
