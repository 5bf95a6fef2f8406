// Package extract pulls table records out of classified news titles.
package extract

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evdata-cli/internal/classify"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/period"
)

// Input is everything a routine may look at for one article.
type Input struct {
	Title          string
	Summary        string
	Classification model.Classification
	PublishedAt    *time.Time
	SourceURL      string
	SourceTitle    string
	ImageURL       string
}

// InputFromArticle builds an Input for a collected article and its classification.
func InputFromArticle(a model.Article, c model.Classification) Input {
	return Input{
		Title:          a.Title,
		Summary:        a.Summary,
		Classification: c,
		PublishedAt:    a.PublishedAt,
		SourceURL:      a.URL,
		SourceTitle:    a.Title,
		ImageURL:       a.PreviewImage,
	}
}

// job carries the per-article state shared by routines.
type job struct {
	in      Input
	text    string
	summary string
	per     period.Period
	perErr  error
}

func (j *job) yearMonth() (int, int, error) {
	if j.perErr != nil {
		return 0, 0, eris.Wrap(j.perErr, "no month/year resolvable")
	}
	if j.per.Month == 0 {
		return 0, 0, eris.Errorf("no month resolvable (%s period %d)", j.per.Type, j.per.Year)
	}
	return j.per.Year, j.per.Month, nil
}

// changes adds yoyChange/momChange to data when the title or summary states them.
func (j *job) changes(data map[string]any) {
	yoy, mom := Changes(j.text, j.summary)
	if yoy != nil {
		data["yoyChange"] = *yoy
	}
	if mom != nil {
		data["momChange"] = *mom
	}
}

type routine func(j *job) (map[string]any, error)

// Extractor dispatches classified articles to per-table routines. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// routineFor returns the routine for a table. Every model.Table has a case;
// TestRoutineFor_CoversAllTables guards additions.
func (e *Extractor) routineFor(t model.Table) (routine, model.PromptKind) {
	switch t {
	case model.TableChinaPassengerInventory:
		return passengerInventory, model.PromptNone
	case model.TableChinaBatteryInstallation:
		return batteryInstallation, model.PromptNone
	case model.TableCaamNevSales, model.TableCpcaNevRetail, model.TableCpcaNevProduction:
		return vehicleVolume, model.PromptNone
	case model.TableChinaDealerInventoryFactor:
		return dealerInventoryFactor, model.PromptNone
	case model.TableChinaViaIndex:
		return viaIndex, model.PromptNone
	case model.TableBatteryMakerMonthly:
		return batteryMakerMonthly, model.PromptNone
	case model.TablePlantExports:
		return plantExports, model.PromptNone
	case model.TableNevSalesSummary:
		return nevSalesSummary, model.PromptNone
	case model.TableAutomakerRankings:
		return automakerRankings, model.PromptRankings
	case model.TableBatteryMakerRankings:
		return batteryMakerRankings, model.PromptRankings
	case model.TableVehicleSpec:
		return vehicleSpec, model.PromptSpecs
	case model.TableEVMetric:
		return evMetric, model.PromptNone
	}
	return nil, model.PromptNone
}

// Extract runs the routine for the classification's target table. It returns
// nil for SKIP and for tables without a routine. A routine that cannot
// resolve every required field yields Success=false with the reason.
// Ranking and spec tables yield a NeedsOCR stub instead of a record.
func (e *Extractor) Extract(in Input) *model.ExtractionResult {
	table := in.Classification.Table
	fn, stubKind := e.routineFor(table)
	if fn == nil {
		return nil
	}
	if in.SourceTitle == "" {
		in.SourceTitle = in.Title
	}

	j := &job{
		in:      in,
		text:    classify.Normalize(in.Title),
		summary: classify.Normalize(in.Summary),
	}
	j.per, j.perErr = period.Resolve(j.text, in.PublishedAt)

	res := &model.ExtractionResult{Table: table, Data: common(in)}
	data, err := fn(j)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	for k, v := range data {
		res.Data[k] = v
	}
	res.Success = true
	if stubKind != model.PromptNone {
		res.NeedsOCR = true
		res.PromptKind = stubKind
	}
	return res
}

func common(in Input) map[string]any {
	data := map[string]any{
		model.FieldSourceURL:   in.SourceURL,
		model.FieldSourceTitle: in.SourceTitle,
	}
	if in.PublishedAt != nil {
		data[model.FieldPublishedAt] = in.PublishedAt.UTC().Format(time.RFC3339)
	}
	if in.ImageURL != "" {
		data[model.FieldImageURL] = in.ImageURL
	}
	return data
}
