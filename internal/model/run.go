package model

import "time"

// RunStatus represents the state of a backfill run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// RunOptions records how a backfill run was launched.
type RunOptions struct {
	StartPage      int  `json:"start_page"`
	EndPage        int  `json:"end_page"`
	BatchSize      int  `json:"batch_size"`
	Concurrency    int  `json:"concurrency"`
	OCRConcurrency int  `json:"ocr_concurrency"`
	EnableOCR      bool `json:"enable_ocr"`
	DryRun         bool `json:"dry_run"`
	Resumed        bool `json:"resumed"`
}

// Run is one backfill invocation as recorded in the run ledger.
type Run struct {
	ID        string      `json:"id"`
	Options   RunOptions  `json:"options"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final counters of a run.
type RunSummary struct {
	PagesCompleted  int            `json:"pages_completed"`
	LastPage        int            `json:"last_page"`
	ArticlesSeen    int            `json:"articles_seen"`
	Duplicates      int            `json:"duplicates"`
	Skipped         int            `json:"skipped"`
	Extracted       int            `json:"extracted"`
	Submitted       int            `json:"submitted"`
	WouldSubmit     int            `json:"would_submit,omitempty"`
	DryRun          bool           `json:"dry_run,omitempty"`
	OCRQueued       int            `json:"ocr_queued"`
	OCRSucceeded    int            `json:"ocr_succeeded"`
	OCRRows         int            `json:"ocr_rows"`
	OCRInputTokens  int            `json:"ocr_input_tokens"`
	OCROutputTokens int            `json:"ocr_output_tokens"`
	OCRCost         float64        `json:"ocr_cost"`
	Failures        map[string]int `json:"failures"`
	ByTable         map[Table]int  `json:"by_table"`
}

// OutcomeStage names how far an article got through the pipeline.
type OutcomeStage string

const (
	StageSkipped          OutcomeStage = "skipped"
	StageExtractionFailed OutcomeStage = "extraction_failed"
	StageSubmitted        OutcomeStage = "submitted"
	StageSubmitFailed     OutcomeStage = "submit_failed"
	StageOCRSubmitted     OutcomeStage = "ocr_submitted"
	StageOCRFailed        OutcomeStage = "ocr_failed"
	StageDropped          OutcomeStage = "dropped"
)

// ArticleOutcome is the final disposition of one article in a run.
type ArticleOutcome struct {
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Page        int          `json:"page"`
	ArticleType ArticleType  `json:"article_type"`
	Table       Table        `json:"table,omitempty"`
	Stage       OutcomeStage `json:"stage"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
