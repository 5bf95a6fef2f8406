package model

// Common record keys carried by every extraction result.
const (
	FieldSourceURL   = "sourceUrl"
	FieldSourceTitle = "sourceTitle"
	FieldPublishedAt = "publishedAt"
	FieldImageURL    = "imageUrl"
)

// ExtractionResult is the outcome of one per-table extraction routine.
type ExtractionResult struct {
	Success    bool           `json:"success"`
	Table      Table          `json:"table_name"`
	Data       map[string]any `json:"data"`
	Error      string         `json:"error,omitempty"`
	NeedsOCR   bool           `json:"needs_ocr,omitempty"`
	PromptKind PromptKind     `json:"ocr_prompt_kind,omitempty"`
}

// Submittable reports whether Data can be sent to the submission layer as is.
func (r *ExtractionResult) Submittable() bool {
	return r != nil && r.Success && !r.NeedsOCR
}

// OCRResult is the normalized outcome of one vision extraction.
type OCRResult struct {
	Success      bool             `json:"success"`
	Rows         []map[string]any `json:"rows"`
	Error        string           `json:"error,omitempty"`
	Model        string           `json:"model,omitempty"`
	InputTokens  int              `json:"input_tokens"`
	OutputTokens int              `json:"output_tokens"`
	Cost         float64          `json:"cost"`
	DurationMs   int64            `json:"duration_ms"`
}

// Usage returns the telemetry record for this result.
func (r *OCRResult) Usage(source string) OCRUsage {
	return OCRUsage{
		Model:        r.Model,
		Success:      r.Success,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Cost:         r.Cost,
		DurationMs:   r.DurationMs,
		Source:       source,
		Error:        r.Error,
	}
}

// OCRUsage is the cost telemetry reported for every vision call.
type OCRUsage struct {
	Model        string  `json:"model"`
	Success      bool    `json:"success"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
	DurationMs   int64   `json:"durationMs,omitempty"`
	Source       string  `json:"source"`
	Error        string  `json:"errorMsg,omitempty"`
}
