// Package ocr sends article images to a vision model and normalizes the
// returned JSON into rows.
package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/evdata-cli/internal/cost"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/pkg/anthropic"
)

// Vision is the image-plus-prompt capability the router drives.
type Vision interface {
	Extract(ctx context.Context, imageURL, prompt string) (*anthropic.VisionReply, error)
	Model() string
}

// Router maps prompt kinds to instructions and records usage for every call.
type Router struct {
	vision Vision
	costs  *cost.Calculator
	now    func() time.Time
}

// NewRouter creates a Router.
func NewRouter(vision Vision, costs *cost.Calculator) *Router {
	return &Router{vision: vision, costs: costs, now: time.Now}
}

// Run extracts rows from the image. Failures are reported in the result,
// never returned as errors, and carry whatever token usage was incurred.
func (r *Router) Run(ctx context.Context, imageURL string, kind model.PromptKind) model.OCRResult {
	res := model.OCRResult{Model: r.vision.Model()}

	prompt, ok := PromptFor(kind)
	if !ok {
		res.Error = "ocr: prompt kind " + string(kind) + " is not routed to OCR"
		return res
	}
	if imageURL == "" {
		res.Error = "ocr: article has no image"
		return res
	}

	start := r.now()
	reply, err := r.vision.Extract(ctx, imageURL, prompt)
	res.DurationMs = r.now().Sub(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		zap.L().Warn("ocr: vision call failed",
			zap.String("image_url", imageURL),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return res
	}

	if reply.Model != "" {
		res.Model = reply.Model
	}
	res.InputTokens = int(reply.InputTokens)
	res.OutputTokens = int(reply.OutputTokens)
	res.Cost = r.costs.Vision(res.Model, res.InputTokens, res.OutputTokens)
	anthropic.TokenUsage{InputTokens: reply.InputTokens, OutputTokens: reply.OutputTokens}.
		LogCost(res.Model, "ocr:"+string(kind), res.Cost)

	rows, err := Normalize(reply.Text)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Rows = rows
	res.Success = true
	return res
}
