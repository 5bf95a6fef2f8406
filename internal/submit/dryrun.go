package submit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/evdata-cli/internal/model"
)

// DryRun logs what would be submitted and keeps a count per table.
type DryRun struct {
	mu      sync.Mutex
	records map[model.Table]int
	usage   int
}

// NewDryRun creates a DryRun submitter.
func NewDryRun() *DryRun {
	return &DryRun{records: make(map[model.Table]int)}
}

// Submit records the would-be submission.
func (d *DryRun) Submit(_ context.Context, table model.Table, record map[string]any) error {
	d.mu.Lock()
	d.records[table]++
	d.mu.Unlock()

	zap.L().Info("dry run: would submit",
		zap.String("table", string(table)),
		zap.Any("record", Clean(record)),
	)
	return nil
}

// TrackOCRUsage records the would-be usage report.
func (d *DryRun) TrackOCRUsage(_ context.Context, usage model.OCRUsage) error {
	d.mu.Lock()
	d.usage++
	d.mu.Unlock()

	zap.L().Debug("dry run: would track ocr usage",
		zap.String("model", usage.Model),
		zap.Float64("cost", usage.Cost),
		zap.Bool("success", usage.Success),
	)
	return nil
}

// Counts returns per-table submission counts and the usage report count.
func (d *DryRun) Counts() (map[model.Table]int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[model.Table]int, len(d.records))
	for k, v := range d.records {
		out[k] = v
	}
	return out, d.usage
}
