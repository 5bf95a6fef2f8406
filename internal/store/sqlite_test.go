package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evdata-cli/internal/config"
	"github.com/sells-group/evdata-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Runs ---

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	opts := model.RunOptions{StartPage: 1, EndPage: 5, BatchSize: 10, Concurrency: 4, EnableOCR: true}
	run, err := st.CreateRun(ctx, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, opts, got.Options)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_FinishRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunOptions{StartPage: 1, EndPage: 2})
	require.NoError(t, err)

	summary := &model.RunSummary{
		PagesCompleted: 2,
		LastPage:       2,
		Submitted:      7,
		OCRCost:        0.042,
		Failures:       map[string]int{"submission": 1},
		ByTable:        map[model.Table]int{model.TableEVMetric: 4},
	}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 7, got.Summary.Submitted)
	assert.InDelta(t, 0.042, got.Summary.OCRCost, 1e-9)
	assert.Equal(t, 4, got.Summary.ByTable[model.TableEVMetric])
	assert.Equal(t, 1, got.Summary.Failures["submission"])
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.FinishRun(context.Background(), "missing", model.RunStatusFailed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_ListRuns_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, model.RunOptions{StartPage: 1, EndPage: 1})
	require.NoError(t, err)
	r2, err := st.CreateRun(ctx, model.RunOptions{StartPage: 2, EndPage: 2})
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, r1.ID, model.RunStatusInterrupted, nil))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, r2.ID, running[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := st.ListRuns(ctx, RunFilter{Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, offset)
}

// --- Outcomes ---

func TestSQLite_RecordOutcomesAndCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunOptions{StartPage: 1, EndPage: 1})
	require.NoError(t, err)

	now := time.Now()
	outcomes := []model.ArticleOutcome{
		{URL: "https://cnevdata.com/2025/01/10/a/", Title: "A", Page: 1, ArticleType: model.ArticleTypeAutomakerRankings, Table: model.TableAutomakerRankings, Stage: model.StageSubmitted, CreatedAt: now},
		{URL: "https://cnevdata.com/2025/01/10/b/", Title: "B", Page: 1, ArticleType: model.ArticleTypeAutomakerRankings, Table: model.TableAutomakerRankings, Stage: model.StageSubmitted},
		{URL: "https://cnevdata.com/2025/01/10/c/", Title: "C", Page: 1, ArticleType: model.ArticleTypeSkip, Stage: model.StageSkipped},
		{URL: "https://cnevdata.com/2025/01/10/d/", Title: "D", Page: 1, ArticleType: model.ArticleTypeSkip, Stage: model.StageSubmitFailed, Error: "http 500"},
	}
	require.NoError(t, st.RecordOutcomes(ctx, run.ID, outcomes))
	require.NoError(t, st.RecordOutcomes(ctx, run.ID, nil))

	counts, err := st.OutcomeCounts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[model.OutcomeStage]int{
		model.StageSubmitted:    2,
		model.StageSkipped:      1,
		model.StageSubmitFailed: 1,
	}, counts)
}

func TestSQLite_OutcomeCounts_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	counts, err := st.OutcomeCounts(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSQLite_RecordOCRUsage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunOptions{StartPage: 1, EndPage: 1, EnableOCR: true})
	require.NoError(t, err)

	records := []OCRUsageRecord{
		{URL: "https://cnevdata.com/2025/02/01/x/", Usage: model.OCRUsage{Model: "claude-sonnet-4-5-20250929", Success: true, InputTokens: 1500, OutputTokens: 300, Cost: 0.009, DurationMs: 2100}},
		{URL: "https://cnevdata.com/2025/02/01/y/", Usage: model.OCRUsage{Model: "claude-sonnet-4-5-20250929", Error: "ocr: no JSON in response"}},
	}
	require.NoError(t, st.RecordOCRUsage(ctx, run.ID, records))

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ocr_usage WHERE run_id = ? AND success = 1`, run.ID).Scan(&n))
	assert.Equal(t, 1, n)
}

// --- Open ---

func TestOpen_NoneDriver(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: dsn})
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, err = st.CreateRun(context.Background(), model.RunOptions{StartPage: 1, EndPage: 1})
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestSQLite_ListRuns_CreatedAfter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, model.RunOptions{StartPage: 1, EndPage: 1})
	require.NoError(t, err)

	recent, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	future, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}
