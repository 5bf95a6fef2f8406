package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/evdata-cli/internal/backfill"
	"github.com/sells-group/evdata-cli/internal/config"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/monitoring"
	"github.com/sells-group/evdata-cli/internal/store"
)

var backfillFlags struct {
	pages          string
	batchSize      int
	enableOCR      bool
	dryRun         bool
	concurrency    int
	ocrConcurrency int
	resume         bool
	checkpoint     string
	metricsAddr    string
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill historical articles into the EV data API",
	Long:  "Walks the news list pages, classifies and extracts each article, runs OCR on eligible images and submits the records. Progress is checkpointed after every batch and on interrupt.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyBackfillFlags(cmd)
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		start, end, err := resolvePages(backfillFlags.pages, cfg.Backfill.TotalPages)
		if err != nil {
			return err
		}

		env, err := initBackfill(ctx, backfillFlags.enableOCR, cfg.Backfill.CheckpointPath)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := backfill.Options{
			StartPage:      start,
			EndPage:        end,
			BatchSize:      cfg.Backfill.BatchSize,
			Concurrency:    cfg.Backfill.Concurrency,
			OCRConcurrency: cfg.Backfill.OCRConcurrency,
			EnableOCR:      backfillFlags.enableOCR,
			DryRun:         backfillFlags.dryRun,
			Resume:         backfillFlags.resume,
			BatchDelay:     time.Duration(cfg.Backfill.BatchDelaySecs) * time.Second,
			PageDelayMin:   time.Duration(cfg.Backfill.PageDelayMinSecs) * time.Second,
			PageDelayMax:   time.Duration(cfg.Backfill.PageDelayMaxSecs) * time.Second,
		}

		var run *model.Run
		if env.Store != nil {
			run, err = env.Store.CreateRun(ctx, runOptions(opts))
			if err != nil {
				return eris.Wrap(err, "create run")
			}
			env.Deps.RunID = run.ID
			zap.L().Info("run created", zap.String("run_id", run.ID))
		}

		orch, err := backfill.New(opts, env.Deps)
		if err != nil {
			return err
		}

		if cfg.Monitoring.MetricsAddr != "" {
			handler := monitoring.NewRouter(env.Metrics, func() any { return orch.Stats().Snapshot() })
			go func() {
				if err := monitoring.Serve(ctx, cfg.Monitoring.MetricsAddr, handler); err != nil {
					zap.L().Error("metrics server failed", zap.Error(err))
				}
			}()
		}

		runErr := orch.Run(ctx)

		snap := orch.Stats().Snapshot()
		snap.Print(cmd.OutOrStdout())

		// The signal context may be done; ledger writes still need to land.
		finishCtx := context.WithoutCancel(ctx)
		if run != nil {
			status := runStatus(runErr)
			if err := env.Store.FinishRun(finishCtx, run.ID, status, &snap.Summary); err != nil {
				zap.L().Error("finish run failed", zap.String("run_id", run.ID), zap.Error(err))
			}
			if cfg.Monitoring.WebhookURL != "" {
				checkAlerts(finishCtx, env.Store, cfg.Monitoring, true)
			}
		}

		if errors.Is(runErr, context.Canceled) {
			zap.L().Warn("backfill interrupted; rerun with --resume to continue")
			return nil
		}
		return runErr
	},
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillFlags.pages, "pages", "", "page range to process, e.g. 1-5 (default 1-backfill.total_pages)")
	f.IntVar(&backfillFlags.batchSize, "batch-size", 0, "pages per batch before a checkpoint and long pause")
	f.BoolVar(&backfillFlags.enableOCR, "enable-ocr", false, "send eligible article images to the vision model")
	f.BoolVar(&backfillFlags.dryRun, "dry-run", false, "classify, extract and OCR without submitting")
	f.IntVar(&backfillFlags.concurrency, "concurrency", 0, "article workers per page (0 or 1 = sequential)")
	f.IntVar(&backfillFlags.ocrConcurrency, "ocr-concurrency", 0, "concurrent OCR calls per page")
	f.BoolVar(&backfillFlags.resume, "resume", false, "continue from the checkpoint file")
	f.StringVar(&backfillFlags.checkpoint, "checkpoint", "", "checkpoint file path")
	f.StringVar(&backfillFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.AddCommand(backfillCmd)
}

// applyBackfillFlags copies explicitly set flags over the loaded config.
func applyBackfillFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("batch-size") {
		cfg.Backfill.BatchSize = backfillFlags.batchSize
	}
	if f.Changed("concurrency") {
		cfg.Backfill.Concurrency = backfillFlags.concurrency
	}
	if f.Changed("ocr-concurrency") {
		cfg.Backfill.OCRConcurrency = backfillFlags.ocrConcurrency
	}
	if f.Changed("checkpoint") {
		cfg.Backfill.CheckpointPath = backfillFlags.checkpoint
	}
	if f.Changed("metrics-addr") {
		cfg.Monitoring.MetricsAddr = backfillFlags.metricsAddr
	}
}

// resolvePages turns the --pages flag into a range. Without a flag the run
// covers 1..total. On --resume the orchestrator moves the start past the
// checkpoint's last page.
func resolvePages(flag string, total int) (start, end int, err error) {
	if flag == "" {
		if total < 1 {
			return 0, 0, eris.New("backfill: total pages must be positive")
		}
		return 1, total, nil
	}
	return parsePageRange(flag)
}

// parsePageRange parses "3-7" or a single page "4".
func parsePageRange(s string) (start, end int, err error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	start, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, eris.Errorf("backfill: invalid page range %q", s)
	}
	end = start
	if found {
		end, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, eris.Errorf("backfill: invalid page range %q", s)
		}
	}
	if start < 1 || end < start {
		return 0, 0, eris.Errorf("backfill: page range %q must satisfy 1 <= start <= end", s)
	}
	return start, end, nil
}

func runOptions(o backfill.Options) model.RunOptions {
	return model.RunOptions{
		StartPage:      o.StartPage,
		EndPage:        o.EndPage,
		BatchSize:      o.BatchSize,
		Concurrency:    o.Concurrency,
		OCRConcurrency: o.OCRConcurrency,
		EnableOCR:      o.EnableOCR,
		DryRun:         o.DryRun,
		Resumed:        o.Resume,
	}
}

func runStatus(err error) model.RunStatus {
	switch {
	case err == nil:
		return model.RunStatusComplete
	case errors.Is(err, context.Canceled):
		return model.RunStatusInterrupted
	default:
		return model.RunStatusFailed
	}
}

// checkAlerts evaluates recent runs and, when send is set, posts any alerts
// to the configured webhook. It returns the alerts found.
func checkAlerts(ctx context.Context, st store.Store, mc config.MonitoringConfig, send bool) []monitoring.Alert {
	snap, err := monitoring.NewCollector(st).Collect(ctx, mc.LookbackWindowHours)
	if err != nil {
		zap.L().Error("collect run snapshot failed", zap.Error(err))
		return nil
	}
	alerter := monitoring.NewAlerter(mc)
	alerts := alerter.Evaluate(snap)
	if send && len(alerts) > 0 {
		sent := alerter.SendAlerts(ctx, alerts)
		zap.L().Info("alerts evaluated", zap.Int("alerts", len(alerts)), zap.Int("sent", sent))
	}
	return alerts
}
