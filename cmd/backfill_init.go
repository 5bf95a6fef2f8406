package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evdata-cli/internal/backfill"
	"github.com/sells-group/evdata-cli/internal/checkpoint"
	"github.com/sells-group/evdata-cli/internal/classify"
	"github.com/sells-group/evdata-cli/internal/collector"
	"github.com/sells-group/evdata-cli/internal/config"
	"github.com/sells-group/evdata-cli/internal/cost"
	"github.com/sells-group/evdata-cli/internal/dedup"
	"github.com/sells-group/evdata-cli/internal/extract"
	"github.com/sells-group/evdata-cli/internal/monitoring"
	"github.com/sells-group/evdata-cli/internal/ocr"
	"github.com/sells-group/evdata-cli/internal/resilience"
	"github.com/sells-group/evdata-cli/internal/store"
	"github.com/sells-group/evdata-cli/internal/submit"
	anthropicpkg "github.com/sells-group/evdata-cli/pkg/anthropic"
)

// backfillEnv holds the clients and stores a backfill run needs.
type backfillEnv struct {
	Store   store.Store       // may be nil
	Dedup   *dedup.RedisStore // may be nil
	Metrics *monitoring.Metrics
	Deps    backfill.Deps
}

// Close releases resources held by the environment.
func (be *backfillEnv) Close() {
	if be.Dedup != nil {
		_ = be.Dedup.Close()
	}
	if be.Store != nil {
		_ = be.Store.Close()
	}
}

// initBackfill builds every collaborator of the orchestrator. Optional
// pieces (ledger, dedup, OCR) are left nil when unconfigured. Callers
// should defer env.Close().
func initBackfill(ctx context.Context, enableOCR bool, checkpointPath string) (*backfillEnv, error) {
	patterns, err := classify.DefaultPatterns()
	if err != nil {
		return nil, eris.Wrap(err, "load classifier patterns")
	}

	coll, err := collector.New(collector.Options{
		BaseURL:    cfg.Collector.BaseURL,
		RateLimit:  cfg.Collector.RateLimit,
		Timeout:    time.Duration(cfg.Collector.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Collector.MaxRetries,
		UserAgents: cfg.Collector.UserAgents,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	env := &backfillEnv{Store: st, Metrics: monitoring.NewMetrics()}

	if cfg.Dedup.RedisURL != "" {
		dd, err := dedup.Open(ctx, cfg.Dedup.RedisURL, time.Duration(cfg.Dedup.TTLHours)*time.Hour)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Dedup = dd
		zap.L().Info("cross-run dedup enabled")
	}

	cps := checkpoint.NewFileStore(checkpointPath)
	zap.L().Debug("checkpoint file", zap.String("path", cps.Path()))

	env.Deps = backfill.Deps{
		Collector:   coll,
		Classifier:  classify.New(patterns),
		Extractor:   extract.New(),
		Submitter:   newSubmitClient(),
		Checkpoints: cps,
		Metrics:     env.Metrics,
	}
	if st != nil {
		env.Deps.Recorder = st
	}
	if env.Dedup != nil {
		env.Deps.Dedup = env.Dedup
	}
	if enableOCR {
		if router := newOCRRouter(); router != nil {
			env.Deps.OCR = router
		}
	}
	return env, nil
}

func newSubmitClient() *submit.Client {
	return submit.NewClient(cfg.Submit.BaseURL,
		submit.WithAPIKey(cfg.Submit.APIKey),
		submit.WithRateLimit(cfg.Submit.RateLimit),
		submit.WithRetry(resilience.WithRetries(cfg.Submit.MaxRetries, "submit", "post")),
	)
}

// newOCRRouter returns nil when no Anthropic key is configured.
func newOCRRouter() *ocr.Router {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("EVDATA_ANTHROPIC_KEY not set, ocr disabled")
		return nil
	}
	costs := cost.NewCalculator(visionRates(cfg.Pricing))
	if !costs.Known(cfg.Anthropic.VisionModel) {
		zap.L().Warn("no price for vision model, ocr cost will be reported as 0",
			zap.String("model", cfg.Anthropic.VisionModel),
			zap.Strings("priced", costs.Models()),
		)
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	vision := anthropicpkg.NewVision(client, cfg.Anthropic.VisionModel, cfg.Anthropic.MaxTokens)
	return ocr.NewRouter(vision, costs)
}

// visionRates layers configured prices over the built-in table.
func visionRates(p config.PricingConfig) cost.Rates {
	overrides := make(map[string]cost.ModelRate, len(p.Vision))
	for name, mp := range p.Vision {
		overrides[name] = cost.ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return cost.DefaultRates().Merge(overrides)
}

// initStore opens the run ledger for the runs commands.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store)
}
