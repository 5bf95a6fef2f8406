// Package submit sends extracted records and OCR usage to the EV data API.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/resilience"
)

// Submitter is the submission boundary the orchestrator writes to.
type Submitter interface {
	Submit(ctx context.Context, table model.Table, record map[string]any) error
	TrackOCRUsage(ctx context.Context, usage model.OCRUsage) error
}

// Option configures the HTTP client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithRateLimit caps requests per second across all endpoints.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// Client posts records to {base}/api/{endpoint}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   resilience.WithRetries(3, "submit", "post"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL returns the full URL records for table are posted to.
func (c *Client) EndpointURL(table model.Table) (string, error) {
	ep := table.Endpoint()
	if ep == "" {
		return "", eris.Errorf("submit: unknown table %q", table)
	}
	return c.baseURL + "/api/" + ep, nil
}

// Submit posts one record. Keys starting with "_" are internal and dropped.
func (c *Client) Submit(ctx context.Context, table model.Table, record map[string]any) error {
	endpoint, err := c.EndpointURL(table)
	if err != nil {
		return err
	}

	if err := c.post(ctx, endpoint, Clean(record)); err != nil {
		return eris.Wrapf(err, "submit: %s", table)
	}
	zap.L().Debug("submit: record accepted", zap.String("table", string(table)))
	return nil
}

// TrackOCRUsage reports the cost of one vision call.
func (c *Client) TrackOCRUsage(ctx context.Context, usage model.OCRUsage) error {
	if err := c.post(ctx, c.baseURL+"/api/admin/ai-usage", usagePayload(usage)); err != nil {
		return eris.Wrap(err, "submit: track ocr usage")
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "submit: encode payload")
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "submit: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "submit: build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "submit: post"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return resilience.StatusError("submit", resp.StatusCode, string(msg))
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
}

// Clean returns a copy of record without internal "_" keys.
func Clean(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}

func usagePayload(u model.OCRUsage) map[string]any {
	p := map[string]any{
		"type":         "ocr",
		"model":        u.Model,
		"cost":         u.Cost,
		"success":      u.Success,
		"inputTokens":  u.InputTokens,
		"outputTokens": u.OutputTokens,
		"source":       u.Source,
		"durationMs":   u.DurationMs,
	}
	if u.Error != "" {
		p["errorMsg"] = u.Error
	}
	return p
}
