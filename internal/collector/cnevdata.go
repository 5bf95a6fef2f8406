// Package collector fetches article list pages from the news site.
package collector

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/resilience"
)

// SourceName tags articles collected from CnEVData.
const SourceName = "cnevdata"

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
}

var (
	articlePathRe = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)
	bgImageRe     = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// Options configures the CnEVData collector.
type Options struct {
	BaseURL    string
	RateLimit  float64
	Timeout    time.Duration
	MaxRetries int
	UserAgents []string
	HTTPClient *http.Client
}

// CnEVData lists articles from the site's paginated index.
type CnEVData struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	agents  []string
	next    atomic.Uint64
}

// New creates a CnEVData collector.
func New(opts Options) (*CnEVData, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, eris.Errorf("collector: invalid base url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = defaultUserAgents
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &CnEVData{
		base:    base,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		retry:   resilience.WithRetries(opts.MaxRetries, SourceName, "fetch page"),
		agents:  opts.UserAgents,
	}, nil
}

// PageURL returns the list page URL. Page 1 is the site root.
func (c *CnEVData) PageURL(page int) string {
	if page <= 1 {
		return c.base.String() + "/"
	}
	return c.base.String() + "/page/" + strconv.Itoa(page) + "/"
}

// FetchArticles returns the articles listed on page.
func (c *CnEVData) FetchArticles(ctx context.Context, page int) ([]model.Article, error) {
	pageURL := c.PageURL(page)

	doc, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*goquery.Document, error) {
		return c.fetchDocument(ctx, pageURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "collector: fetch page %d", page)
	}

	articles := ParseList(doc, c.base)
	zap.L().Debug("collector: page parsed",
		zap.Int("page", page),
		zap.Int("articles", len(articles)),
	)
	return articles, nil
}

func (c *CnEVData) userAgent() string {
	n := c.next.Add(1) - 1
	return c.agents[n%uint64(len(c.agents))]
}

func (c *CnEVData) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "collector: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "collector: build request")
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "collector: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resilience.StatusError(SourceName, resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "collector: parse document")
	}
	return doc, nil
}
