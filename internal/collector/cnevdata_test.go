package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardPage = `<html><body>
<div class="list-item block">
  <div class="media"><a class="media-content" href="/2025/01/08/caam-nev-sales-dec/" style="background-image: url('https://cdn.cnevdata.com/caam.png')"></a></div>
  <div class="list-content">
    <a href="/2025/01/08/caam-nev-sales-dec/" class="list-title">CAAM: NEV sales reach 1.59 million in Dec</a>
    <div class="list-desc">China's NEV sales rose 34.5% year-on-year.</div>
    <time datetime="2025-01-08T09:12:00+08:00">Jan 8, 2025</time>
  </div>
</div>
<div class="list-item block">
  <a href="https://cnevdata.com/2025/01/07/cpca-top-automakers/"><img data-src="/wp-content/uploads/rank.jpg" src="data:image/gif;base64,AAAA"></a>
  <h3>CPCA top-selling automakers Dec 2024</h3>
</div>
<div class="list-item block">
  <a href="/2025/01/08/caam-nev-sales-dec/">CAAM duplicate</a>
  <h3>CAAM duplicate</h3>
</div>
<div class="list-item block">
  <a href="/about/">About us</a>
  <h3>Not an article</h3>
</div>
</body></html>`

const linkPage = `<html><body>
<ul>
  <li><a href="/2024/11/30/byd-nov-sales/"><img src="/x.png"></a></li>
  <li><a href="/2024/11/30/byd-nov-sales/"> BYD sells 506,804 NEVs in Nov </a></li>
  <li><a href="/2024/11/29/nio-deliveries/" title="NIO delivers 20,575 vehicles in Nov">read</a></li>
  <li><a href="/tag/2024/">Tag page</a></li>
</ul>
</body></html>`

func docOf(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func baseURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://cnevdata.com")
	require.NoError(t, err)
	return u
}

func TestParseList_Cards(t *testing.T) {
	articles := ParseList(docOf(t, cardPage), baseURL(t))
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "https://cnevdata.com/2025/01/08/caam-nev-sales-dec/", a.URL)
	assert.Equal(t, "CAAM: NEV sales reach 1.59 million in Dec", a.Title)
	assert.Equal(t, "China's NEV sales rose 34.5% year-on-year.", a.Summary)
	assert.Equal(t, "https://cdn.cnevdata.com/caam.png", a.PreviewImage)
	require.NotNil(t, a.PublishedAt)
	assert.Equal(t, time.Date(2025, 1, 8, 1, 12, 0, 0, time.UTC), *a.PublishedAt)
	assert.Equal(t, SourceName, a.Source)

	b := articles[1]
	assert.Equal(t, "https://cnevdata.com/2025/01/07/cpca-top-automakers/", b.URL)
	assert.Equal(t, "CPCA top-selling automakers Dec 2024", b.Title)
	assert.Equal(t, "https://cnevdata.com/wp-content/uploads/rank.jpg", b.PreviewImage)
	require.NotNil(t, b.PublishedAt)
	assert.Equal(t, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), *b.PublishedAt)
}

func TestParseList_LinkFallback(t *testing.T) {
	articles := ParseList(docOf(t, linkPage), baseURL(t))
	require.Len(t, articles, 2)
	assert.Equal(t, "BYD sells 506,804 NEVs in Nov", articles[0].Title)
	assert.Equal(t, "https://cnevdata.com/2024/11/30/byd-nov-sales/", articles[0].URL)
	require.NotNil(t, articles[0].PublishedAt)
	assert.Equal(t, 30, articles[0].PublishedAt.Day())
	assert.Equal(t, "NIO delivers 20,575 vehicles in Nov", articles[1].Title)
}

func TestParseList_Empty(t *testing.T) {
	assert.Empty(t, ParseList(docOf(t, "<html><body><p>maintenance</p></body></html>"), baseURL(t)))
}

func TestPageURL(t *testing.T) {
	c, err := New(Options{BaseURL: "https://cnevdata.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cnevdata.com/", c.PageURL(1))
	assert.Equal(t, "https://cnevdata.com/page/7/", c.PageURL(7))
}

func TestNew_InvalidBase(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestFetchArticles(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		assert.Equal(t, "/page/2/", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(cardPage))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RateLimit: 100, UserAgents: []string{"ua-1", "ua-2"}})
	require.NoError(t, err)

	for range 3 {
		articles, err := c.FetchArticles(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, articles, 2)
		assert.True(t, strings.HasPrefix(articles[0].URL, srv.URL+"/2025/01/08/"))
	}
	assert.Equal(t, []string{"ua-1", "ua-2", "ua-1"}, agents)
}

func TestFetchArticles_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(linkPage))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RateLimit: 100, MaxRetries: 2})
	require.NoError(t, err)
	c.retry.InitialBackoff = time.Millisecond
	c.retry.MaxBackoff = time.Millisecond

	articles, err := c.FetchArticles(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchArticles_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RateLimit: 100, MaxRetries: 3})
	require.NoError(t, err)

	_, err = c.FetchArticles(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 999")
	assert.Equal(t, int32(1), calls.Load())
}
