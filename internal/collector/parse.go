package collector

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/evdata-cli/internal/model"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006/01/02",
}

// ParseList extracts articles from a list page. Card markup is preferred;
// bare dated links are the fallback when the layout changes. Duplicate URLs
// on the page are dropped.
func ParseList(doc *goquery.Document, base *url.URL) []model.Article {
	seen := make(map[string]struct{})
	var out []model.Article
	add := func(a model.Article) {
		if a.URL == "" || a.Title == "" {
			return
		}
		if _, dup := seen[a.URL]; dup {
			return
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}

	doc.Find("div.list-item.block").Each(func(_ int, item *goquery.Selection) {
		add(parseCard(item, base))
	})
	if len(out) > 0 {
		return out
	}

	doc.Find(`a[href*="/20"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := resolve(link.AttrOr("href", ""), base)
		if !ok {
			return
		}
		title := clean(link.AttrOr("title", ""))
		if title == "" {
			title = clean(link.Text())
		}
		add(model.Article{
			URL:         href,
			Title:       title,
			PublishedAt: dateFromURL(href),
			Source:      SourceName,
		})
	})
	return out
}

func parseCard(item *goquery.Selection, base *url.URL) model.Article {
	var href string
	item.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if u, ok := resolve(a.AttrOr("href", ""), base); ok {
			href = u
			return false
		}
		return true
	})
	if href == "" {
		return model.Article{}
	}

	title := clean(item.Find(".list-title, h2, h3").First().Text())
	if title == "" {
		title = clean(item.Find("a[title]").First().AttrOr("title", ""))
	}

	a := model.Article{
		URL:          href,
		Title:        title,
		Summary:      firstText(item, ".list-desc", ".excerpt", "p"),
		PreviewImage: imageOf(item, base),
		Source:       SourceName,
	}

	if t := cardDate(item); t != nil {
		a.PublishedAt = t
	} else {
		a.PublishedAt = dateFromURL(href)
	}
	return a
}

func firstText(item *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := clean(item.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func cardDate(item *goquery.Selection) *time.Time {
	tm := item.Find("time").First()
	candidates := []string{
		tm.AttrOr("datetime", ""),
		tm.Text(),
		item.Find(".list-date, .date").First().Text(),
	}
	for _, c := range candidates {
		if t, ok := parseDate(c); ok {
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	s = clean(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func imageOf(item *goquery.Selection, base *url.URL) string {
	img := item.Find("img").First()
	for _, attr := range []string{"data-src", "src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return absolute(v, base)
		}
	}

	var found string
	item.Find("[style*=background-image]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := bgImageRe.FindStringSubmatch(s.AttrOr("style", "")); m != nil {
			found = absolute(m[1], base)
			return false
		}
		return true
	})
	return found
}

// resolve returns the absolute article URL when href points at a dated post.
func resolve(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if !articlePathRe.MatchString(u.Path) {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func absolute(ref string, base *url.URL) string {
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func dateFromURL(href string) *time.Time {
	m := articlePathRe.FindStringSubmatch(href)
	if m == nil {
		return nil
	}
	t, err := time.Parse("2006/01/02", m[1]+"/"+m[2]+"/"+m[3])
	if err != nil {
		return nil
	}
	return &t
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
