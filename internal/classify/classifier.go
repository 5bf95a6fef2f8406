// Package classify routes news titles to destination data tables.
package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/evdata-cli/internal/model"
)

// SkipConfidence is reported for titles no group matches.
const SkipConfidence = 0.5

var (
	// A headline figure: comma-grouped or at least four digits. Years count.
	hasNumberRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d{4,}`)

	makerRe  = regexp.MustCompile(`\b(catl|byd|lg|sk|panasonic|calb|gotion|eve|sunwoda|svolt|lishen|farasis)\b`)
	regionRe = regexp.MustCompile(`\b(shanghai|beijing|guangdong|shenzhen|hangzhou|guangzhou|jiangsu|zhejiang|sichuan|chengdu|tianjin|chongqing|hubei|wuhan)\b`)
	globalRe = regexp.MustCompile(`\bglobal\b`)

	punctReplacer = strings.NewReplacer("’", "'", "‘", "'", "–", "-", "—", "-")
)

// Normalize folds a title into the form patterns are written against:
// NFKC, typographic punctuation replaced, lower case, trimmed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = punctReplacer.Replace(s)
	return strings.ToLower(strings.TrimSpace(s))
}

// HasNumber reports whether the title carries a headline-sized number.
func HasNumber(title string) bool {
	return hasNumberRe.MatchString(title)
}

// Classifier evaluates a PatternTable against article titles. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	patterns *PatternTable
}

// New creates a Classifier over the given pattern table.
func New(pt *PatternTable) *Classifier {
	return &Classifier{patterns: pt}
}

// Classify assigns exactly one article type to the article. The summary is
// consulted only when the title is empty.
func (c *Classifier) Classify(title, summary string) model.Classification {
	text := Normalize(title)
	if text == "" {
		text = Normalize(summary)
	}
	if text == "" {
		return skip()
	}

	hasNumber := HasNumber(text)
	for i := range c.patterns.groups {
		g := &c.patterns.groups[i]
		if !g.Match(text) {
			continue
		}
		dims, ok := postFilter(g.Post, text)
		if !ok {
			continue
		}
		return model.Classification{
			ArticleType: g.ArticleType,
			Table:       g.Table,
			NeedsOCR:    needsOCR(g.OCR, hasNumber),
			PromptKind:  g.PromptKind,
			Dimensions:  dims,
			Confidence:  g.Confidence,
		}
	}
	return skip()
}

func skip() model.Classification {
	return model.Classification{
		ArticleType: model.ArticleTypeSkip,
		Confidence:  SkipConfidence,
	}
}

func needsOCR(rule OCRRule, hasNumber bool) bool {
	switch rule {
	case OCRAlways:
		return true
	case OCRNever:
		return false
	}
	return !hasNumber
}

// postFilter refines a matched group. A false return means the group does
// not apply after all and evaluation moves on to the next one.
func postFilter(post, text string) (map[string]string, bool) {
	switch post {
	case postScope:
		scope := "CHINA"
		if globalRe.MatchString(text) {
			scope = "GLOBAL"
		}
		return map[string]string{model.DimScope: scope}, true
	case postMaker:
		m := makerRe.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		return map[string]string{model.DimMaker: strings.ToUpper(m[1])}, true
	case postRegion:
		m := regionRe.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		return map[string]string{model.DimRegion: cases.Title(language.English).String(m[1])}, true
	}
	return nil, true
}
