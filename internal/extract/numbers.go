package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/evdata-cli/internal/period"
)

// Headline values below this are treated as incidental (ranks, days, model numbers).
const minHeadlineValue = 100

var (
	gwhRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*gwh\b`)
	millionRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*million\b`)
	numberRe  = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	factorRe  = regexp.MustCompile(`(?:^|[^\d.,])(\d\.\d+)`)

	yoyPatterns = changePatterns(`year-on-year|yoy|y-o-y|year over year`)
	momPatterns = changePatterns(`month-on-month|mom|m-o-m|month over month`)
)

type changePattern struct {
	re   *regexp.Regexp
	sign float64
}

// changePatterns builds the decline, growth and signed-number forms for one
// comparison suffix. Declines are negative.
func changePatterns(suffix string) []changePattern {
	return []changePattern{
		{regexp.MustCompile(`\b(?:down|decrease[sd]?|decline[sd]?|drop(?:s|ped)?|falls?|fell)\s*(?:by\s*)?(\d+(?:\.\d+)?)\s*%?\s*(?:` + suffix + `)`), -1},
		{regexp.MustCompile(`\b(?:up|increase[sd]?|rise[sn]?|rose|grew|grow(?:s|n)?)\s*(?:by\s*)?(\d+(?:\.\d+)?)\s*%?\s*(?:` + suffix + `)`), 1},
		{regexp.MustCompile(`([+-]?\d+(?:\.\d+)?)\s*%\s*(?:` + suffix + `)`), 1},
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isYear reports whether v falls in the range read as a calendar year.
func isYear(v float64) bool {
	return v >= period.MinYear && v <= period.MaxYear && v == math.Trunc(v)
}

// HeadlineValue returns the primary metric of a normalized title.
//
// An explicit "<N> million" phrase wins. Otherwise the largest number of at
// least 100 is used, ignoring percentages and values that read as years.
func HeadlineValue(text string) (float64, bool) {
	if m := millionRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseFloat(m[1]); ok {
			return math.Round(v * 1e6), true
		}
	}

	best, found := 0.0, false
	for _, loc := range numberRe.FindAllStringIndex(text, -1) {
		if followedByPercent(text, loc[1]) {
			continue
		}
		v, ok := parseFloat(text[loc[0]:loc[1]])
		if !ok || v < minHeadlineValue || isYear(v) {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}

// GWhValue returns the first "<N> GWh" figure, falling back to the headline value.
func GWhValue(text string) (float64, bool) {
	if m := gwhRe.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	return HeadlineValue(text)
}

// PercentValue returns the first "<N>%" figure.
func PercentValue(text string) (float64, bool) {
	if m := percentRe.FindStringSubmatch(text); m != nil {
		return parseFloat(m[1])
	}
	return 0, false
}

// FactorValue returns the first bare "<d>.<dd>" ratio not written as a percentage.
func FactorValue(text string) (float64, bool) {
	for _, m := range factorRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if followedByPercent(text, end) || end < len(text) && text[end] >= '0' && text[end] <= '9' {
			continue
		}
		return parseFloat(text[start:end])
	}
	return 0, false
}

// Changes returns the year-over-year and month-over-month percentages found
// in the texts, first text first.
func Changes(texts ...string) (yoy, mom *float64) {
	for _, t := range texts {
		if yoy == nil {
			yoy = findChange(t, yoyPatterns)
		}
		if mom == nil {
			mom = findChange(t, momPatterns)
		}
	}
	return yoy, mom
}

func findChange(text string, patterns []changePattern) *float64 {
	if text == "" {
		return nil
	}
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := parseFloat(m[1])
		if !ok {
			continue
		}
		v *= p.sign
		return &v
	}
	return nil
}

func followedByPercent(text string, end int) bool {
	rest := strings.TrimLeft(text[end:], " ")
	return strings.HasPrefix(rest, "%")
}
