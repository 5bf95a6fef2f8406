// Package period resolves the reporting period a news title refers to.
package period

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Type is the granularity of a resolved period.
type Type string

const (
	Monthly   Type = "MONTHLY"
	Quarterly Type = "QUARTERLY"
	Yearly    Type = "YEARLY"
)

// MinYear and MaxYear bound the years accepted from titles.
const (
	MinYear = 2000
	MaxYear = 2100
)

// ErrUnresolved is returned when neither the title nor the publish date
// yields a usable year.
var ErrUnresolved = eris.New("period: no usable date in title or publish date")

// Period is a resolved reporting period. Month is 0 for yearly periods.
type Period struct {
	Year    int  `json:"year"`
	Month   int  `json:"month,omitempty"`
	Quarter int  `json:"quarter,omitempty"`
	Type    Type `json:"period_type"`
}

var (
	monthRe    = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
	yearRe     = regexp.MustCompile(`\b(20\d{2}|2100)\b`)
	shortYrRe  = regexp.MustCompile(`'(\d{2})\b`)
	quarterRe  = regexp.MustCompile(`(?i)\bq([1-4])\b`)
	fullYearRe = regexp.MustCompile(`(?i)\bfull[-\s]?year\b|\bannual\b|\byearly\b|\bfy\b|\bwhole\s+year\b`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// MonthOf returns the month number of the leftmost month name in s, or 0.
func MonthOf(s string) int {
	m := monthRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	return monthNumbers[strings.ToLower(m[1][:3])]
}

// YearOf returns the first year in [MinYear, MaxYear] written in s, or 0.
// Two-digit years written with an apostrophe ('25) are accepted.
func YearOf(s string) int {
	if m := yearRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y >= MinYear && y <= MaxYear {
			return y
		}
	}
	if m := shortYrRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return 2000 + y
	}
	return 0
}

// IsFullYear reports whether the title frames its figure as a full-year total.
func IsFullYear(s string) bool {
	return fullYearRe.MatchString(s)
}

// Resolve maps a title and optional publish date to a reporting period.
//
// An explicit year and month in the title win outright. A month without a
// year takes the publish year, rolled back one year when the month is later
// than the publish month. A year without a month is a yearly period when the
// title says full-year, otherwise it takes the publish month. With neither,
// the publish date is used as is.
func Resolve(title string, published *time.Time) (Period, error) {
	month := MonthOf(title)
	year := YearOf(title)

	if month == 0 {
		if m := quarterRe.FindStringSubmatch(title); m != nil {
			q, _ := strconv.Atoi(m[1])
			y, err := inferYear(year, q*3-2, published)
			if err != nil {
				return Period{}, err
			}
			return Period{Year: y, Month: q * 3, Quarter: q, Type: Quarterly}, nil
		}
	}

	switch {
	case month > 0:
		y, err := inferYear(year, month, published)
		if err != nil {
			return Period{}, err
		}
		return Period{Year: y, Month: month, Type: Monthly}, nil

	case year > 0:
		if IsFullYear(title) || published == nil {
			return Period{Year: year, Type: Yearly}, nil
		}
		return Period{Year: year, Month: int(published.Month()), Type: Monthly}, nil

	case published != nil:
		return Period{Year: published.Year(), Month: int(published.Month()), Type: Monthly}, nil
	}

	return Period{}, ErrUnresolved
}

// inferYear applies fiscal rollover: a month later than the publish month
// refers to the previous year.
func inferYear(explicit, month int, published *time.Time) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if published == nil {
		return 0, ErrUnresolved
	}
	y := published.Year()
	if month > int(published.Month()) {
		y--
	}
	return y, nil
}
