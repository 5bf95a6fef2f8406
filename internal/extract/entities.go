package extract

import (
	"regexp"
	"strings"
)

type makerName struct {
	re        *regexp.Regexp
	canonical string
}

// Battery maker keywords, longest first so "lg energy" beats "lg".
var makerNames = []makerName{
	{regexp.MustCompile(`\blg\s+energy(?:\s+solution)?\b`), "LG Energy Solution"},
	{regexp.MustCompile(`\bsk\s+on\b`), "SK On"},
	{regexp.MustCompile(`\bsamsung(?:\s+sdi)?\b`), "Samsung SDI"},
	{regexp.MustCompile(`\bpanasonic\b`), "Panasonic"},
	{regexp.MustCompile(`\bsunwoda\b`), "Sunwoda"},
	{regexp.MustCompile(`\bgotion\b`), "Gotion High-Tech"},
	{regexp.MustCompile(`\bfarasis\b`), "Farasis Energy"},
	{regexp.MustCompile(`\blishen\b`), "Lishen"},
	{regexp.MustCompile(`\bsvolt\b`), "SVOLT"},
	{regexp.MustCompile(`\bcatl\b`), "CATL"},
	{regexp.MustCompile(`\bcalb\b`), "CALB"},
	{regexp.MustCompile(`\bbyd\b`), "BYD"},
	{regexp.MustCompile(`\beve\b`), "EVE Energy"},
	{regexp.MustCompile(`\blg\b`), "LG Energy Solution"},
	{regexp.MustCompile(`\bsk\b`), "SK On"},
}

// CanonicalMaker maps a maker keyword or a title to the maker's display name.
func CanonicalMaker(s string) (string, bool) {
	s = strings.ToLower(s)
	for _, m := range makerNames {
		if m.re.MatchString(s) {
			return m.canonical, true
		}
	}
	return "", false
}

type plantName struct {
	re    *regexp.Regexp
	plant string
	brand string
}

var plantNames = []plantName{
	{regexp.MustCompile(`\b(?:giga\s*)?shanghai\b`), "Tesla Shanghai", "Tesla"},
	{regexp.MustCompile(`\bfremont\b`), "Tesla Fremont", "Tesla"},
	{regexp.MustCompile(`\b(?:berlin|gr(?:ü|ue)nheide)\b`), "Tesla Berlin", "Tesla"},
	{regexp.MustCompile(`\b(?:texas|austin)\b`), "Tesla Texas", "Tesla"},
	{regexp.MustCompile(`\bshenzhen\b`), "BYD Shenzhen", "BYD"},
	{regexp.MustCompile(`\bchangsha\b`), "BYD Changsha", "BYD"},
}

// PlantOf resolves the export plant named in a normalized title.
func PlantOf(text string) (plant, brand string, ok bool) {
	for _, p := range plantNames {
		if p.re.MatchString(text) {
			return p.plant, p.brand, true
		}
	}
	return "", "", false
}
