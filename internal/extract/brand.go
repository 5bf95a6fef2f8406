package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Brand codes used by the ev-metrics endpoint.
const (
	BrandBYD        = "BYD"
	BrandNIO        = "NIO"
	BrandXPeng      = "XPENG"
	BrandLiAuto     = "LI_AUTO"
	BrandZeekr      = "ZEEKR"
	BrandXiaomi     = "XIAOMI"
	BrandTeslaChina = "TESLA_CHINA"
	BrandGeely      = "GEELY"
	BrandLeapmotor  = "LEAPMOTOR"
	BrandOther      = "OTHER_BRAND"
	BrandIndustry   = "INDUSTRY"
)

// Metric codes used by the ev-metrics endpoint.
const (
	MetricDelivery        = "DELIVERY"
	MetricWholesale       = "WHOLESALE"
	MetricSales           = "SALES"
	MetricProduction      = "PRODUCTION"
	MetricBatteryInstall  = "BATTERY_INSTALL"
	MetricExports         = "EXPORTS"
	MetricImports         = "IMPORTS"
	MetricRegistrations   = "REGISTRATIONS"
	MetricDealerInventory = "DEALER_INVENTORY"
)

type keyword struct {
	re   *regexp.Regexp
	word string
	code string
}

func keywords(pairs map[string]string) []keyword {
	out := make([]keyword, 0, len(pairs))
	for k, code := range pairs {
		out = append(out, keyword{
			re:   regexp.MustCompile(`\b` + strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`) + `\b`),
			word: k,
			code: code,
		})
	}
	// Named brands before industry-wide words, then longest keyword first
	// so "tesla china" beats "tesla".
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ai, bi := a.code == BrandIndustry, b.code == BrandIndustry
		if ai != bi {
			return bi
		}
		if len(a.word) != len(b.word) {
			return len(a.word) > len(b.word)
		}
		return a.word < b.word
	})
	return out
}

var brandKeywords = keywords(map[string]string{
	"tesla china": BrandTeslaChina,
	"tesla":       BrandTeslaChina,
	"byd":         BrandBYD,
	"nio":         BrandNIO,
	"xpeng":       BrandXPeng,
	"li auto":     BrandLiAuto,
	"zeekr":       BrandZeekr,
	"xiaomi":      BrandXiaomi,
	"geely":       BrandGeely,
	"leapmotor":   BrandLeapmotor,
	"aito":        BrandOther,
	"huawei":      BrandOther,
	"aion":        BrandOther,
	"changan":     BrandOther,
	"chery":       BrandOther,
	"great wall":  BrandOther,
	"gwm":         BrandOther,
	"neta":        BrandOther,
	"voyah":       BrandOther,
	"avatr":       BrandOther,
	"deepal":      BrandOther,
	"denza":       BrandOther,
	"onvo":        BrandOther,
	"lynk":        BrandOther,
	"im motors":   BrandOther,
	"saic":        BrandOther,
	"wuling":      BrandOther,
	"china":       BrandIndustry,
	"nev":         BrandIndustry,
	"ev":          BrandIndustry,
})

type metricKeyword struct {
	re   *regexp.Regexp
	code string
}

// Evaluated in order: "wholesale" must win over the "sales" it contains.
var metricKeywords = []metricKeyword{
	{regexp.MustCompile(`\b(?:deliveries|delivery|delivered|delivers)\b`), MetricDelivery},
	{regexp.MustCompile(`\bwholesale\b`), MetricWholesale},
	{regexp.MustCompile(`\b(?:insurance\s+)?registrations?\b|\blicense\s+plates?\b`), MetricRegistrations},
	{regexp.MustCompile(`\b(?:sales|sold|sells|retail)\b`), MetricSales},
	{regexp.MustCompile(`\b(?:production|produced|produces|output)\b`), MetricProduction},
	{regexp.MustCompile(`\b(?:battery|gwh)\b`), MetricBatteryInstall},
	{regexp.MustCompile(`\bexports?\b|\bexported\b`), MetricExports},
	{regexp.MustCompile(`\bimports?\b|\bimported\b`), MetricImports},
	{regexp.MustCompile(`\binventory\b`), MetricDealerInventory},
}

var vehicleModelRes = []*regexp.Regexp{
	regexp.MustCompile(`\bmodel\s*[3sxy]\b`),
	regexp.MustCompile(`\b(?:et[579]|ec[67]|es[68]|el[68])\b`),
	regexp.MustCompile(`\b(?:su7|yu7)(?:\s+ultra)?\b`),
	regexp.MustCompile(`\b(?:g6|g9|p7\+?|x9|mona\s+m03)\b`),
	regexp.MustCompile(`\bli\s+(?:l[6-9]|mega|i[68])\b`),
}

// BrandOf returns the brand code for a normalized title.
func BrandOf(text string) (string, bool) {
	for _, k := range brandKeywords {
		if k.re.MatchString(text) {
			return k.code, true
		}
	}
	return "", false
}

// MetricOf returns the metric code for a normalized title.
func MetricOf(text string) (string, bool) {
	for _, k := range metricKeywords {
		if k.re.MatchString(text) {
			return k.code, true
		}
	}
	return "", false
}

// VehicleModelOf returns the vehicle model named in a normalized title.
func VehicleModelOf(text string) string {
	for _, re := range vehicleModelRes {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(m, "model"); ok {
			return "Model " + strings.ToUpper(strings.TrimSpace(rest))
		}
		return strings.ToUpper(strings.Join(strings.Fields(m), " "))
	}
	return ""
}
