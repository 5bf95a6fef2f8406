package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evdata-cli/internal/model"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	pt, err := DefaultPatterns()
	require.NoError(t, err)
	return New(pt)
}

func TestClassify_RealTitles(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		title    string
		typ      model.ArticleType
		table    model.Table
		needsOCR bool
		kind     model.PromptKind
	}{
		{"China vehicle inventory alert index rises to 57.7% in Dec", model.ArticleTypeChinaViaIndex, model.TableChinaViaIndex, true, model.PromptChart},
		{"China auto dealer inventory factor falls to 1.31 in Dec", model.ArticleTypeChinaDealerInventory, model.TableChinaDealerInventoryFactor, true, model.PromptChart},
		{"China passenger car inventory at end of Dec: 3.65 million", model.ArticleTypeChinaPassengerInventory, model.TableChinaPassengerInventory, true, model.PromptChart},
		{"China EV battery installations in Dec: 98.1 GWh", model.ArticleTypeChinaBatteryInstall, model.TableChinaBatteryInstallation, true, model.PromptChart},
		{"China EV battery installations hit 45.2 GWh in Jan 2025", model.ArticleTypeChinaBatteryInstall, model.TableChinaBatteryInstallation, false, model.PromptChart},
		{"China Dec NEV sales data by CAAM: 1,710,000", model.ArticleTypeCaamNevSales, model.TableCaamNevSales, false, model.PromptChart},
		{"CAAM NEV sales: 1,200,000 vehicles in Jan 2025", model.ArticleTypeCaamNevSales, model.TableCaamNevSales, false, model.PromptChart},
		{"China Dec NEV retail data by CPCA: 1,337,000", model.ArticleTypeCpcaNevRetail, model.TableCpcaNevRetail, false, model.PromptChart},
		{"China Nov NEV production data by CPCA: 1,757,000", model.ArticleTypeCpcaNevProduction, model.TableCpcaNevProduction, false, model.PromptChart},
		{"BYD battery installations in Dec: 27.352 GWh", model.ArticleTypeBatteryMakerMonthly, model.TableBatteryMakerMonthly, true, model.PromptChart},
		{"Tesla Shanghai plant exports in Dec: 3,328", model.ArticleTypePlantExports, model.TablePlantExports, false, model.PromptChart},
		{"Data table: China NEV sales in Jan 1-18", model.ArticleTypeNevSalesSummary, model.TableNevSalesSummary, true, model.PromptTrend},
		{"Data table: Top EV battery makers' global installations in 2025", model.ArticleTypeBatteryMakerRankings, model.TableBatteryMakerRankings, true, model.PromptRankings},
		{"CPCA rankings: Top-selling automakers in China in Dec 2025", model.ArticleTypeAutomakerRankings, model.TableAutomakerRankings, true, model.PromptRankings},
		{"CPCA top-selling automakers Jan 2025", model.ArticleTypeAutomakerRankings, model.TableAutomakerRankings, true, model.PromptRankings},
		{"NIO EC7: Main specs", model.ArticleTypeVehicleSpec, model.TableVehicleSpec, true, model.PromptSpecs},
		{"Shanghai Apr NEV license plates: 45,000", model.ArticleTypeRegionalData, model.TableEVMetric, false, model.PromptMetrics},
		{"Tesla China wholesale sales in Jan: 69,129", model.ArticleTypeBrandMetric, model.TableEVMetric, false, model.PromptMetrics},
		{"Tesla sales in China in Dec: 93,843", model.ArticleTypeBrandMetric, model.TableEVMetric, false, model.PromptMetrics},
		{"BYD sells 300,538 NEVs in Dec", model.ArticleTypeBrandMetric, model.TableEVMetric, false, model.PromptMetrics},
		{"NIO delivers 10,000 vehicles in Jan", model.ArticleTypeBrandMetric, model.TableEVMetric, false, model.PromptMetrics},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := c.Classify(tt.title, "")
			assert.Equal(t, tt.typ, got.ArticleType)
			assert.Equal(t, tt.table, got.Table)
			assert.Equal(t, tt.needsOCR, got.NeedsOCR)
			assert.Equal(t, tt.kind, got.PromptKind)
		})
	}
}

func TestClassify_Skip(t *testing.T) {
	c := newClassifier(t)

	got := c.Classify("Random news about weather patterns this week", "")
	assert.Equal(t, model.ArticleTypeSkip, got.ArticleType)
	assert.True(t, got.IsSkip())
	assert.Equal(t, model.Table(""), got.Table)
	assert.False(t, got.NeedsOCR)
	assert.Equal(t, model.PromptNone, got.PromptKind)
	assert.InDelta(t, SkipConfidence, got.Confidence, 0.0001)

	assert.True(t, c.Classify("", "").IsSkip())
}

func TestClassify_MakerPrecedesIndustry(t *testing.T) {
	c := newClassifier(t)

	for _, title := range []string{
		"CATL battery installations in Nov: 25.6 GWh",
		"China battery installations by CALB in Jan: 4.1 GWh",
		"BYD battery installations in Jan: 20.187 GWh",
	} {
		got := c.Classify(title, "")
		assert.Equal(t, model.TableBatteryMakerMonthly, got.Table, title)
	}

	got := c.Classify("CATL battery installations in Nov: 25.6 GWh", "")
	assert.Equal(t, "CATL", got.Dimensions[model.DimMaker])
}

func TestClassify_MakerNeedsWordBoundary(t *testing.T) {
	c := newClassifier(t)

	// "eve" inside "seven" must not route to a maker table.
	got := c.Classify("Seven-day China battery installations: 9,000 GWh", "")
	assert.Equal(t, model.TableChinaBatteryInstallation, got.Table)
}

func TestClassify_RankingScope(t *testing.T) {
	c := newClassifier(t)

	global := c.Classify("Data table: Top EV battery makers' global installations in 2025", "")
	assert.Equal(t, "GLOBAL", global.Dimensions[model.DimScope])

	china := c.Classify("Data table: Top EV battery makers' installations in China in Dec and full-year 2025", "")
	assert.Equal(t, model.TableBatteryMakerRankings, china.Table)
	assert.Equal(t, "CHINA", china.Dimensions[model.DimScope])
	assert.True(t, china.NeedsOCR, "rankings always need OCR even with a number in the title")
}

func TestClassify_RegionDimension(t *testing.T) {
	c := newClassifier(t)

	got := c.Classify("Shanghai Apr NEV license plates: 45,000", "")
	assert.Equal(t, "Shanghai", got.Dimensions[model.DimRegion])
}

func TestClassify_NormalizesPunctuation(t *testing.T) {
	c := newClassifier(t)

	got := c.Classify("Data table: China NEV sales in Jan 1–18", "")
	assert.Equal(t, model.TableNevSalesSummary, got.Table)

	got = c.Classify("Data table: Top EV battery makers’ global installations", "")
	assert.Equal(t, "GLOBAL", got.Dimensions[model.DimScope])
}

func TestClassify_SummaryFallback(t *testing.T) {
	c := newClassifier(t)

	got := c.Classify("", "NIO deliveries in Jan: 13,863")
	assert.Equal(t, model.TableEVMetric, got.Table)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newClassifier(t)
	title := "BYD battery installations in Dec: 27.352 GWh"

	first := c.Classify(title, "")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Classify(title, ""))
	}
}

func TestClassify_IndependentInstances(t *testing.T) {
	pt, err := LoadPatterns([]byte(`
groups:
  - name: only_caam
    article_type: CAAM_NEV_SALES
    table: CaamNevSales
    ocr: never
    prompt_kind: chart
    confidence: 0.8
    patterns:
      - 'caam'
`))
	require.NoError(t, err)
	c := New(pt)

	got := c.Classify("CAAM NEV sales in Jan", "")
	assert.Equal(t, model.TableCaamNevSales, got.Table)
	assert.False(t, got.NeedsOCR)

	// The default table is unaffected.
	def := newClassifier(t)
	assert.Equal(t, model.TableEVMetric, def.Classify("NIO deliveries in Jan: 13,863", "").Table)
	assert.True(t, c.Classify("NIO deliveries in Jan: 13,863", "").IsSkip())
}

func TestDefaultPatterns_Order(t *testing.T) {
	pt, err := DefaultPatterns()
	require.NoError(t, err)

	names := pt.Groups()
	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		t.Fatalf("group %s missing", name)
		return -1
	}

	assert.Less(t, index("battery_maker_rankings"), index("battery_maker_monthly"))
	assert.Less(t, index("battery_maker_monthly"), index("china_battery_installation"))
	assert.Less(t, index("automaker_rankings"), index("brand_metric"))
	assert.Less(t, index("plant_exports"), index("regional_data"))
	assert.Equal(t, "brand_metric", names[len(names)-1])
}

func TestLoadPatterns_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", `groups: []`, "no groups"},
		{"bad table", `
groups:
  - name: x
    table: Nope
    confidence: 0.5
    patterns: ['x']
`, "unknown table"},
		{"bad regex", `
groups:
  - name: x
    table: EVMetric
    confidence: 0.5
    patterns: ['(']
`, "compile"},
		{"bad ocr rule", `
groups:
  - name: x
    table: EVMetric
    ocr: sometimes
    confidence: 0.5
    patterns: ['x']
`, "unknown ocr rule"},
		{"duplicate", `
groups:
  - name: x
    table: EVMetric
    confidence: 0.5
    patterns: ['x']
  - name: x
    table: EVMetric
    confidence: 0.5
    patterns: ['y']
`, "duplicate group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPatterns([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHasNumber(t *testing.T) {
	assert.True(t, HasNumber("sales: 1,710,000"))
	assert.True(t, HasNumber("in jan 2025"))
	assert.False(t, HasNumber("in dec: 98.1 gwh"))
	assert.False(t, HasNumber("rises to 57.7% in dec"))
}
