package ocr

import "github.com/sells-group/evdata-cli/internal/model"

const rankingsPrompt = `Extract every row of this rankings table image.
Return a JSON array, one object per row, with these fields:
- rank: ranking position (integer)
- brand: brand or company name (string)
- value: sales, delivery or installation volume (number)
- mom: month-over-month change in percent (number, negative for declines)
- yoy: year-over-year change in percent (number, negative for declines)
- share: market share in percent (number, optional)

Only include fields visible in the table.
Example: [{"rank": 1, "brand": "BYD", "value": 339854, "mom": 13.6, "yoy": -15.7, "share": 25.4}]`

const trendPrompt = `Extract the time series shown in this chart or table image.
Return a JSON array, one object per period, with these fields:
- period: the label of the period as shown (string, e.g. "Jan 1-18" or "W3")
- value: the main volume for that period (number)
- yoy: year-over-year change in percent (number, negative for declines)
- mom: period-over-period change in percent (number, negative for declines)

Omit fields that are not shown.
Example: [{"period": "Jan 1-18", "value": 512000, "yoy": 8.2}]`

const specsPrompt = `Extract the vehicle specifications from this image.
Return a single JSON object with these fields (null when not shown):
{
  "brand": "brand name",
  "model": "model name",
  "variant": "trim or variant name",
  "price": starting price in RMB (integer),
  "length_mm": integer,
  "width_mm": integer,
  "height_mm": integer,
  "wheelbase_mm": integer,
  "battery_kwh": number,
  "range_km": CLTC range in km (integer),
  "motor_kw": integer,
  "acceleration": 0-100 km/h in seconds (number),
  "top_speed": km/h (integer),
  "vehicle_type": "BEV", "PHEV" or "EREV"
}`

const metricsPrompt = `Extract all numeric data from this table image.
Return a JSON array with one object per row holding every visible column.
Common fields:
- brand: brand or company name
- value: main numeric value
- mom: month-over-month change in percent
- yoy: year-over-year change in percent
- share: market share in percent

Keep declines negative.
Example: [{"brand": "Tesla", "value": 68280, "yoy": 15.2, "mom": -5.3}]`

const generalPrompt = `Extract all tabular data from this image.
Return a JSON array where each element is one row.
Keep column names and values exactly as shown.
Use integers for counts and numbers for percentages.
Percentage changes that indicate a decline must be negative.`

var prompts = map[model.PromptKind]string{
	model.PromptRankings: rankingsPrompt,
	model.PromptTrend:    trendPrompt,
	model.PromptSpecs:    specsPrompt,
	model.PromptMetrics:  metricsPrompt,
	model.PromptGeneral:  generalPrompt,
}

// PromptFor returns the instruction for kind. Unknown kinds get the general
// prompt; ok is false for kinds the router refuses (chart).
func PromptFor(kind model.PromptKind) (prompt string, ok bool) {
	if kind == model.PromptChart {
		return "", false
	}
	if p, found := prompts[kind]; found {
		return p, true
	}
	return generalPrompt, true
}
