package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/internal/period"
)

const (
	unitVehicles = "vehicles"
	unitGWh      = "GWh"
	unitFactor   = "factor"
	unitPercent  = "percent"
)

var (
	errNoValue  = eris.New("no numeric value in title")
	dateRangeRe = regexp.MustCompile(`(?:([a-z]+)\.?\s*)?(\d{1,2})\s*[-/]\s*(\d{1,2})\b`)
	specTitleRe = regexp.MustCompile(`(?i)^\s*(.+?)\s*:\s*(?:main\s+|key\s+)?spec`)
)

func passengerInventory(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	value, ok := HeadlineValue(j.text)
	if !ok {
		return nil, errNoValue
	}
	return map[string]any{
		"year":  year,
		"month": month,
		"value": value,
		"unit":  unitVehicles,
	}, nil
}

func batteryInstallation(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	gwh, ok := GWhValue(j.text)
	if !ok {
		return nil, eris.New("no GWh installation figure in title")
	}
	data := map[string]any{
		"year":         year,
		"month":        month,
		"installation": gwh,
		"unit":         unitGWh,
	}
	j.changes(data)
	return data, nil
}

// vehicleVolume serves the CAAM sales and CPCA retail/production tables,
// which share one record shape.
func vehicleVolume(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	value, ok := HeadlineValue(j.text)
	if !ok {
		return nil, errNoValue
	}
	data := map[string]any{
		"year":  year,
		"month": month,
		"value": value,
		"unit":  unitVehicles,
	}
	j.changes(data)
	return data, nil
}

func dealerInventoryFactor(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	factor, ok := FactorValue(j.text)
	if !ok {
		return nil, eris.New("no inventory factor (d.dd) in title")
	}
	return map[string]any{
		"year":  year,
		"month": month,
		"value": factor,
		"unit":  unitFactor,
	}, nil
}

func viaIndex(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	pct, ok := PercentValue(j.text)
	if !ok {
		return nil, eris.New("no percentage in title")
	}
	return map[string]any{
		"year":  year,
		"month": month,
		"value": pct,
		"unit":  unitPercent,
	}, nil
}

func batteryMakerMonthly(j *job) (map[string]any, error) {
	maker, ok := CanonicalMaker(j.in.Classification.Dimensions[model.DimMaker])
	if !ok {
		maker, ok = CanonicalMaker(j.text)
	}
	if !ok {
		return nil, eris.New("battery maker not resolvable")
	}
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	gwh, ok := GWhValue(j.text)
	if !ok {
		return nil, eris.New("no GWh installation figure in title")
	}
	data := map[string]any{
		"maker":        maker,
		"year":         year,
		"month":        month,
		"installation": gwh,
		"unit":         unitGWh,
	}
	j.changes(data)
	return data, nil
}

func plantExports(j *job) (map[string]any, error) {
	plant, brand, ok := PlantOf(j.text)
	if !ok {
		return nil, eris.New("export plant not resolvable")
	}
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	value, ok := HeadlineValue(j.text)
	if !ok {
		return nil, errNoValue
	}
	data := map[string]any{
		"plant": plant,
		"brand": brand,
		"year":  year,
		"month": month,
		"value": value,
		"unit":  unitVehicles,
	}
	j.changes(data)
	return data, nil
}

// nevSalesSummary handles weekly CPCA summaries such as "NEV sales in Jan 1-18".
func nevSalesSummary(j *job) (map[string]any, error) {
	m := dateRangeRe.FindStringSubmatch(j.text)
	if m == nil {
		return nil, eris.New("no date range (e.g. Jan 1-18) in title")
	}
	month := period.MonthOf(m[1])
	if month == 0 {
		month = period.MonthOf(j.text)
	}
	if month == 0 && j.perErr == nil {
		month = j.per.Month
	}
	if month == 0 {
		return nil, eris.New("no month for date range")
	}
	if j.perErr != nil {
		return nil, eris.Wrap(j.perErr, "no year resolvable")
	}
	startDay, _ := strconv.Atoi(m[2])
	endDay, _ := strconv.Atoi(m[3])
	if startDay < 1 || startDay > 31 || endDay < startDay || endDay > 31 {
		return nil, eris.Errorf("implausible date range %s-%s", m[2], m[3])
	}

	// The range itself must not be read as the sales figure.
	rest := strings.Replace(j.text, m[0], " ", 1)
	sales, ok := HeadlineValue(rest)
	if !ok {
		return nil, eris.New("no retail sales figure in title")
	}

	data := map[string]any{
		"dataSource":  "CPCA",
		"year":        j.per.Year,
		"startDate":   fmt.Sprintf("%02d-%02d", month, startDay),
		"endDate":     fmt.Sprintf("%02d-%02d", month, endDay),
		"retailSales": sales,
		"unit":        unitVehicles,
	}
	yoy, mom := Changes(j.text, j.summary)
	if yoy != nil {
		data["retailYoy"] = *yoy
	}
	if mom != nil {
		data["retailMom"] = *mom
	}
	return data, nil
}

func automakerRankings(j *job) (map[string]any, error) {
	year, month, err := j.yearMonth()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"year":       year,
		"month":      month,
		"dataSource": "CPCA",
	}, nil
}

// batteryMakerRankings only needs a year; full-year tables carry no month.
func batteryMakerRankings(j *job) (map[string]any, error) {
	if j.perErr != nil {
		return nil, eris.Wrap(j.perErr, "no year resolvable")
	}
	scope := j.in.Classification.Dimensions[model.DimScope]
	if scope == "" {
		scope = "CHINA"
	}
	source := "CABIA"
	if scope == "GLOBAL" {
		source = "SNE"
	}
	data := map[string]any{
		"year":       j.per.Year,
		"dataSource": source,
		"scope":      scope,
	}
	if j.per.Type == period.Monthly {
		data["month"] = j.per.Month
	}
	return data, nil
}

func vehicleSpec(j *job) (map[string]any, error) {
	m := specTitleRe.FindStringSubmatch(j.in.Title)
	if m == nil {
		return nil, eris.New("vehicle name not resolvable")
	}
	data := map[string]any{"vehicle": strings.TrimSpace(m[1])}
	if brand, ok := BrandOf(j.text); ok {
		data["brand"] = brand
	}
	return data, nil
}

func evMetric(j *job) (map[string]any, error) {
	brand, ok := BrandOf(j.text)
	if !ok {
		return nil, eris.New("brand not resolvable")
	}
	metric, ok := MetricOf(j.text)
	if !ok {
		return nil, eris.New("metric not resolvable")
	}
	if j.perErr != nil {
		return nil, eris.Wrap(j.perErr, "no year resolvable")
	}

	unit := unitVehicles
	value, ok := HeadlineValue(j.text)
	if metric == MetricBatteryInstall {
		unit = unitGWh
		value, ok = GWhValue(j.text)
	}
	if !ok {
		return nil, errNoValue
	}

	data := map[string]any{
		"brand":      brand,
		"metric":     metric,
		"periodType": string(j.per.Type),
		"year":       j.per.Year,
		"value":      value,
		"unit":       unit,
		"confidence": j.in.Classification.Confidence,
	}
	switch j.per.Type {
	case period.Monthly:
		data["period"] = j.per.Month
	case period.Quarterly:
		data["period"] = j.per.Quarter
	}
	if region := j.in.Classification.Dimensions[model.DimRegion]; region != "" {
		data["region"] = region
	}
	if vm := VehicleModelOf(j.text); vm != "" {
		data["vehicleModel"] = vm
	}
	if j.in.Classification.ArticleType != "" {
		data["category"] = string(j.in.Classification.ArticleType)
	}
	j.changes(data)
	return data, nil
}
