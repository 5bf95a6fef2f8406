package submit

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/evdata-cli/internal/model"
)

// RankingRecords maps OCR ranking rows onto submission records for the
// automaker or battery maker rankings table. Each record starts from base
// (period and source fields). Rows lacking a rank, entity or value are
// skipped and counted.
func RankingRecords(table model.Table, rows []map[string]any, base map[string]any) (records []map[string]any, skipped int) {
	entityKey := "automaker"
	entityAliases := []string{"brand", "automaker"}
	valueAliases := []string{"value", "sales"}
	if table == model.TableBatteryMakerRankings {
		entityKey = "maker"
		entityAliases = []string{"brand", "maker", "company"}
		valueAliases = []string{"value", "installation"}
	}

	for _, row := range rows {
		rec := make(map[string]any, len(base)+6)
		for k, v := range base {
			rec[k] = v
		}

		rank, rankOK := number(first(row, "rank", "ranking"))
		entity, entityOK := first(row, entityAliases...).(string)
		value, valueOK := number(first(row, valueAliases...))
		entity = strings.TrimSpace(entity)
		if !rankOK || rank == 0 || !entityOK || entity == "" || !valueOK || value == 0 {
			skipped++
			continue
		}

		rec["ranking"] = int(math.Round(rank))
		rec[entityKey] = entity
		rec["value"] = value
		if v, ok := number(row["yoy"]); ok {
			rec["yoyChange"] = v
		}
		if table == model.TableAutomakerRankings {
			if v, ok := number(row["mom"]); ok {
				rec["momChange"] = v
			}
		}
		if v, ok := number(row["share"]); ok {
			rec["marketShare"] = v
		}
		records = append(records, rec)
	}
	return records, skipped
}

func first(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// number coerces JSON numbers and numeric strings ("339,854", "-15.7%").
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "+")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
