package model

import "github.com/rotisserie/eris"

// Table names a destination data table on the submission API.
type Table string

const (
	TableEVMetric                   Table = "EVMetric"
	TableChinaPassengerInventory    Table = "ChinaPassengerInventory"
	TableChinaBatteryInstallation   Table = "ChinaBatteryInstallation"
	TableCaamNevSales               Table = "CaamNevSales"
	TableChinaDealerInventoryFactor Table = "ChinaDealerInventoryFactor"
	TableCpcaNevRetail              Table = "CpcaNevRetail"
	TableCpcaNevProduction          Table = "CpcaNevProduction"
	TableChinaViaIndex              Table = "ChinaViaIndex"
	TableBatteryMakerMonthly        Table = "BatteryMakerMonthly"
	TablePlantExports               Table = "PlantExports"
	TableNevSalesSummary            Table = "NevSalesSummary"
	TableAutomakerRankings          Table = "AutomakerRankings"
	TableBatteryMakerRankings       Table = "BatteryMakerRankings"
	TableVehicleSpec                Table = "VehicleSpec"
)

// AllTables returns every destination table in declaration order.
func AllTables() []Table {
	return []Table{
		TableEVMetric,
		TableChinaPassengerInventory,
		TableChinaBatteryInstallation,
		TableCaamNevSales,
		TableChinaDealerInventoryFactor,
		TableCpcaNevRetail,
		TableCpcaNevProduction,
		TableChinaViaIndex,
		TableBatteryMakerMonthly,
		TablePlantExports,
		TableNevSalesSummary,
		TableAutomakerRankings,
		TableBatteryMakerRankings,
		TableVehicleSpec,
	}
}

// ParseTable returns the Table with the given name.
func ParseTable(name string) (Table, error) {
	for _, t := range AllTables() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", eris.Errorf("model: unknown table %q", name)
}

// Endpoint returns the submission API path segment for the table.
func (t Table) Endpoint() string {
	switch t {
	case TableEVMetric:
		return "ev-metrics"
	case TableChinaPassengerInventory:
		return "china-passenger-inventory"
	case TableChinaBatteryInstallation:
		return "china-battery-installation"
	case TableCaamNevSales:
		return "caam-nev-sales"
	case TableChinaDealerInventoryFactor:
		return "china-dealer-inventory-factor"
	case TableCpcaNevRetail:
		return "cpca-nev-retail"
	case TableCpcaNevProduction:
		return "cpca-nev-production"
	case TableChinaViaIndex:
		return "china-via-index"
	case TableBatteryMakerMonthly:
		return "battery-maker-monthly"
	case TablePlantExports:
		return "plant-exports"
	case TableNevSalesSummary:
		return "nev-sales-summary"
	case TableAutomakerRankings:
		return "automaker-rankings"
	case TableBatteryMakerRankings:
		return "battery-maker-rankings"
	case TableVehicleSpec:
		return "vehicle-specs"
	}
	return ""
}

// IsRanking reports whether the table holds multi-row leaderboards that only
// OCR can populate.
func (t Table) IsRanking() bool {
	return t == TableAutomakerRankings || t == TableBatteryMakerRankings
}
