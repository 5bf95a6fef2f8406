package model

// ArticleType is the category the classifier assigns to an article.
type ArticleType string

const (
	ArticleTypeChinaPassengerInventory ArticleType = "CHINA_PASSENGER_INVENTORY"
	ArticleTypeChinaBatteryInstall     ArticleType = "CHINA_BATTERY_INSTALLATION"
	ArticleTypeCaamNevSales            ArticleType = "CAAM_NEV_SALES"
	ArticleTypeChinaDealerInventory    ArticleType = "CHINA_DEALER_INVENTORY_FACTOR"
	ArticleTypeCpcaNevRetail           ArticleType = "CPCA_NEV_RETAIL"
	ArticleTypeCpcaNevProduction       ArticleType = "CPCA_NEV_PRODUCTION"
	ArticleTypeChinaViaIndex           ArticleType = "CHINA_VIA_INDEX"
	ArticleTypeBatteryMakerMonthly     ArticleType = "BATTERY_MAKER_MONTHLY"
	ArticleTypePlantExports            ArticleType = "PLANT_EXPORTS"
	ArticleTypeNevSalesSummary         ArticleType = "NEV_SALES_SUMMARY"
	ArticleTypeAutomakerRankings       ArticleType = "AUTOMAKER_RANKINGS"
	ArticleTypeBatteryMakerRankings    ArticleType = "BATTERY_MAKER_RANKINGS"
	ArticleTypeVehicleSpec             ArticleType = "VEHICLE_SPEC"
	ArticleTypeModelBreakdown          ArticleType = "MODEL_BREAKDOWN"
	ArticleTypeRegionalData            ArticleType = "REGIONAL_DATA"
	ArticleTypeBrandMetric             ArticleType = "BRAND_METRIC"
	ArticleTypeSkip                    ArticleType = "SKIP"
)

// PromptKind selects the OCR instruction used for an article image.
type PromptKind string

const (
	PromptNone     PromptKind = ""
	PromptRankings PromptKind = "rankings"
	PromptTrend    PromptKind = "trend"
	PromptSpecs    PromptKind = "specs"
	PromptChart    PromptKind = "chart"
	PromptMetrics  PromptKind = "metrics"
	PromptGeneral  PromptKind = "general"
)

// Dimension keys set by classifier post-filters.
const (
	DimMaker  = "maker"
	DimScope  = "scope"
	DimRegion = "region"
)

// Classification is the classifier's verdict for one article.
type Classification struct {
	ArticleType ArticleType       `json:"article_type"`
	Table       Table             `json:"target_table,omitempty"`
	NeedsOCR    bool              `json:"needs_ocr"`
	PromptKind  PromptKind        `json:"ocr_prompt_kind,omitempty"`
	Dimensions  map[string]string `json:"dimensions,omitempty"`
	Confidence  float64           `json:"confidence"`
}

// IsSkip reports whether no category matched.
func (c Classification) IsSkip() bool {
	return c.ArticleType == ArticleTypeSkip
}

// OCREligible reports whether the article image should be sent to the
// vision model. Chart images are never eligible regardless of NeedsOCR.
func (c Classification) OCREligible() bool {
	return c.NeedsOCR && c.PromptKind != PromptChart
}
