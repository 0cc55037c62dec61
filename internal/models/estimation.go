package models

// EvidenceRow is one geographically eligible comparable sale. The evidence
// table always shows every eligible sale, whether or not the percentile trim
// excluded its value from the final mean.
type EvidenceRow struct {
	Address     string  `json:"address"`
	PricePerSqm float64 `json:"price_per_sqm"`
	Surface     float64 `json:"surface"`
	Price       float64 `json:"price"`
	DistanceKm  float64 `json:"distance_km"`
	SaleDate    string  `json:"sale_date"`
	SaleYear    int     `json:"sale_year"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// SkipCounters aggregates the per-record failures absorbed during a run.
// They are advisory only and never abort the batch.
type SkipCounters struct {
	Unparseable   int `json:"unparseable"`
	GeocodeFailed int `json:"geocode_failed"`
	OutOfRadius   int `json:"out_of_radius"`
	Implausible   int `json:"implausible"`
}

// EstimationResult is the aggregator output for one run. PricePerSqm is nil
// when no record survived the radius filter for any requested year.
type EstimationResult struct {
	PricePerSqm *float64      `json:"price_per_sqm"`
	SampleSize  int           `json:"sample_size"`
	Evidence    []EvidenceRow `json:"evidence"`
	Skips       SkipCounters  `json:"skips"`
}

// YearlyMean is the mean price-per-m² of evidence rows for one sale year.
type YearlyMean struct {
	Year int     `json:"year"`
	Mean float64 `json:"mean"`
}

// MarketSummary holds the descriptive statistics derived from an evidence
// table.
type MarketSummary struct {
	MinPricePerSqm float64      `json:"min_price_per_sqm"`
	MaxPricePerSqm float64      `json:"max_price_per_sqm"`
	StdDev         float64      `json:"std_dev"`
	LastSaleDate   string       `json:"last_sale_date"`
	YearlyMeans    []YearlyMean `json:"yearly_means"`
	Trend          string       `json:"trend"`
}
