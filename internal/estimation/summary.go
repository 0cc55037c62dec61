package estimation

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"estimmo/server/internal/models"
)

// Trend labels shown to the user. The ±50 €/m² band is an absolute
// tolerance, chosen to keep small samples from flapping between labels.
const (
	TrendRising      = "Hausse des prix"
	TrendFalling     = "Baisse des prix"
	TrendStable      = "Prix stables"
	trendDeltaPerSqm = 50.0
	saleDateFormat   = "02/01/2006"
)

// Summarize derives the local market summary from an evidence table.
// Returns nil for an empty table.
func Summarize(evidence []models.EvidenceRow) *models.MarketSummary {
	if len(evidence) == 0 {
		return nil
	}

	values := make([]float64, len(evidence))
	for i, row := range evidence {
		values[i] = row.PricePerSqm
	}

	summary := &models.MarketSummary{
		MinPricePerSqm: floats.Min(values),
		MaxPricePerSqm: floats.Max(values),
		LastSaleDate:   lastSaleDate(evidence),
		YearlyMeans:    yearlyMeans(evidence),
	}
	if len(values) >= 2 {
		summary.StdDev = stat.StdDev(values, nil)
	}

	// Fewer than 2 distinct years is insufficient data for a trend
	if len(summary.YearlyMeans) >= 2 {
		first := summary.YearlyMeans[0].Mean
		last := summary.YearlyMeans[len(summary.YearlyMeans)-1].Mean
		switch delta := last - first; {
		case delta > trendDeltaPerSqm:
			summary.Trend = TrendRising
		case delta < -trendDeltaPerSqm:
			summary.Trend = TrendFalling
		default:
			summary.Trend = TrendStable
		}
	}

	return summary
}

// yearlyMeans groups evidence rows by sale year, earliest first. Rows whose
// sale date did not parse carry year 0 and are left out.
func yearlyMeans(evidence []models.EvidenceRow) []models.YearlyMean {
	byYear := make(map[int][]float64)
	for _, row := range evidence {
		if row.SaleYear == 0 {
			continue
		}
		byYear[row.SaleYear] = append(byYear[row.SaleYear], row.PricePerSqm)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	means := make([]models.YearlyMean, 0, len(years))
	for _, year := range years {
		means = append(means, models.YearlyMean{
			Year: year,
			Mean: stat.Mean(byYear[year], nil),
		})
	}
	return means
}

func lastSaleDate(evidence []models.EvidenceRow) string {
	var last time.Time
	for _, row := range evidence {
		t, err := time.Parse(saleDateFormat, row.SaleDate)
		if err != nil {
			continue
		}
		if t.After(last) {
			last = t
		}
	}
	if last.IsZero() {
		return ""
	}
	return last.Format(saleDateFormat)
}
