package estimation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"estimmo/server/internal/geometry"
	"estimmo/server/internal/models"
)

// ErrInvalidPostalCode is returned when the target postal code is empty. It
// is the only hard failure of a run; every per-record and per-year problem is
// absorbed into the skip counters instead.
var ErrInvalidPostalCode = errors.New("invalid postal code")

// RecordSource yields validated sale records for one year.
type RecordSource interface {
	LoadYear(year int, postalCode, propertyType string) ([]models.TransactionRecord, int, error)
}

// AddressResolver resolves a free-text address to coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, text string) (orb.Point, bool)
}

// Request describes one estimation run.
type Request struct {
	PostalCode   string
	PropertyType string
	Years        []int
	Target       orb.Point
	RadiusKm     float64
}

// Estimator builds a trimmed-mean price-per-m² estimate from comparable
// sales near a target property.
type Estimator struct {
	source         RecordSource
	resolver       AddressResolver
	logger         *logrus.Logger
	workers        int
	maxPlausibleKm float64
}

// NewEstimator creates an estimator. workers bounds the concurrent
// per-record geocoding calls; maxPlausibleKm guards against records whose
// address resolved to the wrong municipality (0 disables the guard).
func NewEstimator(source RecordSource, resolver AddressResolver, logger *logrus.Logger, workers int, maxPlausibleKm float64) *Estimator {
	if workers < 1 {
		workers = 1
	}
	return &Estimator{
		source:         source,
		resolver:       resolver,
		logger:         logger,
		workers:        workers,
		maxPlausibleKm: maxPlausibleKm,
	}
}

// Estimate runs the comparable-sales aggregation. The returned result has a
// nil PricePerSqm and an empty evidence table when no record survives the
// radius filter for any requested year.
func (e *Estimator) Estimate(ctx context.Context, req Request) (*models.EstimationResult, error) {
	if req.PostalCode == "" {
		return nil, ErrInvalidPostalCode
	}

	result := &models.EstimationResult{
		Evidence: make([]models.EvidenceRow, 0),
	}

	var records []models.TransactionRecord
	for _, year := range req.Years {
		yearRecords, skipped, err := e.source.LoadYear(year, req.PostalCode, req.PropertyType)
		if err != nil {
			if os.IsNotExist(err) {
				e.logger.WithField("year", year).Debug("No DVF file for year, skipping")
			} else {
				e.logger.WithError(err).WithField("year", year).Warn("Failed to load DVF year, skipping")
			}
			continue
		}
		records = append(records, yearRecords...)
		result.Skips.Unparseable += skipped
	}

	e.geocodeRecords(ctx, req, records, result)

	// Deterministic display order, independent of geocoding completion order
	sort.Slice(result.Evidence, func(i, j int) bool {
		a, b := result.Evidence[i], result.Evidence[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.SaleDate < b.SaleDate
	})

	if len(result.Evidence) == 0 {
		return result, nil
	}

	values := make([]float64, len(result.Evidence))
	for i, row := range result.Evidence {
		values[i] = row.PricePerSqm
	}

	kept := trimOutliers(values)
	mean := stat.Mean(kept, nil)
	result.PricePerSqm = &mean
	result.SampleSize = len(kept)

	e.logger.WithFields(logrus.Fields{
		"postal_code":   req.PostalCode,
		"property_type": req.PropertyType,
		"sample_size":   result.SampleSize,
		"price_per_sqm": mean,
		"skips":         result.Skips,
	}).Info("Estimation completed")

	return result, nil
}

// geocodeRecords resolves each record's composite address on a bounded
// worker pool and accumulates the geographically eligible ones.
func (e *Estimator) geocodeRecords(ctx context.Context, req Request, records []models.TransactionRecord, result *models.EstimationResult) {
	jobs := make(chan models.TransactionRecord)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				e.processRecord(ctx, req, record, &mu, result)
			}
		}()
	}

	for _, record := range records {
		jobs <- record
	}
	close(jobs)
	wg.Wait()
}

func (e *Estimator) processRecord(ctx context.Context, req Request, record models.TransactionRecord, mu *sync.Mutex, result *models.EstimationResult) {
	address := fmt.Sprintf("%s, %s %s", record.Street, record.PostalCode, record.Municipality)

	point, ok := e.resolver.Resolve(ctx, address)
	if !ok {
		mu.Lock()
		result.Skips.GeocodeFailed++
		mu.Unlock()
		return
	}

	dist := geometry.Haversine(req.Target, point)

	if e.maxPlausibleKm > 0 && dist > e.maxPlausibleKm {
		// The address most likely resolved to the wrong municipality
		e.logger.WithFields(logrus.Fields{
			"address":     address,
			"distance_km": dist,
		}).Warn("Geocoded point implausibly far from target, dropping record")
		mu.Lock()
		result.Skips.Implausible++
		mu.Unlock()
		return
	}

	if dist > req.RadiusKm {
		mu.Lock()
		result.Skips.OutOfRadius++
		mu.Unlock()
		return
	}

	row := models.EvidenceRow{
		Address:     fmt.Sprintf("%s, %s", record.Street, record.Municipality),
		PricePerSqm: record.Price / record.Surface,
		Surface:     record.Surface,
		Price:       record.Price,
		DistanceKm:  dist,
		SaleDate:    record.SaleDate,
		SaleYear:    saleYear(record.SaleDate),
		Latitude:    point.Lat(),
		Longitude:   point.Lon(),
	}

	mu.Lock()
	result.Evidence = append(result.Evidence, row)
	mu.Unlock()
}

// trimOutliers discards values outside the [p10, p90] band of the
// distribution, falling back to the untrimmed set when the trim would empty
// the sample.
func trimOutliers(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	p10 := percentile(sorted, 0.10)
	p90 := percentile(sorted, 0.90)

	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= p10 && v <= p90 {
			kept = append(kept, v)
		}
	}

	if len(kept) == 0 {
		return values
	}
	return kept
}

// percentile computes the p-quantile of a sorted sample with linear
// interpolation between ranks. gonum's Quantile cumulant kinds follow other
// conventions, so this follows the standard (n-1)*p rank definition directly.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// saleYear extracts the year from a DVF sale date (dd/mm/yyyy), returning 0
// when the date is absent or malformed.
func saleYear(date string) int {
	t, err := time.Parse("02/01/2006", date)
	if err != nil {
		return 0
	}
	return t.Year()
}
