package dvf

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"estimmo/server/internal/models"
)

// Column names in the DVF header row.
const (
	colPostalCode   = "Code postal"
	colPropertyType = "Type local"
	colNature       = "Nature mutation"
	colSurface      = "Surface reelle bati"
	colPrice        = "Valeur fonciere"
	colStreet       = "Voie"
	colMunicipality = "Commune"
	colSaleDate     = "Date mutation"
)

// Only plain sales are comparable; auctions, expropriations and exchanges
// carry other Nature mutation values.
const natureSale = "Vente"

// Source reads historical sale records from the yearly DVF flat files.
type Source struct {
	catalog *Catalog
	logger  *logrus.Logger
}

func NewSource(catalog *Catalog, logger *logrus.Logger) *Source {
	return &Source{
		catalog: catalog,
		logger:  logger,
	}
}

// LoadYear returns the sale records of one year matching the postal code and
// property type, validated at ingestion: rows whose price or built surface is
// missing or unparseable are dropped and counted in skipped. A missing yearly
// file surfaces as an fs.ErrNotExist wrapped error; callers skip that year.
func (s *Source) LoadYear(year int, postalCode, propertyType string) ([]models.TransactionRecord, int, error) {
	file, err := os.Open(s.catalog.Path(year))
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '|'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header of %d file: %v", year, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colPostalCode, colPropertyType, colNature, colSurface, colPrice} {
		if _, ok := index[required]; !ok {
			return nil, 0, fmt.Errorf("%d file is missing column %q", year, required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []models.TransactionRecord
	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are common in public bulk data
			skipped++
			continue
		}

		if field(row, colPostalCode) != postalCode ||
			field(row, colPropertyType) != propertyType ||
			field(row, colNature) != natureSale {
			continue
		}

		price, okPrice := parseDecimal(field(row, colPrice))
		surface, okSurface := parseDecimal(field(row, colSurface))
		if !okPrice || !okSurface || surface <= 0 {
			skipped++
			continue
		}

		records = append(records, models.TransactionRecord{
			PostalCode:   postalCode,
			PropertyType: propertyType,
			Street:       field(row, colStreet),
			Municipality: field(row, colMunicipality),
			SaleDate:     field(row, colSaleDate),
			Price:        price,
			Surface:      surface,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"year":        year,
		"postal_code": postalCode,
		"records":     len(records),
		"skipped":     skipped,
	}).Debug("Loaded DVF year")

	return records, skipped, nil
}

// parseDecimal parses a DVF numeric field, accepting the French comma as
// decimal separator.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
