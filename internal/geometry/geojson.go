package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"estimmo/server/internal/models"
)

// EvidenceCollection converts an evidence table into a GeoJSON
// FeatureCollection for map display on the client.
func EvidenceCollection(rows []models.EvidenceRow) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, row := range rows {
		feature := geojson.NewFeature(orb.Point{row.Longitude, row.Latitude})
		feature.Properties = geojson.Properties{
			"address":       row.Address,
			"price_per_sqm": row.PricePerSqm,
			"surface":       row.Surface,
			"price":         row.Price,
			"distance_km":   row.DistanceKm,
			"sale_date":     row.SaleDate,
		}
		fc.Append(feature)
	}

	return fc
}
