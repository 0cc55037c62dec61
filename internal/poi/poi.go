package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"estimmo/server/internal/geometry"
	"estimmo/server/internal/models"
)

// Display labels per OSM category tag. Unknown tags fall through to a
// title-cased form of the tag itself.
var labels = map[string]string{
	"bakery":           "Boulangerie",
	"supermarket":      "Supermarché",
	"pharmacy":         "Pharmacie",
	"school":           "École",
	"station":          "Gare",
	"default":          "Commerce",
	"charging_station": "Borne de recharge",
	"driving_school":   "Auto-École",
	"music_school":     "École de musique",
}

// Label maps a category tag to its display label. Total: every input maps to
// some label.
func Label(category string) string {
	if label, ok := labels[strings.ToLower(category)]; ok {
		return label
	}
	return titleCase(category)
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// Client queries the Overpass API for amenities around a point.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	client  *http.Client
}

func NewClient(logger *logrus.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		logger:  logger,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type overpassResponse struct {
	Elements []struct {
		Lat  float64           `json:"lat"`
		Lon  float64           `json:"lon"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Nearby returns amenities within radiusMeters of the target, sorted by
// distance ascending. Service failure degrades to an empty set.
func (c *Client) Nearby(ctx context.Context, target orb.Point, radiusMeters int) []models.POI {
	query := fmt.Sprintf(`
	[out:json];
	(
	  node["shop"~"bakery|supermarket"](around:%d,%f,%f);
	  node["amenity"~"pharmacy|school|station"](around:%d,%f,%f);
	);
	out;
	`, radiusMeters, target.Lat(), target.Lon(), radiusMeters, target.Lat(), target.Lon())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		c.logger.WithError(err).Error("Failed to create Overpass request")
		return nil
	}
	req.URL.RawQuery = url.Values{"data": []string{query}}.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Overpass request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("Overpass returned non-OK status")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read Overpass response")
		return nil
	}

	var result overpassResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.WithError(err).Warn("Failed to parse Overpass response")
		return nil
	}

	pois := make([]models.POI, 0, len(result.Elements))
	for _, el := range result.Elements {
		category := el.Tags["shop"]
		if category == "" {
			category = el.Tags["amenity"]
		}
		if category == "" {
			category = "default"
		}

		label := Label(category)
		name := el.Tags["name"]
		if name == "" {
			name = label
		}

		pois = append(pois, models.POI{
			Name:       name,
			Category:   category,
			Label:      label,
			DistanceKm: geometry.Haversine(target, orb.Point{el.Lon, el.Lat}),
			Latitude:   el.Lat,
			Longitude:  el.Lon,
		})
	}

	sort.Slice(pois, func(i, j int) bool {
		if pois[i].DistanceKm != pois[j].DistanceKm {
			return pois[i].DistanceKm < pois[j].DistanceKm
		}
		return pois[i].Name < pois[j].Name
	})

	return pois
}

// ProximityScore is the mean distance to the amenities, in kilometers.
// Returns 0 for an empty set.
func ProximityScore(pois []models.POI) float64 {
	if len(pois) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pois {
		sum += p.DistanceKm
	}
	return sum / float64(len(pois))
}
