package geocoding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// Result is a successful address resolution.
type Result struct {
	Label    string
	Postcode string
	Point    orb.Point
}

// Geocoder resolves free-text addresses through the BAN address API
// (api-adresse.data.gouv.fr). Successful resolutions are cached for the
// lifetime of the process, keyed by trimmed, lower-cased address text.
// Lookup failures of any kind are reported as not-found, never as errors;
// callers decide whether not-found is fatal.
type Geocoder struct {
	logger    *logrus.Logger
	baseURL   string
	client    *http.Client
	cache     map[string]Result
	cacheLock sync.RWMutex
	onResolve func(key string, res Result)
}

func NewGeocoder(logger *logrus.Logger, baseURL string, timeout time.Duration) *Geocoder {
	return &Geocoder{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cache:   make(map[string]Result),
	}
}

// OnResolve registers a callback invoked for every fresh (non-cached)
// successful resolution. Used to feed the persistent cache writer.
func (g *Geocoder) OnResolve(fn func(key string, res Result)) {
	g.onResolve = fn
}

// Warm preloads the cache, typically from the persisted cache store.
func (g *Geocoder) Warm(entries map[string]Result) {
	g.cacheLock.Lock()
	defer g.cacheLock.Unlock()

	for key, res := range entries {
		g.cache[key] = res
	}

	if len(entries) > 0 {
		g.logger.Infof("Warmed geocode cache with %d addresses", len(entries))
	}
}

// CacheSize returns the number of cached resolutions.
func (g *Geocoder) CacheSize() int {
	g.cacheLock.RLock()
	defer g.cacheLock.RUnlock()
	return len(g.cache)
}

func normalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Resolve returns the best-match coordinates for an address, or ok=false
// when the address cannot be resolved.
func (g *Geocoder) Resolve(ctx context.Context, text string) (orb.Point, bool) {
	res, ok := g.lookup(ctx, text)
	return res.Point, ok
}

// ResolveWithPostalCode additionally returns the resolved postal code. Used
// for the single top-level resolution of the user's own address.
func (g *Geocoder) ResolveWithPostalCode(ctx context.Context, text string) (string, orb.Point, bool) {
	res, ok := g.lookup(ctx, text)
	return res.Postcode, res.Point, ok
}

// Suggest returns up to limit ranked address labels for a partial input.
// Suggestions are one-shot lookups and are not cached.
func (g *Geocoder) Suggest(ctx context.Context, text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	fc, err := g.search(ctx, text, limit)
	if err != nil {
		g.logger.WithError(err).WithField("query", text).Warn("Address suggestion lookup failed")
		return nil
	}

	labels := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		if label := f.Properties.MustString("label", ""); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

func (g *Geocoder) lookup(ctx context.Context, text string) (Result, bool) {
	key := normalizeKey(text)
	if key == "" {
		return Result{}, false
	}

	// Check cache first
	g.cacheLock.RLock()
	if res, ok := g.cache[key]; ok {
		g.cacheLock.RUnlock()
		return res, true
	}
	g.cacheLock.RUnlock()

	fc, err := g.search(ctx, text, 1)
	if err != nil {
		g.logger.WithError(err).WithField("address", text).Warn("Geocoding request failed")
		return Result{}, false
	}

	if len(fc.Features) == 0 {
		g.logger.WithField("address", text).Debug("No geocoding results")
		return Result{}, false
	}

	feature := fc.Features[0]
	point, ok := feature.Geometry.(orb.Point)
	if !ok {
		g.logger.WithField("address", text).Warn("Geocoding result has no point geometry")
		return Result{}, false
	}

	res := Result{
		Label:    feature.Properties.MustString("label", ""),
		Postcode: feature.Properties.MustString("postcode", ""),
		Point:    point,
	}

	// Write on miss; a concurrent lookup for the same key may race here, the
	// last write wins and both carry the same data.
	g.cacheLock.Lock()
	_, seen := g.cache[key]
	g.cache[key] = res
	g.cacheLock.Unlock()

	if !seen && g.onResolve != nil {
		g.onResolve(key, res)
	}

	g.logger.WithFields(logrus.Fields{
		"address":   text,
		"latitude":  point.Lat(),
		"longitude": point.Lon(),
	}).Debug("Geocoded address")

	return res, true
}

func (g *Geocoder) search(ctx context.Context, query string, limit int) (*geojson.FeatureCollection, error) {
	params := url.Values{
		"q":     []string{query},
		"limit": []string{strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "Estimmo Property Estimator/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	return fc, nil
}
