package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func banResponse(label, postcode string, lon, lat float64) string {
	return fmt.Sprintf(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [%f, %f]},
			"properties": {"label": %q, "postcode": %q}
		}]
	}`, lon, lat, label, postcode)
}

func newTestGeocoder(handler http.HandlerFunc) (*Geocoder, *httptest.Server) {
	server := httptest.NewServer(handler)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewGeocoder(logger, server.URL, 2*time.Second), server
}

func TestGeocoder_Resolve(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10 Rue de la République, Marseille", r.URL.Query().Get("q"))
		fmt.Fprint(w, banResponse("10 Rue de la République 13001 Marseille", "13001", 5.3749, 43.2995))
	})
	defer server.Close()

	point, ok := g.Resolve(context.Background(), "10 Rue de la République, Marseille")
	require.True(t, ok)
	assert.InDelta(t, 43.2995, point.Lat(), 1e-6)
	assert.InDelta(t, 5.3749, point.Lon(), 1e-6)
}

func TestGeocoder_ResolveWithPostalCode(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, banResponse("Vieux-Port 13001 Marseille", "13001", 5.3698, 43.2965))
	})
	defer server.Close()

	postcode, point, ok := g.ResolveWithPostalCode(context.Background(), "Vieux-Port, Marseille")
	require.True(t, ok)
	assert.Equal(t, "13001", postcode)
	assert.InDelta(t, 43.2965, point.Lat(), 1e-6)
}

func TestGeocoder_CachesByNormalizedKey(t *testing.T) {
	var calls int64
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, banResponse("Vieux-Port 13001 Marseille", "13001", 5.3698, 43.2965))
	})
	defer server.Close()

	_, ok := g.Resolve(context.Background(), "Vieux-Port, Marseille")
	require.True(t, ok)

	// Same address modulo case and whitespace must hit the cache
	_, ok = g.Resolve(context.Background(), "  vieux-port, marseille ")
	require.True(t, ok)
	_, _, ok = g.ResolveWithPostalCode(context.Background(), "VIEUX-PORT, MARSEILLE")
	require.True(t, ok)

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, 1, g.CacheSize())
}

func TestGeocoder_NotFound(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
	})
	defer server.Close()

	_, ok := g.Resolve(context.Background(), "nowhere at all")
	assert.False(t, ok)
	// Failed resolutions are not cached
	assert.Equal(t, 0, g.CacheSize())
}

func TestGeocoder_ServiceFailureIsNotFound(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, ok := g.Resolve(context.Background(), "10 Rue de la République, Marseille")
	assert.False(t, ok)
}

func TestGeocoder_EmptyInput(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})
	defer server.Close()

	_, ok := g.Resolve(context.Background(), "   ")
	assert.False(t, ok)
}

func TestGeocoder_Suggest(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{
			"type": "FeatureCollection",
			"features": [
				{"type": "Feature", "geometry": {"type": "Point", "coordinates": [5.37, 43.29]}, "properties": {"label": "Rue de Rome 13001 Marseille"}},
				{"type": "Feature", "geometry": {"type": "Point", "coordinates": [5.38, 43.30]}, "properties": {"label": "Rue de Rome 13006 Marseille"}}
			]
		}`)
	})
	defer server.Close()

	labels := g.Suggest(context.Background(), "Rue de Rome", 5)
	require.Len(t, labels, 2)
	assert.Equal(t, "Rue de Rome 13001 Marseille", labels[0])
}

func TestGeocoder_OnResolveFiresOncePerAddress(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, banResponse("Vieux-Port 13001 Marseille", "13001", 5.3698, 43.2965))
	})
	defer server.Close()

	var keys []string
	g.OnResolve(func(key string, res Result) {
		keys = append(keys, key)
	})

	g.Resolve(context.Background(), "Vieux-Port, Marseille")
	g.Resolve(context.Background(), "vieux-port, marseille")

	require.Len(t, keys, 1)
	assert.Equal(t, "vieux-port, marseille", keys[0])
}

func TestGeocoder_WarmSkipsNetwork(t *testing.T) {
	g, server := newTestGeocoder(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for warmed address")
	})
	defer server.Close()

	g.Warm(map[string]Result{
		"vieux-port, marseille": {Label: "Vieux-Port 13001 Marseille", Postcode: "13001", Point: orb.Point{5.3698, 43.2965}},
	})

	postcode, _, ok := g.ResolveWithPostalCode(context.Background(), "Vieux-Port, Marseille")
	require.True(t, ok)
	assert.Equal(t, "13001", postcode)
}
