package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestGeocoder(baseURL string) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL:      baseURL,
		userAgent:    DefaultUserAgent,
		maxRetries:   1,
		retryBackoff: time.Millisecond,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func writeResults(w http.ResponseWriter, results []nominatimResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/search")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "Av. Paulista, 1000", r.URL.Query().Get("q"))
		assert.Equal(t, "br", r.URL.Query().Get("countrycodes"))

		writeResults(w, []nominatimResponse{
			{Lat: "-23.5649", Lon: "-46.6521", DisplayName: "Avenida Paulista, 1000, São Paulo"},
			{Lat: "-23.5700", Lon: "-46.6400", DisplayName: "Paulista, São Paulo"},
		})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL)
	geocoder.countryCodes = "br"

	results, err := geocoder.Geocode(context.Background(), "Av. Paulista, 1000")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, -23.5649, results[0].Coords.Lat)
	assert.Equal(t, -46.6521, results[0].Coords.Lng)
	assert.Equal(t, "Avenida Paulista, 1000, São Paulo", results[0].DisplayName)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResults(w, []nominatimResponse{})
	}))
	defer server.Close()

	results, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Nonexistent Location")

	assert.ErrorIs(t, err, ErrNoResults)
	assert.Nil(t, results)
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	results, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, results)

	var geocodingErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geocodingErr)
	assert.Contains(t, geocodingErr.Reason, "HTTP 500")
	assert.Equal(t, http.StatusInternalServerError, geocodingErr.StatusCode)
	assert.False(t, geocodingErr.Rejected())
}

func TestNominatimGeocodeRejectedIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL)
	geocoder.maxRetries = 3

	_, err := geocoder.Geocode(context.Background(), "???")

	var geocodingErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geocodingErr)
	assert.True(t, geocodingErr.Rejected())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	results, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, results)

	var geocodingErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geocodingErr)
	assert.Zero(t, geocodingErr.StatusCode)
}

func TestNominatimGeocodeSkipsInvalidLatLon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResults(w, []nominatimResponse{
			{Lat: "invalid", Lon: "-46.6", DisplayName: "Broken"},
			{Lat: "-23.55", Lon: "-46.63", DisplayName: "Sé"},
		})
	}))
	defer server.Close()

	results, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Sé")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Sé", results[0].DisplayName)
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		writeResults(w, []nominatimResponse{{Lat: "-23.55", Lon: "-46.63", DisplayName: "Test"}})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL)
	geocoder.limiter = rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// First token is immediate, the next two wait ~50ms each
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond, "Rate limiting not working")
	assert.Equal(t, int32(3), requestCount.Load())
}

func TestNominatimGeocodeRetrySuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeResults(w, []nominatimResponse{{Lat: "-23.55", Lon: "-46.63", DisplayName: "Sé"}})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL)
	geocoder.maxRetries = 3

	results, err := geocoder.Geocode(context.Background(), "Sé")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNominatimGeocodeRetryAllFail(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL)
	geocoder.maxRetries = 3

	results, err := geocoder.Geocode(context.Background(), "Test")

	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeResults(w, []nominatimResponse{{Lat: "-23.55", Lon: "-46.63", DisplayName: "Test"}})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	results, err := newTestGeocoder(server.URL).Geocode(ctx, "Test")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, results)
}

func TestNominatimGeocodeUserAgent(t *testing.T) {
	userAgent := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent <- r.Header.Get("User-Agent")
		writeResults(w, []nominatimResponse{{Lat: "-23.55", Lon: "-46.63", DisplayName: "Test"}})
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test")

	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, <-userAgent)
}

func TestNewNominatimGeocoderDefaults(t *testing.T) {
	g := NewNominatimGeocoder(Config{}).(*nominatimGeocoder)

	assert.Equal(t, DefaultBaseURL, g.baseURL)
	assert.Equal(t, DefaultUserAgent, g.userAgent)
	assert.Equal(t, 1, g.maxRetries)
	assert.Equal(t, rate.Limit(1), g.limiter.Limit())
	assert.Equal(t, 10*time.Second, g.httpClient.Timeout)
}
