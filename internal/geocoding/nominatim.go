package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"impound-lot-finder/internal/models"
)

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder provides address-to-coordinates conversion. Results are ordered by
// provider relevance.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]GeocodingResult, error)
}

// ErrNoResults is returned when the provider found nothing for the address
var ErrNoResults = errors.New("no results found")

// ErrGeocodingFailed is returned when an address cannot be geocoded.
// StatusCode is zero for transport and decode failures.
type ErrGeocodingFailed struct {
	Address    string
	Reason     string
	StatusCode int
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

// Rejected reports whether the provider refused the query itself (HTTP 4xx)
func (e *ErrGeocodingFailed) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *ErrGeocodingFailed) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Config configures the Nominatim geocoder
type Config struct {
	BaseURL           string
	CountryCodes      string
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int
	UserAgent         string
}

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "ImpoundLotFinder/1.0"
	resultLimit      = 5
)

type nominatimGeocoder struct {
	baseURL      string
	countryCodes string
	userAgent    string
	maxRetries   int
	retryBackoff time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a new Nominatim geocoder with rate limiting
func NewNominatimGeocoder(cfg Config) Geocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &nominatimGeocoder{
		baseURL:      cfg.BaseURL,
		countryCodes: cfg.CountryCodes,
		userAgent:    cfg.UserAgent,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: time.Second,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Geocode looks the address up, retrying transport and 5xx failures with
// exponential backoff. Provider rejections and empty results are not retried.
func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) ([]GeocodingResult, error) {
	var lastErr error

	for i := 0; i < g.maxRetries; i++ {
		results, err := g.search(ctx, address)
		if err == nil {
			return results, nil
		}
		lastErr = err

		var gerr *ErrGeocodingFailed
		if !errors.As(err, &gerr) || !gerr.retryable() {
			return nil, err
		}

		if i < g.maxRetries-1 {
			backoff := g.retryBackoff * time.Duration(1<<uint(i))
			log.Printf("[GEOCODING] Retry %d/%d: address=%s backoff=%v err=%v", i+1, g.maxRetries, address, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("[ERROR] Geocoding failed after %d attempt(s): address=%s err=%v", g.maxRetries, address, lastErr)
	return nil, lastErr
}

func (g *nominatimGeocoder) search(ctx context.Context, address string) ([]GeocodingResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(resultLimit))
	if g.countryCodes != "" {
		params.Set("countrycodes", g.countryCodes)
	}
	queryURL := fmt.Sprintf("%s/search?%s", g.baseURL, params.Encode())
	log.Printf("[GEOCODING] Request: address=%s url=%s", address, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create geocoding request: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ERROR] Geocoding API request failed: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[ERROR] Geocoding API error: address=%s status=%d body=%s", address, resp.StatusCode, string(body))
		return nil, &ErrGeocodingFailed{
			Address:    address,
			Reason:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: address=%s err=%v", address, err)
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}

	geocodingResults := make([]GeocodingResult, 0, len(results))
	for _, result := range results {
		lat, err := strconv.ParseFloat(result.Lat, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid latitude in geocoding response: address=%s lat=%s err=%v", address, result.Lat, err)
			continue
		}
		lng, err := strconv.ParseFloat(result.Lon, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid longitude in geocoding response: address=%s lng=%s err=%v", address, result.Lon, err)
			continue
		}

		geocodingResults = append(geocodingResults, GeocodingResult{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: result.DisplayName,
		})
	}

	if len(geocodingResults) == 0 {
		log.Printf("[GEOCODING] No results: address=%s", address)
		return nil, ErrNoResults
	}

	first := geocodingResults[0]
	log.Printf("[GEOCODING] Response: address=%s results=%d lat=%.6f lng=%.6f display_name=%s",
		address, len(geocodingResults), first.Coords.Lat, first.Coords.Lng, first.DisplayName)
	return geocodingResults, nil
}
