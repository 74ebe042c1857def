package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"impound-lot-finder/internal/models"
)

// Mode is the travel profile of a route request
type Mode string

const ModeDriving Mode = "driving"

// Leg is one leg of a route. Texts are empty when the provider omitted the
// corresponding number.
type Leg struct {
	DistanceMeters float64
	DurationSecs   float64
	DistanceText   string
	DurationText   string
}

// Route is one provider route with its geometry and bounding box
type Route struct {
	DistanceMeters float64
	DurationSecs   float64
	Legs           []Leg
	Geometry       []models.Coordinates
	Bounds         *models.Bounds
}

// Response is the provider's answer to a route request
type Response struct {
	Code   string
	Routes []Route
}

// Service computes routes between two points
type Service interface {
	Route(ctx context.Context, origin, dest models.Coordinates, mode Mode) (*Response, error)
}

// OSRM response codes that mean the points cannot be connected
const (
	CodeOK        = "Ok"
	CodeNoRoute   = "NoRoute"
	CodeNoSegment = "NoSegment"
)

// ErrRoutingFailed is returned when the provider cannot produce a route.
// Code carries the provider status code when one was returned.
type ErrRoutingFailed struct {
	Code       string
	Reason     string
	StatusCode int
}

func (e *ErrRoutingFailed) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("routing failed: %s (%s)", e.Reason, e.Code)
	}
	return fmt.Sprintf("routing failed: %s", e.Reason)
}

// NoRoute reports whether the provider found no path between the points
func (e *ErrRoutingFailed) NoRoute() bool {
	return e.Code == CodeNoRoute || e.Code == CodeNoSegment
}

const DefaultBaseURL = "https://router.project-osrm.org"

type osrmService struct {
	baseURL    string
	httpClient *http.Client
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Geometry osrmGeometry `json:"geometry"`
	Legs     []osrmLeg    `json:"legs"`
}

type osrmGeometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type osrmLeg struct {
	Distance *float64 `json:"distance"`
	Duration *float64 `json:"duration"`
}

// NewOSRMService creates a route service backed by an OSRM server
func NewOSRMService(baseURL string, timeout time.Duration) Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &osrmService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *osrmService) Route(ctx context.Context, origin, dest models.Coordinates, mode Mode) (*Response, error) {
	queryURL := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		s.baseURL, mode, origin.Lng, origin.Lat, dest.Lng, dest.Lat)
	log.Printf("[OSRM] Route request: origin=%s dest=%s mode=%s", origin, dest, mode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create OSRM request: err=%v", err)
		return nil, &ErrRoutingFailed{Reason: err.Error()}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ERROR] OSRM API request failed: origin=%s dest=%s err=%v", origin, dest, err)
		return nil, &ErrRoutingFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[ERROR] Failed to read OSRM response: err=%v", err)
		return nil, &ErrRoutingFailed{Reason: err.Error(), StatusCode: resp.StatusCode}
	}

	// OSRM reports NoRoute and friends as 400 with a JSON body
	var osrmResp osrmRouteResponse
	decodeErr := json.Unmarshal(body, &osrmResp)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ERROR] OSRM API error: status=%d body=%s", resp.StatusCode, truncate(body, 512))
		rerr := &ErrRoutingFailed{
			Reason:     fmt.Sprintf("HTTP %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
		if decodeErr == nil {
			rerr.Code = osrmResp.Code
			if osrmResp.Message != "" {
				rerr.Reason = osrmResp.Message
			}
		}
		return nil, rerr
	}

	if decodeErr != nil {
		log.Printf("[ERROR] Failed to decode OSRM response: err=%v", decodeErr)
		return nil, &ErrRoutingFailed{Reason: decodeErr.Error(), StatusCode: resp.StatusCode}
	}

	if osrmResp.Code != CodeOK {
		log.Printf("[ERROR] OSRM returned error code: code=%s message=%s", osrmResp.Code, osrmResp.Message)
		return nil, &ErrRoutingFailed{Code: osrmResp.Code, Reason: osrmResp.Message, StatusCode: resp.StatusCode}
	}

	out := &Response{Code: osrmResp.Code, Routes: make([]Route, 0, len(osrmResp.Routes))}
	for _, r := range osrmResp.Routes {
		out.Routes = append(out.Routes, convertRoute(r))
	}

	if len(out.Routes) > 0 {
		log.Printf("[OSRM] Route response: origin=%s dest=%s distance=%.0f duration=%.0f points=%d",
			origin, dest, out.Routes[0].DistanceMeters, out.Routes[0].DurationSecs, len(out.Routes[0].Geometry))
	} else {
		log.Printf("[OSRM] Route response without routes: origin=%s dest=%s", origin, dest)
	}
	return out, nil
}

func convertRoute(r osrmRoute) Route {
	geometry := make([]models.Coordinates, len(r.Geometry.Coordinates))
	for i, c := range r.Geometry.Coordinates {
		// GeoJSON order is lng,lat
		geometry[i] = models.Coordinates{Lat: c[1], Lng: c[0]}
	}

	legs := make([]Leg, len(r.Legs))
	for i, l := range r.Legs {
		if l.Distance != nil {
			legs[i].DistanceMeters = *l.Distance
			legs[i].DistanceText = FormatDistance(*l.Distance)
		}
		if l.Duration != nil {
			legs[i].DurationSecs = *l.Duration
			legs[i].DurationText = FormatDuration(*l.Duration)
		}
	}

	return Route{
		DistanceMeters: r.Distance,
		DurationSecs:   r.Duration,
		Legs:           legs,
		Geometry:       geometry,
		Bounds:         BoundsOf(geometry),
	}
}

// BoundsOf returns the bounding box of the points, or nil for an empty path
func BoundsOf(points []models.Coordinates) *models.Bounds {
	if len(points) == 0 {
		return nil
	}
	b := &models.Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, p := range points[1:] {
		b.Extend(p)
	}
	return b
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
