package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"

	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/routing"
)

// RouteCall tracks a call to the route service
type RouteCall struct {
	Origin models.Coordinates
	Dest   models.Coordinates
}

// MockRouteService is a mock routing.Service for testing.
// It returns a two-point straight route with a scaled Euclidean distance.
// Requests to a gated destination block until the gate is released, which
// lets tests control completion order.
type MockRouteService struct {
	ScaleFactor float64

	mu        sync.Mutex
	overrides map[string]*routing.Response
	errors    map[string]error
	gates     map[string]chan struct{}
	calls     []RouteCall

	// Started receives every call before it blocks on a gate, if non-nil
	Started chan RouteCall
}

func NewMockRouteService() *MockRouteService {
	return &MockRouteService{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		overrides:   make(map[string]*routing.Response),
		errors:      make(map[string]error),
		gates:       make(map[string]chan struct{}),
	}
}

func destKey(dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", dest.Lat, dest.Lng)
}

// SetResponse sets a canned response for routes to dest
func (m *MockRouteService) SetResponse(dest models.Coordinates, resp *routing.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[destKey(dest)] = resp
}

// SetError makes routes to dest fail with err
func (m *MockRouteService) SetError(dest models.Coordinates, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[destKey(dest)] = err
}

// Gate makes routes to dest block until the returned function is called
func (m *MockRouteService) Gate(dest models.Coordinates) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[destKey(dest)] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns a copy of the recorded calls
func (m *MockRouteService) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.calls...)
}

func (m *MockRouteService) Route(ctx context.Context, origin, dest models.Coordinates, mode routing.Mode) (*routing.Response, error) {
	call := RouteCall{Origin: origin, Dest: dest}
	key := destKey(dest)

	m.mu.Lock()
	m.calls = append(m.calls, call)
	gate := m.gates[key]
	override := m.overrides[key]
	err := m.errors[key]
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- call
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if override != nil {
		return override, nil
	}

	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	// Assume average speed of 30 km/h in city traffic
	dur := dist / 30000 * 3600

	geometry := []models.Coordinates{origin, dest}
	return &routing.Response{
		Code: routing.CodeOK,
		Routes: []routing.Route{{
			DistanceMeters: dist,
			DurationSecs:   dur,
			Legs: []routing.Leg{{
				DistanceMeters: dist,
				DurationSecs:   dur,
				DistanceText:   routing.FormatDistance(dist),
				DurationText:   routing.FormatDuration(dur),
			}},
			Geometry: geometry,
			Bounds:   routing.BoundsOf(geometry),
		}},
	}, nil
}
