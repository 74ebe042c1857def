package testutil

import (
	"context"
	"sync"

	"impound-lot-finder/internal/geocoding"
	"impound-lot-finder/internal/models"
)

// MockGeocoder resolves addresses from a fixed table. Unknown addresses
// return geocoding.ErrNoResults.
type MockGeocoder struct {
	mu        sync.Mutex
	addresses map[string]models.Coordinates
	err       error
	gates     map[string]chan struct{}
	calls     []string
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		addresses: make(map[string]models.Coordinates),
		gates:     make(map[string]chan struct{}),
	}
}

// Add registers an address
func (m *MockGeocoder) Add(address string, coords models.Coordinates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[address] = coords
}

// FailWith makes every lookup fail with err
func (m *MockGeocoder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Gate makes lookups of address block until the returned function is called
func (m *MockGeocoder) Gate(address string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[address] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the addresses looked up so far
func (m *MockGeocoder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) ([]geocoding.GeocodingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, address)
	gate := m.gates[address]
	coords, ok := m.addresses[address]
	err := m.err
	m.mu.Unlock()

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
	if !ok {
		return nil, geocoding.ErrNoResults
	}
	return []geocoding.GeocodingResult{{Coords: coords, DisplayName: address}}, nil
}
