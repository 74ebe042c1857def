package geocoding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impound-lot-finder/internal/models"
)

type memoryGeocodeCache struct {
	mu      sync.Mutex
	entries map[string]models.GeocodeCacheEntry
}

func (c *memoryGeocodeCache) Get(_ context.Context, address string) (*models.GeocodeCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[address]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *memoryGeocodeCache) Set(_ context.Context, entry *models.GeocodeCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Address] = *entry
	return nil
}

func (c *memoryGeocodeCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.GeocodeCacheEntry)
	return nil
}

type countingGeocoder struct {
	calls   int
	results []GeocodingResult
	err     error
}

func (g *countingGeocoder) Geocode(context.Context, string) ([]GeocodingResult, error) {
	g.calls++
	return g.results, g.err
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "av. paulista, 1000", NormalizeAddress("  Av.   Paulista,\t1000 "))
	assert.Equal(t, "", NormalizeAddress("   "))
}

func TestCachedGeocoder_HitSkipsProvider(t *testing.T) {
	inner := &countingGeocoder{results: []GeocodingResult{
		{Coords: models.Coordinates{Lat: -23.5649, Lng: -46.6521}, DisplayName: "Paulista"},
		{Coords: models.Coordinates{Lat: -23.57, Lng: -46.64}, DisplayName: "Other"},
	}}
	cache := &memoryGeocodeCache{entries: make(map[string]models.GeocodeCacheEntry)}
	geocoder := NewCachedGeocoder(inner, cache)
	ctx := context.Background()

	first, err := geocoder.Geocode(ctx, "Av. Paulista 1000")
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := geocoder.Geocode(ctx, "  av. paulista   1000")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cache := &memoryGeocodeCache{entries: make(map[string]models.GeocodeCacheEntry)}
	geocoder := NewCachedGeocoder(inner, cache)
	ctx := context.Background()

	_, err := geocoder.Geocode(ctx, "x")
	require.Error(t, err)
	_, err = geocoder.Geocode(ctx, "x")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, cache.entries)
}
