package geocoding

import (
	"context"
	"log"
	"strings"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/models"
)

// NormalizeAddress lowercases and collapses whitespace, for use as a cache key
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

type cachedGeocoder struct {
	inner Geocoder
	cache database.GeocodeCacheRepository
}

// NewCachedGeocoder wraps a geocoder with a persistent cache of the top result.
// Cache failures are logged and fall through to the provider.
func NewCachedGeocoder(inner Geocoder, cache database.GeocodeCacheRepository) Geocoder {
	return &cachedGeocoder{inner: inner, cache: cache}
}

func (g *cachedGeocoder) Geocode(ctx context.Context, address string) ([]GeocodingResult, error) {
	key := NormalizeAddress(address)

	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[GEOCODING] Cache read failed: address=%s err=%v", key, err)
	} else if entry != nil {
		log.Printf("[GEOCODING] Cache hit: address=%s", key)
		return []GeocodingResult{{Coords: entry.Coords, DisplayName: entry.DisplayName}}, nil
	}

	results, err := g.inner.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		top := results[0]
		if err := g.cache.Set(ctx, &models.GeocodeCacheEntry{
			Address:     key,
			Coords:      top.Coords,
			DisplayName: top.DisplayName,
		}); err != nil {
			log.Printf("[GEOCODING] Cache write failed: address=%s err=%v", key, err)
		}
	}

	return results, nil
}
