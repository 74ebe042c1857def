package routing

import (
	"context"
	"log"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/models"
)

type cachedService struct {
	inner Service
	cache database.RouteCacheRepository
}

// NewCachedService wraps a route service with a persistent cache of driving
// routes. Only the first route of a successful response is cached.
func NewCachedService(inner Service, cache database.RouteCacheRepository) Service {
	return &cachedService{inner: inner, cache: cache}
}

func (s *cachedService) Route(ctx context.Context, origin, dest models.Coordinates, mode Mode) (*Response, error) {
	if mode != ModeDriving {
		return s.inner.Route(ctx, origin, dest, mode)
	}

	cached, err := s.cache.Get(ctx, origin, dest)
	if err != nil {
		log.Printf("[OSRM] Cache read failed: origin=%s dest=%s err=%v", origin, dest, err)
	} else if cached != nil {
		log.Printf("[OSRM] Cache hit: origin=%s dest=%s", origin, dest)
		return responseFromCache(cached), nil
	}

	resp, err := s.inner.Route(ctx, origin, dest, mode)
	if err != nil {
		return nil, err
	}

	if len(resp.Routes) > 0 {
		r := resp.Routes[0]
		entry := &models.RouteCacheEntry{
			Origin:         origin,
			Destination:    dest,
			DistanceMeters: r.DistanceMeters,
			DurationSecs:   r.DurationSecs,
			Geometry:       r.Geometry,
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			log.Printf("[OSRM] Cache write failed: origin=%s dest=%s err=%v", origin, dest, err)
		}
	}

	return resp, nil
}

func responseFromCache(entry *models.RouteCacheEntry) *Response {
	return &Response{
		Code: CodeOK,
		Routes: []Route{{
			DistanceMeters: entry.DistanceMeters,
			DurationSecs:   entry.DurationSecs,
			Legs: []Leg{{
				DistanceMeters: entry.DistanceMeters,
				DurationSecs:   entry.DurationSecs,
				DistanceText:   FormatDistance(entry.DistanceMeters),
				DurationText:   FormatDuration(entry.DurationSecs),
			}},
			Geometry: entry.Geometry,
			Bounds:   BoundsOf(entry.Geometry),
		}},
	}
}
