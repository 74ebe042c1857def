package routing

import (
	"context"
	"fmt"
	"sync"

	"impound-lot-finder/internal/models"
)

type memoryRouteCache struct {
	mu      sync.Mutex
	entries map[string]models.RouteCacheEntry
}

func newMemoryRouteCache() *memoryRouteCache {
	return &memoryRouteCache{entries: make(map[string]models.RouteCacheEntry)}
}

func routeKey(o, d models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", o.Lat, o.Lng, d.Lat, d.Lng)
}

func (c *memoryRouteCache) Get(_ context.Context, o, d models.Coordinates) (*models.RouteCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[routeKey(o, d)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *memoryRouteCache) Set(_ context.Context, e *models.RouteCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[routeKey(e.Origin, e.Destination)] = *e
	return nil
}

func (c *memoryRouteCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.RouteCacheEntry)
	return nil
}
