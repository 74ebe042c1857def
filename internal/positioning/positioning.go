// Package positioning provides device position sources. Errors follow the W3C
// Geolocation API codes so client-reported failures map one to one.
package positioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"impound-lot-finder/internal/models"
)

// Options mirror the W3C PositionOptions the renderer would pass
type Options struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// Position is a single position fix
type Position struct {
	Coords         models.Coordinates
	AccuracyMeters float64
}

// Positioner returns the current device position
type Positioner interface {
	CurrentPosition(ctx context.Context, opts Options) (*Position, error)
}

// W3C GeolocationPositionError codes
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// PositionError is a positioning failure with a W3C error code
type PositionError struct {
	Code    int
	Message string
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

// ErrUnsupported is returned when no position source is available
var ErrUnsupported = errors.New("geolocation is not supported")

// Unsupported is the positioner used when positioning is disabled
type Unsupported struct{}

func (Unsupported) CurrentPosition(context.Context, Options) (*Position, error) {
	return nil, ErrUnsupported
}
