package positioning

import (
	"context"

	"impound-lot-finder/internal/models"
)

// Reported replays a fix, or a failure, that the renderer obtained from the
// platform geolocation API. Code zero means the fix is present.
type Reported struct {
	Coords         models.Coordinates
	AccuracyMeters float64
	Code           int
	Message        string
}

func (r Reported) CurrentPosition(ctx context.Context, _ Options) (*Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PositionError{Code: CodeTimeout, Message: err.Error()}
	}
	if r.Code != 0 {
		return nil, &PositionError{Code: r.Code, Message: r.Message}
	}
	if !r.Coords.Valid() {
		return nil, &PositionError{Code: CodePositionUnavailable, Message: "reported coordinates out of range"}
	}
	return &Position{Coords: r.Coords, AccuracyMeters: r.AccuracyMeters}, nil
}
