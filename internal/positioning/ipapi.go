package positioning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"impound-lot-finder/internal/models"
)

const DefaultIPAPIURL = "http://ip-api.com/json/"

// ipapiPositioner approximates the position from the public IP address.
// Accuracy is city level at best.
type ipapiPositioner struct {
	url        string
	httpClient *http.Client
}

type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
}

// ipLookupAccuracyMeters is a rough city-level radius
const ipLookupAccuracyMeters = 5000

// NewIPAPIPositioner creates a positioner backed by ip-api.com
func NewIPAPIPositioner(url string) Positioner {
	if url == "" {
		url = DefaultIPAPIURL
	}
	return &ipapiPositioner{url: url, httpClient: &http.Client{}}
}

func (p *ipapiPositioner) CurrentPosition(ctx context.Context, opts Options) (*Position, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"?fields=status,message,lat,lon,city", nil)
	if err != nil {
		return nil, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &PositionError{Code: CodeTimeout, Message: "position lookup timed out"}
		}
		log.Printf("[POSITION] IP lookup failed: err=%v", err)
		return nil, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[POSITION] IP lookup error: status=%d", resp.StatusCode)
		return nil, &PositionError{Code: CodePositionUnavailable, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}

	if body.Status != "success" {
		log.Printf("[POSITION] IP lookup rejected: status=%s message=%s", body.Status, body.Message)
		return nil, &PositionError{Code: CodePositionUnavailable, Message: body.Message}
	}

	coords := models.Coordinates{Lat: body.Lat, Lng: body.Lon}
	if !coords.Valid() {
		return nil, &PositionError{Code: CodePositionUnavailable, Message: "invalid coordinates"}
	}

	log.Printf("[POSITION] IP lookup: coords=%s city=%s", coords, body.City)
	return &Position{Coords: coords, AccuracyMeters: ipLookupAccuracyMeters}, nil
}
