// Package locate acquires the reference coordinate from the device or from a
// typed address and classifies every failure into a models.ErrorKind.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"impound-lot-finder/internal/geocoding"
	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/positioning"
)

// DefaultDeviceTimeout bounds how long a device fix may take
const DefaultDeviceTimeout = 10 * time.Second

// ErrEmptyQuery is returned for a blank address; callers treat it as a no-op
var ErrEmptyQuery = errors.New("empty address query")

// Error is a classified acquisition failure
type Error struct {
	Kind    models.ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// User-facing messages
const (
	msgPermissionDenied = "Permissão de localização negada."
	msgTimeout          = "Não foi possível obter sua localização a tempo."
	msgUnsupported      = "Geolocalização não é suportada neste dispositivo."
	msgDeviceUnknown    = "Não foi possível obter sua localização."
	msgAddressNotFound  = "Endereço não encontrado. Tente um CEP ou endereço completo."
	msgAddressProvider  = "Erro ao buscar endereço."
)

// Result is an acquired reference coordinate
type Result struct {
	Coords         models.Coordinates
	DisplayName    string
	AccuracyMeters float64
}

// Locator resolves positions through the geocoding and positioning
// collaborators
type Locator struct {
	geocoder      geocoding.Geocoder
	positioner    positioning.Positioner
	deviceTimeout time.Duration
}

// New creates a Locator. A nil positioner means device positioning is
// unsupported.
func New(geocoder geocoding.Geocoder, positioner positioning.Positioner, deviceTimeout time.Duration) *Locator {
	if positioner == nil {
		positioner = positioning.Unsupported{}
	}
	if deviceTimeout <= 0 {
		deviceTimeout = DefaultDeviceTimeout
	}
	return &Locator{
		geocoder:      geocoder,
		positioner:    positioner,
		deviceTimeout: deviceTimeout,
	}
}

// FromDevice asks the configured positioner for a high-accuracy fix
func (l *Locator) FromDevice(ctx context.Context) (*Result, error) {
	return l.FromDeviceUsing(ctx, l.positioner)
}

// FromDeviceUsing is FromDevice with an explicit position source, such as a
// fix reported by the renderer
func (l *Locator) FromDeviceUsing(ctx context.Context, p positioning.Positioner) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, l.deviceTimeout)
	defer cancel()

	pos, err := p.CurrentPosition(ctx, positioning.Options{
		Timeout:      l.deviceTimeout,
		HighAccuracy: true,
	})
	if err == nil && ctx.Err() != nil {
		// A fix that arrives after the deadline is a timeout
		err = ctx.Err()
	}
	if err != nil {
		lerr := classifyDevice(err)
		log.Printf("[LOCATE] Device position failed: kind=%s err=%v", lerr.Kind, err)
		return nil, lerr
	}

	log.Printf("[LOCATE] Device position: coords=%s accuracy=%.0fm", pos.Coords, pos.AccuracyMeters)
	return &Result{Coords: pos.Coords, AccuracyMeters: pos.AccuracyMeters}, nil
}

// DeviceTimeout is the bound applied to a device acquisition
func (l *Locator) DeviceTimeout() time.Duration { return l.deviceTimeout }

// Expired is the failure for a device acquisition whose fix never arrived
func Expired() *Error {
	return classifyDevice(context.DeadlineExceeded)
}

func classifyDevice(err error) *Error {
	var perr *positioning.PositionError
	switch {
	case errors.Is(err, positioning.ErrUnsupported):
		return &Error{Kind: models.ErrorUnsupported, Message: msgUnsupported, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: models.ErrorTimeout, Message: msgTimeout, Err: err}
	case errors.As(err, &perr):
		switch perr.Code {
		case positioning.CodePermissionDenied:
			return &Error{Kind: models.ErrorPermissionDenied, Message: msgPermissionDenied, Err: err}
		case positioning.CodeTimeout:
			return &Error{Kind: models.ErrorTimeout, Message: msgTimeout, Err: err}
		}
	}
	return &Error{Kind: models.ErrorUnknown, Message: msgDeviceUnknown, Err: err}
}

// FromAddress geocodes text and returns the first result. Blank text returns
// ErrEmptyQuery without calling the provider.
func (l *Locator) FromAddress(ctx context.Context, text string) (*Result, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	results, err := l.geocoder.Geocode(ctx, query)
	if err == nil && len(results) == 0 {
		err = geocoding.ErrNoResults
	}
	if err != nil {
		lerr := classifyAddress(err)
		log.Printf("[LOCATE] Address lookup failed: query=%s kind=%s err=%v", query, lerr.Kind, err)
		return nil, lerr
	}

	top := results[0]
	log.Printf("[LOCATE] Address resolved: query=%s coords=%s", query, top.Coords)
	return &Result{Coords: top.Coords, DisplayName: top.DisplayName}, nil
}

func classifyAddress(err error) *Error {
	var gerr *geocoding.ErrGeocodingFailed
	switch {
	case errors.Is(err, geocoding.ErrNoResults):
		return &Error{Kind: models.ErrorNotFound, Message: msgAddressNotFound, Err: err}
	case errors.As(err, &gerr) && gerr.StatusCode != 0:
		// Any non-success answer from the provider reads as "not found"
		return &Error{Kind: models.ErrorNotFound, Message: msgAddressNotFound, Err: err}
	}
	return &Error{Kind: models.ErrorProviderError, Message: msgAddressProvider, Err: err}
}
