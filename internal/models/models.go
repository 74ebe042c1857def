package models

import (
	"fmt"
	"math"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", c.Lat, c.Lng)
}

// RoundCoordinate rounds to 5 decimal places (~1m), used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Facility represents an impound lot a user can be routed to
type Facility struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Hours   string  `json:"hours"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// GetCoords returns the coordinates of the facility
func (f *Facility) GetCoords() Coordinates {
	return Coordinates{Lat: f.Lat, Lng: f.Lng}
}

// RankedFacility is a facility annotated with its distance from the reference
// coordinate. DistanceKm is nil when no reference is set.
type RankedFacility struct {
	Facility
	DistanceKm *float64 `json:"distance_km"`
}

// Bounds is the bounding box of a route
type Bounds struct {
	SouthWest Coordinates `json:"south_west"`
	NorthEast Coordinates `json:"north_east"`
}

// Extend grows the box to contain c
func (b *Bounds) Extend(c Coordinates) {
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, c.Lat)
	b.SouthWest.Lng = math.Min(b.SouthWest.Lng, c.Lng)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, c.Lat)
	b.NorthEast.Lng = math.Max(b.NorthEast.Lng, c.Lng)
}

// RoutePath is the provider's route geometry, passed through to the renderer
type RoutePath struct {
	Geometry []Coordinates `json:"geometry"`
	Bounds   *Bounds       `json:"bounds,omitempty"`
}

// RouteSummary describes the active route to a facility
type RouteSummary struct {
	FacilityID     int64      `json:"facility_id"`
	FacilityName   string     `json:"facility_name"`
	DistanceText   string     `json:"distance_text"`
	DurationText   string     `json:"duration_text"`
	DistanceMeters float64    `json:"distance_meters"`
	DurationSecs   float64    `json:"duration_secs"`
	Path           *RoutePath `json:"path,omitempty"`
}

// OperationStatus is the single in-flight operation flag
type OperationStatus string

const (
	StatusIdle             OperationStatus = "idle"
	StatusLocatingDevice   OperationStatus = "locating_device"
	StatusGeocodingAddress OperationStatus = "geocoding_address"
	StatusRequestingRoute  OperationStatus = "requesting_route"
)

// SessionState is the position of a session in the interaction protocol
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateSearchingAddress SessionState = "searching_address"
	StateLocatingDevice   SessionState = "locating_device"
	StateLocated          SessionState = "located"
	StateRequestingRoute  SessionState = "requesting_route"
	StateRouteReady       SessionState = "route_ready"
)

// ErrorKind classifies the failures surfaced to the user
type ErrorKind string

const (
	ErrorPermissionDenied   ErrorKind = "permission_denied"
	ErrorTimeout            ErrorKind = "timeout"
	ErrorUnsupported        ErrorKind = "unsupported"
	ErrorNotFound           ErrorKind = "not_found"
	ErrorProviderError      ErrorKind = "provider_error"
	ErrorNoRoute            ErrorKind = "no_route"
	ErrorPreconditionFailed ErrorKind = "precondition_failed"
	ErrorUnknown            ErrorKind = "unknown"
)

// ErrorState is the most recent operation failure
type ErrorState struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Viewport is the map framing requested from the renderer
type Viewport struct {
	Center Coordinates `json:"center"`
	Zoom   int         `json:"zoom"`
	Bounds *Bounds     `json:"bounds,omitempty"`
}

// Default map framing over central São Paulo
var (
	DefaultMapCenter = Coordinates{Lat: -23.5505, Lng: -46.6333}
)

const (
	DefaultMapZoom  = 12
	AddressMapZoom  = 13
	FacilityMapZoom = 15
)

// Snapshot is a read-only copy of a session handed to the renderer
type Snapshot struct {
	SessionID           string           `json:"session_id"`
	State               SessionState     `json:"state"`
	Status              OperationStatus  `json:"status"`
	ReferenceCoordinate *Coordinates     `json:"reference_coordinate"`
	Facilities          []RankedFacility `json:"facilities"`
	SelectedFacilityID  *int64           `json:"selected_facility_id"`
	Route               *RouteSummary    `json:"route"`
	Error               *ErrorState      `json:"error"`
	Viewport            Viewport         `json:"viewport"`
}

// GeocodeCacheEntry represents a cached address lookup
type GeocodeCacheEntry struct {
	Address     string      `json:"address"`
	Coords      Coordinates `json:"coords"`
	DisplayName string      `json:"display_name"`
}

// RouteCacheEntry represents a cached driving route between two points
type RouteCacheEntry struct {
	Origin         Coordinates   `json:"origin"`
	Destination    Coordinates   `json:"destination"`
	DistanceMeters float64       `json:"distance_meters"`
	DurationSecs   float64       `json:"duration_secs"`
	Geometry       []Coordinates `json:"geometry"`
}
