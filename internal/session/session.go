// Package session holds the per-user interaction state: the reference
// coordinate, the ranked facilities, the active route, the in-flight
// operation flag and the last error.
//
// Operations never return errors. Failures land in the snapshot's Error
// field. Provider calls run without the session lock held; their results are
// applied only if no newer operation has started since.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"impound-lot-finder/internal/distance"
	"impound-lot-finder/internal/locate"
	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/positioning"
	"impound-lot-finder/internal/route"
	"impound-lot-finder/internal/routing"
	"impound-lot-finder/internal/sequence"
)

const (
	msgNeedReference    = "Busque seu endereço primeiro para calcular a rota."
	msgFacilityNotFound = "Pátio não encontrado."
)

// Deps are the collaborators shared by every session
type Deps struct {
	Facilities       []models.Facility
	Locator          *locate.Locator
	Routes           routing.Service
	AutoRouteNearest bool
}

// Session is one user's interaction state
type Session struct {
	id         string
	facilities []models.Facility
	locator    *locate.Locator
	router     *route.Orchestrator
	autoRoute  bool
	seq        sequence.Sequencer
	events     *Broadcaster

	mu          sync.Mutex
	state       models.SessionState
	status      models.OperationStatus
	statusOwner sequence.Token
	pendingID   int64
	reference   *models.Coordinates
	ranked      []models.RankedFacility
	selectedID  *int64
	route       *models.RouteSummary
	err         *models.ErrorState
	viewport    models.Viewport

	// route framing requested for fitToken, applied once that route lands
	fitToken  sequence.Token
	fitBounds *models.Bounds

	// pending renderer-side device fix
	deviceDeadline *time.Timer
}

// New creates an idle session
func New(id string, deps Deps) *Session {
	s := &Session{
		id:         id,
		facilities: append([]models.Facility(nil), deps.Facilities...),
		locator:    deps.Locator,
		autoRoute:  deps.AutoRouteNearest,
		events:     NewBroadcaster(),
	}
	s.router = route.New(deps.Routes, &s.seq, s)
	s.resetLocked()
	return s
}

func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams a snapshot after every state change
func (s *Session) Subscribe() (uint64, <-chan models.Snapshot) {
	return s.events.Subscribe()
}

func (s *Session) Unsubscribe(id uint64) {
	s.events.Unsubscribe(id)
}

// Close ends every subscription
func (s *Session) Close() {
	s.mu.Lock()
	s.stopDeadlineLocked()
	s.mu.Unlock()
	s.events.Close()
}

// SearchAddress geocodes text and makes the first result the reference
// coordinate. Blank text is a no-op.
func (s *Session) SearchAddress(ctx context.Context, text string) models.Snapshot {
	if strings.TrimSpace(text) == "" {
		return s.Snapshot()
	}

	token := s.begin(models.StatusGeocodingAddress, models.StateSearchingAddress)

	res, err := s.locator.FromAddress(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.IsCurrent(token) {
		log.Printf("[SESSION] Discarding stale address result: id=%s token=%d", s.id, token)
		return s.snapshotLocked()
	}
	s.releaseLocked(token)

	if err != nil {
		s.failLocked(err)
		s.settleLocked()
		s.changedLocked()
		return s.snapshotLocked()
	}

	s.setReferenceLocked(res.Coords)
	s.viewport = models.Viewport{Center: res.Coords, Zoom: models.AddressMapZoom}
	s.state = models.StateLocated
	log.Printf("[SESSION] Address located: id=%s coords=%s", s.id, res.Coords)
	s.changedLocked()
	return s.snapshotLocked()
}

// UseDeviceLocation takes a device fix as the reference coordinate. A nil
// positioner uses the configured one. On success with auto-routing enabled a
// route to the nearest facility is requested right away.
func (s *Session) UseDeviceLocation(ctx context.Context, p positioning.Positioner) models.Snapshot {
	token := s.begin(models.StatusLocatingDevice, models.StateLocatingDevice)
	return s.completeDevice(ctx, token, p)
}

// BeginDeviceLocation starts an acquisition whose fix is obtained outside the
// server, by the renderer's geolocation API. The token goes back with the fix
// to CompleteDeviceLocation. Without a completion inside the device timeout
// the acquisition fails with a timeout.
func (s *Session) BeginDeviceLocation() (sequence.Token, models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.beginLocked(models.StatusLocatingDevice, models.StateLocatingDevice)
	s.deviceDeadline = time.AfterFunc(s.locator.DeviceTimeout(), func() {
		s.expireDevice(token)
	})
	log.Printf("[SESSION] Awaiting device fix: id=%s token=%d", s.id, token)
	return token, s.snapshotLocked()
}

// CompleteDeviceLocation applies the fix, or failure, reported for token. It
// is discarded when a newer operation started or the wait already expired.
func (s *Session) CompleteDeviceLocation(ctx context.Context, token sequence.Token, p positioning.Positioner) models.Snapshot {
	s.mu.Lock()
	if !s.seq.IsCurrent(token) {
		defer s.mu.Unlock()
		log.Printf("[SESSION] Discarding stale device fix: id=%s token=%d latest=%d", s.id, token, s.seq.Latest())
		return s.snapshotLocked()
	}
	s.stopDeadlineLocked()
	s.mu.Unlock()

	return s.completeDevice(ctx, token, p)
}

func (s *Session) expireDevice(token sequence.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A nil deadline means a completion already claimed the acquisition
	if !s.seq.IsCurrent(token) || s.deviceDeadline == nil {
		return
	}
	s.deviceDeadline = nil
	s.supersedeLocked()
	s.failLocked(locate.Expired())
	s.settleLocked()
	s.changedLocked()
}

// completeDevice resolves a device acquisition holding token. A nil
// positioner uses the configured one.
func (s *Session) completeDevice(ctx context.Context, token sequence.Token, p positioning.Positioner) models.Snapshot {
	var (
		res *locate.Result
		err error
	)
	if p != nil {
		res, err = s.locator.FromDeviceUsing(ctx, p)
	} else {
		res, err = s.locator.FromDevice(ctx)
	}

	s.mu.Lock()
	if !s.seq.IsCurrent(token) {
		log.Printf("[SESSION] Discarding stale device fix: id=%s token=%d", s.id, token)
		defer s.mu.Unlock()
		return s.snapshotLocked()
	}
	s.releaseLocked(token)

	if err != nil {
		defer s.mu.Unlock()
		s.failLocked(err)
		s.settleLocked()
		s.changedLocked()
		return s.snapshotLocked()
	}

	s.setReferenceLocked(res.Coords)
	s.viewport = models.Viewport{Center: res.Coords, Zoom: models.AddressMapZoom}
	s.state = models.StateLocated
	log.Printf("[SESSION] Device located: id=%s coords=%s", s.id, res.Coords)
	s.changedLocked()

	nearest, ok := distance.Nearest(s.ranked)
	if !s.autoRoute || !ok {
		defer s.mu.Unlock()
		return s.snapshotLocked()
	}

	routeToken, origin := s.beginRouteLocked(nearest.Facility)
	s.mu.Unlock()

	log.Printf("[SESSION] Auto-routing to nearest facility: id=%s facility=%d", s.id, nearest.ID)
	return s.finishRoute(ctx, routeToken, origin, nearest.Facility)
}

// SelectFacility marks a facility as the routing target. It requires a
// reference coordinate. Selecting a different facility drops the active or
// pending route.
func (s *Session) SelectFacility(id int64) models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reference == nil {
		s.err = &models.ErrorState{Kind: models.ErrorPreconditionFailed, Message: msgNeedReference}
		s.changedLocked()
		return s.snapshotLocked()
	}
	f, ok := s.facilityLocked(id)
	if !ok {
		s.err = &models.ErrorState{Kind: models.ErrorNotFound, Message: msgFacilityNotFound}
		s.changedLocked()
		return s.snapshotLocked()
	}

	s.err = nil
	s.selectedID = &f.ID

	if s.status == models.StatusRequestingRoute && s.pendingID != f.ID {
		s.supersedeLocked()
	}
	if s.route != nil && s.route.FacilityID != f.ID {
		s.route = nil
	}
	s.settleLocked()
	s.changedLocked()
	return s.snapshotLocked()
}

// FocusFacility frames a facility on the map and selects it for display.
// It does not need a reference coordinate and does not route.
func (s *Session) FocusFacility(id int64) models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facilityLocked(id)
	if !ok {
		s.err = &models.ErrorState{Kind: models.ErrorNotFound, Message: msgFacilityNotFound}
		s.changedLocked()
		return s.snapshotLocked()
	}

	s.selectedID = &f.ID
	s.viewport = models.Viewport{Center: f.GetCoords(), Zoom: models.FacilityMapZoom}
	s.changedLocked()
	return s.snapshotLocked()
}

// RequestRoute computes a driving route from the reference coordinate to the
// facility
func (s *Session) RequestRoute(ctx context.Context, id int64) models.Snapshot {
	s.mu.Lock()
	if s.reference == nil {
		defer s.mu.Unlock()
		s.err = &models.ErrorState{Kind: models.ErrorPreconditionFailed, Message: msgNeedReference}
		s.changedLocked()
		return s.snapshotLocked()
	}
	f, ok := s.facilityLocked(id)
	if !ok {
		defer s.mu.Unlock()
		s.err = &models.ErrorState{Kind: models.ErrorNotFound, Message: msgFacilityNotFound}
		s.changedLocked()
		return s.snapshotLocked()
	}

	token, origin := s.beginRouteLocked(f)
	s.mu.Unlock()

	return s.finishRoute(ctx, token, origin, f)
}

// Errors returned by Destination
var (
	ErrNoReference     = errors.New("no reference coordinate")
	ErrNoFacility      = errors.New("no facility selected")
	ErrUnknownFacility = errors.New("unknown facility")
)

// Destination returns the reference coordinate and facility id, or the
// selected facility when id is 0, for directions opened outside the app
func (s *Session) Destination(id int64) (models.Coordinates, models.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reference == nil {
		return models.Coordinates{}, models.Facility{}, ErrNoReference
	}
	if id == 0 {
		if s.selectedID == nil {
			return models.Coordinates{}, models.Facility{}, ErrNoFacility
		}
		id = *s.selectedID
	}
	f, ok := s.facilityLocked(id)
	if !ok {
		return models.Coordinates{}, models.Facility{}, ErrUnknownFacility
	}
	return *s.reference, f, nil
}

// ClearRoute drops the active or pending route and keeps the reference
func (s *Session) ClearRoute() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.route = nil
	s.err = nil
	// A running search or device fix keeps its state until it resolves
	switch s.status {
	case models.StatusRequestingRoute:
		s.supersedeLocked()
		s.settleLocked()
	case models.StatusIdle:
		s.settleLocked()
	}
	s.changedLocked()
	return s.snapshotLocked()
}

// Reset returns the session to its initial state and discards every
// in-flight operation
func (s *Session) Reset() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq.Next()
	s.resetLocked()
	log.Printf("[SESSION] Reset: id=%s", s.id)
	s.changedLocked()
	return s.snapshotLocked()
}

// FitBounds records the framing for a computed route. It is applied when
// the route for token lands and dropped if that route is superseded.
func (s *Session) FitBounds(token sequence.Token, bounds models.Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seq.IsCurrent(token) {
		return
	}
	s.fitToken = token
	s.fitBounds = &bounds
}

// begin starts an acquisition: new token, error and route cleared, status
// owned by the token
func (s *Session) begin(status models.OperationStatus, state models.SessionState) sequence.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(status, state)
}

func (s *Session) beginLocked(status models.OperationStatus, state models.SessionState) sequence.Token {
	s.stopDeadlineLocked()
	token := s.seq.Next()
	s.err = nil
	s.route = nil
	s.acquireLocked(token, status)
	s.state = state
	s.changedLocked()
	return token
}

func (s *Session) beginRouteLocked(f models.Facility) (sequence.Token, models.Coordinates) {
	s.stopDeadlineLocked()
	token := s.seq.Next()
	s.err = nil
	s.route = nil
	s.selectedID = &f.ID
	s.pendingID = f.ID
	s.acquireLocked(token, models.StatusRequestingRoute)
	s.state = models.StateRequestingRoute
	s.changedLocked()
	log.Printf("[SESSION] Route requested: id=%s facility=%d token=%d", s.id, f.ID, token)
	return token, *s.reference
}

func (s *Session) finishRoute(ctx context.Context, token sequence.Token, origin models.Coordinates, f models.Facility) models.Snapshot {
	summary, err := s.router.ComputeRoute(ctx, origin, f, token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, route.ErrStale) || !s.seq.IsCurrent(token) {
		return s.snapshotLocked()
	}
	s.releaseLocked(token)
	s.pendingID = 0

	if err != nil {
		s.failLocked(err)
		s.settleLocked()
		s.changedLocked()
		return s.snapshotLocked()
	}

	s.route = summary
	s.state = models.StateRouteReady
	if s.fitToken == token && s.fitBounds != nil {
		b := *s.fitBounds
		s.viewport = models.Viewport{
			Center: models.Coordinates{
				Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
				Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
			},
			Zoom:   s.viewport.Zoom,
			Bounds: &b,
		}
	}
	s.fitToken, s.fitBounds = 0, nil
	s.changedLocked()
	return s.snapshotLocked()
}

func (s *Session) acquireLocked(token sequence.Token, status models.OperationStatus) {
	s.status = status
	s.statusOwner = token
}

// releaseLocked returns the status to idle if token still owns it
func (s *Session) releaseLocked(token sequence.Token) {
	if s.statusOwner == token {
		s.status = models.StatusIdle
		s.statusOwner = 0
	}
}

// supersedeLocked abandons the in-flight operation
func (s *Session) supersedeLocked() {
	s.stopDeadlineLocked()
	s.seq.Next()
	s.status = models.StatusIdle
	s.statusOwner = 0
	s.pendingID = 0
}

// settleLocked derives the resting state from the data fields
func (s *Session) settleLocked() {
	switch {
	case s.reference == nil:
		s.state = models.StateIdle
	case s.route != nil:
		s.state = models.StateRouteReady
	default:
		s.state = models.StateLocated
	}
}

func (s *Session) failLocked(err error) {
	var lerr *locate.Error
	var rerr *route.Error
	switch {
	case errors.As(err, &lerr):
		s.err = &models.ErrorState{Kind: lerr.Kind, Message: lerr.Message}
	case errors.As(err, &rerr):
		s.err = &models.ErrorState{Kind: rerr.Reason, Message: rerr.Message}
	default:
		s.err = &models.ErrorState{Kind: models.ErrorUnknown, Message: err.Error()}
	}
	log.Printf("[SESSION] Operation failed: id=%s kind=%s err=%v", s.id, s.err.Kind, err)
}

func (s *Session) setReferenceLocked(c models.Coordinates) {
	s.reference = &c
	s.ranked = distance.Rank(s.facilities, s.reference)
}

func (s *Session) stopDeadlineLocked() {
	if s.deviceDeadline != nil {
		s.deviceDeadline.Stop()
		s.deviceDeadline = nil
	}
}

func (s *Session) resetLocked() {
	s.stopDeadlineLocked()
	s.fitToken, s.fitBounds = 0, nil
	s.state = models.StateIdle
	s.status = models.StatusIdle
	s.statusOwner = 0
	s.pendingID = 0
	s.reference = nil
	s.ranked = distance.Rank(s.facilities, nil)
	s.selectedID = nil
	s.route = nil
	s.err = nil
	s.viewport = models.Viewport{Center: models.DefaultMapCenter, Zoom: models.DefaultMapZoom}
}

func (s *Session) facilityLocked(id int64) (models.Facility, bool) {
	return lo.Find(s.facilities, func(f models.Facility) bool { return f.ID == id })
}

func (s *Session) changedLocked() {
	s.events.Broadcast(s.snapshotLocked())
}

func (s *Session) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		SessionID:  s.id,
		State:      s.state,
		Status:     s.status,
		Facilities: make([]models.RankedFacility, len(s.ranked)),
		Viewport:   s.viewport,
	}
	for i, r := range s.ranked {
		if r.DistanceKm != nil {
			km := *r.DistanceKm
			r.DistanceKm = &km
		}
		snap.Facilities[i] = r
	}
	if s.reference != nil {
		ref := *s.reference
		snap.ReferenceCoordinate = &ref
	}
	if s.selectedID != nil {
		id := *s.selectedID
		snap.SelectedFacilityID = &id
	}
	if s.route != nil {
		r := *s.route
		if r.Path != nil {
			path := models.RoutePath{Geometry: append([]models.Coordinates(nil), r.Path.Geometry...)}
			if r.Path.Bounds != nil {
				b := *r.Path.Bounds
				path.Bounds = &b
			}
			r.Path = &path
		}
		snap.Route = &r
	}
	if s.err != nil {
		e := *s.err
		snap.Error = &e
	}
	if s.viewport.Bounds != nil {
		b := *s.viewport.Bounds
		snap.Viewport.Bounds = &b
	}
	return snap
}
