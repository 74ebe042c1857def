// Package route computes a driving route from the reference coordinate to a
// facility and drops responses that a newer request has superseded.
package route

import (
	"context"
	"errors"
	"fmt"
	"log"

	"impound-lot-finder/internal/models"
	"impound-lot-finder/internal/obs"
	"impound-lot-finder/internal/routing"
	"impound-lot-finder/internal/sequence"
)

// Placeholder is shown when the provider omits a leg's distance or duration
const Placeholder = "–"

// ErrStale is returned when the response belongs to a superseded request
var ErrStale = errors.New("stale route response")

// Error is a classified routing failure. Reason is ErrorNoRoute or
// ErrorProviderError.
type Error struct {
	Reason  models.ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	msgNoRoute       = "Não foi possível calcular a rota."
	msgProviderError = "Erro ao calcular rota."
)

// Viewport receives the request to frame a computed route
type Viewport interface {
	FitBounds(token sequence.Token, bounds models.Bounds)
}

// Orchestrator issues route requests stamped with tokens from a shared
// sequencer
type Orchestrator struct {
	service routing.Service
	seq     *sequence.Sequencer
	view    Viewport
}

// New creates an Orchestrator. view may be nil.
func New(service routing.Service, seq *sequence.Sequencer, view Viewport) *Orchestrator {
	return &Orchestrator{service: service, seq: seq, view: view}
}

// ComputeRoute requests a driving route and summarizes the first route's
// first leg. It returns ErrStale, with no side effects, when token is no
// longer the latest issued once the provider answers.
func (o *Orchestrator) ComputeRoute(ctx context.Context, origin models.Coordinates, dest models.Facility, token sequence.Token) (_ *models.RouteSummary, err error) {
	defer obs.Time(ctx, fmt.Sprintf("route facility=%d token=%d", dest.ID, token))(&err)

	resp, err := o.service.Route(ctx, origin, dest.GetCoords(), routing.ModeDriving)

	if !o.seq.IsCurrent(token) {
		log.Printf("[ROUTE] Discarding stale response: facility=%d token=%d latest=%d", dest.ID, token, o.seq.Latest())
		return nil, ErrStale
	}

	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Routes) == 0 {
		return nil, &Error{Reason: models.ErrorNoRoute, Message: msgNoRoute}
	}

	first := resp.Routes[0]
	summary := &models.RouteSummary{
		FacilityID:     dest.ID,
		FacilityName:   dest.Name,
		DistanceText:   Placeholder,
		DurationText:   Placeholder,
		DistanceMeters: first.DistanceMeters,
		DurationSecs:   first.DurationSecs,
		Path: &models.RoutePath{
			Geometry: first.Geometry,
			Bounds:   first.Bounds,
		},
	}
	if len(first.Legs) > 0 {
		leg := first.Legs[0]
		if leg.DistanceText != "" {
			summary.DistanceText = leg.DistanceText
		}
		if leg.DurationText != "" {
			summary.DurationText = leg.DurationText
		}
	}

	if o.view != nil && first.Bounds != nil {
		o.view.FitBounds(token, *first.Bounds)
	}

	log.Printf("[ROUTE] Route ready: facility=%d distance=%s duration=%s token=%d",
		dest.ID, summary.DistanceText, summary.DurationText, token)
	return summary, nil
}

func classify(err error) *Error {
	var rerr *routing.ErrRoutingFailed
	if errors.As(err, &rerr) && rerr.NoRoute() {
		return &Error{Reason: models.ErrorNoRoute, Message: msgNoRoute, Err: err}
	}
	return &Error{Reason: models.ErrorProviderError, Message: msgProviderError, Err: err}
}
