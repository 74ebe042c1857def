package distance

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"impound-lot-finder/internal/models"
)

// Rank annotates every facility with its distance from ref and orders them
// nearest first. With a nil ref the input order is kept and distances are nil.
// Equal distances keep their input order.
func Rank(facilities []models.Facility, ref *models.Coordinates) []models.RankedFacility {
	if ref == nil {
		return lo.Map(facilities, func(f models.Facility, _ int) models.RankedFacility {
			return models.RankedFacility{Facility: f}
		})
	}

	origin := *ref
	ranked := lo.Map(facilities, func(f models.Facility, _ int) models.RankedFacility {
		km := HaversineKm(origin, f.GetCoords())
		return models.RankedFacility{Facility: f, DistanceKm: &km}
	})

	slices.SortStableFunc(ranked, func(a, b models.RankedFacility) int {
		return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
	})

	return ranked
}

// Nearest returns the closest facility of a ranked list
func Nearest(ranked []models.RankedFacility) (models.RankedFacility, bool) {
	if len(ranked) == 0 || ranked[0].DistanceKm == nil {
		return models.RankedFacility{}, false
	}
	return ranked[0], true
}
