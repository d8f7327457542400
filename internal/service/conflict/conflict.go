// Package conflict shapes availability conflicts for a caller that wants to
// pick replacement furniture per day and retry. It holds no state: every
// retry goes through the orchestrator again, which re-checks availability.
package conflict

import (
	"slices"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

// DateGroup is every conflict of one calendar date.
type DateGroup struct {
	Date               time.Time              `json:"date"`
	FurnitureIDs       []int64                `json:"furniture_ids"`
	ReservationIDs     []int64                `json:"reservation_ids"`
	Conflicts          []domain.Conflict      `json:"conflicts"`
	Alternatives       []domain.FurnitureItem `json:"alternatives,omitempty"`
	BlockedByHoldsOnly bool                   `json:"blocked_by_holds_only"`
}

// GroupByDate splits m into per-date groups ordered by date.
func GroupByDate(m domain.ConflictMap) []DateGroup {
	byDate := map[string]*DateGroup{}
	var keys []string

	for _, c := range m.List() {
		k := domain.DateKey(c.Date)
		g, ok := byDate[k]
		if !ok {
			g = &DateGroup{Date: domain.Day(c.Date), BlockedByHoldsOnly: true}
			byDate[k] = g
			keys = append(keys, k)
		}

		g.Conflicts = append(g.Conflicts, c)
		if !slices.Contains(g.FurnitureIDs, c.FurnitureID) {
			g.FurnitureIDs = append(g.FurnitureIDs, c.FurnitureID)
		}
		if c.Kind == domain.ConflictReservation {
			g.BlockedByHoldsOnly = false
			if !slices.Contains(g.ReservationIDs, c.ReservationID) {
				g.ReservationIDs = append(g.ReservationIDs, c.ReservationID)
			}
		}
	}

	slices.Sort(keys)

	out := make([]DateGroup, 0, len(keys))
	for _, k := range keys {
		g := byDate[k]
		slices.Sort(g.FurnitureIDs)
		slices.Sort(g.ReservationIDs)
		out = append(out, *g)
	}

	return out
}

// AttachAlternatives fills every group with the free furniture of its date.
// free is called once per group.
func AttachAlternatives(groups []DateGroup, free func(date time.Time) ([]domain.FurnitureItem, error)) error {
	for i := range groups {
		items, err := free(groups[i].Date)
		if err != nil {
			return err
		}
		groups[i].Alternatives = items
	}
	return nil
}

// Resolution maps a date key to the full furniture set to use on that date.
type Resolution map[string][]int64

func (r Resolution) Set(date time.Time, furnitureIDs []int64) {
	r[domain.DateKey(date)] = domain.UniqueIDs(furnitureIDs)
}

// Merge overlays r onto the per-date furniture of a previous attempt and
// returns a new map; neither input is modified. Dates without a replacement
// keep their earlier furniture.
func Merge(previous map[string][]int64, r Resolution) map[string][]int64 {
	out := make(map[string][]int64, len(previous)+len(r))
	for k, ids := range previous {
		out[k] = slices.Clone(ids)
	}
	for k, ids := range r {
		if len(ids) > 0 {
			out[k] = slices.Clone(ids)
		}
	}
	return out
}

// Pending lists the conflicting dates r does not replace, or replaces with
// a set that still contains conflicting furniture. An empty result does not
// mean the retry will succeed: the slots may have been taken since.
func Pending(groups []DateGroup, r Resolution) []time.Time {
	var out []time.Time
	for _, g := range groups {
		ids, ok := r[domain.DateKey(g.Date)]
		if !ok || len(ids) == 0 {
			out = append(out, g.Date)
			continue
		}
		for _, id := range g.FurnitureIDs {
			if slices.Contains(ids, id) {
				out = append(out, g.Date)
				break
			}
		}
	}
	return out
}
