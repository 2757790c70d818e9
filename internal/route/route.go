// Package route tracks which events the user wants to visit and turns them
// into a multi-stop directions link.
package route

import (
	"errors"
	"strings"

	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

// DefaultBaseURL is the multi-stop directions endpoint. Each waypoint is
// appended as one path segment.
const DefaultBaseURL = "https://www.google.com/maps/dir/"

// ErrEmptyRoute is returned when no event is selected.
var ErrEmptyRoute = errors.New("route has no stops")

// EmptyRouteMessage is shown to the user in place of an empty route.
const EmptyRouteMessage = "Add at least one event to the route first."

// Selection is the set of event ids added to the route. The zero value is
// an empty, usable set.
type Selection struct {
	ids map[model.ID]struct{}
}

// Toggle adds id if absent and removes it otherwise. It reports whether id
// is selected afterwards.
func (s *Selection) Toggle(id model.ID) bool {
	if s.ids == nil {
		s.ids = make(map[model.ID]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection) Has(id model.ID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// Retain drops ids that keep reports false for, returning how many were
// removed.
func (s *Selection) Retain(keep func(model.ID) bool) int {
	n := 0
	for id := range s.ids {
		if !keep(id) {
			delete(s.ids, id)
			n++
		}
	}
	return n
}

// Stops returns the selected events in collection order.
func (s *Selection) Stops(all []model.Event) []model.Event {
	out := make([]model.Event, 0, s.Len())
	for _, ev := range all {
		if s.Has(ev.ID) {
			out = append(out, ev)
		}
	}
	return out
}

// Builder renders directions links.
type Builder struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
}

// Waypoint is the address text used for one stop.
func Waypoint(ev model.Event) string {
	return textutil.JoinNonEmpty(" ", ev.Venue, ev.Address, ev.City, ev.State)
}

// URL builds the directions link for stops in the given order.
func (b Builder) URL(stops []model.Event) (string, error) {
	if len(stops) == 0 {
		return "", ErrEmptyRoute
	}
	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parts := make([]string, 0, len(stops))
	for _, ev := range stops {
		parts = append(parts, textutil.EncodeURIComponent(Waypoint(ev)))
	}
	return base + strings.Join(parts, "/"), nil
}
