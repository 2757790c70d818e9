// Package filter reduces the event collection to what the current form
// controls ask for.
package filter

import (
	"sort"
	"strings"
	"time"

	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

// NullStart decides where events without a start time sort.
type NullStart string

const (
	// NullStartFirst sorts unknown starts before every dated event, as if
	// they started at the zero time.
	NullStartFirst NullStart = "first"
	// NullStartLast sorts unknown starts after every dated event.
	NullStartLast NullStart = "last"
)

// ParseNullStart maps a config value to a policy, defaulting to first.
func ParseNullStart(s string) NullStart {
	if NullStart(strings.ToLower(strings.TrimSpace(s))) == NullStartLast {
		return NullStartLast
	}
	return NullStartFirst
}

// Criteria mirrors the filter form. Empty fields impose no constraint.
// StartBound and EndBound are raw control text; unparseable text means no
// bound.
type Criteria struct {
	State      string `json:"state"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Search     string `json:"search"`
	StartBound string `json:"startBound"`
	EndBound   string `json:"endBound"`
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Engine applies criteria. Location is used to read bound text that has no
// UTC offset.
type Engine struct {
	Location  *time.Location
	NullStart NullStart
}

// Apply returns the events matching every supplied criterion, in
// collection order. The input slice and its events are not modified.
func (e Engine) Apply(events []model.Event, c Criteria) []model.Event {
	m := e.matcher(c)
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if m.match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Sort returns a copy of events ordered by start, ties keeping their
// relative order. Events without a start are placed per e.NullStart.
func (e Engine) Sort(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return e.less(out[i], out[j])
	})
	return out
}

func (e Engine) less(a, b model.Event) bool {
	switch {
	case a.Start == nil && b.Start == nil:
		return false
	case a.Start == nil:
		return e.NullStart != NullStartLast
	case b.Start == nil:
		return e.NullStart == NullStartLast
	default:
		return a.Start.Before(*b.Start)
	}
}

type matcher struct {
	state, typ, status string
	search             string
	startBound         *time.Time
	endBound           *time.Time
}

func (e Engine) matcher(c Criteria) matcher {
	return matcher{
		state:      c.State,
		typ:        c.Type,
		status:     c.Status,
		search:     strings.ToLower(strings.TrimSpace(c.Search)),
		startBound: textutil.ParseDate(c.StartBound, e.Location),
		endBound:   textutil.ParseDate(c.EndBound, e.Location),
	}
}

func (m matcher) match(ev model.Event) bool {
	if m.state != "" && ev.State != m.state {
		return false
	}
	if m.typ != "" && string(ev.Type) != m.typ {
		return false
	}
	if m.status != "" && ev.Status != m.status {
		return false
	}
	if m.startBound != nil && ev.Start != nil && ev.Start.Before(*m.startBound) {
		return false
	}
	if m.endBound != nil && ev.Start != nil && ev.Start.After(*m.endBound) {
		return false
	}
	if m.search != "" && !strings.Contains(haystack(ev), m.search) {
		return false
	}
	return true
}

func haystack(ev model.Event) string {
	return strings.ToLower(strings.Join([]string{ev.Name, ev.Venue, ev.City, ev.State, ev.Notes}, " "))
}
