package planner

import (
	"math"
	"sort"
	"time"

	"vendorplan/internal/filter"
	"vendorplan/internal/model"
	"vendorplan/internal/route"
	"vendorplan/internal/textutil"
)

// NoMatchesMessage is shown in place of the card list when nothing matches.
const NoMatchesMessage = "No events match your filters."

// View is the complete render description of the planner. A rendering
// layer replaces whatever it showed before with this.
type View struct {
	State    State           `json:"state"`
	Error    string          `json:"error,omitempty"`
	Notice   string          `json:"notice,omitempty"`
	Criteria filter.Criteria `json:"criteria"`
	Options  FilterOptions   `json:"options"`

	Cards    []Card   `json:"cards"`
	Markers  []Marker `json:"markers"`
	Viewport *Bounds  `json:"viewport,omitempty"`

	Total         int `json:"total"`
	Matching      int `json:"matching"`
	SelectedCount int `json:"selectedCount"`
}

// Card is one entry of the event list.
type Card struct {
	ID        model.ID `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	TypeLabel string   `json:"typeLabel"`
	Status    string   `json:"status"`
	Venue     string   `json:"venue"`
	Place     string   `json:"place"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Fee       string   `json:"fee,omitempty"`
	Notes     string   `json:"notes,omitempty"`

	CanCalendar bool   `json:"canCalendar"`
	CanEmail    bool   `json:"canEmail"`
	InRoute     bool   `json:"inRoute"`
	RouteLabel  string `json:"routeLabel"`
	ApplyURL    string `json:"applyURL,omitempty"`
}

// Marker is one map pin.
type Marker struct {
	ID    model.ID `json:"id"`
	Lat   float64  `json:"lat"`
	Lng   float64  `json:"lng"`
	Title string   `json:"title"`
	Venue string   `json:"venue"`
	Place string   `json:"place"`
	When  string   `json:"when"`
}

// Bounds is a lat/lng box the map should fit.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// FilterOptions lists the values the select controls offer.
type FilterOptions struct {
	States   []Option `json:"states"`
	Types    []Option `json:"types"`
	Statuses []Option `json:"statuses"`
}

// Option is one select entry.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type renderInput struct {
	state      State
	loadErr    error
	criteria   filter.Criteria
	all        []model.Event
	filtered   []model.Event
	selection  *route.Selection
	engine     filter.Engine
	loc        *time.Location
	fitPadding float64
}

// render builds the view from scratch. It never looks at a previous view.
func render(in renderInput) View {
	v := View{
		State:         in.state,
		Criteria:      in.criteria,
		Options:       filterOptions(in.all),
		Cards:         []Card{},
		Markers:       []Marker{},
		Total:         len(in.all),
		Matching:      len(in.filtered),
		SelectedCount: in.selection.Len(),
	}
	if in.loadErr != nil {
		v.Error = "Could not load events: " + in.loadErr.Error()
	}
	if in.state == StateFiltered && len(in.filtered) == 0 {
		v.Notice = NoMatchesMessage
	}

	for _, ev := range in.engine.Sort(in.filtered) {
		v.Cards = append(v.Cards, card(ev, in.selection.Has(ev.ID), in.loc))
	}

	for _, ev := range in.filtered {
		if !ev.HasCoordinates() {
			continue
		}
		v.Markers = append(v.Markers, Marker{
			ID:    ev.ID,
			Lat:   *ev.Latitude,
			Lng:   *ev.Longitude,
			Title: ev.Name,
			Venue: ev.Venue,
			Place: textutil.JoinNonEmpty(", ", ev.City, ev.State),
			When:  textutil.JoinNonEmpty(" – ", textutil.FormatDate(ev.Start, in.loc), textutil.FormatTime(ev.Start, in.loc)),
		})
	}
	if len(in.filtered) > 0 {
		v.Viewport = fitBounds(v.Markers, in.fitPadding)
	}
	return v
}

func card(ev model.Event, inRoute bool, loc *time.Location) Card {
	c := Card{
		ID:          ev.ID,
		Name:        ev.Name,
		Type:        string(ev.Type),
		TypeLabel:   ev.Type.Label(),
		Status:      textutil.Capitalize(ev.Status),
		Venue:       ev.Venue,
		Place:       textutil.JoinNonEmpty(" ", ev.Address, textutil.JoinNonEmpty(", ", ev.City, ev.State)),
		Date:        textutil.FormatDate(ev.Start, loc),
		Time:        textutil.JoinNonEmpty("–", textutil.FormatTime(ev.Start, loc), textutil.FormatTime(ev.End, loc)),
		Fee:         ev.FeeDescription,
		Notes:       ev.Notes,
		CanCalendar: ev.Start != nil,
		CanEmail:    ev.HasOrganizerEmail(),
		InRoute:     inRoute,
		RouteLabel:  "Add to route",
		ApplyURL:    ev.ApplicationURL,
	}
	if inRoute {
		c.RouteLabel = "In route (click to remove)"
	}
	return c
}

// fitBounds returns the marker bounding box grown by pad of its height and
// width on each side, or nil when there are no markers.
func fitBounds(markers []Marker, pad float64) *Bounds {
	if len(markers) == 0 {
		return nil
	}
	b := Bounds{South: math.Inf(1), West: math.Inf(1), North: math.Inf(-1), East: math.Inf(-1)}
	for _, m := range markers {
		b.South = math.Min(b.South, m.Lat)
		b.North = math.Max(b.North, m.Lat)
		b.West = math.Min(b.West, m.Lng)
		b.East = math.Max(b.East, m.Lng)
	}
	dLat := (b.North - b.South) * pad
	dLng := (b.East - b.West) * pad
	b.South -= dLat
	b.North += dLat
	b.West -= dLng
	b.East += dLng
	return &b
}

func filterOptions(all []model.Event) FilterOptions {
	states := map[string]bool{}
	types := map[model.EventType]bool{}
	statuses := map[string]bool{}
	for _, ev := range all {
		if ev.State != "" {
			states[ev.State] = true
		}
		types[ev.Type] = true
		if ev.Status != "" {
			statuses[ev.Status] = true
		}
	}

	opts := FilterOptions{States: []Option{}, Types: []Option{}, Statuses: []Option{}}
	for s := range states {
		opts.States = append(opts.States, Option{Value: s, Label: s})
	}
	for t := range types {
		opts.Types = append(opts.Types, Option{Value: string(t), Label: t.Label()})
	}
	for s := range statuses {
		opts.Statuses = append(opts.Statuses, Option{Value: s, Label: textutil.Capitalize(s)})
	}
	for _, list := range [][]Option{opts.States, opts.Types, opts.Statuses} {
		sort.Slice(list, func(i, j int) bool { return list[i].Label < list[j].Label })
	}
	return opts
}
