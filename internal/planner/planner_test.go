package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorplan/internal/filter"
	"vendorplan/internal/ics"
	"vendorplan/internal/model"
	"vendorplan/internal/route"
	"vendorplan/internal/textutil"
)

type stubLoader struct {
	events []model.Event
	err    error
}

func (s stubLoader) Load(context.Context) ([]model.Event, error) {
	return s.events, s.err
}

func coord(v float64) *float64 { return &v }

func at(s string) *time.Time { return textutil.ParseDate(s, time.UTC) }

func events() []model.Event {
	return []model.Event{
		{ID: "1", Name: "Campus Day", Venue: "Quad", City: "Gainesville", State: "FL", Type: model.TypeCampus, Status: "open",
			Start: at("2025-06-01T11:00:00"), Latitude: coord(29.6), Longitude: coord(-82.3)},
		{ID: "2", Name: "Spring Market", Venue: "Town Square", City: "Tallahassee", State: "FL", Type: model.TypeFarmersMarket, Status: "open",
			Start: at("2025-04-01T09:00:00"), End: at("2025-04-01T15:00:00"), Latitude: coord(30.4), Longitude: coord(-84.3),
			OrganizerEmail: "market@example.org", ApplicationURL: "https://example.org/apply"},
		{ID: "3", Name: "Peach Craft Fair", Venue: "Fairgrounds", City: "Macon", State: "GA", Type: model.TypeCraftFair, Status: "waitlist",
			Start: at("2025-05-10T09:00:00"), Latitude: coord(32.8), Longitude: coord(-83.6)},
		{ID: "4", Name: "Mystery Festival", City: "Savannah", State: "GA", Type: model.TypeFestival, Status: "tentative"},
		{ID: "5", Name: "River Fest", Venue: "Pier", City: "Savannah", State: "GA", Type: model.TypeFestival, Status: "open",
			Start: at("2025-07-04T10:00:00"), Latitude: coord(32.1), Longitude: coord(-81.1)},
	}
}

func loaded(t *testing.T) *Planner {
	t.Helper()
	p := New(Options{
		Location:   time.UTC,
		FitPadding: 0.3,
		Exporter:   ics.Exporter{Now: func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }},
	})
	require.NoError(t, p.Load(context.Background(), stubLoader{events: events()}))
	return p
}

func cardIDs(v View) []model.ID {
	out := make([]model.ID, 0, len(v.Cards))
	for _, c := range v.Cards {
		out = append(out, c.ID)
	}
	return out
}

func TestLifecycle(t *testing.T) {
	p := New(Options{})
	assert.Equal(t, StateUnloaded, p.State())
	assert.Empty(t, p.View().Cards)
	assert.Empty(t, p.View().Notice)

	require.NoError(t, p.Load(context.Background(), stubLoader{events: events()}))
	assert.Equal(t, StateFiltered, p.State())
	assert.Equal(t, 5, p.View().Total)
}

func TestFirstLoadFailureIsVisible(t *testing.T) {
	p := New(Options{})
	err := p.Load(context.Background(), stubLoader{err: errors.New("connection refused")})
	require.Error(t, err)

	v := p.View()
	assert.Equal(t, StateFailed, v.State)
	assert.Equal(t, "Could not load events: connection refused", v.Error)

	require.NoError(t, p.Load(context.Background(), stubLoader{events: events()}))
	assert.Equal(t, StateFiltered, p.State())
	assert.Empty(t, p.View().Error)
}

func TestReloadFailureKeepsCollection(t *testing.T) {
	p := loaded(t)
	err := p.Load(context.Background(), stubLoader{err: errors.New("timeout")})
	require.Error(t, err)

	v := p.View()
	assert.Equal(t, StateFiltered, v.State)
	assert.Len(t, v.Cards, 5)
	assert.Contains(t, v.Error, "timeout")
}

type blockingLoader struct {
	started chan struct{}
	release chan struct{}
	events  []model.Event
}

func (b blockingLoader) Load(context.Context) ([]model.Event, error) {
	close(b.started)
	<-b.release
	return b.events, nil
}

func TestOverlappingLoadsApplyInOrder(t *testing.T) {
	p := New(Options{Location: time.UTC})
	slow := blockingLoader{started: make(chan struct{}), release: make(chan struct{}), events: events()[:1]}

	slowDone := make(chan error, 1)
	go func() { slowDone <- p.Load(context.Background(), slow) }()
	<-slow.started

	fastDone := make(chan error, 1)
	go func() { fastDone <- p.Load(context.Background(), stubLoader{events: events()}) }()

	// The second load waits for the first one.
	assert.Never(t, func() bool { return len(fastDone) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, StateUnloaded, p.State())

	close(slow.release)
	require.NoError(t, <-slowDone)
	require.NoError(t, <-fastDone)
	assert.Equal(t, 5, p.View().Total)
}

func TestCardsSortedWithUndatedFirst(t *testing.T) {
	v := loaded(t).View()
	assert.Equal(t, []model.ID{"4", "2", "3", "1", "5"}, cardIDs(v))
}

func TestNullStartLastPolicy(t *testing.T) {
	p := New(Options{NullStart: filter.NullStartLast})
	require.NoError(t, p.Load(context.Background(), stubLoader{events: events()}))
	assert.Equal(t, []model.ID{"2", "3", "1", "5", "4"}, cardIDs(p.View()))
}

func TestSetCriteriaRerendersEverything(t *testing.T) {
	p := loaded(t)

	v := p.SetCriteria(filter.Criteria{State: "GA"})
	assert.Equal(t, []model.ID{"4", "3", "5"}, cardIDs(v))
	assert.Len(t, v.Markers, 2, "undated festival has no coordinates")
	assert.Equal(t, 3, v.Matching)
	assert.Equal(t, filter.Criteria{State: "GA"}, v.Criteria)

	v = p.ClearCriteria()
	assert.Len(t, v.Cards, 5)
	assert.Len(t, v.Markers, 4)
}

func TestNoMatches(t *testing.T) {
	v := loaded(t).SetCriteria(filter.Criteria{Search: "nothing like this"})
	assert.Empty(t, v.Cards)
	assert.Empty(t, v.Markers)
	assert.Nil(t, v.Viewport)
	assert.Equal(t, NoMatchesMessage, v.Notice)
}

func TestViewportPadsMarkerBounds(t *testing.T) {
	v := loaded(t).SetCriteria(filter.Criteria{State: "FL"})
	require.NotNil(t, v.Viewport)

	// Lat 29.6..30.4 and lng -84.3..-82.3, each grown by 30% per side.
	assert.InDelta(t, 29.6-0.24, v.Viewport.South, 1e-9)
	assert.InDelta(t, 30.4+0.24, v.Viewport.North, 1e-9)
	assert.InDelta(t, -84.3-0.6, v.Viewport.West, 1e-9)
	assert.InDelta(t, -82.3+0.6, v.Viewport.East, 1e-9)
}

func TestViewportSkippedWithoutMarkers(t *testing.T) {
	v := loaded(t).SetCriteria(filter.Criteria{Search: "mystery"})
	assert.Len(t, v.Cards, 1)
	assert.Nil(t, v.Viewport)
}

func TestZeroCoordinatesHaveNoMarker(t *testing.T) {
	p := New(Options{Location: time.UTC})
	require.NoError(t, p.Load(context.Background(), stubLoader{events: []model.Event{
		{ID: "1", Name: "Null Island Expo", Latitude: coord(0), Longitude: coord(0)},
		{ID: "2", Name: "Equator Fair", Latitude: coord(0), Longitude: coord(-80.1)},
	}}))

	v := p.View()
	assert.Len(t, v.Cards, 2)
	assert.Empty(t, v.Markers)
	assert.Nil(t, v.Viewport)
}

func TestCardContents(t *testing.T) {
	v := loaded(t).SetCriteria(filter.Criteria{Search: "spring"})
	require.Len(t, v.Cards, 1)

	c := v.Cards[0]
	assert.Equal(t, "Farmers market", c.TypeLabel)
	assert.Equal(t, "Open", c.Status)
	assert.Equal(t, "Tallahassee, FL", c.Place)
	assert.Equal(t, "Apr 1, 2025", c.Date)
	assert.Equal(t, "9:00 AM–3:00 PM", c.Time)
	assert.True(t, c.CanCalendar)
	assert.True(t, c.CanEmail)
	assert.Equal(t, "https://example.org/apply", c.ApplyURL)
	assert.Equal(t, "Add to route", c.RouteLabel)

	undated := loaded(t).SetCriteria(filter.Criteria{Search: "mystery"}).Cards[0]
	assert.False(t, undated.CanCalendar)
	assert.False(t, undated.CanEmail)
	assert.Empty(t, undated.Date)
}

func TestFilterOptions(t *testing.T) {
	opts := loaded(t).View().Options
	assert.Equal(t, []Option{{Value: "FL", Label: "FL"}, {Value: "GA", Label: "GA"}}, opts.States)
	assert.Len(t, opts.Types, 4)
	assert.Equal(t, Option{Value: "open", Label: "Open"}, opts.Statuses[0])
}

func TestToggleSelection(t *testing.T) {
	p := loaded(t)

	v, err := p.ToggleSelection("2")
	require.NoError(t, err)
	assert.Equal(t, 1, v.SelectedCount)
	for _, c := range v.Cards {
		if c.ID == "2" {
			assert.True(t, c.InRoute)
			assert.Equal(t, "In route (click to remove)", c.RouteLabel)
		}
	}

	v, err = p.ToggleSelection("2")
	require.NoError(t, err)
	assert.Equal(t, 0, v.SelectedCount)

	_, err = p.ToggleSelection("99")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestRouteUsesCollectionOrder(t *testing.T) {
	p := loaded(t)
	_, err := p.Route()
	assert.ErrorIs(t, err, route.ErrEmptyRoute)

	_, _ = p.ToggleSelection("5")
	_, _ = p.ToggleSelection("2")

	url, err := p.Route()
	require.NoError(t, err)
	assert.Less(t, strings.Index(url, "Town%20Square"), strings.Index(url, "Pier"))
}

func TestSelectionSurvivesFiltering(t *testing.T) {
	p := loaded(t)
	_, _ = p.ToggleSelection("2")
	p.SetCriteria(filter.Criteria{State: "GA"})

	url, err := p.Route()
	require.NoError(t, err)
	assert.Contains(t, url, "Town%20Square")
}

func TestReloadPrunesSelection(t *testing.T) {
	p := loaded(t)
	_, _ = p.ToggleSelection("2")
	_, _ = p.ToggleSelection("3")

	require.NoError(t, p.Load(context.Background(), stubLoader{events: events()[2:]}))
	assert.Equal(t, 1, p.View().SelectedCount)
}

func TestCalendarAndMailActions(t *testing.T) {
	p := loaded(t)

	f, err := p.CalendarFile("2")
	require.NoError(t, err)
	assert.Equal(t, "spring-market.ics", f.Name)
	assert.Contains(t, string(f.Body), "DTSTART:20250401T090000Z")

	_, err = p.CalendarFile("4")
	assert.ErrorIs(t, err, ics.ErrNoStart)
	_, err = p.CalendarFile("nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	link, err := p.MailTo("2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "mailto:market%40example.org?"))

	_, err = p.MailTo("3")
	assert.Error(t, err)
}

func TestRouteCalendarFile(t *testing.T) {
	p := loaded(t)
	_, err := p.RouteCalendarFile()
	assert.ErrorIs(t, err, route.ErrEmptyRoute)

	_, _ = p.ToggleSelection("3")
	_, _ = p.ToggleSelection("2")
	f, err := p.RouteCalendarFile()
	require.NoError(t, err)
	assert.Equal(t, "market-route.ics", f.Name)
	assert.Equal(t, 2, strings.Count(string(f.Body), "BEGIN:VEVENT"))
}

func TestEventsAreNotMutated(t *testing.T) {
	src := events()
	p := New(Options{})
	require.NoError(t, p.Load(context.Background(), stubLoader{events: src}))
	p.SetCriteria(filter.Criteria{State: "FL", Search: "market"})
	_, _ = p.ToggleSelection("2")

	assert.Equal(t, events(), src)
}
