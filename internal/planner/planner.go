// Package planner holds the single planner session: the loaded collection,
// the filter criteria and the route selection, plus the view derived from
// them.
//
// Every change goes through one update step that recomputes the filtered
// subset and re-renders the whole view. A mutex makes each step run to
// completion before the next one starts, so concurrent HTTP requests see
// the same one-at-a-time behaviour a single UI thread would give.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"vendorplan/internal/filter"
	"vendorplan/internal/ics"
	appLog "vendorplan/internal/log"
	"vendorplan/internal/mail"
	"vendorplan/internal/model"
	"vendorplan/internal/route"
	"vendorplan/internal/source"
)

// State is the planner lifecycle.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoaded   State = "loaded"
	StateFiltered State = "filtered"
	// StateFailed is entered when the first load fails.
	StateFailed State = "failed"
)

// ErrUnknownEvent is returned for ids not in the collection.
var ErrUnknownEvent = errors.New("unknown event")

// Options configures a Planner.
type Options struct {
	// Location reads bound text and formats dates for display.
	Location   *time.Location
	NullStart  filter.NullStart
	FitPadding float64

	Exporter ics.Exporter
	Sender   mail.Sender
	Router   route.Builder
}

// Planner is the application-state object.
type Planner struct {
	// loadMu serializes Load so reloads apply in the order they started.
	loadMu sync.Mutex
	mu     sync.Mutex

	opts   Options
	engine filter.Engine

	state   State
	loadErr error

	events    []model.Event
	index     map[model.ID]int
	criteria  filter.Criteria
	selection route.Selection

	filtered []model.Event
	view     View
}

// New returns an unloaded planner.
func New(opts Options) *Planner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	p := &Planner{
		opts: opts,
		engine: filter.Engine{
			Location:  opts.Location,
			NullStart: opts.NullStart,
		},
		state: StateUnloaded,
		index: map[model.ID]int{},
	}
	p.mu.Lock()
	p.rerender()
	p.mu.Unlock()
	return p
}

// Load fetches the collection and replaces the current one. A failed first
// load moves the planner to StateFailed; a failed reload keeps the previous
// collection and reports the error in the view. Concurrent calls run one
// after another; View and the other operations stay available meanwhile.
func (p *Planner) Load(ctx context.Context, loader source.Loader) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	events, err := loader.Load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.loadErr = err
		if p.events == nil {
			p.state = StateFailed
		}
		p.rerender()
		return err
	}

	if events == nil {
		events = []model.Event{}
	}
	p.events = events
	p.index = make(map[model.ID]int, len(events))
	for i, ev := range events {
		p.index[ev.ID] = i
	}
	p.loadErr = nil
	p.state = StateLoaded

	if n := p.selection.Retain(func(id model.ID) bool {
		_, ok := p.index[id]
		return ok
	}); n > 0 {
		appLog.Info("route selection pruned after reload", "removed", n)
	}

	p.update()
	return nil
}

// SetCriteria replaces the filter criteria.
func (p *Planner) SetCriteria(c filter.Criteria) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.criteria = c
	p.update()
	return p.view
}

// ClearCriteria resets every filter control.
func (p *Planner) ClearCriteria() View {
	return p.SetCriteria(filter.Criteria{})
}

// ToggleSelection adds or removes an event from the route.
func (p *Planner) ToggleSelection(id model.ID) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[id]; !ok {
		return p.view, ErrUnknownEvent
	}
	p.selection.Toggle(id)
	p.update()
	return p.view, nil
}

// View returns the current render description.
func (p *Planner) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// State returns the lifecycle state.
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Event looks up one event of the collection.
func (p *Planner) Event(id model.ID) (model.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(id)
}

// Route builds the directions link for the selected events in collection
// order. It returns route.ErrEmptyRoute when nothing is selected.
func (p *Planner) Route() (string, error) {
	p.mu.Lock()
	stops := p.selection.Stops(p.events)
	p.mu.Unlock()
	return p.opts.Router.URL(stops)
}

// CalendarFile exports one event.
func (p *Planner) CalendarFile(id model.ID) (ics.File, error) {
	ev, ok := p.Event(id)
	if !ok {
		return ics.File{}, ErrUnknownEvent
	}
	return p.opts.Exporter.Export(ev)
}

// RouteCalendarFile exports every selected event into one calendar.
func (p *Planner) RouteCalendarFile() (ics.File, error) {
	p.mu.Lock()
	stops := p.selection.Stops(p.events)
	p.mu.Unlock()
	if len(stops) == 0 {
		return ics.File{}, route.ErrEmptyRoute
	}
	return p.opts.Exporter.ExportAll("market route", stops)
}

// MailTo builds the application email link for one event.
func (p *Planner) MailTo(id model.ID) (string, error) {
	ev, ok := p.Event(id)
	if !ok {
		return "", ErrUnknownEvent
	}
	return p.opts.Sender.MailTo(ev)
}

func (p *Planner) lookup(id model.ID) (model.Event, bool) {
	i, ok := p.index[id]
	if !ok {
		return model.Event{}, false
	}
	return p.events[i], true
}

// update is the single recompute step. Callers hold p.mu.
func (p *Planner) update() {
	if p.state == StateUnloaded || p.state == StateFailed {
		p.rerender()
		return
	}
	p.filtered = p.engine.Apply(p.events, p.criteria)
	p.state = StateFiltered
	p.rerender()
	appLog.Debug("planner updated",
		"total", len(p.events),
		"matching", len(p.filtered),
		"selected", p.selection.Len(),
	)
}

func (p *Planner) rerender() {
	p.view = render(renderInput{
		state:      p.state,
		loadErr:    p.loadErr,
		criteria:   p.criteria,
		all:        p.events,
		filtered:   p.filtered,
		selection:  &p.selection,
		engine:     p.engine,
		loc:        p.opts.Location,
		fitPadding: p.opts.FitPadding,
	})
}
