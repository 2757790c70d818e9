// Package source loads the event collection from the configured JSON file,
// JSON URL or iCalendar feed.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"vendorplan/internal/config"
	"vendorplan/internal/ics"
	appLog "vendorplan/internal/log"
	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

// Loader produces the full event collection.
type Loader interface {
	Load(ctx context.Context) ([]model.Event, error)
}

// Source is the Loader built from config.
type Source struct {
	cfg     config.SourceConfig
	loc     *time.Location
	fetcher *Fetcher
	now     func() time.Time
}

// New builds a Source. loc is used for date text without an offset.
func New(cfg config.SourceConfig, loc *time.Location) *Source {
	return &Source{
		cfg:     cfg,
		loc:     loc,
		fetcher: NewFetcher(cfg.CacheDir, time.Duration(cfg.TimeoutSeconds)*time.Second),
		now:     time.Now,
	}
}

// Describe is a log-safe description of where events come from.
func (s *Source) Describe() string {
	if s.cfg.URL != "" {
		return s.cfg.Kind + " " + redactURL(s.cfg.URL)
	}
	return s.cfg.Kind + " " + s.cfg.Path
}

// Load reads and decodes the collection.
func (s *Source) Load(ctx context.Context) ([]model.Event, error) {
	body, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var events []model.Event
	switch s.cfg.Kind {
	case config.SourceICS:
		now := s.now()
		horizon := s.cfg.HorizonDays
		if horizon <= 0 {
			horizon = 180
		}
		events, err = ics.ParseFeed(body, ics.ExpandConfig{
			RangeStart: now.AddDate(0, 0, -1),
			RangeEnd:   now.AddDate(0, 0, horizon),
		})
	default:
		events, err = DecodeEvents(body, s.loc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	return dedupe(events), nil
}

func (s *Source) read(ctx context.Context) ([]byte, error) {
	if s.cfg.URL != "" {
		res, err := s.fetcher.Fetch(ctx, s.cfg.URL)
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	}
	return os.ReadFile(s.cfg.Path)
}

// DecodeEvents parses a JSON array of event records. Start/End text is
// parsed leniently. Records that do not decode, or lack an id or name, are
// skipped; only a body that is not a JSON array is an error.
func DecodeEvents(body []byte, loc *time.Location) ([]model.Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(raw))
	for i, msg := range raw {
		var rec model.Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			appLog.Warn("event record skipped", "index", i, "reason", err.Error())
			continue
		}
		if rec.ID == "" || strings.TrimSpace(rec.Name) == "" {
			appLog.Warn("event record skipped", "index", i, "reason", "missing id or name")
			continue
		}
		events = append(events, fromRecord(rec, loc))
	}
	return events, nil
}

func fromRecord(rec model.Record, loc *time.Location) model.Event {
	typ := model.EventType(strings.TrimSpace(rec.Type))
	if typ == "" {
		typ = model.TypeOther
	}
	return model.Event{
		ID:             rec.ID,
		Name:           rec.Name,
		Venue:          rec.Venue,
		Address:        rec.Address,
		City:           rec.City,
		State:          rec.State,
		Latitude:       rec.Latitude.Float(),
		Longitude:      rec.Longitude.Float(),
		Start:          textutil.ParseDate(string(rec.Start), loc),
		End:            textutil.ParseDate(string(rec.End), loc),
		Type:           typ,
		Status:         rec.Status,
		FeeDescription: rec.FeeDescription,
		Notes:          rec.Notes,
		OrganizerEmail: rec.OrganizerEmail,
		ApplicationURL: rec.ApplicationURL,
	}
}

// dedupe keeps the first event for every id.
func dedupe(events []model.Event) []model.Event {
	seen := make(map[model.ID]bool, len(events))
	out := events[:0]
	for _, ev := range events {
		if seen[ev.ID] {
			appLog.Warn("duplicate event id dropped", "id", ev.ID)
			continue
		}
		seen[ev.ID] = true
		out = append(out, ev)
	}
	return out
}
