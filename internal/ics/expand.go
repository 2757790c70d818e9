package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "vendorplan/internal/log"
	"vendorplan/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurring feed entries become events.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences of recurring entries.
	// Non-recurring entries are kept regardless of the window; date
	// bounds are the filter's job.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each expansion. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps expanded events and the UIDs that hit the cap.
type ExpandResult struct {
	Events        []model.Event
	TruncatedUIDs []string
}

// ExpandOccurrences turns feed entries into events. Recurring entries
// (RRULE, minus EXDATE, with RECURRENCE-ID overrides applied) produce one
// event per occurrence with id "<uid>-<yyyymmdd>". Output keeps feed order,
// occurrences in time order.
func ExpandOccurrences(entries []feedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]feedEvent)
	for _, fe := range entries {
		if fe.Recurrence != nil {
			overridesByUID[fe.UID] = append(overridesByUID[fe.UID], fe)
		}
	}

	for _, fe := range entries {
		if fe.Recurrence != nil {
			continue
		}
		if fe.RawRRule == "" {
			result.Events = append(result.Events, fe.Event)
			continue
		}

		events, hitCap := expandRecurring(fe, overridesByUID[fe.UID], cfg)
		result.Events = append(result.Events, events...)
		if hitCap {
			result.TruncatedUIDs = append(result.TruncatedUIDs, fe.UID)
			appLog.Warn("expand: truncated occurrences for UID",
				"uid", fe.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func expandRecurring(fe feedEvent, overrides []feedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	out := make([]model.Event, 0)
	start := *fe.Event.Start

	r, err := rrule.StrToRRule(fe.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", fe.UID, "rrule", fe.RawRRule)
		return out, false
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range fe.ExDates {
		set.ExDate(ex.In(start.Location()))
	}

	times := set.Between(cfg.RangeStart.In(start.Location()), cfg.RangeEnd.In(start.Location()), true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := time.Duration(0)
	if fe.Event.End != nil {
		dur = fe.Event.End.Sub(start)
	}

	for _, occStart := range times {
		occ := fe.Event
		id := model.ID(fe.UID + "-" + occStart.Format("20060102"))
		occEnd := occStart.Add(dur)
		if fe.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		}

		if o, ok := findOverride(overrides, occStart); ok {
			occ = o.Event
			occStart = *o.Event.Start
			occEnd = occStart.Add(dur)
			if o.Event.End != nil {
				occEnd = *o.Event.End
			}
		}

		s, e := occStart, occEnd
		occ.Start = &s
		if fe.Event.End != nil || fe.AllDay {
			occ.End = &e
		} else {
			occ.End = nil
		}
		occ.ID = id
		out = append(out, occ)
	}

	return out, hitCap
}

// findOverride finds the override whose RECURRENCE-ID equals the
// occurrence start.
func findOverride(overrides []feedEvent, occStart time.Time) (feedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(occStart) {
			return ov, true
		}
	}
	return feedEvent{}, false
}
