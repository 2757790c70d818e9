package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "vendorplan/internal/log"
	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

// feedEvent is a VEVENT read from an iCalendar feed, before recurrence
// expansion.
type feedEvent struct {
	UID   string
	Event model.Event

	AllDay     bool
	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, set on overrides
}

// ParseFeed reads an iCalendar feed and returns vendor events, expanding
// recurring VEVENTs within cfg's window.
//
// VEVENT properties map onto events as follows:
//   - UID -> id (occurrences of recurring events get "<uid>-<yyyymmdd>")
//   - SUMMARY -> name, DESCRIPTION -> notes, URL -> application URL
//   - LOCATION -> venue/address/city/state ("Venue, Address, City, ST")
//   - CATEGORIES -> type, STATUS -> status, ORGANIZER -> organizer email
//   - GEO -> latitude/longitude
func ParseFeed(body []byte, cfg ExpandConfig) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	parsed := make([]feedEvent, 0)
	for _, comp := range cal.Events() {
		fe, perr := parseVEvent(comp)
		if perr != nil {
			// Skip this VEVENT and keep going.
			appLog.Warn("ics vevent skipped", "reason", perr.Error())
			continue
		}
		parsed = append(parsed, fe)
	}

	result, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		return nil, err
	}
	appLog.Info("ics feed parsed",
		"vevents", len(parsed),
		"events", len(result.Events),
		"truncated", len(result.TruncatedUIDs),
	)
	return result.Events, nil
}

func parseVEvent(ve *ical.VEvent) (feedEvent, error) {
	var out feedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	ev := model.Event{
		ID:     model.ID(out.UID),
		Type:   model.TypeOther,
		Status: "scheduled",
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Name = textutil.UnescapeText(p.Value)
	}
	if ev.Name == "" {
		return out, errors.New("missing SUMMARY")
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Notes = textutil.UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		splitLocation(textutil.UnescapeText(p.Value), &ev)
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		ev.ApplicationURL = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		ev.Type = typeFromCategory(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && p.Value != "" {
		ev.Status = strings.ToLower(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		ev.OrganizerEmail = organizerEmail(p.Value)
	}
	if p := ve.GetProperty("GEO"); p != nil {
		ev.Latitude, ev.Longitude = parseGeo(p.Value)
	}

	// GetStartAt/GetEndAt resolve TZID and DATE forms for us.
	if start, err := ve.GetStartAt(); err == nil && !start.IsZero() {
		ev.Start = &start
	} else {
		return out, errors.New("missing or invalid DTSTART")
	}
	if end, err := ve.GetEndAt(); err == nil && !end.IsZero() {
		ev.End = &end
	}

	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, ev.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, ev.Start.Location()); err == nil {
			out.Recurrence = &t
		}
	}

	out.Event = ev
	return out, nil
}

// splitLocation reads "Venue, Address, City, ST 32301" style text.
// Fewer parts fill venue first, then city.
func splitLocation(loc string, ev *model.Event) {
	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) >= 3:
		last := strings.Fields(parts[len(parts)-1])
		if len(last) > 0 {
			ev.State = last[0]
		}
		ev.City = parts[len(parts)-2]
		ev.Venue = parts[0]
		ev.Address = strings.Join(parts[1:len(parts)-2], ", ")
	case len(parts) == 2:
		ev.Venue = parts[0]
		ev.City = parts[1]
	default:
		ev.Venue = parts[0]
	}
}

func typeFromCategory(v string) model.EventType {
	first := strings.Split(v, ",")[0]
	key := strings.NewReplacer(" ", "", "-", "", "_", "", "'", "").Replace(strings.ToLower(first))
	switch key {
	case "campus":
		return model.TypeCampus
	case "farmersmarket", "farmermarket":
		return model.TypeFarmersMarket
	case "craftfair", "craftshow":
		return model.TypeCraftFair
	case "festival":
		return model.TypeFestival
	default:
		return model.TypeOther
	}
}

func organizerEmail(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return v
}

func parseGeo(v string) (*float64, *float64) {
	parts := strings.Split(v, ";")
	if len(parts) != 2 {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}

// parseICSTime parses a bare DATE or DATE-TIME value as found in EXDATE and
// RECURRENCE-ID. Floating values are read in loc, the zone of DTSTART.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
