package ics

import (
	"errors"
	"strings"
	"time"

	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

const (
	// ContentType is the MIME type of exported payloads.
	ContentType = "text/calendar; charset=utf-8"

	defaultProdID    = "-//Vendor Planner//Market Logistics Planner//EN"
	defaultUIDDomain = "vendorplan"
	fileExt          = ".ics"
)

// ErrNoStart is returned when an event has no start time to export.
var ErrNoStart = errors.New("event has no start time")

// Exporter builds calendar files for single events or a whole route.
type Exporter struct {
	// ProdID is written as PRODID.
	ProdID string
	// UIDDomain is appended to the event id to form the UID.
	UIDDomain string
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// File is a finished calendar payload ready to be handed to a download.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Export renders one event as a VCALENDAR with a single VEVENT.
func (x Exporter) Export(ev model.Event) (File, error) {
	if ev.Start == nil {
		return File{}, ErrNoStart
	}
	lines := x.header()
	lines = append(lines, x.vevent(ev)...)
	lines = append(lines, "END:VCALENDAR")

	return File{
		Name:        Filename(ev.Name),
		ContentType: ContentType,
		Body:        joinLines(lines),
	}, nil
}

// ExportAll renders every event with a start into one VCALENDAR. Events
// without a start are skipped; if none remain ErrNoStart is returned.
func (x Exporter) ExportAll(name string, events []model.Event) (File, error) {
	lines := x.header()
	n := 0
	for _, ev := range events {
		if ev.Start == nil {
			continue
		}
		lines = append(lines, x.vevent(ev)...)
		n++
	}
	if n == 0 {
		return File{}, ErrNoStart
	}
	lines = append(lines, "END:VCALENDAR")

	return File{
		Name:        Filename(name),
		ContentType: ContentType,
		Body:        joinLines(lines),
	}, nil
}

// UID derives the stable calendar identifier of an event.
func (x Exporter) UID(id model.ID) string {
	domain := x.UIDDomain
	if domain == "" {
		domain = defaultUIDDomain
	}
	return string(id) + "@" + domain
}

// Filename turns an event name into a download file name.
func Filename(name string) string {
	slug := textutil.Slugify(name)
	if slug == "" {
		slug = "event"
	}
	return slug + fileExt
}

// Location is the single-line place text used for LOCATION.
func Location(ev model.Event) string {
	return textutil.JoinNonEmpty(", ",
		ev.Venue,
		textutil.JoinNonEmpty(" ", ev.Address, ev.City),
		ev.State,
	)
}

// Description is the multi-line DESCRIPTION text before escaping.
func Description(ev model.Event) string {
	lines := []string{
		"Vendor event: " + ev.Name,
		"Venue: " + ev.Venue,
		"Location: " + textutil.JoinNonEmpty(", ", textutil.JoinNonEmpty(" ", ev.Address, ev.City), ev.State),
	}
	if ev.FeeDescription != "" {
		lines = append(lines, "Fee: "+ev.FeeDescription)
	}
	if ev.ApplicationURL != "" {
		lines = append(lines, "Application: "+ev.ApplicationURL)
	}
	if ev.Notes != "" {
		lines = append(lines, "Notes: "+ev.Notes)
	}
	return strings.Join(lines, "\n")
}

func (x Exporter) header() []string {
	prodID := x.ProdID
	if prodID == "" {
		prodID = defaultProdID
	}
	return []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
	}
}

func (x Exporter) vevent(ev model.Event) []string {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	end := ev.End
	if end == nil {
		end = ev.Start
	}
	return []string{
		"BEGIN:VEVENT",
		"UID:" + x.UID(ev.ID),
		"DTSTAMP:" + textutil.FormatUTCBasic(now()),
		"DTSTART:" + textutil.FormatUTCBasic(*ev.Start),
		"DTEND:" + textutil.FormatUTCBasic(*end),
		"SUMMARY:" + textutil.EscapeText(ev.Name),
		"LOCATION:" + textutil.EscapeText(Location(ev)),
		"DESCRIPTION:" + textutil.EscapeText(Description(ev)),
		"END:VEVENT",
	}
}

func joinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}
