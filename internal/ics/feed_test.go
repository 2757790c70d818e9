package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorplan/internal/model"
)

func feed(vevents ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Feed//EN",
	}
	for _, v := range vevents {
		lines = append(lines, strings.Split(strings.TrimSpace(v), "\n")...)
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

const craftFair = `BEGIN:VEVENT
UID:craft-1
DTSTAMP:20250101T000000Z
DTSTART:20250405T130000Z
DTEND:20250405T200000Z
SUMMARY:Valdosta Craft Fair
LOCATION:Civic Center, 1 Main St, Valdosta, GA 31601
CATEGORIES:Craft Fair
STATUS:CONFIRMED
ORGANIZER:mailto:fair@example.org
URL:https://example.org/craft
GEO:30.83;-83.28
DESCRIPTION:Indoor booths
END:VEVENT`

const weeklyMarket = `BEGIN:VEVENT
UID:market-1
DTSTAMP:20250101T000000Z
DTSTART:20250405T120000Z
DTEND:20250405T160000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250412T120000Z
SUMMARY:Downtown Farmers Market
LOCATION:Ponce de Leon Park, Tallahassee
CATEGORIES:farmers market
END:VEVENT`

const marketOverride = `BEGIN:VEVENT
UID:market-1
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250419T120000Z
DTSTART:20250419T140000Z
DTEND:20250419T180000Z
SUMMARY:Downtown Farmers Market (late start)
LOCATION:Ponce de Leon Park, Tallahassee
END:VEVENT`

func window() ExpandConfig {
	return ExpandConfig{
		RangeStart: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseFeedMapsProperties(t *testing.T) {
	events, err := ParseFeed(feed(craftFair), window())
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, model.ID("craft-1"), ev.ID)
	assert.Equal(t, "Valdosta Craft Fair", ev.Name)
	assert.Equal(t, "Civic Center", ev.Venue)
	assert.Equal(t, "1 Main St", ev.Address)
	assert.Equal(t, "Valdosta", ev.City)
	assert.Equal(t, "GA", ev.State)
	assert.Equal(t, model.TypeCraftFair, ev.Type)
	assert.Equal(t, "confirmed", ev.Status)
	assert.Equal(t, "fair@example.org", ev.OrganizerEmail)
	assert.Equal(t, "https://example.org/craft", ev.ApplicationURL)
	assert.Equal(t, "Indoor booths", ev.Notes)
	require.True(t, ev.HasCoordinates())
	assert.InDelta(t, 30.83, *ev.Latitude, 1e-9)
	assert.InDelta(t, -83.28, *ev.Longitude, 1e-9)
	require.NotNil(t, ev.Start)
	assert.True(t, ev.Start.Equal(time.Date(2025, 4, 5, 13, 0, 0, 0, time.UTC)))
}

func TestParseFeedExpandsRecurrence(t *testing.T) {
	events, err := ParseFeed(feed(weeklyMarket, marketOverride), window())
	require.NoError(t, err)

	ids := make([]model.ID, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	// COUNT=4 minus one EXDATE.
	assert.Equal(t, []model.ID{"market-1-20250405", "market-1-20250419", "market-1-20250426"}, ids)

	assert.Equal(t, model.TypeFarmersMarket, events[0].Type)
	for _, ev := range events {
		assert.Equal(t, "Tallahassee", ev.City)
	}

	late := events[1]
	assert.Equal(t, "Downtown Farmers Market (late start)", late.Name)
	assert.True(t, late.Start.Equal(time.Date(2025, 4, 19, 14, 0, 0, 0, time.UTC)))
	assert.True(t, late.End.Equal(time.Date(2025, 4, 19, 18, 0, 0, 0, time.UTC)))

	last := events[2]
	assert.True(t, last.End.Sub(*last.Start) == 4*time.Hour)
}

func TestParseFeedSkipsBrokenEvents(t *testing.T) {
	noUID := `BEGIN:VEVENT
DTSTART:20250405T130000Z
SUMMARY:No uid
END:VEVENT`

	events, err := ParseFeed(feed(noUID, craftFair), window())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ID("craft-1"), events[0].ID)
}

func TestParseFeedEmpty(t *testing.T) {
	_, err := ParseFeed(nil, window())
	assert.Error(t, err)
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	cfg := window()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	_, err := ExpandOccurrences(nil, cfg)
	assert.Error(t, err)
}

func TestTypeFromCategory(t *testing.T) {
	assert.Equal(t, model.TypeCampus, typeFromCategory("Campus,Outdoor"))
	assert.Equal(t, model.TypeFestival, typeFromCategory("FESTIVAL"))
	assert.Equal(t, model.TypeOther, typeFromCategory("flea"))
}
