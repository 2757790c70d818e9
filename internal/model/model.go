package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ID identifies an event within the loaded collection. Sources may carry it
// as a JSON number or string; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("event id must be a string or number")
	}
	*id = ID(n.String())
	return nil
}

// EventType is the kind of market. Unknown values from the source are
// kept verbatim.
type EventType string

const (
	TypeCampus        EventType = "campus"
	TypeFarmersMarket EventType = "farmersMarket"
	TypeCraftFair     EventType = "craftFair"
	TypeFestival      EventType = "festival"
	TypeOther         EventType = "other"
)

// Label is the human-readable badge text.
func (t EventType) Label() string {
	switch t {
	case TypeCampus:
		return "Campus"
	case TypeFarmersMarket:
		return "Farmers market"
	case TypeCraftFair:
		return "Craft fair"
	case TypeFestival:
		return "Festival"
	case TypeOther:
		return "Other"
	default:
		return string(t)
	}
}

// Event is one vendor/market occurrence. Loaded once and never mutated by
// filtering or rendering.
type Event struct {
	ID      ID
	Name    string
	Venue   string
	Address string
	City    string
	State   string

	// Latitude/Longitude are nil when the source had no coordinates.
	Latitude  *float64
	Longitude *float64

	// Start/End are nil when missing or unparseable.
	Start *time.Time
	End   *time.Time

	Type           EventType
	Status         string
	FeeDescription string
	Notes          string
	OrganizerEmail string
	ApplicationURL string
}

// HasCoordinates reports whether the event can be placed on the map. A
// zero latitude or longitude is how the source data marks a missing
// coordinate, so it counts as absent.
func (e Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil && *e.Latitude != 0 && *e.Longitude != 0
}

// HasOrganizerEmail reports whether an email draft can be offered.
func (e Event) HasOrganizerEmail() bool {
	return strings.TrimSpace(e.OrganizerEmail) != ""
}

// Record is the wire shape of one entry in the events JSON file. Start and
// End stay as text until the loader parses them.
type Record struct {
	ID             ID       `json:"id"`
	Name           string   `json:"name"`
	Venue          string   `json:"venue"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Latitude       Coordinate `json:"latitude"`
	Longitude      Coordinate `json:"longitude"`
	Start          Text       `json:"start"`
	End            Text       `json:"end"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	FeeDescription string     `json:"feeDescription"`
	Notes          string     `json:"notes"`
	OrganizerEmail string     `json:"organizerEmail"`
	ApplicationURL string     `json:"applicationURL"`
}

// Text is a JSON string field. Any other JSON value decodes as "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(s)
	return nil
}

// Coordinate is a JSON number or numeric string. Anything else, including
// null, NaN and infinities, decodes as absent.
type Coordinate struct {
	value *float64
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	c.value = nil

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if n, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	c.value = &n
	return nil
}

// Float returns the coordinate, or nil when absent.
func (c Coordinate) Float() *float64 {
	return c.value
}
