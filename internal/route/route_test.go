package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorplan/internal/model"
)

func collection() []model.Event {
	return []model.Event{
		{ID: "1", Venue: "Quad", City: "Gainesville", State: "FL"},
		{ID: "2", Venue: "Town Square", City: "Tallahassee", State: "FL"},
		{ID: "3", Venue: "Fairgrounds", City: "Macon", State: "GA"},
		{ID: "4", Venue: "Pier", City: "Savannah", State: "GA"},
		{ID: "5", Venue: "Civic Center", Address: "1 Main St", City: "Valdosta", State: "GA"},
	}
}

func TestToggleIsInvolution(t *testing.T) {
	var s Selection
	s.Toggle("3")

	assert.True(t, s.Toggle("1"))
	assert.False(t, s.Toggle("1"))
	assert.False(t, s.Has("1"))
	assert.True(t, s.Has("3"), "toggling one id leaves others alone")
	assert.Equal(t, 1, s.Len())
}

func TestStopsFollowCollectionOrder(t *testing.T) {
	var s Selection
	s.Toggle("5")
	s.Toggle("2")

	stops := s.Stops(collection())
	require.Len(t, stops, 2)
	assert.Equal(t, model.ID("2"), stops[0].ID)
	assert.Equal(t, model.ID("5"), stops[1].ID)

	url, err := Builder{}.URL(stops)
	require.NoError(t, err)
	assert.Equal(t,
		"https://www.google.com/maps/dir/Town%20Square%20Tallahassee%20FL/Civic%20Center%201%20Main%20St%20Valdosta%20GA",
		url)
}

func TestEmptyRoute(t *testing.T) {
	var s Selection
	url, err := Builder{}.URL(s.Stops(collection()))
	assert.ErrorIs(t, err, ErrEmptyRoute)
	assert.Empty(t, url)
	assert.Equal(t, "route has no stops", err.Error())
}

func TestCustomBaseURL(t *testing.T) {
	url, err := Builder{BaseURL: "https://maps.example.org/dir"}.URL(collection()[:1])
	require.NoError(t, err)
	assert.Equal(t, "https://maps.example.org/dir/Quad%20Gainesville%20FL", url)
}

func TestRetain(t *testing.T) {
	var s Selection
	s.Toggle("1")
	s.Toggle("9")

	removed := s.Retain(func(id model.ID) bool { return id != "9" })
	assert.Equal(t, 1, removed)

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has("1"))
	assert.False(t, s.Has("9"))
}
