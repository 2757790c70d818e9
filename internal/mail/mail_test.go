package mail

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorplan/internal/model"
)

func event() model.Event {
	return model.Event{
		ID:             "3",
		Name:           "Fall Fest & Crafts",
		Venue:          "Cascades Park",
		City:           "Tallahassee",
		State:          "FL",
		OrganizerEmail: " vendors+fall@example.org ",
	}
}

func TestMailToRoundTrip(t *testing.T) {
	s := Sender{Business: "Jay Steel Jewelry", Products: "Stainless steel jewelry", Signature: "Jay"}

	raw, err := s.MailTo(event())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "mailto:vendors%2Bfall%40example.org?"))
	assert.NotContains(t, raw, "+", "spaces must be %20, plus signs escaped")
	assert.Contains(t, raw, "&body=Hello%2C%0A%0AI'd%20like%20to%20apply")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "Vendor Application – Fall Fest & Crafts – Jay Steel Jewelry", q.Get("subject"))

	body := q.Get("body")
	assert.Contains(t, body, "apply as a vendor for Fall Fest & Crafts at Cascades Park in Tallahassee, FL.")
	assert.Contains(t, body, "Business: Jay Steel Jewelry\nProducts: Stainless steel jewelry")
	assert.True(t, strings.HasSuffix(body, "Thank you,\nJay\nJay Steel Jewelry\n"))
}

func TestComposeUsesPlaceholders(t *testing.T) {
	d, err := Sender{}.Compose(event())
	require.NoError(t, err)

	assert.Equal(t, "vendors+fall@example.org", d.To)
	assert.Equal(t, "Vendor Application – Fall Fest & Crafts – [Your Business]", d.Subject)
	assert.Contains(t, d.Body, "[Your Name]")
}

func TestComposeWithoutEmail(t *testing.T) {
	ev := event()
	ev.OrganizerEmail = "   "

	_, err := Sender{}.MailTo(ev)
	assert.ErrorIs(t, err, ErrNoOrganizerEmail)
}
