// Package mail builds the vendor-application email draft as a mailto link.
package mail

import (
	"errors"
	"strings"

	"vendorplan/internal/model"
	"vendorplan/internal/textutil"
)

// ErrNoOrganizerEmail means the event offers no email action.
var ErrNoOrganizerEmail = errors.New("event has no organizer email")

// Sender describes the vendor applying. Empty fields fall back to
// placeholders the user edits in their mail client.
type Sender struct {
	Business  string
	Products  string
	Signature string
}

// Draft is a composed message before encoding.
type Draft struct {
	To      string
	Subject string
	Body    string
}

// Compose fills the application template for ev.
func (s Sender) Compose(ev model.Event) (Draft, error) {
	if !ev.HasOrganizerEmail() {
		return Draft{}, ErrNoOrganizerEmail
	}
	business := orDefault(s.Business, "[Your Business]")
	products := orDefault(s.Products, "[Your products]")
	signature := orDefault(s.Signature, "[Your Name]")

	body := strings.Join([]string{
		"Hello,",
		"",
		"I'd like to apply as a vendor for " + ev.Name + " at " + ev.Venue + " in " + ev.City + ", " + ev.State + ".",
		"",
		"Business: " + business,
		"Products: " + products,
		"",
		"Could you please share:",
		"• Vendor fee and what's included",
		"• Table size and whether power is available",
		"• Estimated attendance and typical audience",
		"• Any licensing or insurance requirements",
		"",
		"Thank you,",
		signature,
		business,
		"",
	}, "\n")

	return Draft{
		To:      strings.TrimSpace(ev.OrganizerEmail),
		Subject: "Vendor Application – " + ev.Name + " – " + business,
		Body:    body,
	}, nil
}

// URL renders the draft as mailto:<to>?subject=…&body=… with spaces as %20.
func (d Draft) URL() string {
	return "mailto:" + textutil.EncodeURIComponent(d.To) +
		"?subject=" + textutil.EncodeURIComponent(d.Subject) +
		"&body=" + textutil.EncodeURIComponent(d.Body)
}

// MailTo composes and encodes in one step.
func (s Sender) MailTo(ev model.Event) (string, error) {
	d, err := s.Compose(ev)
	if err != nil {
		return "", err
	}
	return d.URL(), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
