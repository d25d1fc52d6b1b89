// Package matcher decides whether an event pulled from an external calendar
// feed is the same real-world appointment as one held in our own store.
//
// A Matcher is immutable after construction and safe for concurrent use.
package matcher

import (
	"strings"
	"time"

	"appointment-service/internal/models"
)

// DefaultTolerance is the maximum start and end skew between a feed event and
// an appointment for them to count as the same slot.
const DefaultTolerance = 60 * time.Minute

// Candidates are the normalized identity hints of one side of a comparison.
type Candidates struct {
	Phones []string
	Names  []string
}

// Matcher holds the ordered extraction strategies.
type Matcher struct {
	PhoneExtractors []PhoneExtractor
	NameExtractors  []NameExtractor
	Tolerance       time.Duration
	// Location is used for feed times that carry no offset.
	Location *time.Location
}

// Default returns a Matcher with the standard strategy order.
func Default(loc *time.Location) *Matcher {
	return &Matcher{
		PhoneExtractors: []PhoneExtractor{CountryPhones, InternationalPhones, FormattedPhones},
		NameExtractors: []NameExtractor{
			OwnSystemSuffix,
			FirstOf(ContactWithDetail, ContactLabel, DashSuffix, NameBeforePhone),
		},
		Tolerance: DefaultTolerance,
		Location:  loc,
	}
}

// IsDuplicate reports whether ev describes the same appointment as appt:
// the slots must overlap within tolerance and a phone or name must match.
func (m *Matcher) IsDuplicate(appt models.Appointment, ev models.ExternalEvent) bool {
	if !m.TimeOverlap(appt, ev) {
		return false
	}
	a := AppointmentCandidates(appt)
	e := m.EventCandidates(ev)
	if PhoneMatch(a.Phones, e.Phones) {
		return true
	}
	return NameMatch(a.Names, e.Names)
}

// TimeOverlap checks both the start and end skew. Missing or unparseable
// times never overlap.
func (m *Matcher) TimeOverlap(appt models.Appointment, ev models.ExternalEvent) bool {
	if appt.Start.IsZero() || appt.End.IsZero() {
		return false
	}
	start, err := ev.Start.Resolve(m.Location)
	if err != nil {
		return false
	}
	end, err := ev.End.Resolve(m.Location)
	if err != nil {
		return false
	}
	tol := m.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return absDuration(appt.Start.Sub(start)) <= tol && absDuration(appt.End.Sub(end)) <= tol
}

// AppointmentCandidates collects contact phones (or ids when the phone is
// empty), contact names, and the "Name +phone" parts of the title.
func AppointmentCandidates(appt models.Appointment) Candidates {
	var c Candidates
	seenPhones := map[string]bool{}
	seenNames := map[string]bool{}

	for _, contact := range appt.Contacts {
		raw := contact.Phone
		if raw == "" {
			raw = contact.ID
		}
		c.Phones = appendPhone(c.Phones, seenPhones, raw)
	}
	titleName, titlePhone := SplitTrailingPhone(appt.Title)
	if titlePhone != "" {
		c.Phones = appendPhone(c.Phones, seenPhones, titlePhone)
	}

	for _, contact := range appt.Contacts {
		c.Names = appendName(c.Names, seenNames, contact.Name)
	}
	c.Names = appendName(c.Names, seenNames, titleName)
	return c
}

// EventCandidates runs every phone extractor over title and description and
// every name extractor in order.
func (m *Matcher) EventCandidates(ev models.ExternalEvent) Candidates {
	var c Candidates
	seenPhones := map[string]bool{}
	seenNames := map[string]bool{}
	title := ev.Heading()

	for _, extract := range m.PhoneExtractors {
		for _, text := range []string{title, ev.Description} {
			for _, raw := range extract(text) {
				c.Phones = appendPhone(c.Phones, seenPhones, raw)
			}
		}
	}
	for _, extract := range m.NameExtractors {
		for _, raw := range extract(title, ev.Description) {
			c.Names = appendName(c.Names, seenNames, raw)
		}
	}
	return c
}

// PhoneMatch compares normalized phones by their last 8 or last 10 digits, or
// by containment.
func PhoneMatch(a, b []string) bool {
	for _, pa := range a {
		for _, pb := range b {
			if samePhone(pa, pb) {
				return true
			}
		}
	}
	return false
}

func samePhone(a, b string) bool {
	if len(a) < minPhoneDigits || len(b) < minPhoneDigits {
		return false
	}
	if a[len(a)-8:] == b[len(b)-8:] {
		return true
	}
	if len(a) >= 10 && len(b) >= 10 && a[len(a)-10:] == b[len(b)-10:] {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// NameMatch reports whether any pair of names contain one another. Short
// names can therefore match longer unrelated ones.
func NameMatch(a, b []string) bool {
	for _, na := range a {
		for _, nb := range b {
			if na == "" || nb == "" {
				continue
			}
			if strings.Contains(na, nb) || strings.Contains(nb, na) {
				return true
			}
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
