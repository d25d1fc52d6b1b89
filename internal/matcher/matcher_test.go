package matcher

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"appointment-service/internal/models"
)

var base = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func appointment(title string, contacts ...models.Contact) models.Appointment {
	return models.Appointment{
		ID:       "appt-1",
		Title:    title,
		Start:    base,
		End:      base.Add(time.Hour),
		Contacts: contacts,
	}
}

func event(title, description string, start, end time.Time) models.ExternalEvent {
	return models.ExternalEvent{
		FeedID:      "clinic@example.com",
		Summary:     title,
		Description: description,
		Start:       models.TimeAt(start),
		End:         models.TimeAt(end),
	}
}

func TestIsDuplicate(t *testing.T) {
	m := Default(time.UTC)
	phoneContact := models.Contact{ID: "c-1", Name: "Ali", Phone: "+60123456789"}

	tests := []struct {
		name  string
		appt  models.Appointment
		event models.ExternalEvent
		want  bool
	}{
		{
			name:  "same phone same slot",
			appt:  appointment("Consultation", phoneContact),
			event: event("Consultation - Ali +60123456789", "", base, base.Add(time.Hour)),
			want:  true,
		},
		{
			name:  "start skew over tolerance",
			appt:  appointment("Consultation", phoneContact),
			event: event("Consultation - Ali +60123456789", "", base.Add(61*time.Minute), base.Add(time.Hour)),
			want:  false,
		},
		{
			name:  "end skew over tolerance",
			appt:  appointment("Consultation", phoneContact),
			event: event("Consultation - Ali +60123456789", "", base, base.Add(2*time.Hour+time.Minute)),
			want:  false,
		},
		{
			name:  "skew exactly at tolerance",
			appt:  appointment("Consultation", phoneContact),
			event: event("Walk-in 0123456789", "", base.Add(time.Hour), base.Add(2*time.Hour)),
			want:  true,
		},
		{
			name:  "country code prefix differs",
			appt:  appointment("Checkup", models.Contact{ID: "c-2", Phone: "60123456789"}),
			event: event("Checkup", "call 0123456789", base, base.Add(time.Hour)),
			want:  true,
		},
		{
			name:  "phone taken from appointment title",
			appt:  appointment("Ahmad +60 12-345 6789"),
			event: event("Booking", "Contact: Someone (+60123456789)", base, base.Add(time.Hour)),
			want:  true,
		},
		{
			name:  "name match ignores case and punctuation",
			appt:  appointment("Follow-up", models.Contact{ID: "c-3", Name: "Jane O'Neil"}),
			event: event("Follow-up - JANE ONEIL", "", base, base.Add(time.Hour)),
			want:  true,
		},
		{
			name:  "short name matches longer name by substring",
			appt:  appointment("Session", models.Contact{ID: "c-4", Name: "Ann"}),
			event: event("Meeting - Joanna", "", base, base.Add(time.Hour)),
			want:  true,
		},
		{
			name:  "names under three letters are ignored",
			appt:  appointment("Consult", models.Contact{ID: "c-5", Name: "Al"}),
			event: event("Sync - Al", "", base, base.Add(time.Hour)),
			want:  false,
		},
		{
			name:  "different people same slot",
			appt:  appointment("Consultation", phoneContact),
			event: event("Dentist - Bob +60199999999", "", base, base.Add(time.Hour)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsDuplicate(tt.appt, tt.event); got != tt.want {
				t.Errorf("IsDuplicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeOverlapBadDates(t *testing.T) {
	m := Default(time.UTC)
	appt := appointment("Consultation", models.Contact{Phone: "+60123456789"})

	tests := []struct {
		name  string
		start models.EventTime
		end   models.EventTime
	}{
		{"missing start", models.EventTime{}, models.TimeAt(base.Add(time.Hour))},
		{"garbage start", models.EventTime{Value: "next tuesday"}, models.TimeAt(base.Add(time.Hour))},
		{"garbage date object", models.TimeAt(base), models.EventTime{Date: "10/03/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := models.ExternalEvent{Title: "Consultation - Ali +60123456789", Start: tt.start, End: tt.end}
			if m.TimeOverlap(appt, ev) {
				t.Error("expected no overlap")
			}
			if m.IsDuplicate(appt, ev) {
				t.Error("expected no duplicate")
			}
		})
	}

	zero := models.Appointment{Contacts: appt.Contacts}
	if m.TimeOverlap(zero, event("x", "", base, base.Add(time.Hour))) {
		t.Error("appointment without times must not overlap")
	}
}

func TestTimeOverlapEncodings(t *testing.T) {
	m := Default(time.UTC)
	appt := appointment("Consultation")

	withOffset := models.ExternalEvent{
		Start: models.EventTime{DateTime: "2025-03-10T18:00:00+08:00"},
		End:   models.EventTime{DateTime: "2025-03-10T19:00:00+08:00"},
	}
	if !m.TimeOverlap(appt, withOffset) {
		t.Error("dateTime with offset should overlap")
	}

	literal := models.ExternalEvent{
		Start: models.EventTime{Value: "2025-03-10T10:30:00"},
		End:   models.EventTime{Value: "2025-03-10T11:30:00"},
	}
	if !m.TimeOverlap(appt, literal) {
		t.Error("literal local time should overlap")
	}

	allDay := models.ExternalEvent{
		Start: models.EventTime{Date: "2025-03-10"},
		End:   models.EventTime{Date: "2025-03-11"},
	}
	if m.TimeOverlap(appt, allDay) {
		t.Error("all-day event should not overlap a one hour slot")
	}
}

func TestPhoneExtractors(t *testing.T) {
	tests := []struct {
		name    string
		extract PhoneExtractor
		text    string
		want    []string
	}{
		{"country dashed", CountryPhones, "call 012-345 6789 now", []string{"012-345 6789"}},
		{"country with plus", CountryPhones, "Ali +60123456789", []string{"+60123456789"}},
		{"international", InternationalPhones, "ring +447911123456", []string{"+447911123456"}},
		{"formatted parentheses", FormattedPhones, "office (03) 7956 1234", []string{"(03) 7956 1234"}},
		{"formatted ignores dates", FormattedPhones, "2025-03-10 at 10:00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.extract(tt.text), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("unexpected matches (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNameExtractors(t *testing.T) {
	tests := []struct {
		name        string
		extract     NameExtractor
		title, desc string
		want        []string
	}{
		{"own system suffix", OwnSystemSuffix, "Consultation - Jane Doe +60123456789", "", []string{"Jane Doe"}},
		{"own system suffix absent", OwnSystemSuffix, "Consultation", "", nil},
		{"contact with detail", ContactWithDetail, "", "Contact: Mei Ling (0123456789)", []string{"Mei Ling"}},
		{"contact label", ContactLabel, "Contact: Mei Ling", "", []string{"Mei Ling"}},
		{"dash suffix", DashSuffix, "Haircut - Siti", "", []string{"Siti"}},
		{"name before phone", NameBeforePhone, "Kumar +60123456789", "", []string{"Kumar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.extract(tt.title, tt.desc), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("unexpected names (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventCandidatesUnion(t *testing.T) {
	m := Default(time.UTC)
	ev := models.ExternalEvent{
		Title:       "Checkup - Lee",
		Description: "Ali 0123456789\nContact: Tan Ah Kow (walk-in)\n+60 12-345 6789 or +447911123456",
	}
	got := m.EventCandidates(ev)

	wantPhones := []string{"0123456789", "447911123456", "60123456789"}
	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff(wantPhones, got.Phones, sorted); diff != "" {
		t.Errorf("phones (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lee", "tanahkow"}, got.Names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestAppointmentCandidates(t *testing.T) {
	appt := appointment("Rahman +60 19-876 5432",
		models.Contact{ID: "0123456789", Name: "Rahman"},
		models.Contact{ID: "c-9", Name: "R", Phone: "12"},
	)
	got := AppointmentCandidates(appt)
	want := Candidates{
		Phones: []string{"0123456789", "60198765432"},
		Names:  []string{"rahman"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
}

func TestPhoneMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"60123456789", "0123456789", true},
		{"6512345678901", "12345678901", true},
		{"0123456789", "0199999999", false},
		{"123456789", "9123456789", true},
	}
	for _, tt := range tests {
		if got := PhoneMatch([]string{tt.a}, []string{tt.b}); got != tt.want {
			t.Errorf("PhoneMatch(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsDuplicateConcurrent(t *testing.T) {
	m := Default(time.UTC)
	appt := appointment("Consultation", models.Contact{Phone: "+60123456789"})
	ev := event("Consultation - Ali +60123456789", "", base, base.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.IsDuplicate(appt, ev) {
				t.Error("expected duplicate")
			}
		}()
	}
	wg.Wait()
}
