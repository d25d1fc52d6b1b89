package reconcile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"appointment-service/internal/matcher"
	"appointment-service/internal/models"
)

var slot = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func ownAppointment() models.Appointment {
	return models.Appointment{
		ID:       "appt-1",
		Owner:    "owner@example.com",
		Title:    "Consultation",
		Start:    slot,
		End:      slot.Add(time.Hour),
		Contacts: []models.Contact{{ID: "c-1", Name: "Ali", Phone: "+60123456789"}},
	}
}

func externalEvent(id, title string) models.ExternalEvent {
	return models.ExternalEvent{
		ID:    id,
		Title: title,
		Start: models.TimeAt(slot),
		End:   models.TimeAt(slot.Add(time.Hour)),
	}
}

func TestReconcileSuppressesDuplicates(t *testing.T) {
	f := NewFilter(matcher.Default(time.UTC))
	feedsIn := []FeedEvents{
		{FeedID: "a@example.com", Events: []models.ExternalEvent{
			externalEvent("dup", "Consultation - Ali +60123456789"),
			externalEvent("other", "Dentist - Bob +60199999999"),
		}},
		{FeedID: "b@example.com", Events: []models.ExternalEvent{
			externalEvent("dup-again", "Walk-in 0123456789"),
		}},
	}

	res := f.Reconcile([]models.Appointment{ownAppointment()}, feedsIn)

	if res.FailOpen {
		t.Error("FailOpen should be false with appointments present")
	}
	if res.Suppressed() != 2 {
		t.Errorf("suppressed = %d, want 2", res.Suppressed())
	}

	var got []string
	for _, item := range res.Display {
		if item.Source == models.SourceOwn {
			got = append(got, "own:"+item.Appointment.ID)
		} else {
			got = append(got, item.Event.FeedID+":"+item.Event.ID)
		}
	}
	if diff := cmp.Diff([]string{"own:appt-1", "a@example.com:other"}, got); diff != "" {
		t.Errorf("display (-want +got):\n%s", diff)
	}
}

func TestReconcileWithoutAppointmentsShowsEverything(t *testing.T) {
	f := NewFilter(matcher.Default(time.UTC))
	events := []models.ExternalEvent{
		externalEvent("1", "Consultation - Ali +60123456789"),
		externalEvent("2", "Anything"),
	}
	res := f.Reconcile(nil, []FeedEvents{{FeedID: "a@example.com", Events: events}})

	if !res.FailOpen {
		t.Error("expected FailOpen")
	}
	if res.Suppressed() != 0 || len(res.Display) != 2 {
		t.Errorf("suppressed = %d, display = %d", res.Suppressed(), len(res.Display))
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	f := NewFilter(matcher.Default(time.UTC))
	events := []models.ExternalEvent{externalEvent("1", "x")}
	appts := []models.Appointment{ownAppointment()}

	res := f.Reconcile(appts, []FeedEvents{{FeedID: "a@example.com", Events: events}})

	if events[0].FeedID != "" {
		t.Error("input event was modified")
	}
	res.Display[0].Appointment.Title = "changed"
	if appts[0].Title != "Consultation" {
		t.Error("display item aliases the input appointment")
	}
}
