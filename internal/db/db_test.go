package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"appointment-service/internal/models"
)

func setup(t *testing.T) (*DB, string) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set")
	}
	ctx := context.Background()
	d, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(d.Close)
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	owner := "test-" + uuid.NewString()[:8] + "@example.com"
	t.Cleanup(func() {
		for _, table := range []string{"appointments", "employees", "reminder_settings", "scheduled_reminders", "notifications"} {
			_, _ = d.Pool.Exec(ctx, "DELETE FROM "+table+" WHERE owner = $1", owner)
		}
	})
	return d, owner
}

func TestAppointmentLifecycle(t *testing.T) {
	d, owner := setup(t)
	ctx := context.Background()
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	created, err := d.CreateAppointment(ctx, models.Appointment{
		Owner:    owner,
		Title:    "Consultation",
		Start:    start,
		End:      start.Add(time.Hour),
		Contacts: []models.Contact{{ID: "c-1", Name: "Ali", Phone: "+60123456789"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Status != models.AppointmentConfirmed {
		t.Fatalf("created = %+v", created)
	}

	title := "Follow-up"
	updated, err := d.UpdateAppointment(ctx, owner, created.ID, models.AppointmentPatch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != title || len(updated.Contacts) != 1 {
		t.Errorf("updated = %+v", updated)
	}

	badEnd := start.Add(-time.Hour)
	if _, err := d.UpdateAppointment(ctx, owner, created.ID, models.AppointmentPatch{End: &badEnd}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	if err := d.MarkNotificationSent(ctx, owner, created.ID); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetAppointment(ctx, owner, created.ID)
	if err != nil || !got.NotificationSent {
		t.Errorf("GetAppointment = %+v, %v", got, err)
	}

	if _, err := d.GetAppointment(ctx, "someone-else", created.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("other owner err = %v, want ErrNotFound", err)
	}
	if err := d.DeleteAppointment(ctx, owner, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := d.DeleteAppointment(ctx, owner, created.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestReminderSettingsRoundTrip(t *testing.T) {
	d, owner := setup(t)
	ctx := context.Background()

	if _, found, err := d.GetReminderRules(ctx, owner); err != nil || found {
		t.Fatalf("fresh owner: found=%v err=%v", found, err)
	}
	rules := []models.ReminderRule{{ID: "r1", Enabled: true, Amount: 2, Unit: models.UnitHours, Direction: models.DirectionBefore, RecipientType: models.RecipientBoth, Template: "x"}}
	if err := d.SaveReminderRules(ctx, owner, rules); err != nil {
		t.Fatal(err)
	}
	got, found, err := d.GetReminderRules(ctx, owner)
	if err != nil || !found || len(got) != 1 || got[0].Unit != models.UnitHours {
		t.Errorf("GetReminderRules = %+v, %v, %v", got, found, err)
	}
}

func TestScheduledReminderClaimIsExclusive(t *testing.T) {
	d, owner := setup(t)
	ctx := context.Background()
	trigger := time.Now().Add(-time.Minute).Truncate(time.Second)

	r := models.ScheduledReminder{
		Owner:          owner,
		AppointmentID:  uuid.NewString(),
		RecipientClass: models.RecipientContacts,
		Message:        "hi",
		Recipients:     []models.Recipient{{Class: models.RecipientContacts, ID: "c-1", Phone: "+60123456789"}},
		TriggerTime:    trigger,
	}
	saved, created, err := d.CreateScheduledReminder(ctx, r)
	if err != nil || !created {
		t.Fatalf("create: %v, created=%v", err, created)
	}
	again, created, err := d.CreateScheduledReminder(ctx, r)
	if err != nil || created || again.ID != saved.ID {
		t.Fatalf("duplicate create: id=%s created=%v err=%v", again.ID, created, err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.ClaimScheduledReminder(ctx, saved.ID, time.Now())
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case !errors.Is(err, models.ErrAlreadyClaimed):
				t.Errorf("claim: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("claims won = %d, want 1", wins)
	}

	pending, err := d.ListScheduledReminders(ctx, owner, true)
	if err != nil || len(pending) != 0 {
		t.Errorf("pending = %d, err = %v", len(pending), err)
	}
}

func TestNotificationLog(t *testing.T) {
	d, owner := setup(t)
	ctx := context.Background()

	err := d.CreateNotification(ctx, models.Notification{
		CreatedAt: time.Now(),
		Owner:     owner,
		Kind:      models.KindNewAppointment,
		Class:     models.RecipientEmployees,
		Channel:   "sms",
		Body:      "New appointment",
		Status:    models.DeliveryFailed,
		Error:     "twilio 503",
	})
	if err != nil {
		t.Fatal(err)
	}
	list, err := d.ListNotifications(ctx, owner, 10)
	if err != nil || len(list) != 1 || list[0].ReminderID != "" || list[0].Status != models.DeliveryFailed {
		t.Errorf("ListNotifications = %+v, %v", list, err)
	}
}
