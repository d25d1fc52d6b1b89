package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"appointment-service/internal/models"
)

// memStore is an in-memory ReminderStore, AppointmentStore and DeliveryLog.
type memStore struct {
	mu            sync.Mutex
	rules         map[string][]models.ReminderRule
	staff         []models.Employee
	reminders     map[string]*models.ScheduledReminder
	appointments  map[string]models.Appointment
	notifications []models.Notification
	seq           int
}

func newMemStore() *memStore {
	return &memStore{
		rules:        map[string][]models.ReminderRule{},
		reminders:    map[string]*models.ScheduledReminder{},
		appointments: map[string]models.Appointment{},
	}
}

func (m *memStore) GetReminderRules(_ context.Context, owner string) ([]models.ReminderRule, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[owner]
	return r, ok, nil
}

func (m *memStore) SaveReminderRules(_ context.Context, owner string, rules []models.ReminderRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[owner] = rules
	return nil
}

func (m *memStore) ListEmployees(context.Context, string) ([]models.Employee, error) {
	return m.staff, nil
}

func (m *memStore) CreateScheduledReminder(_ context.Context, r models.ScheduledReminder) (models.ScheduledReminder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reminders {
		if existing.AppointmentID == r.AppointmentID && existing.TriggerTime.Equal(r.TriggerTime) && existing.RecipientClass == r.RecipientClass {
			return *existing, false, nil
		}
	}
	m.seq++
	r.ID = fmt.Sprintf("rem-%d", m.seq)
	m.reminders[r.ID] = &r
	return r, true, nil
}

func (m *memStore) ClaimScheduledReminder(_ context.Context, id string, now time.Time) (models.ScheduledReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.Processed {
		return models.ScheduledReminder{}, models.ErrAlreadyClaimed
	}
	r.Processed = true
	r.ProcessedAt = &now
	return *r, nil
}

func (m *memStore) DuePendingReminders(_ context.Context, now time.Time, limit int) ([]models.ScheduledReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledReminder
	for _, r := range m.reminders {
		if !r.Processed && !r.TriggerTime.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerTime.Before(out[j].TriggerTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) all() []models.ScheduledReminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledReminder
	for _, r := range m.reminders {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerTime.Equal(out[j].TriggerTime) {
			return out[i].RecipientClass < out[j].RecipientClass
		}
		return out[i].TriggerTime.Before(out[j].TriggerTime)
	})
	return out
}

func (m *memStore) CreateNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memStore) ListAppointments(_ context.Context, owner string) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.appointments {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetAppointment(_ context.Context, owner, id string) (models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Owner != owner {
		return models.Appointment{}, models.ErrNotFound
	}
	return a, nil
}

func (m *memStore) CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if a.ID == "" {
		m.mu.Lock()
		m.seq++
		a.ID = fmt.Sprintf("appt-%d", m.seq)
		m.mu.Unlock()
	}
	return m.UpsertAppointment(ctx, a)
}

func (m *memStore) UpsertAppointment(_ context.Context, a models.Appointment) (models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.appointments[a.ID]; ok {
		a.NotificationSent = a.NotificationSent || old.NotificationSent
	}
	m.appointments[a.ID] = a
	return a, nil
}

func (m *memStore) UpdateAppointment(_ context.Context, owner, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Owner != owner {
		return models.Appointment{}, models.ErrNotFound
	}
	patch.Apply(&a)
	m.appointments[id] = a
	return a, nil
}

func (m *memStore) DeleteAppointment(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Owner != owner {
		return models.ErrNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *memStore) MarkNotificationSent(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Owner != owner {
		return models.ErrNotFound
	}
	a.NotificationSent = true
	m.appointments[id] = a
	return nil
}

// fakeGateway records sends and fails for recipient ids in failFor.
type fakeGateway struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []string
	kinds   []string
}

func (g *fakeGateway) Send(_ context.Context, r models.Recipient, _ string, sc models.SendContext) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[r.ID] {
		return fmt.Errorf("sms to %s: %w", r.ID, models.ErrTransientDelivery)
	}
	g.sent = append(g.sent, r.ID)
	g.kinds = append(g.kinds, sc.Kind)
	return nil
}

func (g *fakeGateway) ChannelFor(models.Recipient) string { return "sms" }

func (g *fakeGateway) sentIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]string(nil), g.sent...)
	sort.Strings(out)
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string]int
}

func (n *fakeNotifier) SendToOwner(owner string, _ []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = map[string]int{}
	}
	n.messages[owner]++
}

type fakeObserver struct {
	mu      sync.Mutex
	reloads int
	err     error
}

func (o *fakeObserver) Reload(context.Context, string) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reloads++
	return uint64(o.reloads), o.err
}

var errBoom = errors.New("boom")
