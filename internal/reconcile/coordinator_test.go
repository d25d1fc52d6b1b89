package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"appointment-service/internal/config"
	"appointment-service/internal/feeds"
	"appointment-service/internal/logging"
	"appointment-service/internal/matcher"
	"appointment-service/internal/models"
)

type fakeStore struct {
	appts []models.Appointment
	err   error
}

func (s *fakeStore) ListAppointments(context.Context, string) ([]models.Appointment, error) {
	return s.appts, s.err
}

type fakeSource struct {
	mu      sync.Mutex
	events  map[string][]models.ExternalEvent
	fail    map[string]error
	calls   []string
	release chan struct{}
	started chan struct{}
}

func (s *fakeSource) Events(ctx context.Context, feed config.FeedConfig, _ feeds.Window) ([]models.ExternalEvent, error) {
	s.mu.Lock()
	s.calls = append(s.calls, feed.ID)
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.fail[feed.ID]; err != nil {
		return nil, err
	}
	return s.events[feed.ID], nil
}

type dir map[string]config.OwnerFeeds

func (d dir) ForOwner(owner string) (config.OwnerFeeds, bool) {
	o, ok := d[owner]
	return o, ok
}

const owner = "owner@example.com"

func newCoordinator(store AppointmentLister, src EventSource, feedList ...config.FeedConfig) *Coordinator {
	of := config.OwnerFeeds{Owner: owner}
	if len(feedList) > 0 {
		of.Primary = feedList[0]
		of.Additional = feedList[1:]
	}
	c := NewCoordinator(NewFilter(matcher.Default(time.UTC)), store, src, dir{owner: of}, logging.Discard())
	c.now = func() time.Time { return slot }
	return c
}

func TestRefreshSuppressesAndReportsFeeds(t *testing.T) {
	src := &fakeSource{
		events: map[string][]models.ExternalEvent{
			"clinic@example.com": {
				externalEvent("dup", "Consultation - Ali +60123456789"),
				externalEvent("keep", "Team lunch"),
			},
		},
		fail: map[string]error{"down@example.com": errors.New("connection refused")},
	}
	store := &fakeStore{appts: []models.Appointment{ownAppointment()}}
	c := newCoordinator(store, src,
		config.FeedConfig{ID: "clinic@example.com"},
		config.FeedConfig{ID: "not-an-address"},
		config.FeedConfig{ID: "down@example.com"},
	)

	res, err := c.Refresh(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if res.FailOpen || res.Suppressed() != 1 || len(res.Display) != 2 {
		t.Errorf("failOpen=%v suppressed=%d display=%d", res.FailOpen, res.Suppressed(), len(res.Display))
	}
	if diff := cmp.Diff([]string{"not-an-address"}, res.SkippedFeeds); diff != "" {
		t.Errorf("skipped (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"down@example.com"}, res.FailedFeeds); diff != "" {
		t.Errorf("failed (-want +got):\n%s", diff)
	}
	for _, id := range src.calls {
		if id == "not-an-address" {
			t.Error("invalid feed was queried")
		}
	}

	latest, ok := c.Latest(owner)
	if !ok || latest.Generation != res.Generation {
		t.Errorf("Latest = %v, %v", latest.Generation, ok)
	}
}

func TestRefreshFailsOpenWhenStoreIsDown(t *testing.T) {
	src := &fakeSource{events: map[string][]models.ExternalEvent{
		"clinic@example.com": {externalEvent("dup", "Consultation - Ali +60123456789")},
	}}
	c := newCoordinator(&fakeStore{err: errors.New("db down")}, src, config.FeedConfig{ID: "clinic@example.com"})

	res, err := c.Refresh(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FailOpen || res.Suppressed() != 0 || len(res.Display) != 1 {
		t.Errorf("failOpen=%v suppressed=%d display=%d", res.FailOpen, res.Suppressed(), len(res.Display))
	}
}

func TestReloadWrapsStoreError(t *testing.T) {
	c := newCoordinator(&fakeStore{err: errors.New("db down")}, &fakeSource{})
	if _, err := c.Reload(context.Background(), owner); !errors.Is(err, models.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestRefreshUsesAppointmentsUpdatedDuringFetch(t *testing.T) {
	src := &fakeSource{
		events: map[string][]models.ExternalEvent{
			"clinic@example.com": {externalEvent("dup", "Consultation - Ali +60123456789")},
		},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := newCoordinator(&fakeStore{}, src, config.FeedConfig{ID: "clinic@example.com"})
	c.SetAppointments(owner, nil)

	done := make(chan Result, 1)
	go func() {
		res, err := c.Refresh(context.Background(), owner)
		if err != nil {
			t.Error(err)
		}
		done <- res
	}()

	<-src.started
	gen := c.SetAppointments(owner, []models.Appointment{ownAppointment()})
	close(src.release)
	res := <-done

	if res.Generation != gen {
		t.Errorf("generation = %d, want %d", res.Generation, gen)
	}
	if res.Suppressed() != 1 {
		t.Errorf("suppressed = %d, want 1", res.Suppressed())
	}
}

func TestPublishKeepsNewestGeneration(t *testing.T) {
	c := newCoordinator(&fakeStore{}, &fakeSource{})

	if _, ok := c.publish(owner, Result{Generation: 2}); !ok {
		t.Fatal("first publish rejected")
	}
	if got, ok := c.publish(owner, Result{Generation: 1}); ok || got.Generation != 2 {
		t.Errorf("stale publish = %d, %v; want generation 2 kept", got.Generation, ok)
	}
	if _, ok := c.publish(owner, Result{Generation: 2, FailOpen: true}); !ok {
		t.Error("same generation should replace")
	}
	latest, _ := c.Latest(owner)
	if latest.Generation != 2 || !latest.FailOpen {
		t.Errorf("latest = %+v", latest)
	}
}

func TestSavedAppointmentReclassifiesCachedFeeds(t *testing.T) {
	src := &fakeSource{events: map[string][]models.ExternalEvent{
		"clinic@example.com": {externalEvent("dup", "Consultation - Ali +60123456789")},
	}}
	store := &fakeStore{}
	c := newCoordinator(store, src, config.FeedConfig{ID: "clinic@example.com"})

	first, err := c.Refresh(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if first.Suppressed() != 0 {
		t.Fatalf("suppressed = %d before the appointment exists", first.Suppressed())
	}

	store.appts = []models.Appointment{ownAppointment()}
	gen, err := c.Reload(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	latest, ok := c.Latest(owner)
	if !ok {
		t.Fatal("no result after reload")
	}
	if latest.Generation != gen || latest.FailOpen {
		t.Errorf("generation = %d (want %d), failOpen = %v", latest.Generation, gen, latest.FailOpen)
	}
	if latest.Suppressed() != 1 {
		t.Errorf("suppressed = %d, want 1", latest.Suppressed())
	}
	if len(latest.Display) != 1 || latest.Display[0].Source != models.SourceOwn {
		t.Errorf("display = %+v, want only the own appointment", latest.Display)
	}
	if len(src.calls) != 1 {
		t.Errorf("feeds fetched %d times, want 1", len(src.calls))
	}
}

func TestLatestHidesResultOlderThanAppointments(t *testing.T) {
	c := newCoordinator(&fakeStore{}, &fakeSource{})
	c.SetAppointments(owner, nil)
	c.publish(owner, Result{Generation: 1})
	if _, ok := c.Latest(owner); !ok {
		t.Fatal("current result hidden")
	}

	// no feeds fetched yet, so nothing can be recomputed
	c.SetAppointments(owner, []models.Appointment{ownAppointment()})
	if _, ok := c.Latest(owner); ok {
		t.Error("result from an older appointment set still served")
	}
}

func TestRefreshReturnsPublishedResult(t *testing.T) {
	src := &fakeSource{
		events:  map[string][]models.ExternalEvent{"clinic@example.com": {externalEvent("keep", "Team lunch")}},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := newCoordinator(&fakeStore{}, src, config.FeedConfig{ID: "clinic@example.com"})
	c.SetAppointments(owner, nil)

	done := make(chan Result, 1)
	go func() {
		res, err := c.Refresh(context.Background(), owner)
		if err != nil {
			t.Error(err)
		}
		done <- res
	}()
	<-src.started
	c.publish(owner, Result{Generation: 9})
	close(src.release)

	if res := <-done; res.Generation != 9 {
		t.Errorf("Refresh returned generation %d, want the published 9", res.Generation)
	}
}

func TestRefreshCancelled(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	c := newCoordinator(&fakeStore{}, src, config.FeedConfig{ID: "clinic@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Refresh(ctx, owner); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, ok := c.Latest(owner); ok {
		t.Error("cancelled refresh published a result")
	}
}
