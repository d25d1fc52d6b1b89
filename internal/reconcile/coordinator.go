package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"appointment-service/internal/config"
	"appointment-service/internal/feeds"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

// AppointmentLister loads the canonical appointments of an owner.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, owner string) ([]models.Appointment, error)
}

// EventSource reads the events of one feed.
type EventSource interface {
	Events(ctx context.Context, feed config.FeedConfig, w feeds.Window) ([]models.ExternalEvent, error)
}

// FeedDirectory returns the feeds connected for an owner.
type FeedDirectory interface {
	ForOwner(owner string) (config.OwnerFeeds, bool)
}

type ownerState struct {
	gen       uint64
	appts     []models.Appointment
	loaded    bool
	published *Result

	// last successful feed fetch, reused when only appointments change
	fetched bool
	events  []FeedEvents
	skipped []string
	failed  []string
}

// Coordinator runs reconciliation per owner. Appointment updates and feed
// refreshes may interleave; a result computed from an older appointment
// set never replaces one computed from a newer set.
type Coordinator struct {
	filter *Filter
	store  AppointmentLister
	source EventSource
	feeds  FeedDirectory
	logger *logging.Logger

	Past   time.Duration
	Future time.Duration
	now    func() time.Time

	mu     sync.Mutex
	owners map[string]*ownerState
}

func NewCoordinator(filter *Filter, store AppointmentLister, source EventSource, dir FeedDirectory, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		filter: filter,
		store:  store,
		source: source,
		feeds:  dir,
		logger: logger,
		Past:   7 * 24 * time.Hour,
		Future: 60 * 24 * time.Hour,
		now:    time.Now,
		owners: map[string]*ownerState{},
	}
}

func (c *Coordinator) state(owner string) *ownerState {
	st, ok := c.owners[owner]
	if !ok {
		st = &ownerState{}
		c.owners[owner] = st
	}
	return st
}

// SetAppointments records a new appointment set for owner and returns its
// generation. When feeds were already fetched for owner the published result
// is recomputed against the new set right away.
func (c *Coordinator) SetAppointments(owner string, appts []models.Appointment) uint64 {
	cp := make([]models.Appointment, len(appts))
	copy(cp, appts)

	c.mu.Lock()
	st := c.state(owner)
	st.gen++
	st.appts = cp
	st.loaded = true
	gen, fetched := st.gen, st.fetched
	c.mu.Unlock()

	if fetched {
		res := c.reconcile(owner)
		c.logger.Debugf("Reclassified %s after appointment change: generation %d, %d suppressed", owner, res.Generation, res.Suppressed())
	}
	return gen
}

// Reload reads owner's appointments from the store into the coordinator.
func (c *Coordinator) Reload(ctx context.Context, owner string) (uint64, error) {
	appts, err := c.store.ListAppointments(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("list appointments for %s: %v: %w", owner, err, models.ErrDataUnavailable)
	}
	return c.SetAppointments(owner, appts), nil
}

func (c *Coordinator) snapshot(owner string) (uint64, []models.Appointment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(owner)
	return st.gen, st.appts, st.loaded
}

// Refresh fetches owner's feeds and reconciles them against the newest
// appointment set. When appointments cannot be loaded every event stays
// visible. Individual feed failures are reported in the result and do not
// fail the run.
func (c *Coordinator) Refresh(ctx context.Context, owner string) (Result, error) {
	if _, _, loaded := c.snapshot(owner); !loaded {
		if _, err := c.Reload(ctx, owner); err != nil {
			c.logger.Errorf("Reconcile %s: %v, showing all feed events", owner, err)
		}
	}

	owned, _ := c.feeds.ForOwner(owner)
	var (
		valid   []config.FeedConfig
		skipped []string
	)
	for _, f := range owned.All() {
		if err := feeds.ValidateFeedID(f.ID); err != nil {
			c.logger.Warnf("Reconcile %s: skipping feed: %v", owner, err)
			skipped = append(skipped, f.ID)
			continue
		}
		valid = append(valid, f)
	}

	window := feeds.WindowAround(c.now(), c.Past, c.Future)
	fetched := make([]FeedEvents, len(valid))
	failed := make([]bool, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range valid {
		i, f := i, f
		g.Go(func() error {
			events, err := c.source.Events(gctx, f, window)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return err
				}
				c.logger.Errorf("Reconcile %s: feed %s failed: %v", owner, f.ID, err)
				failed[i] = true
				return nil
			}
			fetched[i] = FeedEvents{FeedID: f.ID, Events: events}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var ok []FeedEvents
	var failedIDs []string
	for i, f := range valid {
		if failed[i] {
			failedIDs = append(failedIDs, f.ID)
			continue
		}
		ok = append(ok, fetched[i])
	}

	c.mu.Lock()
	st := c.state(owner)
	st.fetched = true
	st.events = ok
	st.skipped = skipped
	st.failed = failedIDs
	c.mu.Unlock()

	res := c.reconcile(owner)
	c.logger.Infof("Reconciled %s: generation %d, %d events, %d suppressed", owner, res.Generation, len(res.Events), res.Suppressed())
	return res, nil
}

// reconcile classifies the last fetched feed events against the newest
// appointment set and returns whatever is published afterwards.
func (c *Coordinator) reconcile(owner string) Result {
	c.mu.Lock()
	st := c.state(owner)
	gen, appts, loaded := st.gen, st.appts, st.loaded
	events, skipped, failed := st.events, st.skipped, st.failed
	c.mu.Unlock()

	res := c.filter.Reconcile(appts, events)
	res.Owner = owner
	res.Generation = gen
	res.FailOpen = !loaded || len(appts) == 0
	res.SkippedFeeds = skipped
	res.FailedFeeds = failed
	res.ComputedAt = c.now()

	published, _ := c.publish(owner, res)
	return published
}

// publish stores res unless a result from a newer generation is already
// published. It returns the result that is published after the call.
func (c *Coordinator) publish(owner string, res Result) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(owner)
	if st.published != nil && st.published.Generation > res.Generation {
		c.logger.Debugf("Dropping stale reconcile result for %s (generation %d < %d)", owner, res.Generation, st.published.Generation)
		return *st.published, false
	}
	r := res
	st.published = &r
	return r, true
}

// Latest returns the last published result for owner. It reports false when
// nothing is published yet or the published result predates the current
// appointment set.
func (c *Coordinator) Latest(owner string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.owners[owner]
	if !ok || st.published == nil || st.published.Generation < st.gen {
		return Result{}, false
	}
	return *st.published, true
}

// RefreshAll refreshes each owner in turn, logging failures.
func (c *Coordinator) RefreshAll(ctx context.Context, owners []string) {
	for _, owner := range owners {
		if _, err := c.Refresh(ctx, owner); err != nil {
			c.logger.Errorf("Refresh %s failed: %v", owner, err)
		}
	}
}
