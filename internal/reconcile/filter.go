// Package reconcile hides external calendar events that duplicate an
// appointment we already own, and builds the combined display set.
package reconcile

import (
	"time"

	"appointment-service/internal/matcher"
	"appointment-service/internal/models"
)

// Classification of one external event.
type Classification string

const (
	Visible    Classification = "visible"
	Suppressed Classification = "suppressed"
)

// FeedEvents are the events returned by one feed.
type FeedEvents struct {
	FeedID string
	Events []models.ExternalEvent
}

// ClassifiedEvent pairs an external event with its classification.
type ClassifiedEvent struct {
	Event          models.ExternalEvent `json:"event"`
	Classification Classification       `json:"classification"`
}

// DisplayItem is one entry of the deduplicated set handed to renderers.
type DisplayItem struct {
	Source      string                `json:"source"`
	Appointment *models.Appointment   `json:"appointment,omitempty"`
	Event       *models.ExternalEvent `json:"event,omitempty"`
}

// Result is the outcome of one reconciliation run.
type Result struct {
	Owner        string            `json:"owner"`
	Generation   uint64            `json:"generation"`
	Events       []ClassifiedEvent `json:"events"`
	Display      []DisplayItem     `json:"display"`
	FailOpen     bool              `json:"failOpen"`
	SkippedFeeds []string          `json:"skippedFeeds,omitempty"`
	FailedFeeds  []string          `json:"failedFeeds,omitempty"`
	ComputedAt   time.Time         `json:"computedAt"`
}

// Suppressed returns the number of suppressed events.
func (r Result) Suppressed() int {
	n := 0
	for _, e := range r.Events {
		if e.Classification == Suppressed {
			n++
		}
	}
	return n
}

// Filter classifies external events against canonical appointments. It holds
// no state between calls.
type Filter struct {
	matcher *matcher.Matcher
}

// NewFilter returns a Filter backed by m.
func NewFilter(m *matcher.Matcher) *Filter {
	return &Filter{matcher: m}
}

// Classify suppresses ev if it duplicates any appointment. The first match
// wins. With no appointments nothing is suppressed.
func (f *Filter) Classify(appts []models.Appointment, ev models.ExternalEvent) Classification {
	for _, a := range appts {
		if f.matcher.IsDuplicate(a, ev) {
			return Suppressed
		}
	}
	return Visible
}

// Reconcile classifies every event of every feed, each feed on its own, and
// builds the display set: all appointments tagged "own" followed by the
// visible events tagged "external". Inputs are not modified.
func (f *Filter) Reconcile(appts []models.Appointment, feeds []FeedEvents) Result {
	res := Result{FailOpen: len(appts) == 0}

	res.Display = make([]DisplayItem, 0, len(appts))
	for i := range appts {
		a := appts[i]
		res.Display = append(res.Display, DisplayItem{Source: models.SourceOwn, Appointment: &a})
	}

	for _, feed := range feeds {
		for _, ev := range feed.Events {
			if ev.FeedID == "" {
				ev.FeedID = feed.FeedID
			}
			class := f.Classify(appts, ev)
			res.Events = append(res.Events, ClassifiedEvent{Event: ev, Classification: class})
			if class == Visible {
				visible := ev
				res.Display = append(res.Display, DisplayItem{Source: models.SourceExternal, Event: &visible})
			}
		}
	}
	return res
}
