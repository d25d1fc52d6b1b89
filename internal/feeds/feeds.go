// Package feeds reads events from the external calendars connected to an
// owner. Events are returned as read-only models.ExternalEvent values.
package feeds

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

var feedIDPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateFeedID checks that id looks like a calendar address.
func ValidateFeedID(id string) error {
	if !feedIDPattern.MatchString(id) {
		return fmt.Errorf("feed id %q is not an address: %w", id, models.ErrConfiguration)
	}
	return nil
}

// Window bounds the events requested from a feed.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowAround returns [now-past, now+future].
func WindowAround(now time.Time, past, future time.Duration) Window {
	return Window{Start: now.Add(-past), End: now.Add(future)}
}

// Adapter routes a feed to the reader that understands it: ICS or JSON for
// feeds with a URL, the Google Calendar API for bare calendar ids.
type Adapter struct {
	ics    *ICSReader
	json   *JSONReader
	google *GoogleReader
	logger *logging.Logger
}

// NewAdapter builds an Adapter. google may be nil when no API key is set.
func NewAdapter(ics *ICSReader, json *JSONReader, google *GoogleReader, logger *logging.Logger) *Adapter {
	return &Adapter{ics: ics, json: json, google: google, logger: logger}
}

// Events returns the events of feed within w.
func (a *Adapter) Events(ctx context.Context, feed config.FeedConfig, w Window) ([]models.ExternalEvent, error) {
	var (
		events []models.ExternalEvent
		err    error
	)
	switch {
	case feed.URL != "" && strings.EqualFold(feed.Format, "json"):
		events, err = a.json.Events(ctx, feed, w)
	case feed.URL != "":
		events, err = a.ics.Events(ctx, feed, w)
	case a.google != nil:
		events, err = a.google.Events(ctx, feed, w)
	default:
		return nil, fmt.Errorf("feed %s has no url and google api is not configured: %w", feed.ID, models.ErrConfiguration)
	}
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].FeedID = feed.ID
	}
	a.logger.Debugf("Feed %s returned %d events", feed.ID, len(events))
	return events, nil
}

// redactURL keeps scheme and host only, since feed URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
