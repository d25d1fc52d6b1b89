package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source tags on the reconciled display set.
const (
	SourceOwn      = "own"
	SourceExternal = "external"
)

// ExternalEvent is a read-only view of an event pulled from a third-party feed.
type ExternalEvent struct {
	ID          string    `json:"id,omitempty"`
	FeedID      string    `json:"feedId"`
	Title       string    `json:"title,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// Heading returns the title, falling back to the summary.
func (e ExternalEvent) Heading() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Summary
}

// EventTime holds a feed timestamp in whichever encoding the feed used:
// a literal string, {"dateTime": ...} or {"date": ...}. Adapters that already
// hold a parsed time set At.
type EventTime struct {
	At       time.Time `json:"-"`
	Value    string    `json:"-"`
	DateTime string    `json:"dateTime,omitempty"`
	Date     string    `json:"date,omitempty"`
	TimeZone string    `json:"timeZone,omitempty"`
}

// TimeAt wraps an already-parsed time.
func TimeAt(t time.Time) EventTime {
	return EventTime{At: t}
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateLayout = "2006-01-02"

// IsZero reports whether no encoding is present.
func (t EventTime) IsZero() bool {
	return t.At.IsZero() && t.Value == "" && t.DateTime == "" && t.Date == ""
}

// Resolve turns the stored encoding into a time. Values without an offset are
// read in the event's TimeZone if set, else in loc. Missing or malformed input
// returns an ErrValidation-wrapped error.
func (t EventTime) Resolve(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t.TimeZone != "" {
		if tz, err := time.LoadLocation(t.TimeZone); err == nil {
			loc = tz
		}
	}
	switch {
	case !t.At.IsZero():
		return t.At, nil
	case t.DateTime != "":
		return parseTimestamp(t.DateTime, loc)
	case t.Date != "":
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(t.Date), loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", t.Date, ErrValidation)
		}
		return d, nil
	case t.Value != "":
		return parseTimestamp(t.Value, loc)
	}
	return time.Time{}, fmt.Errorf("missing time: %w", ErrValidation)
}

func parseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts, nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, v, loc); err == nil {
			return ts, nil
		}
	}
	if ts, err := time.ParseInLocation(dateLayout, v, loc); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", v, ErrValidation)
}

// UnmarshalJSON accepts a bare string or a {dateTime|date, timeZone} object.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = EventTime{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = EventTime{Value: s}
		return nil
	}
	type alias EventTime
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = EventTime(aux)
	return nil
}

// MarshalJSON emits parsed and literal times as RFC3339 strings and keeps the
// object form otherwise.
func (t EventTime) MarshalJSON() ([]byte, error) {
	switch {
	case !t.At.IsZero():
		return json.Marshal(t.At.Format(time.RFC3339))
	case t.Value != "":
		return json.Marshal(t.Value)
	}
	type alias EventTime
	return json.Marshal(alias(t))
}
