package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

const maxOccurrencesPerEvent = 500

type cachedBody struct {
	etag         string
	lastModified string
	body         []byte
}

// ICSReader downloads iCalendar feeds and expands recurring events. Bodies
// are cached per URL and revalidated with ETag / Last-Modified.
type ICSReader struct {
	client   *http.Client
	location *time.Location
	logger   *logging.Logger

	mu    sync.Mutex
	cache map[string]cachedBody
}

func NewICSReader(client *http.Client, loc *time.Location, logger *logging.Logger) *ICSReader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ICSReader{client: client, location: loc, logger: logger, cache: map[string]cachedBody{}}
}

// Events fetches, parses and expands feed within w.
func (r *ICSReader) Events(ctx context.Context, feed config.FeedConfig, w Window) ([]models.ExternalEvent, error) {
	body, err := r.fetch(ctx, feed.URL)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(body, r.location, r.logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", redactURL(feed.URL), err)
	}
	return Expand(parsed, w, r.logger), nil
}

func (r *ICSReader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", redactURL(url), models.ErrConfiguration)
	}

	r.mu.Lock()
	cached, haveCache := r.cache[url]
	r.mu.Unlock()
	if haveCache {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCache:
		r.logger.Debugf("ICS feed %s not modified, using cache", redactURL(url))
		return cached.body, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", redactURL(url), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", redactURL(url), err)
	}

	r.mu.Lock()
	r.cache[url] = cachedBody{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		body:         body,
	}
	r.mu.Unlock()
	return body, nil
}

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	RRule       string
	ExDates     []time.Time
	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time
}

// ParseICS parses an iCalendar body. VEVENTs that cannot be read are logged
// and skipped.
func ParseICS(body []byte, loc *time.Location, logger *logging.Logger) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []ParsedEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			logger.Warnf("Skipping VEVENT: %v", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var ev ParsedEvent
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, fmt.Errorf("event %s has no DTSTART", ev.UID)
	}
	if vs := dtStart.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		ev.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		ev.AllDay = true
	}

	var err error
	if ev.AllDay {
		ev.Start, err = ve.GetAllDayStartAt()
	} else {
		ev.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return ev, fmt.Errorf("event %s DTSTART: %w", ev.UID, err)
	}
	if ev.AllDay {
		ev.End, err = ve.GetAllDayEndAt()
	} else {
		ev.End, err = ve.GetEndAt()
	}
	if err != nil || !ev.End.After(ev.Start) {
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		} else {
			ev.End = ev.Start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := propertyLocation(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, exLoc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, propertyLocation(p, loc)); err == nil {
			ev.RecurrenceID = &t
		}
	}
	return ev, nil
}

// propertyLocation returns the zone named by the property's TZID parameter,
// or fallback when it has none or the zone is unknown.
func propertyLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	tzids := p.ICalParameters[string(ical.ParameterTzid)]
	if len(tzids) == 0 || tzids[0] == "" {
		return fallback
	}
	tz, err := time.LoadLocation(strings.Trim(tzids[0], `"`))
	if err != nil {
		return fallback
	}
	return tz
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

// Expand turns parsed events into the occurrences that intersect w. Overrides
// replace the instance whose start equals their RECURRENCE-ID.
func Expand(events []ParsedEvent, w Window, logger *logging.Logger) []models.ExternalEvent {
	overrides := map[string][]ParsedEvent{}
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	var out []models.ExternalEvent
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			continue
		}
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, w) {
				out = append(out, occurrence(pickOverride(ev, overrides[ev.UID], ev.Start)))
			}
			continue
		}

		rule, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			logger.Warnf("Skipping recurring event %s: bad RRULE %q: %v", ev.UID, ev.RRule, err)
			continue
		}
		rule.DTStart(ev.Start)
		var set rrule.Set
		set.RRule(rule)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		dur := ev.End.Sub(ev.Start)
		starts := set.Between(w.Start.In(ev.Start.Location()).Add(-dur), w.End.In(ev.Start.Location()), true)
		if len(starts) > maxOccurrencesPerEvent {
			logger.Warnf("Recurring event %s truncated to %d occurrences", ev.UID, maxOccurrencesPerEvent)
			starts = starts[:maxOccurrencesPerEvent]
		}
		for _, start := range starts {
			inst := ev
			inst.Start = start
			inst.End = start.Add(dur)
			out = append(out, occurrence(pickOverride(inst, overrides[ev.UID], start)))
		}
	}
	return out
}

func pickOverride(base ParsedEvent, overrides []ParsedEvent, start time.Time) ParsedEvent {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o
		}
	}
	return base
}

func occurrence(ev ParsedEvent) models.ExternalEvent {
	out := models.ExternalEvent{
		ID:          ev.UID,
		Title:       ev.Summary,
		Description: ev.Description,
	}
	if ev.AllDay {
		out.Start = models.EventTime{Date: ev.Start.Format("2006-01-02")}
		out.End = models.EventTime{Date: ev.End.Format("2006-01-02")}
	} else {
		out.Start = models.TimeAt(ev.Start)
		out.End = models.TimeAt(ev.End)
	}
	return out
}

func overlaps(start, end time.Time, w Window) bool {
	return !end.Before(w.Start) && !start.After(w.End)
}
