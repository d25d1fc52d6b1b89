package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

// JSONReader reads feeds published as a JSON array of events, or as an
// object with an "items" array. Start and end may be plain strings or
// {dateTime|date} objects.
type JSONReader struct {
	client   *http.Client
	location *time.Location
	logger   *logging.Logger
}

func NewJSONReader(client *http.Client, loc *time.Location, logger *logging.Logger) *JSONReader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &JSONReader{client: client, location: loc, logger: logger}
}

// Events downloads feed and keeps the events intersecting w. Events whose
// times cannot be read are kept so the matcher can decide on them.
func (j *JSONReader) Events(ctx context.Context, feed config.FeedConfig, w Window) ([]models.ExternalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", redactURL(feed.URL), models.ErrConfiguration)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(feed.URL), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", redactURL(feed.URL), resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", redactURL(feed.URL), err)
	}
	var events []models.ExternalEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		var wrapped googleEventList
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode %s: %w", redactURL(feed.URL), err)
		}
		events = wrapped.Items
	}

	out := events[:0]
	for _, ev := range events {
		start, err1 := ev.Start.Resolve(j.location)
		end, err2 := ev.End.Resolve(j.location)
		if err1 == nil && err2 == nil && !overlaps(start, end, w) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
