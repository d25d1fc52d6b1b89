package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

const defaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleReader reads public Google calendars through the events.list API
// using an API key.
type GoogleReader struct {
	client  *http.Client
	apiKey  string
	baseURL string
	logger  *logging.Logger
}

func NewGoogleReader(client *http.Client, apiKey, baseURL string, logger *logging.Logger) *GoogleReader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleReader{client: client, apiKey: apiKey, baseURL: baseURL, logger: logger}
}

type googleEventList struct {
	Items         []models.ExternalEvent `json:"items"`
	NextPageToken string                 `json:"nextPageToken"`
}

// Events lists the single events of calendar feed.ID within w, following
// page tokens.
func (g *GoogleReader) Events(ctx context.Context, feed config.FeedConfig, w Window) ([]models.ExternalEvent, error) {
	var (
		out   []models.ExternalEvent
		token string
	)
	for {
		page, err := g.page(ctx, feed.ID, w, token)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

func (g *GoogleReader) page(ctx context.Context, calendarID string, w Window, token string) (*googleEventList, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("timeMin", w.Start.Format(time.RFC3339))
	q.Set("timeMax", w.End.Format(time.RFC3339))
	if token != "" {
		q.Set("pageToken", token)
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", g.baseURL, url.PathEscape(calendarID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google calendar %s: %w", calendarID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("google calendar %s: status %d: %w", calendarID, resp.StatusCode, models.ErrConfiguration)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("google calendar %s: unexpected status %d", calendarID, resp.StatusCode)
	}

	var list googleEventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("google calendar %s: decode: %w", calendarID, err)
	}
	return &list, nil
}
