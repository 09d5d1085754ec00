package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"momentum/internal/domain"
)

// Client talks to the calendar provider's REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	SourceID    string `json:"source_id"`
}

type createEventResponse struct {
	ID   string `json:"id"`
	Link string `json:"html_link"`
}

func (c *Client) CreateEvent(ctx context.Context, account domain.CalendarAccount, task domain.Task) (Event, error) {
	calendarID := account.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	date := ""
	if task.DueDate != nil {
		date = *task.DueDate
	}
	body, err := json.Marshal(createEventRequest{
		Title:       task.Title,
		Description: task.Description,
		Date:        date,
		SourceID:    task.ID,
	})
	if err != nil {
		return Event{}, err
	}
	url := fmt.Sprintf("%s/calendars/%s/events", c.BaseURL, calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Event{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Event{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.ID == "" {
		return Event{}, fmt.Errorf("%w: empty event id", ErrUnavailable)
	}
	return Event{ID: out.ID, Link: out.Link}, nil
}
