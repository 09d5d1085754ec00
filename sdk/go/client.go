package momentumsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Momentum HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Priority string  `json:"priority"`
	Status   string  `json:"status"`
	DueDate  *string `json:"due_date,omitempty"`
}

// Goal represents the API goal model (partial).
type Goal struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

// Action is an assistant action descriptor.
type Action struct {
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	Status string         `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Result is a per-action execution outcome.
type Result struct {
	Success    bool           `json:"success"`
	ActionType string         `json:"action_type"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// BatchResult is the outcome of an executed batch.
type BatchResult struct {
	Results []Result `json:"results"`
	Summary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	} `json:"summary"`
	Message string `json:"message"`
}

// Proposal is a stored assistant suggestion.
type Proposal struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Action         Action `json:"action"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, category string) (Task, error) {
	body := map[string]any{
		"title":    title,
		"category": category,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v1/tasks", body, &resp)
	return resp, err
}

// ExecuteBatch runs an action batch and returns results plus the summary sentence.
func (c *Client) ExecuteBatch(ctx context.Context, batch []Action) (BatchResult, error) {
	var resp BatchResult
	err := c.do(ctx, http.MethodPost, "v1/assistant/actions/execute", map[string]any{"actions": batch}, &resp)
	return resp, err
}

// SubmitProposals stores actions for later approval.
func (c *Client) SubmitProposals(ctx context.Context, conversationID string, batch []Action) ([]Proposal, error) {
	var resp []Proposal
	body := map[string]any{"conversation_id": conversationID, "actions": batch}
	err := c.do(ctx, http.MethodPost, "v1/assistant/proposals", body, &resp)
	return resp, err
}

// ApproveProposal approves and executes one proposal.
func (c *Client) ApproveProposal(ctx context.Context, id string) (Result, error) {
	var resp struct {
		Proposal Proposal `json:"proposal"`
		Result   Result   `json:"result"`
	}
	endpoint := fmt.Sprintf("v1/assistant/proposals/%s/approve", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Result, err
}

// ApproveConversation approves every open proposal in a conversation as one batch.
func (c *Client) ApproveConversation(ctx context.Context, conversationID string) (BatchResult, error) {
	var resp BatchResult
	endpoint := fmt.Sprintf("v1/assistant/conversations/%s/approve", url.PathEscape(conversationID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, after int64, limit int) ([]Event, error) {
	endpoint := fmt.Sprintf("v1/events?after=%d", after)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
