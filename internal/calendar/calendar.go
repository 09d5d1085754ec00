// Package calendar abstracts the external calendar provider used to
// materialize dated tasks as events.
package calendar

import (
	"context"
	"errors"

	"momentum/internal/domain"
)

// Event is the provider-side record created for a task.
type Event struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// ErrUnavailable wraps provider-side failures so callers can tell them
// apart from local errors.
var ErrUnavailable = errors.New("calendar provider unavailable")

type Service interface {
	CreateEvent(ctx context.Context, account domain.CalendarAccount, task domain.Task) (Event, error)
}
