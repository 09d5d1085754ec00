// Package actions implements the assistant's proposal engine: validating
// AI-suggested action descriptors, resolving in-batch dependencies,
// executing approved batches against the store, and formatting outcomes.
package actions

import "fmt"

// Action types form a closed enumeration. The catalog below is the single
// source of truth shared by the validator, resolver and executor.
const (
	TypeCreateTask        = "create_task"
	TypeUpdateTask        = "update_task"
	TypeDeleteTask        = "delete_task"
	TypeDeleteAllTasks    = "delete_all_tasks"
	TypeCreateGoal        = "create_goal"
	TypeUpdateGoal        = "update_goal"
	TypeDeleteGoal        = "delete_goal"
	TypeDeleteAllGoals    = "delete_all_goals"
	TypeSyncCalendarEvent = "sync_calendar_event"
	TypeSyncBulkCalendar  = "sync_bulk_calendar"
)

const (
	StatusProposed   = "proposed"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusDeclined   = "declined"
	StatusFailed     = "failed"
)

const (
	KindTask = "task"
	KindGoal = "goal"
)

// Action is a single proposed mutation awaiting human approval. An empty
// Status means proposed.
type Action struct {
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	Status string         `json:"status,omitempty" enum:"proposed,processing,approved,declined,failed"`
	Error  string         `json:"error,omitempty"`
}

// NormalizeStatus maps the zero value to proposed.
func NormalizeStatus(s string) string {
	if s == "" {
		return StatusProposed
	}
	return s
}

func IsTerminalStatus(s string) bool {
	switch NormalizeStatus(s) {
	case StatusApproved, StatusDeclined, StatusFailed:
		return true
	}
	return false
}

// EnsureTransition validates a status change. Transitions are monotonic:
// proposed -> processing -> approved|failed, or proposed -> declined.
func EnsureTransition(old, new string) error {
	old, new = NormalizeStatus(old), NormalizeStatus(new)
	allowed := false
	switch old {
	case StatusProposed:
		allowed = new == StatusProcessing || new == StatusDeclined
	case StatusProcessing:
		allowed = new == StatusApproved || new == StatusFailed
	}
	if !allowed {
		return fmt.Errorf("cannot transition action from %q to %q", old, new)
	}
	return nil
}

// WithStatus returns a copy of a in the new status. The receiver is never
// mutated; shared batch slices stay untouched.
func (a Action) WithStatus(status string) (Action, error) {
	if err := EnsureTransition(a.Status, status); err != nil {
		return a, err
	}
	out := a
	out.Status = status
	if status != StatusFailed {
		out.Error = ""
	}
	return out, nil
}

// WithFailure returns a failed copy carrying the reason.
func (a Action) WithFailure(reason string) Action {
	out := a
	out.Status = StatusFailed
	out.Error = reason
	return out
}

// field is a required data key and its human label for error messages.
type field struct {
	key   string
	label string
}

// actionSpec describes one action type: which data fields must be present,
// which top-level id field it targets, what entity kind it creates, and
// which fields may carry the "pending" placeholder (keyed to the kind whose
// creation satisfies them).
type actionSpec struct {
	required []field
	idField  *field
	creates  string
	slots    map[string]string
}

var catalog = map[string]actionSpec{
	TypeCreateTask: {
		required: []field{{"title", "Title"}, {"category", "Category"}},
		creates:  KindTask,
	},
	TypeUpdateTask: {
		idField: &field{"taskId", "Task ID"},
	},
	TypeDeleteTask: {
		idField: &field{"taskId", "Task ID"},
	},
	TypeDeleteAllTasks: {},
	TypeCreateGoal: {
		required: []field{{"title", "Title"}, {"category", "Category"}},
		creates:  KindGoal,
	},
	TypeUpdateGoal: {
		idField: &field{"goalId", "Goal ID"},
	},
	TypeDeleteGoal: {
		idField: &field{"goalId", "Goal ID"},
	},
	TypeDeleteAllGoals: {},
	TypeSyncCalendarEvent: {
		idField: &field{"taskId", "Task ID"},
		slots:   map[string]string{"taskId": KindTask},
	},
	TypeSyncBulkCalendar: {},
}

// Types returns the known action types.
func Types() []string {
	out := make([]string, 0, len(catalog))
	for t := range catalog {
		out = append(out, t)
	}
	return out
}
