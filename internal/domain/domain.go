package domain

type Task struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Description     string  `json:"description,omitempty"`
	Priority        string  `json:"priority" enum:"low,medium,high"`
	Status          string  `json:"status" enum:"todo,in_progress,completed"`
	DueDate         *string `json:"due_date,omitempty" format:"date"`
	CalendarEventID *string `json:"calendar_event_id,omitempty"`
	CalendarLink    *string `json:"calendar_link,omitempty"`
	Version         int     `json:"version"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
}

type Goal struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	Progress    int     `json:"progress"`
	Status      string  `json:"status" enum:"active,completed,abandoned"`
	Version     int     `json:"version"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type CalendarAccount struct {
	OwnerID     string `json:"owner_id"`
	Provider    string `json:"provider"`
	AccessToken string `json:"-"`
	CalendarID  string `json:"calendar_id,omitempty"`
	ConnectedAt string `json:"connected_at" format:"date-time"`
}

// Proposal is an AI-suggested action awaiting human review. The action
// descriptor itself is stored as JSON; status tracks the approval lifecycle.
type Proposal struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	ConversationID string `json:"conversation_id"`
	ActionJSON     string `json:"action_json"`
	Status         string `json:"status" enum:"proposed,processing,approved,declined,failed"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"owner_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
