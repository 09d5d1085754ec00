package server

import (
	"momentum/internal/actions"
	"momentum/internal/domain"
)

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Status      *string `json:"status,omitempty" enum:"todo,in_progress,completed"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Status      *string `json:"status,omitempty" enum:"todo,in_progress,completed"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
}

type CreateGoalRequest struct {
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	Progress    *int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
}

type UpdateGoalRequest struct {
	Title       *string `json:"title,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	TargetDate  *string `json:"target_date,omitempty" format:"date"`
	Progress    *int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
	Status      *string `json:"status,omitempty" enum:"active,completed,abandoned"`
}

type paginatedTasks struct {
	Items      []domain.Task `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ConnectCalendarRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
	CalendarID  string `json:"calendar_id,omitempty"`
}

type SubmitProposalsRequest struct {
	// Omitted conversation id means "start a new conversation"; the server
	// generates one.
	ConversationID string           `json:"conversation_id,omitempty"`
	Actions        []actions.Action `json:"actions"`
}

type ExecuteBatchRequest struct {
	Actions []actions.Action `json:"actions"`
}

// BatchResponse is a batch outcome plus its rendered summary sentence.
type BatchResponse struct {
	Results []actions.Result `json:"results"`
	Summary actions.Summary  `json:"summary"`
	Message string           `json:"message"`
}

type ProposalResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Action         actions.Action `json:"action"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

type AnalyticsSummaryResponse struct {
	TaskCounts      map[string]int `json:"task_counts"`
	GoalCounts      map[string]int `json:"goal_counts"`
	AvgGoalProgress float64        `json:"avg_goal_progress"`
	CompletionRate  float64        `json:"completion_rate"`
}

func batchResponse(br actions.BatchResult) BatchResponse {
	return BatchResponse{
		Results: br.Results,
		Summary: br.Summary,
		Message: actions.Format(br),
	}
}
