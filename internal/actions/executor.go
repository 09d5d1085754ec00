package actions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"momentum/internal/calendar"
	"momentum/internal/config"
	"momentum/internal/domain"
	"momentum/internal/events"
	"momentum/internal/repo"
)

// Executor runs approved action batches against the store.
type Executor struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Calendar calendar.Service
	Config   *config.Config
	Now      func() time.Time
}

// Result is the outcome of one executed action. Data carries the minimal
// identifying fields of the affected entity, never the full row.
type Result struct {
	Success    bool           `json:"success"`
	ActionType string         `json:"action_type"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type BatchResult struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

var ErrOwnerRequired = errors.New("owner id is required")

func (x Executor) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now()
}

func (x Executor) timestamp() string {
	return x.now().UTC().Format(time.RFC3339)
}

// ExecuteBatch runs actions strictly in submission order. Each action fully
// completes before the next begins so pending placeholders can resolve
// against earlier creations. Per-action errors become failure results; the
// loop itself never aborts.
func (x Executor) ExecuteBatch(ctx context.Context, ownerID string, batch []Action) (BatchResult, error) {
	if ownerID == "" {
		return BatchResult{}, ErrOwnerRequired
	}
	results := make([]Result, 0, len(batch))
	for _, a := range batch {
		results = append(results, x.executeOne(ctx, ownerID, a, results))
	}
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	return BatchResult{
		Results: results,
		Summary: Summary{Total: len(results), Succeeded: succeeded, Failed: len(results) - succeeded},
	}, nil
}

// ExecuteAction is the single-action convenience wrapper around the batch path.
func (x Executor) ExecuteAction(ctx context.Context, ownerID string, a Action) (Result, error) {
	br, err := x.ExecuteBatch(ctx, ownerID, []Action{a})
	if err != nil {
		return Result{}, err
	}
	return br.Results[0], nil
}

func (x Executor) executeOne(ctx context.Context, ownerID string, a Action, prior []Result) Result {
	ts := x.timestamp()
	if IsTerminalStatus(a.Status) {
		// Re-submitting a settled action is a no-op, not a re-execution.
		return Result{
			Success:    true,
			ActionType: a.Type,
			Data:       map[string]any{"skipped": true, "status": NormalizeStatus(a.Status)},
			Timestamp:  ts,
		}
	}
	if v := Validate(a); !v.Valid {
		return Result{ActionType: a.Type, Error: v.Error, Timestamp: ts}
	}
	a, err := Resolve(a, prior)
	if err != nil {
		return Result{ActionType: a.Type, Error: err.Error(), Timestamp: ts}
	}
	data, err := x.dispatch(ctx, ownerID, a)
	if err != nil {
		return Result{ActionType: a.Type, Error: err.Error(), Timestamp: ts}
	}
	return Result{Success: true, ActionType: a.Type, Data: data, Timestamp: ts}
}

func (x Executor) dispatch(ctx context.Context, ownerID string, a Action) (map[string]any, error) {
	switch a.Type {
	case TypeCreateTask:
		return x.createTask(ctx, ownerID, a.Data)
	case TypeUpdateTask:
		return x.updateTask(ctx, ownerID, a.Data)
	case TypeDeleteTask:
		return x.deleteTask(ctx, ownerID, a.Data)
	case TypeDeleteAllTasks:
		return x.deleteAllTasks(ctx, ownerID)
	case TypeCreateGoal:
		return x.createGoal(ctx, ownerID, a.Data)
	case TypeUpdateGoal:
		return x.updateGoal(ctx, ownerID, a.Data)
	case TypeDeleteGoal:
		return x.deleteGoal(ctx, ownerID, a.Data)
	case TypeDeleteAllGoals:
		return x.deleteAllGoals(ctx, ownerID)
	case TypeSyncCalendarEvent:
		return x.syncCalendarEvent(ctx, ownerID, a.Data)
	case TypeSyncBulkCalendar:
		return x.syncBulkCalendar(ctx, ownerID)
	}
	// Unreachable when the validator ran first.
	return nil, fmt.Errorf("Unknown action type: %s", a.Type)
}

func (x Executor) createTask(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	now := x.timestamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strField(data, "title"),
		Category:    strField(data, "category"),
		Description: strField(data, "description"),
		Priority:    strFieldDefault(data, "priority", "medium"),
		Status:      strFieldDefault(data, "status", "todo"),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	due := strField(data, "due_date", "dueDate")
	if due == "" {
		due = x.now().UTC().AddDate(0, 0, x.Config.DueDays()).Format("2006-01-02")
	}
	t.DueDate = &due

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := x.Repo.InsertTask(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "task.created", ownerID, KindTask, t.ID, events.EventPayload{"title": t.Title}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       t.ID,
		"title":    t.Title,
		"category": t.Category,
		"priority": t.Priority,
		"status":   t.Status,
		"due_date": due,
	}, nil
}

// mergeUpdates folds top-level convenience fields into the updates mapping;
// explicit updates keys win on conflict.
func mergeUpdates(data map[string]any, keys ...string) map[string]any {
	updates := map[string]any{}
	if nested, ok := data["updates"].(map[string]any); ok {
		for k, v := range nested {
			updates[k] = v
		}
	}
	for _, k := range keys {
		if _, taken := updates[k]; taken {
			continue
		}
		if v, ok := data[k]; ok && present(v) {
			updates[k] = v
		}
	}
	return updates
}

func (x Executor) updateTask(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	taskID := strField(data, "taskId")
	updates := mergeUpdates(data, "title", "category", "description", "priority", "status", "due_date", "dueDate")

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	t, err := x.Repo.GetTaskTx(ctx, tx, ownerID, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Task not found or unauthorized")
		}
		return nil, err
	}
	for k, v := range updates {
		switch k {
		case "title":
			t.Title = asString(v)
		case "category":
			t.Category = asString(v)
		case "description":
			t.Description = asString(v)
		case "priority":
			t.Priority = asString(v)
		case "status":
			t.Status = asString(v)
			if t.Status == "completed" && t.CompletedAt == nil {
				done := x.timestamp()
				t.CompletedAt = &done
			}
		case "due_date", "dueDate":
			if d := asString(v); d != "" {
				t.DueDate = &d
			} else {
				t.DueDate = nil
			}
		}
	}
	t.UpdatedAt = x.timestamp()
	if err := x.Repo.UpdateTask(ctx, tx, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Task not found or unauthorized")
		}
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, errors.New("Task was modified concurrently, please retry")
		}
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "task.updated", ownerID, KindTask, t.ID, events.EventPayload{"fields": keysOf(updates)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"id": t.ID, "title": t.Title, "updatedFields": keysOf(updates)}, nil
}

func (x Executor) deleteTask(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	taskID := strField(data, "taskId")
	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	t, err := x.Repo.GetTaskTx(ctx, tx, ownerID, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Task not found or unauthorized")
		}
		return nil, err
	}
	if err := x.Repo.DeleteTask(ctx, tx, ownerID, taskID, t.Version); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Task not found or unauthorized")
		}
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, errors.New("Task was modified concurrently, please retry")
		}
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "task.deleted", ownerID, KindTask, t.ID, events.EventPayload{"title": t.Title}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"id": t.ID, "title": t.Title, "deleted": true}, nil
}

func (x Executor) deleteAllTasks(ctx context.Context, ownerID string) (map[string]any, error) {
	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	n, err := x.Repo.DeleteAllTasks(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "task.purged", ownerID, KindTask, "", events.EventPayload{"deleted_count": n}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"deletedCount": int(n)}, nil
}

func (x Executor) createGoal(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	now := x.timestamp()
	g := domain.Goal{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strField(data, "title"),
		Category:    strField(data, "category"),
		Description: strField(data, "description"),
		Progress:    clampProgress(asInt(data["progress"])),
		Status:      strFieldDefault(data, "status", "active"),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if target := strField(data, "target_date", "targetDate"); target != "" {
		g.TargetDate = &target
	}

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := x.Repo.InsertGoal(ctx, tx, g); err != nil {
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "goal.created", ownerID, KindGoal, g.ID, events.EventPayload{"title": g.Title}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       g.ID,
		"title":    g.Title,
		"category": g.Category,
		"status":   g.Status,
		"progress": g.Progress,
	}, nil
}

func (x Executor) updateGoal(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	goalID := strField(data, "goalId")
	updates := mergeUpdates(data, "title", "category", "description", "progress", "status", "target_date", "targetDate")

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	g, err := x.Repo.GetGoalTx(ctx, tx, ownerID, goalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Goal not found or unauthorized")
		}
		return nil, err
	}
	for k, v := range updates {
		switch k {
		case "title":
			g.Title = asString(v)
		case "category":
			g.Category = asString(v)
		case "description":
			g.Description = asString(v)
		case "progress":
			g.Progress = asInt(v)
		case "status":
			g.Status = asString(v)
		case "target_date", "targetDate":
			if d := asString(v); d != "" {
				g.TargetDate = &d
			} else {
				g.TargetDate = nil
			}
		}
	}
	if g.Progress >= 100 {
		g.Status = "completed"
	}
	g.Progress = clampProgress(g.Progress)
	g.UpdatedAt = x.timestamp()
	if err := x.Repo.UpdateGoal(ctx, tx, g); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Goal not found or unauthorized")
		}
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, errors.New("Goal was modified concurrently, please retry")
		}
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "goal.updated", ownerID, KindGoal, g.ID, events.EventPayload{"fields": keysOf(updates)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"id": g.ID, "title": g.Title, "updatedFields": keysOf(updates)}, nil
}

func (x Executor) deleteGoal(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	goalID := strField(data, "goalId")
	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	g, err := x.Repo.GetGoalTx(ctx, tx, ownerID, goalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Goal not found or unauthorized")
		}
		return nil, err
	}
	if err := x.Repo.DeleteGoal(ctx, tx, ownerID, goalID, g.Version); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Goal not found or unauthorized")
		}
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, errors.New("Goal was modified concurrently, please retry")
		}
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "goal.deleted", ownerID, KindGoal, g.ID, events.EventPayload{"title": g.Title}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"id": g.ID, "title": g.Title, "deleted": true}, nil
}

func (x Executor) deleteAllGoals(ctx context.Context, ownerID string) (map[string]any, error) {
	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	n, err := x.Repo.DeleteAllGoals(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "goal.purged", ownerID, KindGoal, "", events.EventPayload{"deleted_count": n}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"deletedCount": int(n)}, nil
}

func (x Executor) syncCalendarEvent(ctx context.Context, ownerID string, data map[string]any) (map[string]any, error) {
	account, err := x.Repo.GetCalendarAccount(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Calendar not connected")
		}
		return nil, err
	}
	taskID := strField(data, "taskId")
	t, err := x.Repo.GetTask(ctx, ownerID, taskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Task not found or unauthorized")
		}
		return nil, err
	}
	// The action may override the scheduled date without touching the task.
	if override := strField(data, "due_date", "dueDate", "date"); override != "" {
		t.DueDate = &override
	}
	evt, err := x.Calendar.CreateEvent(ctx, account, t)
	if err != nil {
		return nil, err
	}

	tx, err := x.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := x.Repo.MarkTaskSynced(ctx, tx, ownerID, t.ID, evt.ID, evt.Link, x.timestamp()); err != nil {
		return nil, err
	}
	if err := x.Events.Append(ctx, tx, "task.synced", ownerID, KindTask, t.ID, events.EventPayload{"calendar_event_id": evt.ID}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{
		"taskId":          t.ID,
		"taskTitle":       t.Title,
		"calendarEventId": evt.ID,
		"calendarLink":    evt.Link,
		"synced":          true,
	}, nil
}

func (x Executor) syncBulkCalendar(ctx context.Context, ownerID string) (map[string]any, error) {
	account, err := x.Repo.GetCalendarAccount(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errors.New("Calendar not connected")
		}
		return nil, err
	}
	candidates, err := x.Repo.ListSyncableTasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	total, err := x.Repo.CountTasks(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	success, failed := 0, 0
	errs := []string{}
	for _, t := range candidates {
		evt, err := x.Calendar.CreateEvent(ctx, account, t)
		if err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %v", t.Title, err))
			continue
		}
		tx, err := x.DB.BeginTx(ctx, nil)
		if err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %v", t.Title, err))
			continue
		}
		err = x.Repo.MarkTaskSynced(ctx, tx, ownerID, t.ID, evt.ID, evt.Link, x.timestamp())
		if err == nil {
			err = x.Events.Append(ctx, tx, "task.synced", ownerID, KindTask, t.ID, events.EventPayload{"calendar_event_id": evt.ID})
		}
		if err == nil {
			err = tx.Commit()
		}
		if err != nil {
			tx.Rollback()
			failed++
			errs = append(errs, fmt.Sprintf("%s: %v", t.Title, err))
			continue
		}
		success++
	}
	return map[string]any{
		"success": success,
		"failed":  failed,
		"skipped": total - len(candidates),
		"errors":  errs,
	}, nil
}

func strField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func strFieldDefault(data map[string]any, key, fallback string) string {
	if v := strField(data, key); v != "" {
		return v
	}
	return fallback
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// clampProgress keeps goal progress inside 0-100.
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
