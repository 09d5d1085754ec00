package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"momentum/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict signals the row was modified since it was read.
var ErrVersionConflict = errors.New("version conflict")

const taskColumns = `id,owner_id,title,category,description,priority,status,due_date,calendar_event_id,calendar_link,version,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var description, dueDate, calEventID, calLink, completedAt sql.NullString
	err := scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &description, &t.Priority, &t.Status,
		&dueDate, &calEventID, &calLink, &t.Version, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if calEventID.Valid {
		t.CalendarEventID = &calEventID.String
	}
	if calLink.Valid {
		t.CalendarLink = &calLink.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Title, t.Category, nullable(t.Description), t.Priority, t.Status,
		nullableStringPtr(t.DueDate), nullableStringPtr(t.CalendarEventID), nullableStringPtr(t.CalendarLink),
		t.Version, t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	return scanTask(row.Scan)
}

// UpdateTask writes t guarded by the version it was read at. A zero
// rows-affected outcome distinguishes a vanished row from a concurrent write.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, category=?, description=?, priority=?, status=?, due_date=?, calendar_event_id=?, calendar_link=?, version=version+1, updated_at=?, completed_at=? WHERE id=? AND owner_id=? AND version=?`,
		t.Title, t.Category, nullable(t.Description), t.Priority, t.Status,
		nullableStringPtr(t.DueDate), nullableStringPtr(t.CalendarEventID), nullableStringPtr(t.CalendarLink),
		t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID, t.OwnerID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetTaskTx(ctx, tx, t.OwnerID, t.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, ownerID, id string, version int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND owner_id=? AND version=?`, id, ownerID, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetTaskTx(ctx, tx, ownerID, id); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) DeleteAllTasks(ctx context.Context, tx *sql.Tx, ownerID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id=?`, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type TaskFilters struct {
	OwnerID         string
	Status          string
	Category        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListSyncableTasks returns the owner's tasks eligible for bulk calendar
// sync: dated, not yet synced, not completed.
func (r Repo) ListSyncableTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE owner_id=? AND due_date IS NOT NULL AND calendar_event_id IS NULL AND status != 'completed'
ORDER BY due_date ASC, id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasks(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE owner_id=?`, ownerID).Scan(&n)
	return n, err
}

func (r Repo) CountTasksByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE owner_id=? GROUP BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// MarkTaskSynced records the calendar event produced for a task.
func (r Repo) MarkTaskSynced(ctx context.Context, tx *sql.Tx, ownerID, taskID, eventID, link, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET calendar_event_id=?, calendar_link=?, version=version+1, updated_at=? WHERE id=? AND owner_id=?`,
		eventID, nullable(link), updatedAt, taskID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
