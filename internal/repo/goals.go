package repo

import (
	"context"
	"database/sql"
	"strings"

	"momentum/internal/domain"
)

const goalColumns = `id,owner_id,title,category,description,target_date,progress,status,version,created_at,updated_at`

func scanGoal(scan func(dest ...any) error) (domain.Goal, error) {
	var g domain.Goal
	var description, targetDate sql.NullString
	err := scan(&g.ID, &g.OwnerID, &g.Title, &g.Category, &description, &targetDate,
		&g.Progress, &g.Status, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if description.Valid {
		g.Description = description.String
	}
	if targetDate.Valid {
		g.TargetDate = &targetDate.String
	}
	return g, nil
}

func (r Repo) InsertGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO goals(`+goalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.OwnerID, g.Title, g.Category, nullable(g.Description), nullableStringPtr(g.TargetDate),
		g.Progress, g.Status, g.Version, g.CreatedAt, g.UpdatedAt)
	return err
}

func (r Repo) GetGoal(ctx context.Context, ownerID, id string) (domain.Goal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id=? AND owner_id=?`, id, ownerID)
	return scanGoal(row.Scan)
}

func (r Repo) GetGoalTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.Goal, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id=? AND owner_id=?`, id, ownerID)
	return scanGoal(row.Scan)
}

func (r Repo) UpdateGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	res, err := tx.ExecContext(ctx, `UPDATE goals SET title=?, category=?, description=?, target_date=?, progress=?, status=?, version=version+1, updated_at=? WHERE id=? AND owner_id=? AND version=?`,
		g.Title, g.Category, nullable(g.Description), nullableStringPtr(g.TargetDate),
		g.Progress, g.Status, g.UpdatedAt, g.ID, g.OwnerID, g.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetGoalTx(ctx, tx, g.OwnerID, g.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) DeleteGoal(ctx context.Context, tx *sql.Tx, ownerID, id string, version int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE id=? AND owner_id=? AND version=?`, id, ownerID, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetGoalTx(ctx, tx, ownerID, id); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) DeleteAllGoals(ctx context.Context, tx *sql.Tx, ownerID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE owner_id=?`, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type GoalFilters struct {
	OwnerID  string
	Status   string
	Category string
	Limit    int
}

func (r Repo) ListGoals(ctx context.Context, f GoalFilters) ([]domain.Goal, error) {
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
	query := `SELECT ` + goalColumns + ` FROM goals WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (r Repo) CountGoalsByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM goals WHERE owner_id=? GROUP BY status`, ownerID)
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

// AverageGoalProgress returns the mean progress across active goals, 0 when none.
func (r Repo) AverageGoalProgress(ctx context.Context, ownerID string) (float64, error) {
	var avg sql.NullFloat64
	err := r.DB.QueryRowContext(ctx, `SELECT AVG(progress) FROM goals WHERE owner_id=? AND status='active'`, ownerID).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}
