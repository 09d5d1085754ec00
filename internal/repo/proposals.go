package repo

import (
	"context"
	"database/sql"

	"momentum/internal/domain"
)

const proposalColumns = `id,owner_id,conversation_id,action_json,status,error,created_at,updated_at`

func scanProposal(scan func(dest ...any) error) (domain.Proposal, error) {
	var p domain.Proposal
	var errMsg sql.NullString
	err := scan(&p.ID, &p.OwnerID, &p.ConversationID, &p.ActionJSON, &p.Status, &errMsg, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if errMsg.Valid {
		p.Error = errMsg.String
	}
	return p, nil
}

func (r Repo) InsertProposal(ctx context.Context, p domain.Proposal) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO proposals(`+proposalColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.OwnerID, p.ConversationID, p.ActionJSON, p.Status, nullable(p.Error), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProposal(ctx context.Context, ownerID, id string) (domain.Proposal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=? AND owner_id=?`, id, ownerID)
	return scanProposal(row.Scan)
}

// ListProposals returns an owner's proposals, optionally scoped to a
// conversation, in submission order. Ordering uses the autoincrement seq
// column: created_at only has second precision, so proposals stored by one
// submission would otherwise tie and come back in random id order.
func (r Repo) ListProposals(ctx context.Context, ownerID, conversationID, status string) ([]domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE owner_id=?`
	args := []any{ownerID}
	if conversationID != "" {
		query += ` AND conversation_id=?`
		args = append(args, conversationID)
	}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY seq ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProposalStatus(ctx context.Context, ownerID, id, status, errMsg, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE proposals SET status=?, error=?, updated_at=? WHERE id=? AND owner_id=?`,
		status, nullable(errMsg), updatedAt, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
