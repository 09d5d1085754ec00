package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"momentum/internal/domain"
)

// HashAPIKey returns the hex sha256 digest stored for a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertAPIKey(ctx context.Context, k domain.APIKey) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO api_keys(id,owner_id,name,key_hash,created_at) VALUES (?,?,?,?,?)`,
		k.ID, k.OwnerID, nullable(k.Name), k.KeyHash, k.CreatedAt)
	return err
}

// OwnerForAPIKey resolves a raw key to its owner.
func (r Repo) OwnerForAPIKey(ctx context.Context, raw string) (string, error) {
	var ownerID string
	err := r.DB.QueryRowContext(ctx, `SELECT owner_id FROM api_keys WHERE key_hash=?`, HashAPIKey(raw)).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return ownerID, err
}

func (r Repo) ListAPIKeys(ctx context.Context, ownerID string) ([]domain.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,owner_id,name,key_hash,created_at FROM api_keys WHERE owner_id=? ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		var name sql.NullString
		if err := rows.Scan(&k.ID, &k.OwnerID, &name, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			k.Name = name.String
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) DeleteAPIKey(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
