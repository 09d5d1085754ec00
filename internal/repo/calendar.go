package repo

import (
	"context"
	"database/sql"

	"momentum/internal/domain"
)

func (r Repo) GetCalendarAccount(ctx context.Context, ownerID string) (domain.CalendarAccount, error) {
	var a domain.CalendarAccount
	var calendarID sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT owner_id,provider,access_token,calendar_id,connected_at FROM calendar_accounts WHERE owner_id=?`, ownerID).
		Scan(&a.OwnerID, &a.Provider, &a.AccessToken, &calendarID, &a.ConnectedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if calendarID.Valid {
		a.CalendarID = calendarID.String
	}
	return a, nil
}

// UpsertCalendarAccount connects or reconnects an owner's calendar.
func (r Repo) UpsertCalendarAccount(ctx context.Context, a domain.CalendarAccount) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO calendar_accounts(owner_id,provider,access_token,calendar_id,connected_at) VALUES (?,?,?,?,?)
ON CONFLICT(owner_id) DO UPDATE SET provider=excluded.provider, access_token=excluded.access_token, calendar_id=excluded.calendar_id, connected_at=excluded.connected_at`,
		a.OwnerID, a.Provider, a.AccessToken, nullable(a.CalendarID), a.ConnectedAt)
	return err
}

func (r Repo) DeleteCalendarAccount(ctx context.Context, ownerID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM calendar_accounts WHERE owner_id=?`, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
