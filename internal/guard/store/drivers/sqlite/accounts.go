package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/domain"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store"
)

type accountsRepo struct {
	db *sql.DB
}

const accountColumns = `account_name, steamid, shared_secret, identity_secret,
	device_id, revocation_code, serial_number, uri, token_gid,
	session_steamid, access_token, refresh_token, created_at, updated_at`

func (r *accountsRepo) Get(ctx context.Context, name string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_name = ?`, name)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) Put(ctx context.Context, a *domain.Account) error {
	fresh, err := store.Validate(a)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	created := fresh.CreatedAt
	if created.IsZero() {
		created = now
	}

	var sessSteamID, accessToken, refreshToken string
	if fresh.Session != nil {
		sessSteamID = fresh.Session.SteamID
		accessToken = fresh.Session.AccessToken
		refreshToken = fresh.Session.RefreshToken
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_name) DO UPDATE SET
			steamid         = excluded.steamid,
			shared_secret   = excluded.shared_secret,
			identity_secret = excluded.identity_secret,
			device_id       = excluded.device_id,
			revocation_code = excluded.revocation_code,
			serial_number   = excluded.serial_number,
			uri             = excluded.uri,
			token_gid       = excluded.token_gid,
			session_steamid = excluded.session_steamid,
			access_token    = excluded.access_token,
			refresh_token   = excluded.refresh_token,
			updated_at      = excluded.updated_at`,
		fresh.AccountName, fresh.SteamID,
		fresh.SharedSecretB64(), fresh.IdentitySecretB64(),
		fresh.DeviceID, fresh.RevocationCode, fresh.SerialNumber,
		fresh.URI, fresh.TokenGID,
		sessSteamID, accessToken, refreshToken,
		created, now)
	if err != nil {
		return fmt.Errorf("sqlite: put account: %w", err)
	}
	return nil
}

func (r *accountsRepo) Remove(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE account_name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlite: remove account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *accountsRepo) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY account_name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		rec       domain.MaFile
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&rec.AccountName, &rec.SteamID, &rec.SharedSecret, &rec.IdentitySecret,
		&rec.DeviceID, &rec.RevocationCode, &rec.SerialNumber, &rec.URI, &rec.TokenGID,
		&rec.Session.SteamID, &rec.Session.AccessToken, &rec.Session.RefreshToken,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a, err := rec.ToAccount()
	if err != nil {
		return nil, fmt.Errorf("sqlite: corrupt account row %q: %w", rec.AccountName, err)
	}
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return a, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
