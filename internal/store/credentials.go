package store

import (
	"context"
	"fmt"
)

// Load returns every stored credential in registration order.
func (s *SQLStore) Load(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT athlete_id, name, access_token, refresh_token, expires_at
		FROM credentials
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Name, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// Save replaces the stored set with creds inside a single transaction.
func (s *SQLStore) Save(ctx context.Context, creds []Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO credentials (position, athlete_id, name, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(position) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range creds {
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.Name, c.AccessToken, c.RefreshToken, c.ExpiresAt); err != nil {
			return fmt.Errorf("saving credential %s: %w", c.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM credentials WHERE position >= ?`), len(creds)); err != nil {
		return fmt.Errorf("trimming credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
