package store

import (
	"context"
	"database/sql"
)

// migrate runs all database migrations
func migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Credentials, one row per registry slot; position keeps registration order
		`CREATE TABLE IF NOT EXISTS credentials (
			position INTEGER PRIMARY KEY,
			athlete_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at BIGINT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_credentials_athlete ON credentials(athlete_id)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}

	return nil
}
