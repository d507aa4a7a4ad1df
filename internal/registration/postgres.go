// internal/registration/postgres.go
package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStore persists registration links with a unique composite key.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS registrations (
			id UUID PRIMARY KEY,
			registrable_id UUID NOT NULL,
			person_id INT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			synced_at TIMESTAMPTZ NOT NULL,
			UNIQUE (registrable_id, person_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure registration schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, registrableID uuid.UUID, personID int) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, registrable_id, person_id, updated_at, synced_at
		FROM registrations
		WHERE registrable_id = $1 AND person_id = $2
	`, registrableID, personID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query registration: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (id, registrable_id, person_id, updated_at, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (registrable_id, person_id) DO UPDATE
		SET updated_at = EXCLUDED.updated_at,
		    synced_at = EXCLUDED.synced_at
	`, rec.ID, rec.RegistrableID, rec.PersonID, rec.UpdatedAt, rec.SyncedAt)
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}
