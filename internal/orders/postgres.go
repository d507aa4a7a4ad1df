// internal/orders/postgres.go
package orders

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStatusStore persists push outcomes keyed by (order, line item).
type PostgresStatusStore struct {
	db *sqlx.DB
}

func NewPostgresStatusStore(db *sqlx.DB) *PostgresStatusStore {
	return &PostgresStatusStore{db: db}
}

func (s *PostgresStatusStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_sync_statuses (
			order_id UUID NOT NULL,
			line_item_id UUID NOT NULL,
			synced_at TIMESTAMPTZ NOT NULL,
			succeeded BOOLEAN NOT NULL,
			log TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (order_id, line_item_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure order sync schema: %w", err)
	}
	return nil
}

func (s *PostgresStatusStore) Record(ctx context.Context, status SyncStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_sync_statuses (order_id, line_item_id, synced_at, succeeded, log)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, line_item_id) DO UPDATE
		SET synced_at = EXCLUDED.synced_at,
		    succeeded = EXCLUDED.succeeded,
		    log = EXCLUDED.log
	`, status.OrderID, status.LineItemID, status.SyncedAt, status.Succeeded, status.Log)
	if err != nil {
		return fmt.Errorf("record sync status: %w", err)
	}
	return nil
}
