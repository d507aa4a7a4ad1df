// internal/catalog/postgres.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists catalog items in Postgres. Scalars that feed
// lookups are columns; the aggregate (variations, sessions, groups) rides
// along as a JSONB document.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the catalog tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_items (
			id UUID PRIMARY KEY,
			kind TEXT NOT NULL,
			code TEXT NOT NULL,
			year TEXT NOT NULL DEFAULT '',
			acronym TEXT NOT NULL DEFAULT '',
			excluded BOOLEAN NOT NULL DEFAULT FALSE,
			published BOOLEAN NOT NULL DEFAULT TRUE,
			early_expiry TIMESTAMPTZ,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (kind, code, year)
		);
		CREATE INDEX IF NOT EXISTS catalog_items_acronym_idx
			ON catalog_items (acronym, year) WHERE acronym <> '';
	`)
	if err != nil {
		return fmt.Errorf("ensure catalog schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ItemByKey(ctx context.Context, kind Kind, key NaturalKey) (*CatalogItem, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM catalog_items
		WHERE kind = $1 AND code = $2 AND year = $3
	`, string(kind), key.Code, key.Year).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item %s: %w", key, err)
	}
	return decodeItem(doc)
}

func (s *PostgresStore) ItemsByAcronym(ctx context.Context, acronym, year string) ([]*CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM catalog_items
		WHERE acronym = $1 AND year = $2
		ORDER BY early_expiry ASC NULLS LAST, code ASC
	`, acronym, year)
	if err != nil {
		return nil, fmt.Errorf("query acronym group %s/%s: %w", acronym, year, err)
	}
	defer rows.Close()

	var items []*CatalogItem
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan acronym group row: %w", err)
		}
		item, err := decodeItem(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SaveItem(ctx context.Context, item *CatalogItem) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, kind, code, year, acronym, excluded, published, early_expiry, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (kind, code, year) DO UPDATE
		SET acronym = EXCLUDED.acronym,
		    excluded = EXCLUDED.excluded,
		    published = EXCLUDED.published,
		    early_expiry = EXCLUDED.early_expiry,
		    doc = EXCLUDED.doc,
		    updated_at = EXCLUDED.updated_at
	`, item.ID, string(item.Kind), item.Key.Code, item.Key.Year, item.Acronym,
		item.Excluded, item.Published, item.Pricing.EarlyExpiry, doc, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save item %s: %w", item.Key, err)
	}
	return nil
}

func decodeItem(doc []byte) (*CatalogItem, error) {
	var item CatalogItem
	if err := json.Unmarshal(doc, &item); err != nil {
		return nil, fmt.Errorf("decode item doc: %w", err)
	}
	return &item, nil
}
