// internal/catalog/store.go
package catalog

import (
	"context"

	"amnetsync/internal/amnet"
)

// Store is the local record store collaborator. Lookups are by natural key;
// SaveItem upserts the whole aggregate, children included.
type Store interface {
	// ItemByKey returns the item for the key or ErrNotFound.
	ItemByKey(ctx context.Context, kind Kind, key NaturalKey) (*CatalogItem, error)

	// ItemsByAcronym returns every item sharing an acronym within a year,
	// ordered by early-bird expiry then code.
	ItemsByAcronym(ctx context.Context, acronym, year string) ([]*CatalogItem, error)

	// SaveItem persists the item, creating or replacing by natural key.
	SaveItem(ctx context.Context, item *CatalogItem) error
}

// DocumentStore attaches remote documents to a reconciled item. Failures are
// logged per item and never abort the parent reconcile.
type DocumentStore interface {
	SyncDocuments(ctx context.Context, item *CatalogItem, docs []amnet.Document) error
}

// Indexer pushes the reconciled item into the search index.
type Indexer interface {
	IndexItem(ctx context.Context, item *CatalogItem) error
}
