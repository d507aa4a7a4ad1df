// internal/catalog/service.go
package catalog

import (
	"context"

	"amnetsync/internal/amnet"
)

// Service defines the interface for the catalog reconciler.
type Service interface {
	// ReconcileEvent pulls the remote event for (code, year) and merges it
	// into the local catalog. It returns ErrExcluded (via errors.Is) when
	// the record is intentionally filtered, and amnet.ErrNoData when the
	// record is absent upstream, after unpublishing any local item.
	ReconcileEvent(ctx context.Context, code, year string) (*CatalogItem, error)

	// ReconcileProduct does the same for a self-study product.
	ReconcileProduct(ctx context.Context, code string) (*CatalogItem, error)
}

// Fetcher is the slice of the remote record client the reconciler needs.
type Fetcher interface {
	GetEvent(ctx context.Context, code, year string) (*amnet.Event, error)
	GetProduct(ctx context.Context, code string) (*amnet.Product, error)
}
