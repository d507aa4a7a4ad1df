// internal/registration/service.go
package registration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"amnetsync/internal/amnet"
)

// Service defines the interface for the registration reconciler.
type Service interface {
	// Reconcile upserts the link for one remote registration row against a
	// resolved registrable entity. A cancellation status on the remote row
	// skips the record entirely and returns (nil, nil).
	Reconcile(ctx context.Context, reg amnet.Registration, registrableID uuid.UUID) (*Record, error)

	// SyncSince pulls the remote registration feed changed since the given
	// instant and reconciles every row. Per-row failures are reported in
	// the outcomes; the batch always completes.
	SyncSince(ctx context.Context, since time.Time) ([]FeedOutcome, error)

	// SyncSalesSince does the same for the self-study purchase feed,
	// attaching each sale to its self-study catalog item.
	SyncSalesSince(ctx context.Context, since time.Time) ([]FeedOutcome, error)
}

// Store persists registration links, upserting by the composite key.
type Store interface {
	FindByKey(ctx context.Context, registrableID uuid.UUID, personID int) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// Feed is the slice of the remote client the feed pulls need.
type Feed interface {
	GetRegistrationsSince(ctx context.Context, since time.Time) ([]amnet.Registration, error)
	GetProductSalesSince(ctx context.Context, since time.Time) ([]amnet.ProductSale, error)
}
