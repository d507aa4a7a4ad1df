// internal/orders/service.go
package orders

import (
	"context"

	"amnetsync/internal/amnet"
)

// Service defines the interface for the outbound order pusher.
type Service interface {
	// Push emits one upstream mutation per line item and records a sync
	// status for each, success or failure. The batch always completes; the
	// returned error covers only total inability to run.
	Push(ctx context.Context, order *Order) ([]SyncStatus, error)
}

// Pusher is the slice of the remote client the order pusher needs.
type Pusher interface {
	PushEventRegistration(ctx context.Context, p amnet.EventRegistrationPayload) (*amnet.PushResult, error)
	PushProductSale(ctx context.Context, p amnet.ProductSalePayload) (*amnet.PushResult, error)
	PushDuesPayment(ctx context.Context, p amnet.DuesPaymentPayload) (*amnet.PushResult, error)
	PushContribution(ctx context.Context, p amnet.ContributionPayload) (*amnet.PushResult, error)
	PushPeerReviewPayment(ctx context.Context, p amnet.PeerReviewPaymentPayload) (*amnet.PushResult, error)
}

// StatusStore records per-line-item outcomes, last write wins.
type StatusStore interface {
	Record(ctx context.Context, status SyncStatus) error
}
