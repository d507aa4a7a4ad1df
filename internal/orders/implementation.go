// internal/orders/implementation.go
package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"amnetsync/internal/amnet"
)

// service implements the Service interface.
type service struct {
	client   Pusher
	statuses StatusStore
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates the outbound order pusher.
func NewService(client Pusher, statuses StatusStore) Service {
	return &service{
		client:   client,
		statuses: statuses,
		tracer:   otel.Tracer("amnetsync/orders"),
		now:      time.Now,
	}
}

func (s *service) Push(ctx context.Context, order *Order) ([]SyncStatus, error) {
	ctx, span := s.tracer.Start(ctx, "orders.push",
		trace.WithAttributes(
			attribute.String("order.id", order.ID.String()),
			attribute.Int("order.items", len(order.Items)),
		),
	)
	defer span.End()

	statuses := make([]SyncStatus, 0, len(order.Items))
	failed := 0
	for i := range order.Items {
		item := &order.Items[i]
		status := SyncStatus{
			OrderID:    order.ID,
			LineItemID: item.ID,
			SyncedAt:   s.now(),
		}

		result, err := s.pushItem(ctx, order, item)
		switch {
		case err != nil:
			status.Log = err.Error()
		case !result.Processed:
			status.Log = strings.Join(result.Messages, "; ")
		default:
			status.Succeeded = true
			status.Log = strings.Join(result.Messages, "; ")
		}
		if !status.Succeeded {
			failed++
		}

		// The status write is unconditional and safe to repeat.
		if err := s.statuses.Record(ctx, status); err != nil {
			log.Printf("orders: record status for %s/%s: %v", order.ID, item.ID, err)
		}
		statuses = append(statuses, status)
	}

	span.SetAttributes(attribute.Int("order.failed_items", failed))
	return statuses, nil
}

func (s *service) pushItem(ctx context.Context, order *Order, item *LineItem) (*amnet.PushResult, error) {
	switch item.Kind {
	case KindEventRegistration:
		return s.client.PushEventRegistration(ctx, buildEventRegistration(order, item))
	case KindSelfStudy:
		return s.client.PushProductSale(ctx, buildProductSale(order, item))
	case KindDues:
		return s.client.PushDuesPayment(ctx, buildDuesPayment(order, item))
	case KindDonation:
		return s.client.PushContribution(ctx, buildContribution(order, item))
	case KindPeerReview:
		return s.client.PushPeerReviewPayment(ctx, buildPeerReviewPayment(order, item))
	}
	return nil, fmt.Errorf("unknown line item kind %q", item.Kind)
}
