// internal/registration/implementation.go
package registration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"amnetsync/internal/amnet"
	"amnetsync/internal/catalog"
)

// service implements the Service interface.
type service struct {
	store   Store
	feed    Feed
	catalog catalog.Store
	loc     *time.Location
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates the registration reconciler. feed may be nil when only
// direct Reconcile calls are needed.
func NewService(store Store, feed Feed, catalogStore catalog.Store, loc *time.Location) Service {
	return &service{
		store:   store,
		feed:    feed,
		catalog: catalogStore,
		loc:     loc,
		tracer:  otel.Tracer("amnetsync/registration"),
		now:     time.Now,
	}
}

func (s *service) Reconcile(ctx context.Context, reg amnet.Registration, registrableID uuid.UUID) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "registration.reconcile",
		trace.WithAttributes(
			attribute.String("registrable.id", registrableID.String()),
			attribute.Int("person.id", reg.PersonID),
		),
	)
	defer span.End()

	// Canceled remote rows are skipped outright, never deleted locally.
	if reg.StatusCode == "C" {
		span.SetAttributes(attribute.Bool("registration.skipped", true))
		return nil, nil
	}

	updated := s.now()
	if t, ok := catalog.ParseRemoteTimestamp(reg.UpdatedAt, s.loc); ok {
		updated = t
	}

	rec, err := s.store.FindByKey(ctx, registrableID, reg.PersonID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if rec == nil {
		rec = &Record{
			ID:            uuid.New(),
			RegistrableID: registrableID,
			PersonID:      reg.PersonID,
		}
	}
	rec.UpdatedAt = updated
	rec.SyncedAt = s.now()

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save registration: %w", err)
	}
	return rec, nil
}

func (s *service) SyncSince(ctx context.Context, since time.Time) ([]FeedOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "registration.sync_since",
		trace.WithAttributes(attribute.String("since", since.Format("2006-01-02"))),
	)
	defer span.End()

	rows, err := s.feed.GetRegistrationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull registration feed: %w", err)
	}

	outcomes := make([]FeedOutcome, 0, len(rows))
	for _, reg := range rows {
		outcomes = append(outcomes, FeedOutcome{
			Code:     reg.EventCode,
			PersonID: reg.PersonID,
			Outcome:  s.syncRow(ctx, reg),
		})
	}
	span.SetAttributes(attribute.Int("feed.rows", len(rows)))
	return outcomes, nil
}

func (s *service) SyncSalesSince(ctx context.Context, since time.Time) ([]FeedOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "registration.sync_sales_since",
		trace.WithAttributes(attribute.String("since", since.Format("2006-01-02"))),
	)
	defer span.End()

	rows, err := s.feed.GetProductSalesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull product sale feed: %w", err)
	}

	outcomes := make([]FeedOutcome, 0, len(rows))
	for _, sale := range rows {
		outcomes = append(outcomes, FeedOutcome{
			Code:     sale.ProductCode,
			PersonID: sale.PersonID,
			Outcome:  s.syncSale(ctx, sale),
		})
	}
	span.SetAttributes(attribute.Int("feed.rows", len(rows)))
	return outcomes, nil
}

// syncRow resolves the registrable entity for one feed row and reconciles
// it. Failures are reported as data so the batch keeps going.
func (s *service) syncRow(ctx context.Context, reg amnet.Registration) string {
	key := catalog.NaturalKey{Code: reg.EventCode, Year: reg.EventYear}
	item, err := s.catalog.ItemByKey(ctx, catalog.KindEvent, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return "unknown_event"
	}
	if err != nil {
		log.Printf("registration: load event %s: %v", key, err)
		return "error: " + err.Error()
	}

	registrableID := item.ID
	if reg.SessionCode != "" {
		sess := item.SessionByCode(reg.SessionCode)
		if sess == nil {
			return "unknown_session"
		}
		registrableID = sess.ID
	}

	rec, err := s.Reconcile(ctx, reg, registrableID)
	if err != nil {
		log.Printf("registration: reconcile %s person %d: %v", key, reg.PersonID, err)
		return "error: " + err.Error()
	}
	if rec == nil {
		return "skipped"
	}
	return "synced"
}

// syncSale attaches one purchase-feed row to its self-study item.
func (s *service) syncSale(ctx context.Context, sale amnet.ProductSale) string {
	key := catalog.NaturalKey{Code: sale.ProductCode}
	item, err := s.catalog.ItemByKey(ctx, catalog.KindSelfStudy, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return "unknown_product"
	}
	if err != nil {
		log.Printf("registration: load product %s: %v", key, err)
		return "error: " + err.Error()
	}

	rec, err := s.Reconcile(ctx, amnet.Registration{
		PersonID:   sale.PersonID,
		StatusCode: sale.StatusCode,
		UpdatedAt:  sale.UpdatedAt,
	}, item.ID)
	if err != nil {
		log.Printf("registration: reconcile sale %s person %d: %v", key, sale.PersonID, err)
		return "error: " + err.Error()
	}
	if rec == nil {
		return "skipped"
	}
	return "synced"
}
