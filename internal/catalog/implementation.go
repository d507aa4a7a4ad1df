// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"amnetsync/internal/amnet"
)

// service implements the Service interface.
type service struct {
	fetch  Fetcher
	store  Store
	docs   DocumentStore
	index  Indexer
	cache  *amnet.RecordCache
	loc    *time.Location
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates the catalog reconciler. docs, index, and cache may be
// nil; loc is the timezone event schedules are expressed in.
func NewService(fetch Fetcher, store Store, docs DocumentStore, index Indexer, cache *amnet.RecordCache, loc *time.Location) Service {
	return &service{
		fetch:  fetch,
		store:  store,
		docs:   docs,
		index:  index,
		cache:  cache,
		loc:    loc,
		tracer: otel.Tracer("amnetsync/catalog"),
		now:    time.Now,
	}
}

func (s *service) ReconcileEvent(ctx context.Context, code, year string) (*CatalogItem, error) {
	return s.reconcileEvent(ctx, NaturalKey{Code: code, Year: year}, map[NaturalKey]*CatalogItem{})
}

// reconcileEvent runs the full state machine for one natural key. visited
// guards recursive bundle resolution against cycles: a revisited key returns
// whatever the first visit produced.
func (s *service) reconcileEvent(ctx context.Context, key NaturalKey, visited map[NaturalKey]*CatalogItem) (*CatalogItem, error) {
	if item, ok := visited[key]; ok {
		log.Printf("catalog: bundle cycle at %s, reusing in-flight item", key)
		return item, nil
	}

	ctx, span := s.tracer.Start(ctx, "catalog.reconcile_event",
		trace.WithAttributes(
			attribute.String("event.code", key.Code),
			attribute.String("event.year", key.Year),
		),
	)
	defer span.End()

	ev, err := s.fetchEvent(ctx, key)
	if errors.Is(err, amnet.ErrNoData) {
		// Absent upstream: unpublish the local item if one exists, then
		// re-raise so the caller sees the not-found outcome.
		if uerr := s.unpublishDeleted(ctx, KindEvent, key); uerr != nil {
			return nil, uerr
		}
		span.SetAttributes(attribute.Bool("event.not_found", true))
		return nil, fmt.Errorf("event %s: %w", key, err)
	}
	if err != nil {
		return nil, err
	}

	excluded, published := DeriveEventFlags(ev)

	existing, err := s.store.ItemByKey(ctx, KindEvent, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load event %s: %w", key, err)
	}

	if excluded {
		// Short-circuit: flags only, no field sync, no nested reconciliation.
		span.SetAttributes(attribute.Bool("event.excluded", true))
		if existing == nil {
			return nil, ErrExcluded
		}
		existing.Excluded = true
		existing.Published = published
		existing.UpdatedAt = s.now()
		if err := s.store.SaveItem(ctx, existing); err != nil {
			return nil, fmt.Errorf("save excluded event %s: %w", key, err)
		}
		return nil, ErrExcluded
	}

	item := existing
	if item == nil {
		item = &CatalogItem{
			ID:        uuid.New(),
			Kind:      KindEvent,
			Key:       key,
			CreatedAt: s.now(),
		}
	}
	visited[key] = item

	// Steps 3-4: scalar fields and acronym-group parent selection. Failures
	// here abort the whole operation.
	s.applyEventFields(item, ev)
	item.Published = published
	if err := s.applyGroupParent(ctx, item); err != nil {
		return nil, fmt.Errorf("group parent for %s: %w", key, err)
	}
	item.UpdatedAt = s.now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save event %s: %w", key, err)
	}

	// Step 5: nested collections. Each is idempotent and keyed by a stable
	// identifier; sub-entity failures are logged without aborting the parent.
	s.syncVariations(item, ev)
	s.syncSessions(item, ev)
	s.syncSpecialFees(item, ev)
	s.syncBundles(ctx, item, ev, visited)
	if s.docs != nil && len(ev.Documents) > 0 {
		if err := s.docs.SyncDocuments(ctx, item, ev.Documents); err != nil {
			log.Printf("catalog: documents for %s: %v", key, err)
		}
	}
	item.Badge = DeriveBadge(ev.CurrentRegistrations, ev.BudgetRegistrations)
	item.SearchText = buildEventSearchText(ev)

	// Step 6: final persist.
	item.UpdatedAt = s.now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save event %s: %w", key, err)
	}
	if s.index != nil {
		if err := s.index.IndexItem(ctx, item); err != nil {
			log.Printf("catalog: index %s: %v", key, err)
		}
	}
	return item, nil
}

func (s *service) ReconcileProduct(ctx context.Context, code string) (*CatalogItem, error) {
	key := NaturalKey{Code: code}

	ctx, span := s.tracer.Start(ctx, "catalog.reconcile_product",
		trace.WithAttributes(attribute.String("product.code", code)),
	)
	defer span.End()

	p, err := s.fetchProduct(ctx, code)
	if errors.Is(err, amnet.ErrNoData) {
		if uerr := s.unpublishDeleted(ctx, KindSelfStudy, key); uerr != nil {
			return nil, uerr
		}
		span.SetAttributes(attribute.Bool("product.not_found", true))
		return nil, fmt.Errorf("product %s: %w", code, err)
	}
	if err != nil {
		return nil, err
	}

	excluded, published := DeriveProductFlags(p)

	existing, err := s.store.ItemByKey(ctx, KindSelfStudy, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load product %s: %w", code, err)
	}

	if excluded {
		span.SetAttributes(attribute.Bool("product.excluded", true))
		if existing == nil {
			return nil, ErrExcluded
		}
		existing.Excluded = true
		existing.Published = published
		existing.UpdatedAt = s.now()
		if err := s.store.SaveItem(ctx, existing); err != nil {
			return nil, fmt.Errorf("save excluded product %s: %w", code, err)
		}
		return nil, ErrExcluded
	}

	item := existing
	if item == nil {
		item = &CatalogItem{
			ID:        uuid.New(),
			Kind:      KindSelfStudy,
			Key:       key,
			CreatedAt: s.now(),
		}
	}

	item.Title = p.Description
	item.TypeCode = p.CategoryCode
	item.FormatCode = p.FormatCode
	item.Excluded = false
	item.Published = published
	item.ExternallyDeleted = false
	tier, _ := DerivePricing(p.Fees, nil)
	item.Pricing = tier
	item.Credits = creditLines(p.Credits)

	s.upsertVariation(item, item.Key.Code, p.Description, nil, tier)
	item.Free = allFeesZero(p.Fees)
	item.SearchText = strings.Join([]string{p.Description, p.Code, p.CategoryCode}, " ")

	if s.docs != nil && len(p.Documents) > 0 {
		if err := s.docs.SyncDocuments(ctx, item, p.Documents); err != nil {
			log.Printf("catalog: documents for %s: %v", code, err)
		}
	}

	item.UpdatedAt = s.now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save product %s: %w", code, err)
	}
	if s.index != nil {
		if err := s.index.IndexItem(ctx, item); err != nil {
			log.Printf("catalog: index %s: %v", code, err)
		}
	}
	return item, nil
}

// fetchEvent consults the caller-owned cache before the remote client.
func (s *service) fetchEvent(ctx context.Context, key NaturalKey) (*amnet.Event, error) {
	if s.cache != nil {
		if ev, ok := s.cache.Event(key.String()); ok {
			return ev, nil
		}
	}
	ev, err := s.fetch.GetEvent(ctx, key.Code, key.Year)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.PutEvent(key.String(), ev)
	}
	return ev, nil
}

// fetchProduct consults the caller-owned cache before the remote client.
func (s *service) fetchProduct(ctx context.Context, code string) (*amnet.Product, error) {
	if s.cache != nil {
		if p, ok := s.cache.Product(code); ok {
			return p, nil
		}
	}
	p, err := s.fetch.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.PutProduct(code, p)
	}
	return p, nil
}

// unpublishDeleted marks an existing local item as externally deleted and
// unpublished. A missing local item is fine: nothing is created.
func (s *service) unpublishDeleted(ctx context.Context, kind Kind, key NaturalKey) error {
	item, err := s.store.ItemByKey(ctx, kind, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	item.Published = false
	item.ExternallyDeleted = true
	item.UpdatedAt = s.now()
	if err := s.store.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("unpublish %s: %w", key, err)
	}
	return nil
}

func (s *service) applyEventFields(item *CatalogItem, ev *amnet.Event) {
	item.Title = ev.Name
	item.TypeCode = ev.TypeCode
	item.FormatCode = ev.FormatCode
	item.Acronym = ev.Acronym
	item.Excluded = false
	item.ExternallyDeleted = false

	begin, okBegin := ParseRemoteDate(ev.BeginDate, s.loc)
	end, okEnd := ParseRemoteDate(ev.EndDate, s.loc)
	if okBegin && okEnd {
		item.DateRanges = DeriveDateRanges(begin, end, ev.DayTimes, s.loc)
	}

	var cutoff *time.Time
	if t, ok := ParseRemoteDate(ev.CutoffDate, s.loc); ok {
		cutoff = &t
	}
	tier, _ := DerivePricing(ev.Fees, cutoff)
	item.Pricing = tier
	item.Free = IsFreeEvent(ev)
	item.Credits = creditLines(ev.Credits)
}

// applyGroupParent recomputes acronym-based exclusion. Exactly one member of
// a group ends up non-excluded: an existing non-excluded published sibling
// keeps the role, otherwise this item is promoted.
func (s *service) applyGroupParent(ctx context.Context, item *CatalogItem) error {
	if item.Acronym == "" {
		return nil
	}
	siblings, err := s.store.ItemsByAcronym(ctx, item.Acronym, item.Key.Year)
	if err != nil {
		return err
	}
	var members []GroupMember
	for _, sib := range siblings {
		if sib.Key == item.Key {
			continue
		}
		members = append(members, GroupMember{
			Key:         sib.Key,
			Excluded:    sib.Excluded,
			Published:   sib.Published,
			EarlyExpiry: sib.Pricing.EarlyExpiry,
		})
	}
	parent := SelectGroupParent(item.Key, members)
	item.Excluded = parent != item.Key
	return nil
}

// syncVariations upserts the purchasable units by SKU: one all-days
// variation, plus per-day variations when the event spans several days and
// carries one-day pricing.
func (s *service) syncVariations(item *CatalogItem, ev *amnet.Event) {
	var cutoff *time.Time
	if t, ok := ParseRemoteDate(ev.CutoffDate, s.loc); ok {
		cutoff = &t
	}
	tier, oneDay := DerivePricing(ev.Fees, cutoff)

	var full *DateRange
	if len(item.DateRanges) > 0 {
		full = &DateRange{Start: item.DateRanges[0].Start, End: item.DateRanges[len(item.DateRanges)-1].End}
	}
	s.upsertVariation(item, eventSKU(item.Key), ev.Name, full, tier)

	if len(item.DateRanges) > 1 && !tierEmpty(oneDay) {
		for i := range item.DateRanges {
			r := item.DateRanges[i]
			sku := fmt.Sprintf("%s-D%d", eventSKU(item.Key), i+1)
			title := fmt.Sprintf("%s - Day %d", ev.Name, i+1)
			s.upsertVariation(item, sku, title, &r, oneDay)
		}
	}
}

func (s *service) upsertVariation(item *CatalogItem, sku, title string, r *DateRange, tier PricingTier) *Variation {
	v := item.VariationBySKU(sku)
	if v == nil {
		v = &Variation{ID: uuid.New(), SKU: sku}
		item.Variations = append(item.Variations, v)
	}
	v.Title = title
	v.Range = r
	v.Pricing = tier
	return v
}

// syncSessions upserts each remote session by code and, for newly created
// sessions, places them into their concurrent-session timeslot inside the
// matching day bucket. Finally the whole schedule is re-sorted.
func (s *service) syncSessions(item *CatalogItem, ev *amnet.Event) {
	for _, raw := range ev.Sessions {
		sess := item.SessionByCode(raw.Code)
		created := sess == nil
		if created {
			sess = &Session{ID: uuid.New(), Code: raw.Code}
		}

		sess.Title = raw.Description
		sess.Capacity = raw.Capacity
		sess.Leaders = raw.Leaders
		sess.SortSequence = raw.SortSequence
		sess.Fee = raw.Fee
		sess.CreditHours = raw.CreditHours
		if day, ok := ParseRemoteDate(raw.Day, s.loc); ok {
			if start, ok := atClock(day, raw.BeginTime, s.loc); ok {
				sess.Start = &start
			}
			if end, ok := atClock(day, raw.EndTime, s.loc); ok {
				sess.End = &end
			}
		}
		if raw.Fee > 0 {
			sku := fmt.Sprintf("%s-S%s", eventSKU(item.Key), raw.Code)
			amount := raw.Fee
			s.upsertVariation(item, sku, raw.Description, nil, PricingTier{Price: &amount})
			sess.VariationSKU = sku
		}

		if created {
			s.placeSession(item, sess, raw.ConcurrentSessions)
		}
	}
	sortSchedule(item)
}

// placeSession finds or creates the timeslot and group a new session
// belongs to and threads the membership links.
func (s *service) placeSession(item *CatalogItem, sess *Session, concurrent []string) {
	group := s.groupForSession(item, sess)
	key := TimeslotKey(sess.Code, concurrent)

	var slot *Timeslot
	for _, ts := range group.Timeslots {
		if ts.Key == key {
			slot = ts
			break
		}
	}
	if slot == nil {
		slot = &Timeslot{Key: key, Start: sess.Start}
		group.Timeslots = append(group.Timeslots, slot)
	}
	if slot.Start == nil {
		slot.Start = sess.Start
	}
	slot.Sessions = append(slot.Sessions, sess)
}

// groupForSession returns the day bucket whose range covers the session's
// start, creating it from the item's date ranges on first use. A session
// outside every day range gets a fallback bucket keyed on its own range.
func (s *service) groupForSession(item *CatalogItem, sess *Session) *TimeslotGroup {
	if sess.Start != nil {
		for i := range item.DateRanges {
			r := item.DateRanges[i]
			if !sameDay(r.Start, *sess.Start) {
				continue
			}
			key := r.Start.Format("2006-01-02")
			for _, g := range item.Groups {
				if g.Key == key {
					return g
				}
			}
			g := &TimeslotGroup{Key: key, Start: &r.Start}
			if !r.End.IsZero() {
				end := r.End
				g.End = &end
			}
			item.Groups = append(item.Groups, g)
			return g
		}
	}

	key := "orphan:" + sess.Code
	if sess.Start != nil {
		key = "orphan:" + sess.Start.Format("2006-01-02T15:04")
	}
	for _, g := range item.Groups {
		if g.Key == key {
			return g
		}
	}
	g := &TimeslotGroup{Key: key, Start: sess.Start, End: sess.End}
	item.Groups = append(item.Groups, g)
	return g
}

func (s *service) syncSpecialFees(item *CatalogItem, ev *amnet.Event) {
	// Special fees are replaced wholesale on every sync.
	item.SpecialFees = item.SpecialFees[:0]
	for _, fee := range ev.SpecialFees {
		item.SpecialFees = append(item.SpecialFees, SpecialFee{
			Description: fee.Description,
			Amount:      fee.Amount,
		})
	}
}

// syncBundles resolves each bundle component to its own catalog item via
// recursive reconcile. A component that fails or is excluded is skipped.
func (s *service) syncBundles(ctx context.Context, item *CatalogItem, ev *amnet.Event, visited map[NaturalKey]*CatalogItem) {
	item.BundleKeys = item.BundleKeys[:0]
	for _, b := range ev.Bundles {
		childKey := NaturalKey{Code: b.Code, Year: b.Year}
		if _, err := s.reconcileEvent(ctx, childKey, visited); err != nil {
			if !errors.Is(err, ErrExcluded) {
				log.Printf("catalog: bundle item %s of %s: %v", childKey, item.Key, err)
			}
			continue
		}
		item.BundleKeys = append(item.BundleKeys, childKey)
	}
}

// sortSchedule re-sorts groups by start (nils first), timeslots within a
// group by start, and sessions within a timeslot by sort sequence when
// present, else lexicographically by code.
func sortSchedule(item *CatalogItem) {
	sort.SliceStable(item.Groups, func(i, j int) bool {
		return timeLess(item.Groups[i].Start, item.Groups[j].Start)
	})
	for _, g := range item.Groups {
		sort.SliceStable(g.Timeslots, func(i, j int) bool {
			return timeLess(g.Timeslots[i].Start, g.Timeslots[j].Start)
		})
		for _, ts := range g.Timeslots {
			sort.SliceStable(ts.Sessions, func(i, j int) bool {
				a, b := ts.Sessions[i], ts.Sessions[j]
				if a.SortSequence != "" && b.SortSequence != "" && a.SortSequence != b.SortSequence {
					return a.SortSequence < b.SortSequence
				}
				return a.Code < b.Code
			})
		}
	}
}

func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	}
	return a.Before(*b)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func eventSKU(key NaturalKey) string {
	return fmt.Sprintf("%s-%s", key.Code, key.Year)
}

func tierEmpty(t PricingTier) bool {
	return t.Price == nil && t.MemberPrice == nil && t.EarlyPrice == nil &&
		t.EarlyMemberPrice == nil && t.Override == nil
}

func allFeesZero(fees []amnet.Fee) bool {
	for _, fee := range fees {
		if fee.Amount != 0 {
			return false
		}
	}
	return true
}

func creditLines(credits []amnet.Credit) []CreditLine {
	if len(credits) == 0 {
		return nil
	}
	lines := make([]CreditLine, 0, len(credits))
	for _, c := range credits {
		lines = append(lines, CreditLine{Category: c.Category, Hours: c.Hours})
	}
	return lines
}

func buildEventSearchText(ev *amnet.Event) string {
	parts := []string{ev.Name, ev.Code, ev.Acronym, ev.FacilityName, ev.FacilityCity}
	for _, sess := range ev.Sessions {
		parts = append(parts, sess.Description)
		parts = append(parts, sess.Leaders...)
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
