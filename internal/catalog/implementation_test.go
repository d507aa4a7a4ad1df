package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amnetsync/internal/amnet"
)

// fakeFetcher serves canned remote records and counts fetches.
type fakeFetcher struct {
	events   map[string]*amnet.Event
	products map[string]*amnet.Product
	calls    int
	err      error
}

func (f *fakeFetcher) GetEvent(ctx context.Context, code, year string) (*amnet.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ev, ok := f.events[code+"/"+year]
	if !ok {
		return nil, amnet.ErrNoData
	}
	return ev, nil
}

func (f *fakeFetcher) GetProduct(ctx context.Context, code string) (*amnet.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[code]
	if !ok {
		return nil, amnet.ErrNoData
	}
	return p, nil
}

// memStore round-trips items through JSON so tests see the same copy
// semantics as the Postgres store.
type memStore struct {
	items map[string]*CatalogItem
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*CatalogItem)}
}

func storeKey(kind Kind, key NaturalKey) string {
	return string(kind) + ":" + key.String()
}

func cloneItem(item *CatalogItem) *CatalogItem {
	raw, _ := json.Marshal(item)
	var out CatalogItem
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *memStore) ItemByKey(ctx context.Context, kind Kind, key NaturalKey) (*CatalogItem, error) {
	item, ok := s.items[storeKey(kind, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *memStore) ItemsByAcronym(ctx context.Context, acronym, year string) ([]*CatalogItem, error) {
	var out []*CatalogItem
	for _, item := range s.items {
		if item.Acronym == acronym && item.Key.Year == year {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pricing.EarlyExpiry, out[j].Pricing.EarlyExpiry
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case (a != nil) != (b != nil):
			return a != nil
		}
		return out[i].Key.Code < out[j].Key.Code
	})
	return out, nil
}

func (s *memStore) SaveItem(ctx context.Context, item *CatalogItem) error {
	s.items[storeKey(item.Kind, item.Key)] = cloneItem(item)
	return nil
}

func multiDayEvent() *amnet.Event {
	return &amnet.Event{
		Code:       "4251C",
		Year:       "26",
		Name:       "Accounting & Auditing Conference",
		TypeCode:   "CF",
		FormatCode: "IP",
		BeginDate:  "2026-05-04",
		EndDate:    "2026-05-05",
		CutoffDate: "2026-04-20",
		DayTimes: []amnet.DayTime{
			{BeginTime: "08:30", EndTime: "16:30"},
			{BeginTime: "08:30", EndTime: "16:30"},
		},
		Fees: []amnet.Fee{
			{Ty: "R", Ty2: "ER", Amount: 300, ApplyToMemberType: "M"},
			{Ty: "R", Ty2: "ER", Amount: 400, ApplyToMemberType: "N"},
			{Ty: "R", Ty2: "SF", Amount: 350, ApplyToMemberType: "M"},
			{Ty: "R", Ty2: "SF", Amount: 450, ApplyToMemberType: "N"},
			{Ty: "R", Ty2: "OD", Amount: 200, ApplyToMemberType: "M"},
			{Ty: "R", Ty2: "OD", Amount: 250, ApplyToMemberType: "N"},
		},
		Sessions: []amnet.Session{
			{Code: "A1", Description: "Fraud Update", Day: "2026-05-04", BeginTime: "10:00", EndTime: "11:00", ConcurrentSessions: []string{"A2"}},
			{Code: "A2", Description: "Tax Roundtable", Day: "2026-05-04", BeginTime: "10:00", EndTime: "11:00", ConcurrentSessions: []string{"A1"}},
			{Code: "B1", Description: "Ethics Lunch", Day: "2026-05-05", BeginTime: "12:00", EndTime: "13:00", Fee: 45},
		},
		CurrentRegistrations: 45,
		BudgetRegistrations:  100,
	}
}

func newTestService(fetch *fakeFetcher, store Store) Service {
	loc, _ := time.LoadLocation("America/New_York")
	return NewService(fetch, store, nil, nil, nil, loc)
}

func TestReconcileEventCreatesItem(t *testing.T) {
	ev := multiDayEvent()
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": ev}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	item, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	assert.Equal(t, "Accounting & Auditing Conference", item.Title)
	assert.True(t, item.Published)
	assert.False(t, item.Excluded)
	assert.Len(t, item.DateRanges, 2)
	require.NotNil(t, item.Pricing.EarlyMemberPrice)
	assert.Equal(t, 300.0, *item.Pricing.EarlyMemberPrice)
	require.NotNil(t, item.Pricing.EarlyExpiry)

	// All-days + two day variations + one paid session variation.
	assert.Len(t, item.Variations, 4)
	allDays := item.VariationBySKU("4251C-26")
	require.NotNil(t, allDays)
	assert.Equal(t, 450.0, *allDays.Pricing.Price)
	day1 := item.VariationBySKU("4251C-26-D1")
	require.NotNil(t, day1)
	assert.Equal(t, 250.0, *day1.Pricing.Price)

	sessionVar := item.VariationBySKU("4251C-26-SB1")
	require.NotNil(t, sessionVar)
	assert.Equal(t, 45.0, *sessionVar.Pricing.Price)
	assert.Equal(t, "4251C-26-SB1", item.SessionByCode("B1").VariationSKU)

	assert.Equal(t, 3, item.SessionCount())
	assert.Equal(t, BadgeTrending, item.Badge)
	assert.False(t, item.Free)
	assert.Contains(t, item.SearchText, "Fraud Update")
}

func TestReconcileEventIdempotent(t *testing.T) {
	ev := multiDayEvent()
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": ev}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	first, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)
	second, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	assert.Equal(t, len(first.Variations), len(second.Variations))
	assert.Equal(t, first.SessionCount(), second.SessionCount())
	assert.Equal(t, len(first.Groups), len(second.Groups))
	for i := range first.Groups {
		assert.Equal(t, len(first.Groups[i].Timeslots), len(second.Groups[i].Timeslots))
	}
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Pricing, second.Pricing)
	assert.Equal(t, first.ID, second.ID, "same natural key, same item")
}

func TestReconcileEventNotFoundUnpublishes(t *testing.T) {
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": multiDayEvent()}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	_, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	delete(fetch.events, "4251C/26")
	_, err = svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.ErrorIs(t, err, amnet.ErrNoData, "not-found is re-raised")

	item, err := store.ItemByKey(context.Background(), KindEvent, NaturalKey{Code: "4251C", Year: "26"})
	require.NoError(t, err, "the item is unpublished, never removed")
	assert.False(t, item.Published)
	assert.True(t, item.ExternallyDeleted)
}

func TestReconcileEventNotFoundWithoutLocalItem(t *testing.T) {
	fetch := &fakeFetcher{events: map[string]*amnet.Event{}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	_, err := svc.ReconcileEvent(context.Background(), "NOPE", "26")
	require.ErrorIs(t, err, amnet.ErrNoData)
	assert.Empty(t, store.items, "nothing is created for an absent record")
}

func TestReconcileEventExclusionShortCircuits(t *testing.T) {
	ev := multiDayEvent()
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": ev}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	before, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	// Flip the exclusion flag and grow the remote session list: none of the
	// new children may appear locally.
	ev.ExcludeFromInternalCatalog = true
	ev.Sessions = append(ev.Sessions, amnet.Session{Code: "Z9", Description: "New Session"})

	_, err = svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.ErrorIs(t, err, ErrExcluded)

	after, err := store.ItemByKey(context.Background(), KindEvent, NaturalKey{Code: "4251C", Year: "26"})
	require.NoError(t, err)
	assert.True(t, after.Excluded)
	assert.False(t, after.Published)
	assert.Equal(t, before.SessionCount(), after.SessionCount())
	assert.Equal(t, len(before.Variations), len(after.Variations))
}

func TestReconcileEventExclusionWithoutItemIsNoop(t *testing.T) {
	ev := multiDayEvent()
	ev.ExcludeFromInternalCatalog = true
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": ev}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	_, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.ErrorIs(t, err, ErrExcluded)
	assert.Empty(t, store.items)
}

func TestGroupParentUniqueness(t *testing.T) {
	makeEvents := func() map[string]*amnet.Event {
		a := multiDayEvent()
		a.Acronym = "AAC"
		b := multiDayEvent()
		b.Code = "4252C"
		b.Acronym = "AAC"
		return map[string]*amnet.Event{"4251C/26": a, "4252C/26": b}
	}

	orders := [][]string{{"4251C", "4252C"}, {"4252C", "4251C"}}
	for _, order := range orders {
		store := newMemStore()
		svc := newTestService(&fakeFetcher{events: makeEvents()}, store)

		for _, code := range order {
			_, err := svc.ReconcileEvent(context.Background(), code, "26")
			require.NoError(t, err)
		}

		nonExcluded := 0
		for _, item := range store.items {
			if !item.Excluded {
				nonExcluded++
			}
		}
		assert.Equal(t, 1, nonExcluded, "processing order %v", order)
	}
}

func TestTimeslotGroupingOrderIndependent(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		ev := multiDayEvent()
		if reversed {
			ev.Sessions[0], ev.Sessions[1] = ev.Sessions[1], ev.Sessions[0]
		}
		store := newMemStore()
		svc := newTestService(&fakeFetcher{events: map[string]*amnet.Event{"4251C/26": ev}}, store)

		item, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
		require.NoError(t, err)

		var slot *Timeslot
		for _, g := range item.Groups {
			for _, ts := range g.Timeslots {
				if ts.Key == "A1|A2" {
					slot = ts
				}
			}
		}
		require.NotNil(t, slot, "reversed=%v", reversed)
		assert.Len(t, slot.Sessions, 2, "mutually concurrent sessions share the slot")
	}
}

func TestBundleCycleTerminates(t *testing.T) {
	a := multiDayEvent()
	a.Bundles = []amnet.BundleRef{{Code: "4252C", Year: "26"}}
	b := multiDayEvent()
	b.Code = "4252C"
	b.Bundles = []amnet.BundleRef{{Code: "4251C", Year: "26"}}

	store := newMemStore()
	svc := newTestService(&fakeFetcher{events: map[string]*amnet.Event{
		"4251C/26": a,
		"4252C/26": b,
	}}, store)

	item, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)
	assert.Equal(t, []NaturalKey{{Code: "4252C", Year: "26"}}, item.BundleKeys)

	_, err = store.ItemByKey(context.Background(), KindEvent, NaturalKey{Code: "4252C", Year: "26"})
	assert.NoError(t, err, "the bundle component was reconciled too")
}

func TestBundleFailureSkipsComponent(t *testing.T) {
	a := multiDayEvent()
	a.Bundles = []amnet.BundleRef{{Code: "MISSING", Year: "26"}}

	store := newMemStore()
	svc := newTestService(&fakeFetcher{events: map[string]*amnet.Event{"4251C/26": a}}, store)

	item, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err, "a failing bundle item never aborts the parent")
	assert.Empty(t, item.BundleKeys)
}

func TestRecordCacheAvoidsRefetch(t *testing.T) {
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": multiDayEvent()}}
	store := newMemStore()
	loc, _ := time.LoadLocation("America/New_York")
	svc := NewService(fetch, store, nil, nil, amnet.NewRecordCache(time.Minute), loc)

	_, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)
	_, err = svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	assert.Equal(t, 1, fetch.calls)
}

func TestRecordCacheAvoidsProductRefetch(t *testing.T) {
	fetch := &fakeFetcher{products: map[string]*amnet.Product{
		"SS-101": {Code: "SS-101", Description: "Ethics On Demand"},
	}}
	store := newMemStore()
	loc, _ := time.LoadLocation("America/New_York")
	svc := NewService(fetch, store, nil, nil, amnet.NewRecordCache(time.Minute), loc)

	_, err := svc.ReconcileProduct(context.Background(), "SS-101")
	require.NoError(t, err)
	_, err = svc.ReconcileProduct(context.Background(), "SS-101")
	require.NoError(t, err)

	assert.Equal(t, 1, fetch.calls)
}

func TestReconcileProduct(t *testing.T) {
	fetch := &fakeFetcher{products: map[string]*amnet.Product{
		"SS-101": {
			Code:         "SS-101",
			Description:  "Ethics On Demand",
			CategoryCode: "ETH",
			Fees: []amnet.Fee{
				{Ty: "R", Ty2: "SF", Amount: 99, ApplyToMemberType: "N"},
				{Ty: "R", Ty2: "SF", Amount: 79, ApplyToMemberType: "M"},
			},
		},
	}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	item, err := svc.ReconcileProduct(context.Background(), "SS-101")
	require.NoError(t, err)
	assert.Equal(t, KindSelfStudy, item.Kind)
	assert.Equal(t, "Ethics On Demand", item.Title)
	require.Len(t, item.Variations, 1)
	assert.Equal(t, "SS-101", item.Variations[0].SKU)
	assert.Equal(t, 79.0, *item.Pricing.MemberPrice)

	fetch.products["SS-101"].ExcludeFromWebSale = true
	_, err = svc.ReconcileProduct(context.Background(), "SS-101")
	require.ErrorIs(t, err, ErrExcluded)

	after, err := store.ItemByKey(context.Background(), KindSelfStudy, NaturalKey{Code: "SS-101"})
	require.NoError(t, err)
	assert.True(t, after.Excluded)
}

func TestReconcileTransientErrorLeavesStateUntouched(t *testing.T) {
	fetch := &fakeFetcher{events: map[string]*amnet.Event{"4251C/26": multiDayEvent()}}
	store := newMemStore()
	svc := newTestService(fetch, store)

	before, err := svc.ReconcileEvent(context.Background(), "4251C", "26")
	require.NoError(t, err)

	fetch.err = &amnet.RemoteError{Endpoint: "Event", Status: 503, Message: "upstream down"}
	_, err = svc.ReconcileEvent(context.Background(), "4251C", "26")
	var remoteErr *amnet.RemoteError
	require.ErrorAs(t, err, &remoteErr)

	after, err := store.ItemByKey(context.Background(), KindEvent, NaturalKey{Code: "4251C", Year: "26"})
	require.NoError(t, err)
	assert.True(t, after.Published, "transient failures never touch local state")
	assert.Equal(t, before.SessionCount(), after.SessionCount())
}
