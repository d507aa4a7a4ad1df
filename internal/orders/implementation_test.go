package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amnetsync/internal/amnet"
)

// fakePusher records every payload and can fail selected endpoints.
type fakePusher struct {
	registrations []amnet.EventRegistrationPayload
	sales         []amnet.ProductSalePayload
	dues          []amnet.DuesPaymentPayload
	contributions []amnet.ContributionPayload
	peerReviews   []amnet.PeerReviewPaymentPayload
	failOn        string
	rejectOn      string
}

func (f *fakePusher) result(endpoint string) (*amnet.PushResult, error) {
	if f.failOn == endpoint {
		return nil, &amnet.RemoteError{Endpoint: endpoint, Status: 503, Message: "upstream down"}
	}
	if f.rejectOn == endpoint {
		return &amnet.PushResult{Processed: false, Messages: []string{"duplicate transaction"}}, nil
	}
	return &amnet.PushResult{Processed: true}, nil
}

func (f *fakePusher) PushEventRegistration(ctx context.Context, p amnet.EventRegistrationPayload) (*amnet.PushResult, error) {
	f.registrations = append(f.registrations, p)
	return f.result("EventRegistration")
}

func (f *fakePusher) PushProductSale(ctx context.Context, p amnet.ProductSalePayload) (*amnet.PushResult, error) {
	f.sales = append(f.sales, p)
	return f.result("ProductSale")
}

func (f *fakePusher) PushDuesPayment(ctx context.Context, p amnet.DuesPaymentPayload) (*amnet.PushResult, error) {
	f.dues = append(f.dues, p)
	return f.result("DuesPayment")
}

func (f *fakePusher) PushContribution(ctx context.Context, p amnet.ContributionPayload) (*amnet.PushResult, error) {
	f.contributions = append(f.contributions, p)
	return f.result("Contribution")
}

func (f *fakePusher) PushPeerReviewPayment(ctx context.Context, p amnet.PeerReviewPaymentPayload) (*amnet.PushResult, error) {
	f.peerReviews = append(f.peerReviews, p)
	return f.result("PeerReviewPayment")
}

type memStatusStore struct {
	statuses map[string]SyncStatus
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{statuses: make(map[string]SyncStatus)}
}

func (s *memStatusStore) Record(ctx context.Context, status SyncStatus) error {
	s.statuses[fmt.Sprintf("%s:%s", status.OrderID, status.LineItemID)] = status
	return nil
}

func testOrder() *Order {
	return &Order{
		ID:       uuid.New(),
		Number:   "WEB-10042",
		PlacedAt: time.Date(2026, 4, 15, 14, 30, 0, 0, time.UTC),
		Payment: Payment{
			ReferenceCode:   "REF-778",
			AuthCode:        "AUTH-431",
			CardLast4:       "4242",
			CardExpiry:      "09/28",
			TransactionDate: time.Date(2026, 4, 15, 14, 30, 0, 0, time.UTC),
		},
		Billing: BillingProfile{PayorName: "Pat Garcia"},
	}
}

func TestCCAmountCombinesFeesAndDiscounts(t *testing.T) {
	item := LineItem{
		Amount: 450,
		SessionFees: []SessionFee{
			{SessionCode: "B1", Amount: 45},
			{SessionCode: "B2", Amount: 30},
		},
		Adjustments: []Adjustment{
			{Label: "Volume Discount (3+ registrants)", Amount: 50},
			{Label: "Promo Code SPRING26", Amount: 25},
			{Label: "Sales Tax", Amount: 10}, // not a discount category
		},
	}
	assert.InDelta(t, 450.0+75-75, item.CCAmount(), 0.001)
}

func TestPushBuildsKindSpecificPayloads(t *testing.T) {
	order := testOrder()
	order.Items = []LineItem{
		{ID: uuid.New(), Kind: KindEventRegistration, PersonID: 12345, EventCode: "4251C", EventYear: "26", Amount: 450, SessionCodes: []string{"B1"}, SessionFees: []SessionFee{{SessionCode: "B1", Amount: 45}}},
		{ID: uuid.New(), Kind: KindSelfStudy, PersonID: 12345, ProductCode: "SS-101", Amount: 99},
		{ID: uuid.New(), Kind: KindDues, PersonID: 12345, DuesYear: "2026", Amount: 325},
		{ID: uuid.New(), Kind: KindDonation, PersonID: 12345, FundCode: "EDU", Amount: 100},
		{ID: uuid.New(), Kind: KindPeerReview, PersonID: 12345, FirmNumber: "F-88", Amount: 600},
	}

	pusher := &fakePusher{}
	statuses := newMemStatusStore()
	svc := NewService(pusher, statuses)

	results, err := svc.Push(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, st := range results {
		assert.True(t, st.Succeeded)
	}

	require.Len(t, pusher.registrations, 1)
	reg := pusher.registrations[0]
	assert.Equal(t, "4251C", reg.EventCode)
	assert.Equal(t, []string{"B1"}, reg.SessionCodes)
	assert.Equal(t, "Pat Garcia", reg.Payment.PayorName)
	assert.Equal(t, "************4242", reg.Payment.CardNumber)
	assert.Equal(t, "2026-04-15", reg.Payment.TransactionDate)
	assert.InDelta(t, 495.0, reg.Payment.CCAmount, 0.001)

	require.Len(t, pusher.dues, 1)
	assert.Equal(t, "2026", pusher.dues[0].DuesYear)
	require.Len(t, pusher.contributions, 1)
	assert.Equal(t, "EDU", pusher.contributions[0].FundCode)
	require.Len(t, pusher.peerReviews, 1)
	assert.Equal(t, "F-88", pusher.peerReviews[0].FirmNumber)

	assert.Len(t, statuses.statuses, 5, "every line item gets a status")
}

func TestPushRecordsFailuresAndCompletesBatch(t *testing.T) {
	order := testOrder()
	failing := uuid.New()
	order.Items = []LineItem{
		{ID: failing, Kind: KindDues, PersonID: 1, DuesYear: "2026", Amount: 325},
		{ID: uuid.New(), Kind: KindDonation, PersonID: 1, FundCode: "EDU", Amount: 50},
	}

	pusher := &fakePusher{failOn: "DuesPayment"}
	statuses := newMemStatusStore()
	svc := NewService(pusher, statuses)

	results, err := svc.Push(context.Background(), order)
	require.NoError(t, err, "one bad item never fails the order push")
	require.Len(t, results, 2)

	assert.False(t, results[0].Succeeded)
	assert.Contains(t, results[0].Log, "upstream down")
	assert.True(t, results[1].Succeeded)
	assert.Len(t, statuses.statuses, 2, "failure statuses are recorded too")
}

func TestPushRecordsUnprocessedResponses(t *testing.T) {
	order := testOrder()
	order.Items = []LineItem{
		{ID: uuid.New(), Kind: KindSelfStudy, PersonID: 1, ProductCode: "SS-101", Amount: 99},
	}

	pusher := &fakePusher{rejectOn: "ProductSale"}
	svc := NewService(pusher, newMemStatusStore())

	results, err := svc.Push(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded)
	assert.Equal(t, "duplicate transaction", results[0].Log)
}

func TestPushStatusIsLastWriteWins(t *testing.T) {
	order := testOrder()
	order.Items = []LineItem{
		{ID: uuid.New(), Kind: KindDonation, PersonID: 1, FundCode: "EDU", Amount: 50},
	}

	pusher := &fakePusher{failOn: "Contribution"}
	statuses := newMemStatusStore()
	svc := NewService(pusher, statuses)

	_, err := svc.Push(context.Background(), order)
	require.NoError(t, err)

	pusher.failOn = ""
	_, err = svc.Push(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, statuses.statuses, 1)
	for _, st := range statuses.statuses {
		assert.True(t, st.Succeeded, "the second push overwrote the failed status")
	}
}

func TestPushUnknownKindIsRecordedAsFailure(t *testing.T) {
	order := testOrder()
	order.Items = []LineItem{
		{ID: uuid.New(), Kind: LineKind("mystery"), PersonID: 1, Amount: 10},
	}

	svc := NewService(&fakePusher{}, newMemStatusStore())
	results, err := svc.Push(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded)
	assert.Contains(t, results[0].Log, "unknown line item kind")
}
