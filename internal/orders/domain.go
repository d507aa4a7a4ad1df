// internal/orders/domain.go
package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LineKind is the order-line-item kind that picks the upstream mutation.
type LineKind string

const (
	KindEventRegistration LineKind = "event_registration"
	KindSelfStudy         LineKind = "self_study"
	KindDues              LineKind = "membership_dues"
	KindDonation          LineKind = "donation"
	KindPeerReview        LineKind = "peer_review"
)

// discountCategories are the known discount adjustment labels. Adjustments
// are matched by substring, mirroring how the storefront names coupon lines.
var discountCategories = []string{
	"Volume Discount",
	"Goodwill Discount",
	"Promo Code",
}

// Order is a placed, paid storefront order read by the pusher.
type Order struct {
	ID       uuid.UUID      `json:"id"`
	Number   string         `json:"number"`
	PlacedAt time.Time      `json:"placed_at"`
	Payment  Payment        `json:"payment"`
	Billing  BillingProfile `json:"billing"`
	Items    []LineItem     `json:"items"`
}

// Payment is the captured transaction trail attached to an order.
type Payment struct {
	ReferenceCode   string    `json:"reference_code"`
	AuthCode        string    `json:"auth_code"`
	CardLast4       string    `json:"card_last4"`
	CardExpiry      string    `json:"card_expiry"`
	TransactionDate time.Time `json:"transaction_date"`
}

// BillingProfile carries the payor identity from the order's billing data.
type BillingProfile struct {
	PayorName string `json:"payor_name"`
}

// SessionFee is a paid session add-on attached to an event line item.
type SessionFee struct {
	SessionCode string  `json:"session_code"`
	Amount      float64 `json:"amount"`
}

// Adjustment is a custom price adjustment on a line item. Discount
// adjustments carry a positive Amount that reduces the charged total.
type Adjustment struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// LineItem is one paid order line. Kind decides which of the key fields are
// meaningful.
type LineItem struct {
	ID       uuid.UUID `json:"id"`
	Kind     LineKind  `json:"kind"`
	Title    string    `json:"title"`
	Amount   float64   `json:"amount"`
	PersonID int       `json:"person_id"`

	EventCode    string   `json:"event_code,omitempty"`
	EventYear    string   `json:"event_year,omitempty"`
	SessionCodes []string `json:"session_codes,omitempty"`
	ProductCode  string   `json:"product_code,omitempty"`
	DuesYear     string   `json:"dues_year,omitempty"`
	FundCode     string   `json:"fund_code,omitempty"`
	FirmNumber   string   `json:"firm_number,omitempty"`

	SessionFees []SessionFee `json:"session_fees,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// CCAmount is the charged amount for one line: the base fee plus session
// add-ons, minus every adjustment matching a known discount category.
func (li *LineItem) CCAmount() float64 {
	total := li.Amount
	for _, sf := range li.SessionFees {
		total += sf.Amount
	}
	for _, adj := range li.Adjustments {
		if isDiscount(adj.Label) {
			total -= adj.Amount
		}
	}
	return total
}

func isDiscount(label string) bool {
	for _, category := range discountCategories {
		if strings.Contains(label, category) {
			return true
		}
	}
	return false
}

// SyncStatus is the per-line-item push outcome, keyed by (order, line item)
// and overwritten on every push attempt.
type SyncStatus struct {
	OrderID    uuid.UUID `json:"order_id" db:"order_id"`
	LineItemID uuid.UUID `json:"line_item_id" db:"line_item_id"`
	SyncedAt   time.Time `json:"synced_at" db:"synced_at"`
	Succeeded  bool      `json:"succeeded" db:"succeeded"`
	Log        string    `json:"log" db:"log"`
}
