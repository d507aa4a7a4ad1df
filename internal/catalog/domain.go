// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound reports that no local catalog item exists for a key.
	ErrNotFound = errors.New("catalog item not found")
	// ErrExcluded reports that the remote record is intentionally filtered
	// out of the catalog. It is a normal outcome, not a failure: callers
	// check it with errors.Is and move on.
	ErrExcluded = errors.New("record excluded from catalog")
)

// Kind distinguishes the two catalog item flavors.
type Kind string

const (
	KindEvent     Kind = "event"
	KindSelfStudy Kind = "self_study"
)

// NaturalKey is the stable business identifier used for every upsert.
// Self-study products leave Year empty.
type NaturalKey struct {
	Code string `json:"code"`
	Year string `json:"year"`
}

func (k NaturalKey) String() string {
	if k.Year == "" {
		return k.Code
	}
	return fmt.Sprintf("%s/%s", k.Code, k.Year)
}

// DateRange is one (start, end) pair in the catalog timezone. A zero End
// marks an open-ended range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitempty"`
}

// PricingTier holds the four optional money amounts for a purchasable unit.
// Nil means "no such fee exists", never zero.
type PricingTier struct {
	Price            *float64   `json:"price,omitempty"`
	MemberPrice      *float64   `json:"member_price,omitempty"`
	EarlyPrice       *float64   `json:"early_price,omitempty"`
	EarlyMemberPrice *float64   `json:"early_member_price,omitempty"`
	EarlyExpiry      *time.Time `json:"early_expiry,omitempty"`
	// Override carries an ApplyToMemberType=A amount, which applies to every
	// member type and is recorded apart from the per-type prices.
	Override *float64 `json:"override,omitempty"`
}

// Variation is a purchasable unit of a catalog item. SKU is unique and
// stable across syncs; re-sync finds and updates by SKU.
type Variation struct {
	ID      uuid.UUID   `json:"id"`
	SKU     string      `json:"sku"`
	Title   string      `json:"title"`
	Range   *DateRange  `json:"range,omitempty"`
	Pricing PricingTier `json:"pricing"`
}

// Session is a sub-unit of an event with its own schedule and leaders.
// A non-empty VariationSKU links the session to its paid add-on variation.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Title        string     `json:"title"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	Capacity     int        `json:"capacity"`
	Leaders      []string   `json:"leaders,omitempty"`
	SortSequence string     `json:"sort_sequence,omitempty"`
	Fee          float64    `json:"fee"`
	CreditHours  float64    `json:"credit_hours"`
	VariationSKU string     `json:"variation_sku,omitempty"`
}

// Timeslot is a concurrent-session bucket. Its key is the sorted union of
// the member session codes and is order-independent.
type Timeslot struct {
	Key      string     `json:"key"`
	Start    *time.Time `json:"start,omitempty"`
	Sessions []*Session `json:"sessions"`
}

// TimeslotGroup is one calendar-day bucket of timeslots, or a fallback
// bucket for sessions that fall outside every day range.
type TimeslotGroup struct {
	Key       string      `json:"key"`
	Start     *time.Time  `json:"start,omitempty"`
	End       *time.Time  `json:"end,omitempty"`
	Timeslots []*Timeslot `json:"timeslots"`
}

// SpecialFee is a wholesale-replaced fee adjustment row.
type SpecialFee struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// CreditLine is one line of the credit-hour breakdown.
type CreditLine struct {
	Category string  `json:"category"`
	Hours    float64 `json:"hours"`
}

// CatalogItem is the locally owned projection of one remote event or
// self-study product. Exactly one item exists per natural key; items are
// never hard-deleted, only unpublished.
type CatalogItem struct {
	ID                uuid.UUID        `json:"id"`
	Kind              Kind             `json:"kind"`
	Key               NaturalKey       `json:"key"`
	Title             string           `json:"title"`
	TypeCode          string           `json:"type_code,omitempty"`
	FormatCode        string           `json:"format_code,omitempty"`
	Acronym           string           `json:"acronym,omitempty"`
	DateRanges        []DateRange      `json:"date_ranges,omitempty"`
	Pricing           PricingTier      `json:"pricing"`
	Excluded          bool             `json:"excluded"`
	Published         bool             `json:"published"`
	ExternallyDeleted bool             `json:"externally_deleted"`
	Free              bool             `json:"free"`
	Badge             string           `json:"badge,omitempty"`
	Credits           []CreditLine     `json:"credits,omitempty"`
	Variations        []*Variation     `json:"variations,omitempty"`
	Groups            []*TimeslotGroup `json:"groups,omitempty"`
	SpecialFees       []SpecialFee     `json:"special_fees,omitempty"`
	BundleKeys        []NaturalKey     `json:"bundle_keys,omitempty"`
	SearchText        string           `json:"search_text,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// VariationBySKU returns the variation with the given SKU, or nil.
func (it *CatalogItem) VariationBySKU(sku string) *Variation {
	for _, v := range it.Variations {
		if v.SKU == sku {
			return v
		}
	}
	return nil
}

// SessionByCode returns the session with the given code, or nil.
func (it *CatalogItem) SessionByCode(code string) *Session {
	for _, g := range it.Groups {
		for _, ts := range g.Timeslots {
			for _, s := range ts.Sessions {
				if s.Code == code {
					return s
				}
			}
		}
	}
	return nil
}

// SessionCount returns the total number of sessions across all groups.
func (it *CatalogItem) SessionCount() int {
	n := 0
	for _, g := range it.Groups {
		for _, ts := range g.Timeslots {
			n += len(ts.Sessions)
		}
	}
	return n
}
