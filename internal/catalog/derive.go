// internal/catalog/derive.go
//
// Pure derivation helpers. Everything in this file computes values from raw
// remote records without touching the store or the network.
package catalog

import (
	"sort"
	"strings"
	"time"

	"amnetsync/internal/amnet"
)

const (
	defaultBeginClock = "08:00"
	defaultEndClock   = "09:00"

	// An event spanning more than this many days is treated as an ongoing
	// program and collapsed to a single open-ended range.
	maxSpanDays = 7
)

// Badge labels derived from registration counts.
const (
	BadgeTrending = "trending"
	BadgeHot      = "hot"
)

// ParseRemoteDate parses an AM.net calendar date in the catalog timezone.
func ParseRemoteDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseRemoteTimestamp parses a feed "last changed" instant.
func ParseRemoteTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return ParseRemoteDate(s, loc)
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation("15:04", clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
}

// DeriveDateRanges turns begin/end calendar dates plus up to three per-day
// time pairs into an ordered list of ranges in the target timezone.
//
// Spans longer than seven days collapse to a single open-ended range.
// Missing or unparseable per-day times fall back to one full-span range with
// 08:00-09:00 bounds.
func DeriveDateRanges(begin, end time.Time, days []amnet.DayTime, loc *time.Location) []DateRange {
	fallback := func() []DateRange {
		start, _ := atClock(begin, defaultBeginClock, loc)
		stop, _ := atClock(end, defaultEndClock, loc)
		return []DateRange{{Start: start, End: stop}}
	}

	if end.Sub(begin) > maxSpanDays*24*time.Hour {
		start, _ := atClock(begin, defaultBeginClock, loc)
		return []DateRange{{Start: start}}
	}
	if len(days) == 0 {
		return fallback()
	}

	var ranges []DateRange
	for i, dt := range days {
		if i >= 3 {
			break
		}
		day := begin.AddDate(0, 0, i)
		if day.After(end) {
			break
		}
		start, okStart := atClock(day, dt.BeginTime, loc)
		stop, okEnd := atClock(day, dt.EndTime, loc)
		if !okStart || !okEnd {
			return fallback()
		}
		ranges = append(ranges, DateRange{Start: start, End: stop})
	}
	if len(ranges) == 0 {
		return fallback()
	}
	return ranges
}

// DerivePricing classifies raw fees by their (Ty, Ty2) pair. R-ER rows are
// early-bird, R-SF standard, and R-OD one-day; one-day fees have no distinct
// early rate, so the same amount fills both slots of the one-day tier.
// ApplyToMemberType M and N select the member and nonmember columns; A is a
// tier-wide override recorded apart from the prices.
//
// The returned one-day tier feeds the per-day variations; the main tier
// belongs to the all-days variation. Early fields stay nil when no early fee
// exists, and the expiry is only attached alongside an early amount.
func DerivePricing(fees []amnet.Fee, cutoff *time.Time) (tier, oneDay PricingTier) {
	for _, fee := range fees {
		if fee.Ty != "R" {
			continue
		}
		amount := fee.Amount
		if fee.ApplyToMemberType == "A" {
			tier.Override = &amount
			continue
		}
		member := fee.ApplyToMemberType == "M"

		switch fee.Ty2 {
		case "ER":
			if member {
				tier.EarlyMemberPrice = &amount
			} else {
				tier.EarlyPrice = &amount
			}
		case "SF":
			if member {
				tier.MemberPrice = &amount
			} else {
				tier.Price = &amount
			}
		case "OD":
			if member {
				oneDay.MemberPrice = &amount
				oneDay.EarlyMemberPrice = &amount
			} else {
				oneDay.Price = &amount
				oneDay.EarlyPrice = &amount
			}
		}
	}

	if tier.EarlyPrice != nil || tier.EarlyMemberPrice != nil {
		tier.EarlyExpiry = cutoff
	}
	return tier, oneDay
}

// DeriveEventFlags computes the (excluded, published) pair for an event.
// Status C (canceled) forces excluded and unpublished; the internal-catalog
// exclusion does the same; website-only exclusion keeps the item published.
func DeriveEventFlags(ev *amnet.Event) (excluded, published bool) {
	switch {
	case ev.StatusCode == "C":
		return true, false
	case ev.ExcludeFromInternalCatalog:
		return true, false
	case ev.ExcludeFromWebsite:
		return true, true
	}
	return false, true
}

// DeriveProductFlags computes the (excluded, published) pair for a
// self-study product. ExcludeFromWebSale unpublishes, unlike an event's
// website flag: a website-excluded event still runs and takes internal
// registrations, but the storefront is a self-study product's only sales
// channel, so barring web sale leaves nothing to publish.
func DeriveProductFlags(p *amnet.Product) (excluded, published bool) {
	switch {
	case p.StatusCode == "C":
		return true, false
	case p.ExcludeFromWebSale:
		return true, false
	}
	return false, true
}

// GroupMember is the slice of an existing catalog item that parent selection
// needs to look at.
type GroupMember struct {
	Key         NaturalKey
	Excluded    bool
	Published   bool
	EarlyExpiry *time.Time
}

// SelectGroupParent picks the one non-excluded member of an acronym group.
// An existing non-excluded published member keeps the role; with several
// candidates the earliest early-bird expiry wins, then the lexicographically
// smallest code. When every member is excluded the record currently being
// processed is promoted.
func SelectGroupParent(current NaturalKey, members []GroupMember) NaturalKey {
	var candidates []GroupMember
	for _, m := range members {
		if !m.Excluded && m.Published {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return current
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.EarlyExpiry != nil && b.EarlyExpiry != nil && !a.EarlyExpiry.Equal(*b.EarlyExpiry):
			return a.EarlyExpiry.Before(*b.EarlyExpiry)
		case (a.EarlyExpiry != nil) != (b.EarlyExpiry != nil):
			return a.EarlyExpiry != nil
		}
		return a.Key.Code < b.Key.Code
	})
	return candidates[0].Key
}

// DeriveBadge maps registration counts to a popularity badge: 40-59% of
// budget is trending, 60% and above is hot. No budget or no registrations
// means no badge.
func DeriveBadge(current, budgeted int) string {
	if budgeted <= 0 || current <= 0 {
		return ""
	}
	pct := current * 100 / budgeted
	switch {
	case pct >= 60:
		return BadgeHot
	case pct >= 40:
		return BadgeTrending
	}
	return ""
}

// IsFreeEvent reports whether every fee amount and every session fee is
// exactly zero.
func IsFreeEvent(ev *amnet.Event) bool {
	for _, fee := range ev.Fees {
		if fee.Amount != 0 {
			return false
		}
	}
	for _, s := range ev.Sessions {
		if s.Fee != 0 {
			return false
		}
	}
	return true
}

// TimeslotKey builds the deterministic bucket key for a session: the sorted,
// deduplicated union of its own code and its declared concurrent codes.
// The result is independent of declaration order on either side.
func TimeslotKey(code string, concurrent []string) string {
	seen := map[string]bool{code: true}
	codes := []string{code}
	for _, c := range concurrent {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return strings.Join(codes, "|")
}
