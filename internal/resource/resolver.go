// Package resource scopes availability to the specialists of a market
// according to its resource booking mode.
package resource

import (
	"errors"
	"fmt"

	"marketbook/internal/model"
	"marketbook/internal/slots"
)

var (
	// ErrResourceRequired means a select-mode market needs a resource before projecting.
	ErrResourceRequired = errors.New("resource selection required")
	// ErrResourceNotEligible means the resource is unknown, not accepted or inactive.
	ErrResourceNotEligible = errors.New("resource is not eligible")
)

// ListEligible returns the accepted and active members in their listed order.
func ListEligible(market *model.Market) []model.Resource {
	if market == nil {
		return nil
	}
	out := make([]model.Resource, 0, len(market.Members))
	for _, r := range market.Members {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	return out
}

// CheckEligible returns ErrResourceNotEligible unless id names an eligible member.
func CheckEligible(market *model.Market, id string) error {
	r, ok := market.Member(id)
	if !ok || !r.Eligible() {
		return fmt.Errorf("%w: %q", ErrResourceNotEligible, id)
	}
	return nil
}

// ProjectForResource projects using only the bookings tagged with resourceID.
// Every resource shares the pattern but has its own timeline.
func ProjectForResource(in slots.ProjectionInput, resourceID string) []model.AvailableDay {
	in.Bookings = FilterBookings(in.Bookings, resourceID)
	in.Capacity = 0
	return slots.Project(in)
}

// ProjectPooled projects all bookings together against seats concurrent slots.
func ProjectPooled(in slots.ProjectionInput, seats int) []model.AvailableDay {
	in.Capacity = seats
	return slots.Project(in)
}

// FilterBookings keeps bookings tagged with resourceID.
func FilterBookings(bookings []model.Booking, resourceID string) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ResourceID == resourceID {
			out = append(out, b)
		}
	}
	return out
}

// PooledCapacity is the market's concurrent slots, or the number of eligible
// members when unset, and at least one.
func PooledCapacity(market *model.Market) int {
	if market.ConcurrentSlots > 0 {
		return market.ConcurrentSlots
	}
	if n := len(ListEligible(market)); n > 0 {
		return n
	}
	return 1
}

// RequiresSelection reports whether clients must pick a resource first.
func RequiresSelection(market *model.Market) bool {
	return market.ResourceBookingMode == model.ModeSelect && len(ListEligible(market)) > 0
}

// Project dispatches on the market's booking mode.
func Project(market *model.Market, in slots.ProjectionInput, resourceID string) ([]model.AvailableDay, error) {
	switch market.ResourceBookingMode {
	case model.ModeSelect:
		if !RequiresSelection(market) {
			return slots.Project(in), nil
		}
		if resourceID == "" {
			return nil, ErrResourceRequired
		}
		if err := CheckEligible(market, resourceID); err != nil {
			return nil, err
		}
		return ProjectForResource(in, resourceID), nil
	case model.ModeMulti:
		return ProjectPooled(in, PooledCapacity(market)), nil
	default:
		in.Capacity = 0
		if market.ConcurrentSlots > 1 {
			in.Capacity = market.ConcurrentSlots
		}
		return slots.Project(in), nil
	}
}
