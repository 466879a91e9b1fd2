package booking

import (
	"fmt"

	"marketbook/internal/model"
	"marketbook/internal/resource"
	"marketbook/internal/slots"
)

// Options tune conflict detection to the market's booking mode.
type Options struct {
	// PerResource limits booking conflicts to the candidate's resource.
	PerResource bool
	// Capacity > 0 allows overlapping bookings until that many are concurrent.
	Capacity int
}

// OptionsFor derives validation options from a market.
func OptionsFor(market *model.Market) Options {
	switch market.ResourceBookingMode {
	case model.ModeSelect:
		return Options{PerResource: resource.RequiresSelection(market)}
	case model.ModeMulti:
		return Options{Capacity: resource.PooledCapacity(market)}
	default:
		if market.ConcurrentSlots > 1 {
			return Options{Capacity: market.ConcurrentSlots}
		}
		return Options{}
	}
}

// SlotMinutes is the length of one bookable slot of market.
func SlotMinutes(market *model.Market) int {
	if market.WorkDurationPerClient > 0 {
		return market.WorkDurationPerClient
	}
	return slots.DefaultSlotMinutes
}

// Validate checks candidate against day and returns staged with candidate
// appended. On error staged is returned unchanged.
func Validate(day model.AvailableDay, candidate model.SelectedBooking, staged []model.SelectedBooking, opts Options) ([]model.SelectedBooking, error) {
	if err := Check(day, candidate, staged, opts); err != nil {
		return staged, err
	}
	if candidate.Label == "" {
		candidate.Label = model.SelectionLabel(candidate.Date, candidate.Interval(), candidate.ResourceID)
	}
	out := make([]model.SelectedBooking, 0, len(staged)+1)
	out = append(out, staged...)
	return append(out, candidate), nil
}

// Check runs the validation rules in order and returns the first failure.
func Check(day model.AvailableDay, candidate model.SelectedBooking, staged []model.SelectedBooking, opts Options) error {
	if candidate.Date != day.Date {
		return fmt.Errorf("%w: %s, day is %s", ErrDateMismatch, candidate.Date, day.Date)
	}

	slot := candidate.Interval()
	if day.WorkHours == nil {
		return fmt.Errorf("%w: %s is closed", ErrOutOfWorkHours, day.Date)
	}
	work := *day.WorkHours
	if slot.Start < work.Start || slot.End > work.End {
		return fmt.Errorf("%w: %s not within %s", ErrOutOfWorkHours, slot, work)
	}

	if !slot.Valid() {
		return fmt.Errorf("%w: %s", ErrStartAfterEnd, slot)
	}

	for _, br := range day.Breaks {
		if br.Overlaps(slot) {
			return fmt.Errorf("%w: %s overlaps %s", ErrBreakConflict, slot, br)
		}
	}

	if err := checkBookings(day.Bookings, candidate, opts); err != nil {
		return err
	}

	for _, s := range staged {
		if s.SameSlot(candidate) {
			return fmt.Errorf("%w: %s", ErrDuplicateSelection, slot)
		}
	}
	return nil
}

func checkBookings(bookings []model.Booking, candidate model.SelectedBooking, opts Options) error {
	slot := candidate.Interval()

	var busy []model.Interval
	for _, b := range bookings {
		if !b.Occupies() {
			continue
		}
		if opts.PerResource && b.ResourceID != candidate.ResourceID {
			continue
		}
		if b.Interval().Overlaps(slot) {
			busy = append(busy, b.Interval())
		}
	}
	if len(busy) == 0 {
		return nil
	}

	if opts.Capacity > 0 {
		if peak := slots.PeakWithin(busy, slot); peak >= opts.Capacity {
			return fmt.Errorf("%w: %s has %d of %d seats taken", ErrBookingConflict, slot, peak, opts.Capacity)
		}
		return nil
	}
	return fmt.Errorf("%w: %s overlaps %s", ErrBookingConflict, slot, busy[0])
}
