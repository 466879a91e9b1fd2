// Package slots projects a weekly pattern onto calendar dates and cuts the
// resulting days into bookable slots.
package slots

import (
	"sort"

	"marketbook/internal/model"
	"marketbook/internal/pattern"
)

// ProjectionInput is everything Project needs. It is never mutated.
type ProjectionInput struct {
	Pattern *pattern.WeeklyPattern
	Today   model.Date
	// From and To narrow the output window; zero values mean the horizon edges.
	From model.Date
	To   model.Date

	Bookings    []model.Booking
	Exclusions  model.BreakExclusions
	ClosedDates []model.Date
	// Capacity > 0 switches to seat counting; 0 is a single shared timeline.
	Capacity int
}

// Horizon returns the first and last date a projection may cover.
func (in ProjectionInput) Horizon() (model.Date, model.Date) {
	ahead := 0
	if in.Pattern != nil && in.Pattern.SubscribeAheadDays > 0 {
		ahead = in.Pattern.SubscribeAheadDays
	}
	return in.Today, in.Today.AddDays(ahead)
}

// Window returns the horizon clipped to [From, To].
func (in ProjectionInput) Window() (model.Date, model.Date) {
	from, to := in.Horizon()
	if !in.From.IsZero() && in.From.After(from) {
		from = in.From
	}
	if !in.To.IsZero() && in.To.Before(to) {
		to = in.To
	}
	return from, to
}

// Project returns one AvailableDay per date in the window, in date order.
// Without a window that is exactly SubscribeAheadDays+1 entries.
func Project(in ProjectionInput) []model.AvailableDay {
	if in.Pattern == nil {
		return []model.AvailableDay{}
	}

	from, to := in.Window()
	if from.After(to) {
		return []model.AvailableDay{}
	}

	byDate := make(map[model.Date][]model.Booking)
	for _, b := range in.Bookings {
		if !b.Occupies() || b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		byDate[b.Date] = append(byDate[b.Date], b)
	}

	closed := make(map[model.Date]bool, len(in.ClosedDates))
	for _, d := range in.ClosedDates {
		closed[d] = true
	}

	days := make([]model.AvailableDay, 0, from.DaysUntil(to)+1)
	for date := from; !date.After(to); date = date.AddDays(1) {
		days = append(days, projectDay(in, date, byDate[date], closed[date]))
	}
	return days
}

// ProjectDay projects a single date, ignoring the horizon.
func ProjectDay(in ProjectionInput, date model.Date) model.AvailableDay {
	var bookings []model.Booking
	for _, b := range in.Bookings {
		if b.Date == date && b.Occupies() {
			bookings = append(bookings, b)
		}
	}
	isClosed := false
	for _, d := range in.ClosedDates {
		if d == date {
			isClosed = true
			break
		}
	}
	if in.Pattern == nil {
		return closedDay(date, sortBookings(bookings), model.ClosedDayOff)
	}
	return projectDay(in, date, bookings, isClosed)
}

func projectDay(in ProjectionInput, date model.Date, bookings []model.Booking, isClosed bool) model.AvailableDay {
	bookings = sortBookings(bookings)
	sched := in.Pattern.Days[date.Weekday()]

	if isClosed {
		return closedDay(date, bookings, model.ClosedHoliday)
	}
	if !sched.Bookable() {
		return closedDay(date, bookings, model.ClosedDayOff)
	}

	work := *sched.WorkHours
	breaks := make([]model.Interval, 0, len(sched.Breaks))
	for _, br := range sched.Breaks {
		if in.Exclusions.Excludes(date, br) {
			continue
		}
		breaks = append(breaks, br)
	}
	model.SortIntervals(breaks)

	seats := in.Capacity
	if seats <= 0 {
		seats = 1
	}
	booked := bookingIntervals(bookings)
	blocked := append(append([]model.Interval{}, breaks...), Saturated(booked, seats)...)
	free := model.Subtract(work, blocked)
	if free == nil {
		free = []model.Interval{}
	}

	day := model.AvailableDay{
		Date:       date,
		WorkHours:  &work,
		Breaks:     breaks,
		Bookings:   bookings,
		FreeRanges: free,
		Available:  len(free) > 0,
	}

	if in.Capacity > 0 {
		peak := Peak(booked)
		left := in.Capacity - peak
		if left < 0 {
			left = 0
		}
		day.Capacity = &model.Capacity{Total: in.Capacity, Booked: peak, Available: left}
		day.Available = left > 0
	}

	if !day.Available {
		day.ClosedReason = model.ClosedFullyBooked
	}
	return day
}

func closedDay(date model.Date, bookings []model.Booking, reason string) model.AvailableDay {
	return model.AvailableDay{
		Date:         date,
		Breaks:       []model.Interval{},
		Bookings:     bookings,
		FreeRanges:   []model.Interval{},
		ClosedReason: reason,
	}
}

func sortBookings(bookings []model.Booking) []model.Booking {
	out := append([]model.Booking{}, bookings...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].EndTime < out[j].EndTime
	})
	return out
}

func bookingIntervals(bookings []model.Booking) []model.Interval {
	out := make([]model.Interval, 0, len(bookings))
	for _, b := range bookings {
		if iv := b.Interval(); iv.Valid() {
			out = append(out, iv)
		}
	}
	return out
}
