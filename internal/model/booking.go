package model

import "fmt"

// Booking statuses. Canceled and rejected bookings do not occupy time.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusRejected  = "rejected"
)

// Booking is a committed time range on a date.
type Booking struct {
	ID         string `json:"id,omitempty"`
	Date       Date   `json:"date"`
	StartTime  Clock  `json:"startTime"`
	EndTime    Clock  `json:"endTime"`
	ClientID   string `json:"clientId,omitempty"`
	ResourceID string `json:"marketMemberId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Interval returns the booked time range.
func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Occupies reports whether the booking still blocks its time range.
func (b Booking) Occupies() bool {
	return b.Status != StatusCanceled && b.Status != StatusRejected
}

// SelectedBooking is a client pick staged before submission.
type SelectedBooking struct {
	Date       Date   `json:"date"`
	StartTime  Clock  `json:"startTime"`
	EndTime    Clock  `json:"endTime"`
	ResourceID string `json:"resourceId,omitempty"`
	Label      string `json:"label"`
}

// Interval returns the picked time range.
func (s SelectedBooking) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

// SameSlot compares the (date, start, end, resource) tuple.
func (s SelectedBooking) SameSlot(o SelectedBooking) bool {
	return s.Date == o.Date && s.StartTime == o.StartTime && s.EndTime == o.EndTime && s.ResourceID == o.ResourceID
}

// SelectionLabel renders a human-readable label for a pick.
func SelectionLabel(date Date, iv Interval, resourceName string) string {
	if resourceName == "" {
		return fmt.Sprintf("%s %s", date, iv)
	}
	return fmt.Sprintf("%s %s (%s)", date, iv, resourceName)
}
