package model

// Capacity describes seat usage on a day in multi-seat mode.
type Capacity struct {
	Total     int `json:"total"`
	Booked    int `json:"booked"`
	Available int `json:"available"`
}

// Reasons a projected day is not bookable.
const (
	ClosedDayOff      = "day_off"
	ClosedHoliday     = "holiday"
	ClosedFullyBooked = "fully_booked"
)

// AvailableDay is the projected availability of one date.
type AvailableDay struct {
	Date         Date       `json:"date"`
	WorkHours    *Interval  `json:"workHours"`
	Breaks       []Interval `json:"breaks"`
	Bookings     []Booking  `json:"bookings"`
	Capacity     *Capacity  `json:"capacity,omitempty"`
	FreeRanges   []Interval `json:"freeRanges"`
	Available    bool       `json:"available"`
	ClosedReason string     `json:"closedReason,omitempty"`
}

// BreakExclusions suppresses recurring breaks on specific dates.
type BreakExclusions map[Date][]Interval

// Excludes reports whether br is suppressed on date (exact start and end match).
func (e BreakExclusions) Excludes(date Date, br Interval) bool {
	for _, x := range e[date] {
		if x == br {
			return true
		}
	}
	return false
}

// Add records an exclusion, ignoring duplicates.
func (e BreakExclusions) Add(date Date, br Interval) {
	if e.Excludes(date, br) {
		return
	}
	e[date] = append(e[date], br)
}
