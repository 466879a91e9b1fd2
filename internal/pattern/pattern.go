// Package pattern holds the recurring weekly availability template of a market
// and the edit operations a service owner performs on it.
package pattern

import (
	"errors"
	"fmt"

	"marketbook/internal/model"
)

// DefaultSubscribeAheadDays is the booking horizon used when none is set.
const DefaultSubscribeAheadDays = 90

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("invalid weekly pattern")
	// ErrNoAvailableSlot means a break of the requested length fits nowhere.
	ErrNoAvailableSlot = errors.New("no available slot for break")
)

// ValidationError describes a rejected pattern edit.
type ValidationError struct {
	Day    model.Weekday
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Day, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Day, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(day model.Weekday, field, format string, args ...any) error {
	return &ValidationError{Day: day, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DaySchedule is the template for one weekday.
type DaySchedule struct {
	Enabled   bool
	WorkHours *model.Interval
	Breaks    []model.Interval
}

// Clone returns a deep copy.
func (s DaySchedule) Clone() DaySchedule {
	out := DaySchedule{Enabled: s.Enabled}
	if s.WorkHours != nil {
		wh := *s.WorkHours
		out.WorkHours = &wh
	}
	if s.Breaks != nil {
		out.Breaks = append([]model.Interval{}, s.Breaks...)
	}
	return out
}

// Bookable reports whether the day can take bookings at all.
func (s DaySchedule) Bookable() bool {
	return s.Enabled && s.WorkHours != nil && s.WorkHours.Valid()
}

// WeeklyPattern is the recurring availability template of a market.
type WeeklyPattern struct {
	Days               [model.DaysInWeek]DaySchedule
	SubscribeAheadDays int
}

// New returns a pattern with every day disabled and the default horizon.
func New() *WeeklyPattern {
	return &WeeklyPattern{SubscribeAheadDays: DefaultSubscribeAheadDays}
}

// Clone returns a deep copy.
func (p *WeeklyPattern) Clone() *WeeklyPattern {
	out := &WeeklyPattern{SubscribeAheadDays: p.SubscribeAheadDays}
	for i := range p.Days {
		out.Days[i] = p.Days[i].Clone()
	}
	return out
}

// Day returns a copy of the schedule for day.
func (p *WeeklyPattern) Day(day model.Weekday) DaySchedule {
	if !day.Valid() {
		return DaySchedule{}
	}
	return p.Days[day].Clone()
}

// Validate checks every day and the horizon.
func (p *WeeklyPattern) Validate() error {
	if p.SubscribeAheadDays < 0 {
		return &ValidationError{Field: "subscribeAheadDays", Reason: "must not be negative"}
	}
	for _, day := range model.Weekdays() {
		if err := validateDay(day, p.Days[day]); err != nil {
			return err
		}
	}
	return nil
}

// validateDay enforces: enabled days have start < end work hours, and every
// break is valid, inside work hours and disjoint from the others.
func validateDay(day model.Weekday, s DaySchedule) error {
	if !s.Enabled {
		return nil
	}
	if s.WorkHours == nil {
		return invalid(day, "workHours", "required when day is enabled")
	}
	work := *s.WorkHours
	if !work.Valid() {
		return invalid(day, "workHours", "start %s must be before end %s", work.Start, work.End)
	}

	for i, br := range s.Breaks {
		if !br.Valid() {
			return invalid(day, fmt.Sprintf("breaks[%d]", i), "start %s must be before end %s", br.Start, br.End)
		}
		if !work.Contains(br) {
			return invalid(day, fmt.Sprintf("breaks[%d]", i), "break %s must be within working hours %s", br, work)
		}
		for j := 0; j < i; j++ {
			if s.Breaks[j].Overlaps(br) {
				return invalid(day, fmt.Sprintf("breaks[%d]", i), "break %s overlaps break %s", br, s.Breaks[j])
			}
		}
	}
	return nil
}
