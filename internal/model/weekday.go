package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday indexes the fixed seven-day week starting on Monday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysInWeek is the number of weekdays.
const DaysInWeek = 7

var weekdayNames = [DaysInWeek]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// Weekdays lists all days from Monday to Sunday.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// WeekdayOf converts Go's weekday (0=Sunday) to Weekday.
func WeekdayOf(w time.Weekday) Weekday {
	if w == time.Sunday {
		return Sunday
	}
	return Weekday(w - 1)
}

// ParseWeekday accepts lowercase English names, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if n == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// Valid reports whether w is Monday..Sunday.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// IsWorkday reports Monday..Friday.
func (w Weekday) IsWorkday() bool {
	return w >= Monday && w <= Friday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayNames[w]
}
