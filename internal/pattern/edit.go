package pattern

import (
	"fmt"

	"marketbook/internal/model"
)

// MiddayBreak is the canonical break tried first when placing a new break.
var MiddayBreak = model.Interval{Start: model.NewClock(12, 0), End: model.NewClock(13, 0)}

// BreakField selects which end of a break UpdateBreak changes.
type BreakField int

const (
	BreakStart BreakField = iota
	BreakEnd
)

func (f BreakField) String() string {
	if f == BreakEnd {
		return "end"
	}
	return "start"
}

// SetDay replaces the schedule of day.
func (p *WeeklyPattern) SetDay(day model.Weekday, s DaySchedule) error {
	if !day.Valid() {
		return invalid(day, "", "unknown weekday")
	}
	next := s.Clone()
	if err := validateDay(day, next); err != nil {
		return err
	}
	p.Days[day] = next
	return nil
}

// AddBreak places a break of want's length on day and returns where it went.
// Placement order: want itself, then the midday slot starting at 12:00,
// then the first chronological gap large enough (placed at the gap start).
func (p *WeeklyPattern) AddBreak(day model.Weekday, want model.Interval) (model.Interval, error) {
	if !day.Valid() {
		return model.Interval{}, invalid(day, "", "unknown weekday")
	}
	if !want.Valid() {
		return model.Interval{}, invalid(day, "breaks", "start %s must be before end %s", want.Start, want.End)
	}

	cur := p.Days[day]
	if !cur.Bookable() {
		return model.Interval{}, invalid(day, "workHours", "day has no working hours")
	}

	placed, ok := placeBreak(*cur.WorkHours, cur.Breaks, want)
	if !ok {
		return model.Interval{}, fmt.Errorf("%s: %w (%s)", day, ErrNoAvailableSlot, want.Duration())
	}

	next := cur.Clone()
	next.Breaks = append(next.Breaks, placed)
	if err := validateDay(day, next); err != nil {
		return model.Interval{}, err
	}
	p.Days[day] = next
	return placed, nil
}

// AddDefaultBreak adds a one-hour break using the default placement policy.
func (p *WeeklyPattern) AddDefaultBreak(day model.Weekday) (model.Interval, error) {
	return p.AddBreak(day, MiddayBreak)
}

func placeBreak(work model.Interval, breaks []model.Interval, want model.Interval) (model.Interval, bool) {
	length := want.End - want.Start
	fits := func(c model.Interval) bool {
		if !c.Valid() || !work.Contains(c) {
			return false
		}
		for _, br := range breaks {
			if br.Overlaps(c) {
				return false
			}
		}
		return true
	}

	if fits(want) {
		return want, true
	}
	midday := model.Interval{Start: MiddayBreak.Start, End: MiddayBreak.Start + length}
	if fits(midday) {
		return midday, true
	}

	for _, gap := range model.Subtract(work, breaks) {
		if gap.End-gap.Start >= length {
			return model.Interval{Start: gap.Start, End: gap.Start + length}, true
		}
	}
	return model.Interval{}, false
}

// UpdateBreak moves one end of the break at index. Invalid results are
// rejected and the day keeps its previous breaks.
func (p *WeeklyPattern) UpdateBreak(day model.Weekday, index int, field BreakField, t model.Clock) error {
	if !day.Valid() {
		return invalid(day, "", "unknown weekday")
	}
	cur := p.Days[day]
	if index < 0 || index >= len(cur.Breaks) {
		return invalid(day, "breaks", "index %d out of range", index)
	}

	next := cur.Clone()
	switch field {
	case BreakStart:
		next.Breaks[index].Start = t
	case BreakEnd:
		next.Breaks[index].End = t
	default:
		return invalid(day, "breaks", "unknown field %d", int(field))
	}

	if err := validateDay(day, next); err != nil {
		return err
	}
	p.Days[day] = next
	return nil
}

// DeleteBreak removes the break at index.
func (p *WeeklyPattern) DeleteBreak(day model.Weekday, index int) error {
	if !day.Valid() {
		return invalid(day, "", "unknown weekday")
	}
	cur := p.Days[day]
	if index < 0 || index >= len(cur.Breaks) {
		return invalid(day, "breaks", "index %d out of range", index)
	}

	next := cur.Clone()
	next.Breaks = append(next.Breaks[:index], next.Breaks[index+1:]...)
	if err := validateDay(day, next); err != nil {
		return err
	}
	p.Days[day] = next
	return nil
}

// ApplyDefaultsToWorkdays enables Monday to Friday with the given hours and
// disables the weekend. The booking horizon is kept.
func (p *WeeklyPattern) ApplyDefaultsToWorkdays(start, end model.Clock) error {
	work := model.Interval{Start: start, End: end}
	if !work.Valid() {
		return invalid(model.Monday, "workHours", "start %s must be before end %s", start, end)
	}

	for _, day := range model.Weekdays() {
		if day.IsWorkday() {
			wh := work
			p.Days[day] = DaySchedule{Enabled: true, WorkHours: &wh, Breaks: []model.Interval{}}
			continue
		}
		p.Days[day] = DaySchedule{Enabled: false, Breaks: []model.Interval{}}
	}
	return nil
}
