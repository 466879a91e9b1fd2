package slots

import (
	"fmt"
	"time"

	"marketbook/internal/model"
)

// DefaultSlotMinutes is used when a market has no workDurationPerClient.
const DefaultSlotMinutes = 30

// Slot is one fixed-length cut of a projected day.
type Slot struct {
	Start     model.Clock `json:"start"`
	End       model.Clock `json:"end"`
	Available bool        `json:"available"`
}

// Interval returns the slot range.
func (s Slot) Interval() model.Interval {
	return model.Interval{Start: s.Start, End: s.End}
}

// GenerateSlots cuts day into slots of minutes length. Slots touching a break
// are skipped; slots outside the free ranges or starting before now are
// marked unavailable.
func GenerateSlots(day model.AvailableDay, minutes int, now time.Time) []Slot {
	if day.WorkHours == nil {
		return nil
	}
	if minutes <= 0 {
		minutes = DefaultSlotMinutes
	}

	step := model.Clock(minutes)
	work := *day.WorkHours
	var slots []Slot

	for cursor := work.Start; cursor+step <= work.End; cursor += step {
		iv := model.Interval{Start: cursor, End: cursor + step}

		if overlapsAny(iv, day.Breaks) {
			continue
		}

		free := containedInAny(iv, day.FreeRanges)
		isPast := day.Date.At(cursor, now.Location()).Before(now)

		slots = append(slots, Slot{
			Start:     iv.Start,
			End:       iv.End,
			Available: free && !isPast,
		})
	}

	return slots
}

// GetAvailableSlots returns only available slots.
func GetAvailableSlots(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// FindConsecutiveSlots groups available slots that follow each other without gaps.
func FindConsecutiveSlots(slots []Slot) [][]Slot {
	available := GetAvailableSlots(slots)
	if len(available) == 0 {
		return nil
	}

	var groups [][]Slot
	current := []Slot{available[0]}

	for i := 1; i < len(available); i++ {
		if available[i].Start == current[len(current)-1].End {
			current = append(current, available[i])
		} else {
			groups = append(groups, current)
			current = []Slot{available[i]}
		}
	}
	groups = append(groups, current)

	return groups
}

// CanBookConsecutive checks that count consecutive slots from start are available.
func CanBookConsecutive(slots []Slot, start model.Clock, count int) bool {
	if count <= 0 {
		return false
	}

	startIdx := indexOf(slots, start)
	if startIdx < 0 || startIdx+count > len(slots) {
		return false
	}

	for i := 0; i < count; i++ {
		idx := startIdx + i
		if !slots[idx].Available {
			return false
		}
		if i > 0 && slots[idx].Start != slots[idx-1].End {
			return false
		}
	}

	return true
}

// GetDurationOptions lists the bookable lengths in minutes starting at start.
func GetDurationOptions(slots []Slot, start model.Clock) []int {
	startIdx := indexOf(slots, start)
	if startIdx < 0 || !slots[startIdx].Available {
		return nil
	}

	var options []int
	for i := startIdx; i < len(slots); i++ {
		if !slots[i].Available {
			break
		}
		if i > startIdx && slots[i].Start != slots[i-1].End {
			break
		}
		options = append(options, int(slots[i].End-slots[startIdx].Start))
	}

	return options
}

// FormatDuration renders minutes as "30 min", "1 hour", "2 hours" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}

func indexOf(slots []Slot, start model.Clock) int {
	for i, s := range slots {
		if s.Start == start {
			return i
		}
	}
	return -1
}

func overlapsAny(iv model.Interval, ranges []model.Interval) bool {
	for _, r := range ranges {
		if r.Overlaps(iv) {
			return true
		}
	}
	return false
}

func containedInAny(iv model.Interval, ranges []model.Interval) bool {
	for _, r := range ranges {
		if r.Contains(iv) {
			return true
		}
	}
	return false
}
