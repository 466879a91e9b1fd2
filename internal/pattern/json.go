package pattern

import (
	"encoding/json"
	"fmt"

	"marketbook/internal/model"
)

const subscribeAheadKey = "subscribeAheadDays"

type dayJSON struct {
	Enabled   bool             `json:"enabled"`
	WorkHours *model.Interval  `json:"workHours,omitempty"`
	Breaks    []model.Interval `json:"breaks"`
}

// MarshalJSON writes the pattern keyed by lowercase weekday names.
func (p WeeklyPattern) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, model.DaysInWeek+1)
	for _, day := range model.Weekdays() {
		s := p.Days[day]
		breaks := s.Breaks
		if breaks == nil {
			breaks = []model.Interval{}
		}
		out[day.String()] = dayJSON{Enabled: s.Enabled, WorkHours: s.WorkHours, Breaks: breaks}
	}
	out[subscribeAheadKey] = p.SubscribeAheadDays
	return json.Marshal(out)
}

// UnmarshalJSON reads the weekday-keyed form. Missing days are disabled and
// a missing horizon falls back to DefaultSubscribeAheadDays.
func (p *WeeklyPattern) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	next := WeeklyPattern{SubscribeAheadDays: DefaultSubscribeAheadDays}
	for key, val := range raw {
		if key == subscribeAheadKey {
			if err := json.Unmarshal(val, &next.SubscribeAheadDays); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			continue
		}

		day, err := model.ParseWeekday(key)
		if err != nil {
			return err
		}
		var dj dayJSON
		if err := json.Unmarshal(val, &dj); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		next.Days[day] = DaySchedule{Enabled: dj.Enabled, WorkHours: dj.WorkHours, Breaks: dj.Breaks}
	}

	*p = next
	return nil
}
