package pattern

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbook/internal/model"
)

func iv(start, end string) model.Interval {
	return model.MustInterval(start, end)
}

func workday(start, end string, breaks ...model.Interval) DaySchedule {
	wh := iv(start, end)
	return DaySchedule{Enabled: true, WorkHours: &wh, Breaks: breaks}
}

func TestSetDayValidation(t *testing.T) {
	tests := []struct {
		name    string
		day     DaySchedule
		wantErr bool
	}{
		{"disabled without hours", DaySchedule{}, false},
		{"enabled plain", workday("09:00", "18:00"), false},
		{"enabled without hours", DaySchedule{Enabled: true}, true},
		{"start equals end", workday("09:00", "09:00"), true},
		{"start after end", workday("18:00", "09:00"), true},
		{"break inside", workday("09:00", "18:00", iv("12:00", "13:00")), false},
		{"break touching edges", workday("09:00", "18:00", iv("09:00", "10:00"), iv("17:00", "18:00")), false},
		{"break outside", workday("09:00", "18:00", iv("08:00", "09:30")), true},
		{"break inverted", workday("09:00", "18:00", iv("13:00", "12:00")), true},
		{"breaks overlap", workday("09:00", "18:00", iv("12:00", "13:00"), iv("12:30", "13:30")), true},
		{"breaks adjacent", workday("09:00", "18:00", iv("12:00", "13:00"), iv("13:00", "14:00")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			err := p.SetDay(model.Monday, tt.day)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				assert.False(t, p.Days[model.Monday].Enabled, "failed edit must not change state")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.day.Enabled, p.Days[model.Monday].Enabled)
		})
	}
}

func TestSetDayCopiesInput(t *testing.T) {
	p := New()
	in := workday("09:00", "18:00", iv("12:00", "13:00"))
	require.NoError(t, p.SetDay(model.Tuesday, in))

	in.Breaks[0] = iv("10:00", "11:00")
	in.WorkHours.End = model.MustClock("10:00")

	got := p.Day(model.Tuesday)
	assert.Equal(t, iv("12:00", "13:00"), got.Breaks[0])
	assert.Equal(t, iv("09:00", "18:00"), *got.WorkHours)
}

func TestAddBreakPlacement(t *testing.T) {
	tests := []struct {
		name     string
		day      DaySchedule
		want     model.Interval
		expected model.Interval
	}{
		{
			name:     "requested fits",
			day:      workday("09:00", "18:00"),
			want:     iv("15:00", "15:30"),
			expected: iv("15:00", "15:30"),
		},
		{
			name:     "falls back to midday",
			day:      workday("09:00", "18:00", iv("15:00", "16:00")),
			want:     iv("15:30", "16:30"),
			expected: iv("12:00", "13:00"),
		},
		{
			name:     "midday keeps requested length",
			day:      workday("09:00", "18:00"),
			want:     iv("20:00", "20:30"),
			expected: iv("12:00", "12:30"),
		},
		{
			name:     "first gap before first break",
			day:      workday("09:00", "18:00", iv("12:00", "13:00")),
			want:     iv("12:00", "13:00"),
			expected: iv("09:00", "10:00"),
		},
		{
			name:     "gap between breaks",
			day:      workday("09:00", "15:00", iv("09:00", "10:00"), iv("12:00", "13:00")),
			want:     iv("12:30", "14:00"),
			expected: iv("10:00", "11:30"),
		},
		{
			name:     "gap after last break",
			day:      workday("11:00", "16:00", iv("11:00", "14:00")),
			want:     iv("12:00", "13:00"),
			expected: iv("14:00", "15:00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			require.NoError(t, p.SetDay(model.Wednesday, tt.day))
			before := len(p.Days[model.Wednesday].Breaks)

			got, err := p.AddBreak(model.Wednesday, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			breaks := p.Days[model.Wednesday].Breaks
			require.Len(t, breaks, before+1)
			assert.Equal(t, tt.expected, breaks[len(breaks)-1])
			assert.NoError(t, p.Validate())
		})
	}
}

func TestAddBreakNoSlot(t *testing.T) {
	p := New()
	require.NoError(t, p.SetDay(model.Friday, workday("12:00", "14:00", iv("12:00", "13:00"), iv("13:30", "14:00"))))

	_, err := p.AddDefaultBreak(model.Friday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAvailableSlot))
	assert.Len(t, p.Days[model.Friday].Breaks, 2)
}

func TestAddBreakRequiresWorkHours(t *testing.T) {
	p := New()
	_, err := p.AddDefaultBreak(model.Sunday)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUpdateBreak(t *testing.T) {
	p := New()
	require.NoError(t, p.SetDay(model.Monday, workday("09:00", "18:00", iv("12:00", "13:00"), iv("15:00", "15:30"))))

	require.NoError(t, p.UpdateBreak(model.Monday, 0, BreakEnd, model.MustClock("13:30")))
	assert.Equal(t, iv("12:00", "13:30"), p.Days[model.Monday].Breaks[0])

	tests := []struct {
		name  string
		index int
		field BreakField
		at    string
	}{
		{"start after end", 0, BreakStart, "14:00"},
		{"outside work hours", 1, BreakEnd, "18:30"},
		{"overlaps sibling", 1, BreakStart, "13:00"},
		{"index out of range", 5, BreakStart, "10:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.UpdateBreak(model.Monday, tt.index, tt.field, model.MustClock(tt.at))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, []model.Interval{iv("12:00", "13:30"), iv("15:00", "15:30")}, p.Days[model.Monday].Breaks)
		})
	}
}

func TestDeleteBreak(t *testing.T) {
	p := New()
	require.NoError(t, p.SetDay(model.Thursday, workday("09:00", "18:00", iv("10:00", "10:15"), iv("12:00", "13:00"), iv("16:00", "16:15"))))

	require.NoError(t, p.DeleteBreak(model.Thursday, 1))
	assert.Equal(t, []model.Interval{iv("10:00", "10:15"), iv("16:00", "16:15")}, p.Days[model.Thursday].Breaks)

	err := p.DeleteBreak(model.Thursday, 2)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestApplyDefaultsToWorkdays(t *testing.T) {
	p := New()
	p.SubscribeAheadDays = 14
	require.NoError(t, p.SetDay(model.Monday, workday("07:00", "11:00", iv("08:00", "09:00"))))
	require.NoError(t, p.SetDay(model.Saturday, workday("10:00", "14:00")))

	require.NoError(t, p.ApplyDefaultsToWorkdays(model.MustClock("09:00"), model.MustClock("17:00")))

	for _, day := range model.Weekdays() {
		s := p.Days[day]
		if day.IsWorkday() {
			assert.True(t, s.Enabled, day.String())
			require.NotNil(t, s.WorkHours, day.String())
			assert.Equal(t, iv("09:00", "17:00"), *s.WorkHours)
			assert.Empty(t, s.Breaks, day.String())
			continue
		}
		assert.False(t, s.Enabled, day.String())
	}
	assert.Equal(t, 14, p.SubscribeAheadDays)

	err := p.ApplyDefaultsToWorkdays(model.MustClock("17:00"), model.MustClock("09:00"))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPatternJSON(t *testing.T) {
	raw := `{
		"monday": {"enabled": true, "workHours": {"start": "09:00", "end": "18:00"}, "breaks": [{"start": "12:00", "end": "13:00"}]},
		"saturday": {"enabled": false, "breaks": []}
	}`

	var p WeeklyPattern
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, DefaultSubscribeAheadDays, p.SubscribeAheadDays)
	assert.True(t, p.Days[model.Monday].Enabled)
	assert.Equal(t, []model.Interval{iv("12:00", "13:00")}, p.Days[model.Monday].Breaks)
	assert.False(t, p.Days[model.Tuesday].Enabled)
	require.NoError(t, p.Validate())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Len(t, generic, model.DaysInWeek+1)
	assert.EqualValues(t, 90, generic["subscribeAheadDays"])
	assert.Equal(t, []any{}, generic["sunday"].(map[string]any)["breaks"])

	err = json.Unmarshal([]byte(`{"funday": {}}`), &p)
	assert.Error(t, err)
}
