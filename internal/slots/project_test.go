package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbook/internal/model"
	"marketbook/internal/pattern"
)

var monday = model.MustDate("2026-10-19")

func iv(start, end string) model.Interval {
	return model.MustInterval(start, end)
}

func booking(date model.Date, start, end string) model.Booking {
	return model.Booking{Date: date, StartTime: model.MustClock(start), EndTime: model.MustClock(end), Status: model.StatusConfirmed}
}

func mondayOnly(t *testing.T, ahead int) *pattern.WeeklyPattern {
	t.Helper()
	p := pattern.New()
	p.SubscribeAheadDays = ahead
	wh := iv("09:00", "17:00")
	require.NoError(t, p.SetDay(model.Monday, pattern.DaySchedule{
		Enabled:   true,
		WorkHours: &wh,
		Breaks:    []model.Interval{iv("12:00", "13:00")},
	}))
	return p
}

func TestProjectHorizon(t *testing.T) {
	for _, ahead := range []int{0, 1, 6, 30, 90} {
		days := Project(ProjectionInput{Pattern: mondayOnly(t, ahead), Today: monday})
		require.Len(t, days, ahead+1)
		assert.Equal(t, monday, days[0].Date)
		assert.Equal(t, monday.AddDays(ahead), days[len(days)-1].Date)
		for i := 1; i < len(days); i++ {
			assert.Equal(t, days[i-1].Date.AddDays(1), days[i].Date)
		}
	}
}

func TestProjectSingleMonday(t *testing.T) {
	days := Project(ProjectionInput{Pattern: mondayOnly(t, 1), Today: monday})
	require.Len(t, days, 2)

	first := days[0]
	require.NotNil(t, first.WorkHours)
	assert.Equal(t, iv("09:00", "17:00"), *first.WorkHours)
	assert.Equal(t, []model.Interval{iv("12:00", "13:00")}, first.Breaks)
	assert.Empty(t, first.Bookings)
	assert.True(t, first.Available)
	assert.Equal(t, []model.Interval{iv("09:00", "12:00"), iv("13:00", "17:00")}, first.FreeRanges)

	tuesday := days[1]
	assert.Nil(t, tuesday.WorkHours)
	assert.False(t, tuesday.Available)
	assert.Equal(t, model.ClosedDayOff, tuesday.ClosedReason)
}

func TestProjectExclusionOnlyAffectsItsDate(t *testing.T) {
	excl := model.BreakExclusions{}
	excl.Add(monday, iv("12:00", "13:00"))
	excl.Add(monday, iv("15:00", "15:30"))

	days := Project(ProjectionInput{Pattern: mondayOnly(t, 14), Today: monday, Exclusions: excl})
	require.Len(t, days, 15)

	assert.Empty(t, days[0].Breaks)
	assert.Equal(t, []model.Interval{iv("09:00", "17:00")}, days[0].FreeRanges)
	assert.Equal(t, []model.Interval{iv("12:00", "13:00")}, days[7].Breaks)
	assert.Equal(t, []model.Interval{iv("12:00", "13:00")}, days[14].Breaks)
}

func TestProjectBookingsAttached(t *testing.T) {
	next := monday.AddDays(7)
	canceled := booking(monday, "14:00", "15:00")
	canceled.Status = model.StatusCanceled

	days := Project(ProjectionInput{
		Pattern: mondayOnly(t, 7),
		Today:   monday,
		Bookings: []model.Booking{
			booking(monday, "15:00", "16:00"),
			booking(monday, "09:00", "10:00"),
			canceled,
			booking(next, "10:00", "11:00"),
			booking(monday.AddDays(30), "10:00", "11:00"),
		},
	})
	require.Len(t, days, 8)

	require.Len(t, days[0].Bookings, 2)
	assert.Equal(t, model.MustClock("09:00"), days[0].Bookings[0].StartTime)
	assert.Equal(t, model.MustClock("15:00"), days[0].Bookings[1].StartTime)
	assert.Equal(t, []model.Interval{iv("10:00", "12:00"), iv("13:00", "15:00"), iv("16:00", "17:00")}, days[0].FreeRanges)
	require.Len(t, days[7].Bookings, 1)
	assert.Nil(t, days[0].Capacity)
}

func TestProjectFullyBookedSingle(t *testing.T) {
	days := Project(ProjectionInput{
		Pattern:  mondayOnly(t, 0),
		Today:    monday,
		Bookings: []model.Booking{booking(monday, "09:00", "12:00"), booking(monday, "13:00", "17:00")},
	})
	require.Len(t, days, 1)
	assert.False(t, days[0].Available)
	assert.Empty(t, days[0].FreeRanges)
	assert.Equal(t, model.ClosedFullyBooked, days[0].ClosedReason)
}

func TestProjectCapacity(t *testing.T) {
	tests := []struct {
		name      string
		bookings  []model.Booking
		booked    int
		available bool
		free      []model.Interval
	}{
		{
			name:      "empty",
			booked:    0,
			available: true,
			free:      []model.Interval{iv("09:00", "12:00"), iv("13:00", "17:00")},
		},
		{
			name:      "touching bookings do not stack",
			bookings:  []model.Booking{booking(monday, "10:00", "11:00"), booking(monday, "11:00", "12:00")},
			booked:    1,
			available: true,
			free:      []model.Interval{iv("09:00", "12:00"), iv("13:00", "17:00")},
		},
		{
			name:      "overlap reaches capacity",
			bookings:  []model.Booking{booking(monday, "10:00", "11:00"), booking(monday, "10:30", "11:30")},
			booked:    2,
			available: false,
			free:      []model.Interval{iv("09:00", "10:30"), iv("11:00", "12:00"), iv("13:00", "17:00")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := Project(ProjectionInput{Pattern: mondayOnly(t, 0), Today: monday, Bookings: tt.bookings, Capacity: 2})
			require.Len(t, days, 1)
			require.NotNil(t, days[0].Capacity)
			assert.Equal(t, 2, days[0].Capacity.Total)
			assert.Equal(t, tt.booked, days[0].Capacity.Booked)
			assert.Equal(t, 2-tt.booked, days[0].Capacity.Available)
			assert.Equal(t, tt.available, days[0].Available)
			assert.Equal(t, tt.free, days[0].FreeRanges)
		})
	}
}

func TestProjectWindowAndHolidays(t *testing.T) {
	in := ProjectionInput{
		Pattern:     mondayOnly(t, 14),
		Today:       monday,
		From:        monday.AddDays(-3),
		To:          monday.AddDays(40),
		ClosedDates: []model.Date{monday.AddDays(7)},
	}
	days := Project(in)
	require.Len(t, days, 15)
	assert.Equal(t, model.ClosedHoliday, days[7].ClosedReason)
	assert.Nil(t, days[7].WorkHours)
	assert.True(t, days[14].Available)

	in.From = monday.AddDays(7)
	in.To = monday.AddDays(8)
	days = Project(in)
	require.Len(t, days, 2)
	assert.Equal(t, monday.AddDays(7), days[0].Date)

	in.From = monday.AddDays(20)
	assert.Empty(t, Project(in))
}

func TestProjectDeterministic(t *testing.T) {
	in := ProjectionInput{
		Pattern:  mondayOnly(t, 21),
		Today:    monday,
		Bookings: []model.Booking{booking(monday, "10:00", "11:00"), booking(monday.AddDays(7), "09:00", "09:30")},
		Capacity: 3,
	}
	snapshot := in.Pattern.Clone()

	assert.Equal(t, Project(in), Project(in))
	assert.Equal(t, snapshot, in.Pattern)
}

func TestSaturated(t *testing.T) {
	ivs := []model.Interval{iv("09:00", "11:00"), iv("10:00", "12:00"), iv("10:30", "10:45"), iv("12:00", "13:00")}

	assert.Equal(t, []model.Interval{iv("09:00", "13:00")}, Saturated(ivs, 1))
	assert.Equal(t, []model.Interval{iv("10:00", "11:00")}, Saturated(ivs, 2))
	assert.Equal(t, []model.Interval{iv("10:30", "10:45")}, Saturated(ivs, 3))
	assert.Empty(t, Saturated(ivs, 4))
	assert.Equal(t, 3, Peak(ivs))
	assert.Equal(t, 1, PeakWithin(ivs, iv("11:00", "13:00")))
}
