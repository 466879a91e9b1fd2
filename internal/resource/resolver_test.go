package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbook/internal/model"
	"marketbook/internal/pattern"
	"marketbook/internal/slots"
)

var monday = model.MustDate("2026-10-19")

func testMarket(mode model.ResourceBookingMode) *model.Market {
	return &model.Market{
		ID:                  "mk1",
		Name:                "Barber",
		ResourceBookingMode: mode,
		Members: []model.Resource{
			{ID: "alice", Name: "Alice", Status: model.MemberAccepted, IsActive: true},
			{ID: "bob", Name: "Bob", Status: model.MemberInvited, IsActive: true},
			{ID: "carol", Name: "Carol", Status: model.MemberAccepted, IsActive: false},
			{ID: "dave", Name: "Dave", Status: model.MemberAccepted, IsActive: true},
		},
	}
}

func input(t *testing.T) slots.ProjectionInput {
	t.Helper()
	p := pattern.New()
	p.SubscribeAheadDays = 0
	require.NoError(t, p.ApplyDefaultsToWorkdays(model.MustClock("09:00"), model.MustClock("12:00")))
	return slots.ProjectionInput{
		Pattern: p,
		Today:   monday,
		Bookings: []model.Booking{
			{Date: monday, StartTime: model.MustClock("09:00"), EndTime: model.MustClock("10:00"), ResourceID: "alice"},
			{Date: monday, StartTime: model.MustClock("09:30"), EndTime: model.MustClock("10:30"), ResourceID: "dave"},
			{Date: monday, StartTime: model.MustClock("11:00"), EndTime: model.MustClock("12:00"), ResourceID: "dave"},
		},
	}
}

func TestListEligible(t *testing.T) {
	got := ListEligible(testMarket(model.ModeSelect))
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].ID)
	assert.Equal(t, "dave", got[1].ID)
	assert.Nil(t, ListEligible(nil))
}

func TestProjectForResource(t *testing.T) {
	in := input(t)

	alice := ProjectForResource(in, "alice")
	require.Len(t, alice, 1)
	assert.Len(t, alice[0].Bookings, 1)
	assert.Equal(t, []model.Interval{model.MustInterval("10:00", "12:00")}, alice[0].FreeRanges)

	dave := ProjectForResource(in, "dave")
	assert.Len(t, dave[0].Bookings, 2)
	assert.Equal(t, []model.Interval{model.MustInterval("09:00", "09:30"), model.MustInterval("10:30", "11:00")}, dave[0].FreeRanges)

	assert.Len(t, in.Bookings, 3, "input must not be mutated")
}

func TestProjectPooled(t *testing.T) {
	days := ProjectPooled(input(t), 2)
	require.Len(t, days, 1)
	require.NotNil(t, days[0].Capacity)
	assert.Equal(t, 2, days[0].Capacity.Total)
	assert.Equal(t, 2, days[0].Capacity.Booked)
	assert.Equal(t, 0, days[0].Capacity.Available)
	assert.False(t, days[0].Available)
}

func TestProjectDispatch(t *testing.T) {
	t.Run("select requires resource", func(t *testing.T) {
		_, err := Project(testMarket(model.ModeSelect), input(t), "")
		assert.True(t, errors.Is(err, ErrResourceRequired))
	})

	t.Run("select rejects ineligible", func(t *testing.T) {
		for _, id := range []string{"bob", "carol", "nobody"} {
			_, err := Project(testMarket(model.ModeSelect), input(t), id)
			assert.True(t, errors.Is(err, ErrResourceNotEligible), id)
		}
	})

	t.Run("select scopes bookings", func(t *testing.T) {
		days, err := Project(testMarket(model.ModeSelect), input(t), "alice")
		require.NoError(t, err)
		assert.Len(t, days[0].Bookings, 1)
	})

	t.Run("select without eligible members", func(t *testing.T) {
		m := testMarket(model.ModeSelect)
		m.Members = nil
		days, err := Project(m, input(t), "")
		require.NoError(t, err)
		assert.Len(t, days[0].Bookings, 3)
	})

	t.Run("multi pools by eligible members", func(t *testing.T) {
		days, err := Project(testMarket(model.ModeMulti), input(t), "alice")
		require.NoError(t, err)
		require.NotNil(t, days[0].Capacity)
		assert.Equal(t, 2, days[0].Capacity.Total)
		assert.Len(t, days[0].Bookings, 3)
	})

	t.Run("multi uses concurrent slots", func(t *testing.T) {
		m := testMarket(model.ModeMulti)
		m.ConcurrentSlots = 5
		days, err := Project(m, input(t), "")
		require.NoError(t, err)
		assert.Equal(t, 3, days[0].Capacity.Available)
	})

	t.Run("single shared timeline", func(t *testing.T) {
		days, err := Project(testMarket(model.ModeSingle), input(t), "")
		require.NoError(t, err)
		assert.Nil(t, days[0].Capacity)
		assert.Equal(t, []model.Interval{model.MustInterval("10:30", "11:00")}, days[0].FreeRanges)
	})
}
