package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketbook/internal/model"
	"marketbook/internal/resource"
)

func selectMarket() *model.Market {
	return &model.Market{
		ID:                  "mk1",
		ResourceBookingMode: model.ModeSelect,
		Members: []model.Resource{
			{ID: "alice", Name: "Alice", Status: model.MemberAccepted, IsActive: true},
			{ID: "bob", Name: "Bob", Status: model.MemberAccepted, IsActive: true},
			{ID: "eve", Name: "Eve", Status: model.MemberDeclined, IsActive: true},
		},
	}
}

func TestSessionLastRequestWins(t *testing.T) {
	s := NewSession(&model.Market{ID: "mk1"})
	ctx := context.Background()

	first, err := s.SelectDate(ctx, monday)
	require.NoError(t, err)
	second, err := s.SelectDate(ctx, monday.AddDays(7))
	require.NoError(t, err)

	assert.Error(t, first.Ctx.Err(), "older fetch is canceled")
	assert.NoError(t, second.Ctx.Err())

	_, err = s.Day()
	assert.True(t, errors.Is(err, ErrProjectionPending))

	next := mondayDay(t, 0)
	next.Date = monday.AddDays(7)
	assert.True(t, s.Resolve(second, []model.AvailableDay{next}))
	assert.False(t, s.Resolve(first, []model.AvailableDay{mondayDay(t, 0)}), "stale response ignored")

	day, err := s.Day()
	require.NoError(t, err)
	assert.Equal(t, monday.AddDays(7), day.Date)
}

func TestSessionStageAndClear(t *testing.T) {
	s := NewSession(&model.Market{ID: "mk1"})
	ctx := context.Background()

	_, err := s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
	assert.True(t, errors.Is(err, ErrNoDateSelected))

	tk, err := s.SelectDate(ctx, monday)
	require.NoError(t, err)
	_, err = s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
	assert.True(t, errors.Is(err, ErrProjectionPending), "picker gated until projection resolves")

	require.True(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0)}))
	picked, err := s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
	require.NoError(t, err)
	assert.Equal(t, monday, picked.Date)
	assert.Equal(t, StateSlotsStaged, s.State())

	_, err = s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
	assert.True(t, errors.Is(err, ErrDuplicateSelection))
	_, err = s.Stage(model.MustClock("12:30"), model.MustClock("13:30"))
	assert.True(t, errors.Is(err, ErrBreakConflict))
	assert.Len(t, s.Staged(), 1)

	_, err = s.Stage(model.MustClock("15:00"), model.MustClock("16:00"))
	require.NoError(t, err)
	require.NoError(t, s.Unstage(0))
	require.Len(t, s.Staged(), 1)
	assert.Equal(t, model.MustClock("15:00"), s.Staged()[0].StartTime)

	_, err = s.SelectDate(ctx, monday.AddDays(1))
	require.NoError(t, err)
	assert.Empty(t, s.Staged(), "date change clears picks")
}

func TestSessionSelectMode(t *testing.T) {
	s := NewSession(selectMarket())
	ctx := context.Background()

	_, err := s.SelectResource(ctx, "alice")
	assert.True(t, errors.Is(err, ErrNoDateSelected))

	tk, err := s.SelectDate(ctx, monday)
	require.NoError(t, err)
	require.True(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0)}))
	_, err = s.Day()
	assert.True(t, errors.Is(err, resource.ErrResourceRequired))

	_, err = s.SelectResource(ctx, "eve")
	assert.True(t, errors.Is(err, resource.ErrResourceNotEligible))

	tk, err = s.SelectResource(ctx, "alice")
	require.NoError(t, err)
	require.True(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0)}))
	picked, err := s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
	require.NoError(t, err)
	assert.Equal(t, "alice", picked.ResourceID)
	assert.Equal(t, "2026-10-19 10:00-11:00 (Alice)", picked.Label)

	_, err = s.SelectResource(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, s.Staged(), "resource change clears picks")
	assert.Equal(t, monday, s.Date(), "resource change keeps the date")
	assert.Equal(t, "bob", s.ResourceID())

	_, err = s.SelectDate(ctx, monday.AddDays(7))
	require.NoError(t, err)
	assert.Empty(t, s.ResourceID(), "date change clears resource")
}

func TestSessionStageRun(t *testing.T) {
	ctx := context.Background()
	market := &model.Market{ID: "mk1", WorkDurationPerClient: 60}

	open := func(t *testing.T, now time.Time) *Session {
		s := NewSession(market)
		s.now = func() time.Time { return now }
		tk, err := s.SelectDate(ctx, monday)
		require.NoError(t, err)
		require.True(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0, committed(monday, "14:00", "15:00", ""))}))
		return s
	}

	s := open(t, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	picked, err := s.StageRun(model.MustClock("09:00"), 2)
	require.NoError(t, err)
	assert.Equal(t, model.MustInterval("09:00", "11:00"), picked.Interval())
	assert.Equal(t, StateSlotsStaged, s.State())

	_, err = s.StageRun(model.MustClock("11:00"), 2)
	assert.True(t, errors.Is(err, ErrBreakConflict))
	_, err = s.StageRun(model.MustClock("13:00"), 2)
	assert.True(t, errors.Is(err, ErrBookingConflict))
	_, err = s.StageRun(model.MustClock("15:30"), 1)
	assert.True(t, errors.Is(err, ErrSlotRunUnavailable), "start off the slot grid")
	assert.Equal(t, "slot_run_unavailable", Reason(err))
	_, err = s.StageRun(model.MustClock("15:00"), 0)
	assert.True(t, errors.Is(err, ErrSlotRunUnavailable))
	assert.Len(t, s.Staged(), 1)

	late := open(t, time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC))
	_, err = late.StageRun(model.MustClock("15:00"), 1)
	assert.True(t, errors.Is(err, ErrSlotRunUnavailable), "slot already started")
	_, err = late.StageRun(model.MustClock("16:00"), 1)
	require.NoError(t, err)
}

func TestSessionSubmit(t *testing.T) {
	ctx := context.Background()
	market := &model.Market{ID: "mk1"}

	newStaged := func(t *testing.T) *Session {
		s := NewSession(market)
		tk, err := s.SelectDate(ctx, monday)
		require.NoError(t, err)
		require.True(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0)}))
		_, err = s.Stage(model.MustClock("10:00"), model.MustClock("11:00"))
		require.NoError(t, err)
		return s
	}

	t.Run("empty", func(t *testing.T) {
		client := new(mockCheckInClient)
		s := NewSession(market)
		_, err := s.Submit(ctx, NewSubmitter(client, market, nil), "ord1")
		assert.True(t, errors.Is(err, ErrEmptySelection))
		client.AssertNotCalled(t, "CheckIn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejected keeps picks", func(t *testing.T) {
		client := new(mockCheckInClient)
		client.On("CheckIn", mock.Anything, "ord1", mock.Anything).Return(nil, errors.New("http 500")).Once()
		client.On("CheckIn", mock.Anything, "ord1", mock.Anything).Return(&CheckInResult{Status: CheckInConfirmed}, nil).Once()
		sub := NewSubmitter(client, market, nil)

		s := newStaged(t)
		_, err := s.Submit(ctx, sub, "ord1")
		require.Error(t, err)
		assert.Equal(t, StateRejected, s.State())
		assert.Len(t, s.Staged(), 1)

		res, err := s.Submit(ctx, sub, "ord1")
		require.NoError(t, err)
		assert.Equal(t, CheckInConfirmed, res.Status)
		assert.Equal(t, StateIdle, s.State(), "commit closes the session")
		assert.Empty(t, s.Staged())
		assert.True(t, s.Date().IsZero())
		client.AssertExpectations(t)

		_, err = s.SelectDate(ctx, monday.AddDays(7))
		require.NoError(t, err, "a new dialog can start right after a commit")
	})

	t.Run("closed while submitting still reports the commit", func(t *testing.T) {
		s := newStaged(t)
		client := new(mockCheckInClient)
		client.On("CheckIn", mock.Anything, "ord1", mock.Anything).
			Run(func(mock.Arguments) { s.Close() }).
			Return(&CheckInResult{Status: CheckInConfirmed, BookingIDs: []string{"b1"}}, nil)

		res, err := s.Submit(ctx, NewSubmitter(client, market, nil), "ord1")
		require.NoError(t, err)
		assert.Equal(t, CheckInConfirmed, res.Status)
		assert.Equal(t, []string{"b1"}, res.BookingIDs)
		assert.Equal(t, StateIdle, s.State())
		assert.Empty(t, s.Staged())
	})

	t.Run("closed while submitting keeps the failure", func(t *testing.T) {
		s := newStaged(t)
		client := new(mockCheckInClient)
		client.On("CheckIn", mock.Anything, "ord1", mock.Anything).
			Run(func(mock.Arguments) { s.Close() }).
			Return(nil, errors.New("http 503"))

		res, err := s.Submit(ctx, NewSubmitter(client, market, nil), "ord1")
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Equal(t, StateIdle, s.State(), "close wins over the rejected state")
	})
}

func TestSessionClose(t *testing.T) {
	s := NewSession(&model.Market{ID: "mk1"})
	tk, err := s.SelectDate(context.Background(), monday)
	require.NoError(t, err)

	s.Close()
	assert.Error(t, tk.Ctx.Err())
	assert.False(t, s.Resolve(tk, []model.AvailableDay{mondayDay(t, 0)}), "late response after close is ignored")
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Staged())
}
