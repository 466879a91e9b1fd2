package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketbook/internal/model"
	"marketbook/internal/resource"
	"marketbook/internal/slots"
)

// Ticket identifies one projection request. Responses carrying a ticket
// from an older generation are ignored.
type Ticket struct {
	Generation uint64
	Ctx        context.Context
}

// Session is one client's booking dialog for a market.
type Session struct {
	mu  sync.Mutex
	fsm *FSM

	market *model.Market
	opts   Options

	state      State
	date       model.Date
	resourceID string
	day        *model.AvailableDay
	staged     []model.SelectedBooking

	generation uint64
	cancel     context.CancelFunc
	now        func() time.Time
}

// NewSession creates an idle session for market.
func NewSession(market *model.Market) *Session {
	return &Session{
		fsm:    NewFSM(),
		market: market,
		opts:   OptionsFor(market),
		state:  StateIdle,
		now:    time.Now,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Date returns the selected date.
func (s *Session) Date() model.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// ResourceID returns the selected resource, if any.
func (s *Session) ResourceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceID
}

// SelectDate starts a new projection generation for date. The resource,
// projection and staged picks are cleared.
func (s *Session) SelectDate(ctx context.Context, date model.Date) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(StateDateSelected); err != nil {
		return Ticket{}, err
	}
	s.date = date
	s.resourceID = ""
	s.staged = nil
	return s.renew(ctx), nil
}

// SelectResource scopes the session to resourceID and starts a new
// projection generation. Staged picks are cleared; the date is kept.
func (s *Session) SelectResource(ctx context.Context, resourceID string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return Ticket{}, ErrNoDateSelected
	}
	if err := resource.CheckEligible(s.market, resourceID); err != nil {
		return Ticket{}, err
	}
	if err := s.transition(StateResourceSelected); err != nil {
		return Ticket{}, err
	}
	s.resourceID = resourceID
	s.staged = nil
	return s.renew(ctx), nil
}

// renew cancels the in-flight fetch and issues a ticket for the next one.
func (s *Session) renew(parent context.Context) Ticket {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.day = nil

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return Ticket{Generation: s.generation, Ctx: ctx}
}

// Resolve applies a projection response. It returns false and changes
// nothing when the ticket is stale.
func (s *Session) Resolve(t Ticket, days []model.AvailableDay) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.generation || s.state == StateIdle {
		return false
	}

	day := model.AvailableDay{Date: s.date, ClosedReason: model.ClosedDayOff}
	for _, d := range days {
		if d.Date == s.date {
			day = d
			break
		}
	}
	s.day = &day
	return true
}

// Day returns the projection for the selected date once it has resolved.
func (s *Session) Day() (model.AvailableDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pickerReady(); err != nil {
		return model.AvailableDay{}, err
	}
	return *s.day, nil
}

func (s *Session) pickerReady() error {
	if s.state == StateIdle {
		return ErrNoDateSelected
	}
	if s.opts.PerResource && s.resourceID == "" {
		return resource.ErrResourceRequired
	}
	if s.day == nil {
		return ErrProjectionPending
	}
	return nil
}

// Stage validates a time range on the selected day and stages it.
func (s *Session) Stage(start, end model.Clock) (model.SelectedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage(start, end, nil)
}

// StageRun stages count consecutive slots of the market's slot length
// starting at start as one pick. Every slot in the run must be free.
func (s *Session) StageRun(start model.Clock, count int) (model.SelectedBooking, error) {
	if count <= 0 {
		return model.SelectedBooking{}, fmt.Errorf("%w: slot count %d", ErrSlotRunUnavailable, count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	minutes := SlotMinutes(s.market)
	end := start + model.Clock(count*minutes)
	return s.stage(start, end, func(day model.AvailableDay) error {
		cut := slots.GenerateSlots(day, minutes, s.now())
		if !slots.CanBookConsecutive(cut, start, count) {
			return fmt.Errorf("%w: %d x %s from %s", ErrSlotRunUnavailable, count, slots.FormatDuration(minutes), start)
		}
		return nil
	})
}

// stage validates start-end and, when fit accepts the day, stages it.
// Callers hold s.mu.
func (s *Session) stage(start, end model.Clock, fit func(model.AvailableDay) error) (model.SelectedBooking, error) {
	if err := s.pickerReady(); err != nil {
		return model.SelectedBooking{}, err
	}
	if !s.fsm.CanTransition(s.state, StateSlotsStaged) {
		return model.SelectedBooking{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateSlotsStaged)
	}

	candidate := model.SelectedBooking{Date: s.date, StartTime: start, EndTime: end}
	name := ""
	if s.opts.PerResource {
		candidate.ResourceID = s.resourceID
		if r, ok := s.market.Member(s.resourceID); ok {
			name = r.Name
		}
	}
	candidate.Label = model.SelectionLabel(s.date, candidate.Interval(), name)

	staged, err := Validate(*s.day, candidate, s.staged, s.opts)
	if err != nil {
		return model.SelectedBooking{}, err
	}
	if fit != nil {
		if err := fit(*s.day); err != nil {
			return model.SelectedBooking{}, err
		}
	}
	s.staged = staged
	s.state = StateSlotsStaged
	return candidate, nil
}

// Unstage removes the staged pick at index.
func (s *Session) Unstage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.staged) {
		return fmt.Errorf("staged index %d out of range", index)
	}
	s.staged = append(s.staged[:index:index], s.staged[index+1:]...)
	return nil
}

// Staged returns a copy of the staged picks.
func (s *Session) Staged() []model.SelectedBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SelectedBooking(nil), s.staged...)
}

// Submit sends the staged picks through sub. On success the session is
// reset to idle; on failure the picks are kept for retry. A session closed
// while submitting is left as is, but a committed result is still returned.
func (s *Session) Submit(ctx context.Context, sub *Submitter, orderID string) (*CheckInResult, error) {
	s.mu.Lock()
	if len(s.staged) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptySelection
	}
	if err := s.transition(StateSubmitting); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	staged := append([]model.SelectedBooking(nil), s.staged...)
	gen := s.generation
	s.mu.Unlock()

	res, err := sub.Submit(ctx, orderID, staged)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != StateSubmitting {
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	if err != nil {
		s.state = StateRejected
		return nil, err
	}

	// Committed is transient: a successful submit closes the session.
	s.reset()
	return res, nil
}

// Close discards in-flight fetch effects and clears all selections.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
}

// reset drops in-flight fetches and returns to idle with no selections.
func (s *Session) reset() {
	s.drop()
	s.state = StateIdle
	s.date = model.Date{}
	s.resourceID = ""
	s.staged = nil
}

// drop cancels the in-flight fetch and invalidates its ticket.
func (s *Session) drop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.day = nil
}

func (s *Session) transition(to State) error {
	if !s.fsm.CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}
