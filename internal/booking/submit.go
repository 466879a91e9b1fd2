package booking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"marketbook/internal/model"
)

// CheckInSlot is one slot of a check-in request on the wire.
type CheckInSlot struct {
	Date           model.Date  `json:"date"`
	StartTime      model.Clock `json:"startTime"`
	EndTime        model.Clock `json:"endTime"`
	MarketMemberID string      `json:"marketMemberId,omitempty"`
}

// Interval returns the slot range.
func (s CheckInSlot) Interval() model.Interval {
	return model.Interval{Start: s.StartTime, End: s.EndTime}
}

// CheckInRequest is the body of POST check-in.
type CheckInRequest struct {
	Slots []CheckInSlot `json:"slots"`
}

// Check-in statuses reported by the backend.
const (
	CheckInConfirmed = "confirmed"
	CheckInPending   = "pending"
)

// CheckInResult is the backend answer to a check-in.
type CheckInResult struct {
	Status     string   `json:"status"`
	BookingIDs []string `json:"bookingIds,omitempty"`
	// Pending is set when the booking awaits owner approval.
	Pending bool `json:"-"`
}

// CheckInClient submits slots to the backend as one all-or-nothing request.
type CheckInClient interface {
	CheckIn(ctx context.Context, orderID string, slots []CheckInSlot) (*CheckInResult, error)
}

// Submitter turns staged picks into a check-in request.
type Submitter struct {
	client CheckInClient
	market *model.Market
	log    *zerolog.Logger
}

// NewSubmitter creates a submitter for market.
func NewSubmitter(client CheckInClient, market *model.Market, log *zerolog.Logger) *Submitter {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Submitter{client: client, market: market, log: log}
}

// Submit sends staged as one request. An empty list fails before any call.
func (s *Submitter) Submit(ctx context.Context, orderID string, staged []model.SelectedBooking) (*CheckInResult, error) {
	if len(staged) == 0 {
		return nil, ErrEmptySelection
	}

	req := ToCheckInSlots(s.market, staged)
	res, err := s.client.CheckIn(ctx, orderID, req)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Int("slots", len(req)).Msg("check-in rejected")
		return nil, fmt.Errorf("check-in: %w", err)
	}
	if res == nil {
		res = &CheckInResult{Status: CheckInConfirmed}
	}

	res.Pending = s.market.CheckinRequiresApproval || res.Status == CheckInPending
	if res.Pending {
		res.Status = CheckInPending
	}
	s.log.Info().
		Str("order_id", orderID).
		Str("market_id", s.market.ID).
		Str("status", res.Status).
		Int("slots", len(req)).
		Msg("check-in submitted")
	return res, nil
}

// ToCheckInSlots maps picks to wire slots. The member id is only sent in
// select mode.
func ToCheckInSlots(market *model.Market, staged []model.SelectedBooking) []CheckInSlot {
	withMember := market.ResourceBookingMode == model.ModeSelect
	out := make([]CheckInSlot, 0, len(staged))
	for _, sb := range staged {
		slot := CheckInSlot{Date: sb.Date, StartTime: sb.StartTime, EndTime: sb.EndTime}
		if withMember {
			slot.MarketMemberID = sb.ResourceID
		}
		out = append(out, slot)
	}
	return out
}
