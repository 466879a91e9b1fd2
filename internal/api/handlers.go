package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"marketbook/internal/booking"
	"marketbook/internal/db"
	"marketbook/internal/events"
	"marketbook/internal/export"
	"marketbook/internal/metrics"
	"marketbook/internal/model"
	"marketbook/internal/pattern"
	"marketbook/internal/resource"
	"marketbook/internal/slots"
)

type window struct {
	from, to   model.Date
	resourceID string
}

func (s *Server) parseWindow(values url.Values) (window, error) {
	q := windowQuery{
		StartDate:  values.Get("start_date"),
		EndDate:    values.Get("end_date"),
		ResourceID: values.Get("resource_id"),
	}
	if err := s.val.Struct(q); err != nil {
		return window{}, err
	}
	w := window{resourceID: q.ResourceID}
	if q.StartDate != "" {
		w.from, _ = model.ParseDate(q.StartDate)
	}
	if q.EndDate != "" {
		w.to, _ = model.ParseDate(q.EndDate)
	}
	return w, nil
}

// project loads bookings for the requested window and projects the market.
func (s *Server) project(ctx context.Context, rec *db.MarketRecord, w window) ([]model.AvailableDay, error) {
	in := slots.ProjectionInput{
		Pattern:     rec.Pattern,
		Today:       s.today(),
		From:        w.from,
		To:          w.to,
		Exclusions:  rec.Exclusions,
		ClosedDates: rec.ClosedDates,
	}
	from, to := in.Window()
	if !from.After(to) {
		bookings, err := s.store.ListBookings(ctx, rec.Market.ID, from, to)
		if err != nil {
			return nil, err
		}
		in.Bookings = bookings
	}

	days, err := resource.Project(&rec.Market, in, w.resourceID)
	if err != nil {
		return nil, err
	}
	metrics.IncProjection(string(rec.Market.ResourceBookingMode))
	return days, nil
}

func (s *Server) getAvailableSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	win, err := s.parseWindow(r.URL.Query())
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	marketID, err := s.store.MarketIDForOrder(ctx, orderID)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	rec, err := s.store.GetMarketRecord(ctx, marketID)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	days, err := s.project(ctx, rec, win)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, model.AvailabilityResponse{
		AvailableDays:         days,
		WorkDurationPerClient: rec.Market.WorkDurationPerClient,
	})
}

func (s *Server) postCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var body checkInBody
	if err := decodeJSON(r.Body, &body); err != nil {
		writeErr(w, s.log, err)
		return
	}
	if len(body.Slots) == 0 {
		metrics.IncCheckIn("rejected")
		writeErr(w, s.log, booking.ErrEmptySelection)
		return
	}
	if len(body.Slots) > s.max {
		WriteError(w, http.StatusBadRequest, "too_many_slots", fmt.Sprintf("at most %d slots per check-in", s.max), nil)
		return
	}
	if err := s.val.Struct(body); err != nil {
		writeErr(w, s.log, err)
		return
	}

	req := make([]booking.CheckInSlot, len(body.Slots))
	from, to := model.Date{}, model.Date{}
	for i, sl := range body.Slots {
		d, _ := model.ParseDate(sl.Date)
		start, _ := model.ParseClock(sl.StartTime)
		end, _ := model.ParseClock(sl.EndTime)
		req[i] = booking.CheckInSlot{Date: d, StartTime: start, EndTime: end, MarketMemberID: sl.MarketMemberID}
		if from.IsZero() || d.Before(from) {
			from = d
		}
		if to.IsZero() || d.After(to) {
			to = d
		}
	}

	var (
		rec    *db.MarketRecord
		status string
	)
	created, err := s.store.CheckIn(ctx, orderID, from, to, func(m *db.MarketRecord, existing []model.Booking) ([]model.Booking, error) {
		rec = m
		status = model.StatusConfirmed
		if m.Market.CheckinRequiresApproval {
			status = model.StatusPending
		}
		return s.decideCheckIn(m, existing, req, status)
	})
	if err != nil {
		metrics.IncCheckIn("rejected")
		writeErr(w, s.log, err)
		return
	}

	res := booking.CheckInResult{Status: status, BookingIDs: make([]string, len(created))}
	for i, b := range created {
		res.BookingIDs[i] = b.ID
	}
	metrics.IncCheckIn(status)
	s.publishCheckIn(rec, orderID, created, status == model.StatusPending)

	s.log.Info().
		Str("order_id", orderID).
		Str("market_id", rec.Market.ID).
		Str("status", status).
		Int("slots", len(created)).
		Msg("check-in committed")
	WriteJSON(w, http.StatusCreated, res)
}

// decideCheckIn validates every slot against the projected day. Accepted
// slots count as bookings for the slots after them, so the batch cannot
// overlap itself beyond the market's capacity.
func (s *Server) decideCheckIn(rec *db.MarketRecord, existing []model.Booking, req []booking.CheckInSlot, status string) ([]model.Booking, error) {
	market := &rec.Market
	opts := booking.OptionsFor(market)
	in := slots.ProjectionInput{
		Pattern:     rec.Pattern,
		Today:       s.today(),
		Bookings:    append([]model.Booking{}, existing...),
		Exclusions:  rec.Exclusions,
		ClosedDates: rec.ClosedDates,
		Capacity:    opts.Capacity,
	}
	first, last := in.Horizon()
	now := s.now().In(s.loc)

	created := make([]model.Booking, 0, len(req))
	var staged []model.SelectedBooking
	for i, sl := range req {
		resourceID := ""
		if market.ResourceBookingMode == model.ModeSelect {
			resourceID = sl.MarketMemberID
			if resource.RequiresSelection(market) {
				if resourceID == "" {
					return nil, fmt.Errorf("slot %d: %w", i, resource.ErrResourceRequired)
				}
				if err := resource.CheckEligible(market, resourceID); err != nil {
					return nil, fmt.Errorf("slot %d: %w", i, err)
				}
			}
		}
		if sl.Date.Before(first) || sl.Date.After(last) {
			return nil, fmt.Errorf("slot %d: %w: %s", i, errOutsideHorizon, sl.Date)
		}
		if sl.Date.At(sl.StartTime, s.loc).Before(now) {
			return nil, fmt.Errorf("slot %d: %w: %s %s", i, errSlotInPast, sl.Date, sl.Interval())
		}

		day := slots.ProjectDay(in, sl.Date)
		candidate := model.SelectedBooking{Date: sl.Date, StartTime: sl.StartTime, EndTime: sl.EndTime, ResourceID: resourceID}
		var err error
		if staged, err = booking.Validate(day, candidate, staged, opts); err != nil {
			metrics.IncSlotRejection(booking.Reason(err))
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}

		b := model.Booking{Date: sl.Date, StartTime: sl.StartTime, EndTime: sl.EndTime, ResourceID: resourceID, Status: status}
		in.Bookings = append(in.Bookings, b)
		created = append(created, b)
	}
	return created, nil
}

func (s *Server) publishCheckIn(rec *db.MarketRecord, orderID string, created []model.Booking, pending bool) {
	if s.bus == nil || rec == nil {
		return
	}
	ev, err := events.NewCheckInEvent(events.CheckInPayload{
		MarketID:    rec.Market.ID,
		MarketName:  rec.Market.Name,
		OwnerChatID: rec.OwnerChatID,
		OrderID:     orderID,
		Bookings:    created,
	}, pending)
	if err == nil {
		err = s.bus.Publish(ev)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("check-in event not delivered")
	}
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.store.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, market)
}

func (s *Server) getPattern(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetMarketRecord(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec.Pattern)
}

func (s *Server) putPattern(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	p := pattern.New()
	if err := decodeJSON(r.Body, p); err != nil {
		writeErr(w, s.log, err)
		return
	}
	if err := p.Validate(); err != nil {
		writeErr(w, s.log, err)
		return
	}
	if err := s.store.SavePattern(r.Context(), marketID, p); err != nil {
		writeErr(w, s.log, err)
		return
	}
	s.log.Info().Str("market_id", marketID).Msg("weekly pattern replaced")
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) parseExclusion(b exclusionBody) (model.Date, model.Interval, error) {
	if err := s.val.Struct(b); err != nil {
		return model.Date{}, model.Interval{}, err
	}
	d, _ := model.ParseDate(b.Date)
	br, err := model.NewInterval(b.Start, b.End)
	if err != nil {
		return model.Date{}, model.Interval{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if !br.Valid() {
		return model.Date{}, model.Interval{}, fmt.Errorf("%w: break %s", booking.ErrStartAfterEnd, br)
	}
	return d, br, nil
}

func (s *Server) postExclusion(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var body exclusionBody
	if err := decodeJSON(r.Body, &body); err != nil {
		writeErr(w, s.log, err)
		return
	}
	d, br, err := s.parseExclusion(body)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	if err := s.store.AddExclusion(r.Context(), marketID, d, br); err != nil {
		writeErr(w, s.log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, body)
}

func (s *Server) deleteExclusion(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	q := r.URL.Query()

	d, br, err := s.parseExclusion(exclusionBody{Date: q.Get("date"), Start: q.Get("start"), End: q.Get("end")})
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	removed, err := s.store.RemoveExclusion(r.Context(), marketID, d, br)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	if !removed {
		writeErr(w, s.log, fmt.Errorf("exclusion %s %s: %w", d, br, db.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getAvailabilityExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	win, err := s.parseWindow(r.URL.Query())
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	rec, err := s.store.GetMarketRecord(ctx, chi.URLParam(r, "marketID"))
	if err != nil {
		writeErr(w, s.log, err)
		return
	}
	days, err := s.project(ctx, rec, win)
	if err != nil {
		writeErr(w, s.log, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-availability.xlsx"`, rec.Market.ID))
	if err := export.WriteAvailability(w, &rec.Market, days); err != nil {
		s.log.Error().Err(err).Str("market_id", rec.Market.ID).Msg("availability export failed")
	}
}

func (s *Server) postBookingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID := chi.URLParam(r, "bookingID")

	var body statusBody
	if err := decodeJSON(r.Body, &body); err != nil {
		writeErr(w, s.log, err)
		return
	}
	if err := s.val.Struct(body); err != nil {
		writeErr(w, s.log, err)
		return
	}
	if err := s.store.UpdateBookingStatus(ctx, bookingID, body.Status); err != nil {
		writeErr(w, s.log, err)
		return
	}

	if s.bus != nil {
		s.publishStatus(ctx, bookingID, body.Status)
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": bookingID, "status": body.Status})
}

func (s *Server) publishStatus(ctx context.Context, bookingID, status string) {
	p := events.StatusPayload{BookingID: bookingID, Status: status}
	if marketID, err := s.store.BookingMarketID(ctx, bookingID); err == nil {
		p.MarketID = marketID
		if rec, err := s.store.GetMarketRecord(ctx, marketID); err == nil {
			p.OwnerChatID = rec.OwnerChatID
		}
	}
	ev, err := events.NewStatusEvent(p)
	if err == nil {
		err = s.bus.Publish(ev)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("status event not delivered")
	}
}
