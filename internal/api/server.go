// Package api serves the availability and check-in contract over HTTP,
// backed by the SQLite store.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"marketbook/internal/db"
	"marketbook/internal/events"
	"marketbook/internal/metrics"
	"marketbook/internal/model"
	"marketbook/internal/pattern"
)

// Store is the persistence the API needs.
type Store interface {
	MarketIDForOrder(ctx context.Context, orderID string) (string, error)
	GetMarket(ctx context.Context, marketID string) (*model.Market, error)
	GetMarketRecord(ctx context.Context, marketID string) (*db.MarketRecord, error)
	ListBookings(ctx context.Context, marketID string, from, to model.Date) ([]model.Booking, error)
	CheckIn(ctx context.Context, orderID string, from, to model.Date, decide db.CheckInDecision) ([]model.Booking, error)
	SavePattern(ctx context.Context, marketID string, p *pattern.WeeklyPattern) error
	AddExclusion(ctx context.Context, marketID string, d model.Date, br model.Interval) error
	RemoveExclusion(ctx context.Context, marketID string, d model.Date, br model.Interval) (bool, error)
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
	BookingMarketID(ctx context.Context, bookingID string) (string, error)
}

// Options configure a Server.
type Options struct {
	// APIKey, when set, is required in the x-api-key header.
	APIKey   string
	Location *time.Location
	// MaxSlots caps slots per check-in. Default: 20.
	MaxSlots int
}

// Server holds the handlers of the mirror API.
type Server struct {
	store  Store
	bus    *events.EventBus
	val    *validator.Validate
	log    *zerolog.Logger
	apiKey string
	loc    *time.Location
	max    int
	now    func() time.Time
}

// NewServer wires handlers to store. bus may be nil.
func NewServer(store Store, bus *events.EventBus, opts Options, log *zerolog.Logger) *Server {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxSlots <= 0 {
		opts.MaxSlots = 20
	}
	return &Server{
		store:  store,
		bus:    bus,
		val:    newValidator(),
		log:    log,
		apiKey: opts.APIKey,
		loc:    opts.Location,
		max:    opts.MaxSlots,
		now:    time.Now,
	}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.requireAPIKey)

		api.Get("/orders/{orderID}/available-slots", s.getAvailableSlots)
		api.Post("/orders/{orderID}/check-in", s.postCheckIn)

		api.Get("/markets/{marketID}", s.getMarket)
		api.Get("/markets/{marketID}/pattern", s.getPattern)
		api.Put("/markets/{marketID}/pattern", s.putPattern)
		api.Post("/markets/{marketID}/exclusions", s.postExclusion)
		api.Delete("/markets/{marketID}/exclusions", s.deleteExclusion)
		api.Get("/markets/{marketID}/availability.xlsx", s.getAvailabilityExport)

		api.Post("/bookings/{bookingID}/status", s.postBookingStatus)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.ObserveRequest(route, status, elapsed)

		ev := s.log.Info()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("x-api-key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}
