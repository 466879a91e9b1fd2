package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"marketbook/internal/booking"
	"marketbook/internal/db"
	"marketbook/internal/pattern"
	"marketbook/internal/resource"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

var (
	errInvalidBody    = errors.New("invalid request body")
	errOutsideHorizon = errors.New("date is outside the booking horizon")
	errSlotInPast     = errors.New("slot has already started")
)

// writeErr maps a domain error to a status and code.
func writeErr(w http.ResponseWriter, log *zerolog.Logger, err error) {
	if code := booking.Reason(err); code != "" {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, booking.ErrBookingConflict) || errors.Is(err, booking.ErrDuplicateSelection) {
			status = http.StatusConflict
		}
		WriteError(w, status, code, err.Error(), nil)
		return
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request", validationDetails(verrs))
	case errors.Is(err, errInvalidBody):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, db.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, resource.ErrResourceRequired):
		WriteError(w, http.StatusBadRequest, "resource_required", err.Error(), nil)
	case errors.Is(err, resource.ErrResourceNotEligible):
		WriteError(w, http.StatusUnprocessableEntity, "resource_not_eligible", err.Error(), nil)
	case errors.Is(err, pattern.ErrValidation):
		WriteError(w, http.StatusUnprocessableEntity, "invalid_pattern", err.Error(), nil)
	case errors.Is(err, errOutsideHorizon):
		WriteError(w, http.StatusUnprocessableEntity, "outside_horizon", err.Error(), nil)
	case errors.Is(err, errSlotInPast):
		WriteError(w, http.StatusUnprocessableEntity, "slot_in_past", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

// decodeJSON reads exactly one JSON object into v.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.Join(errInvalidBody, errors.New("body must contain a single JSON object"))
	}
	return nil
}
