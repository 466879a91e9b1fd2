package booking

import "errors"

// Candidate slot rejections. The staged list is unchanged when one is returned.
var (
	ErrDateMismatch       = errors.New("slot date does not match the selected day")
	ErrOutOfWorkHours     = errors.New("slot is outside working hours")
	ErrStartAfterEnd      = errors.New("slot start must be before end")
	ErrBreakConflict      = errors.New("slot overlaps a break")
	ErrBookingConflict    = errors.New("slot overlaps an existing booking")
	ErrDuplicateSelection = errors.New("slot is already selected")
	ErrSlotRunUnavailable = errors.New("consecutive slots are not free")
)

// Session and submission errors.
var (
	ErrEmptySelection    = errors.New("no slots selected")
	ErrProjectionPending = errors.New("availability is still loading")
	ErrNoDateSelected    = errors.New("no date selected")
	ErrInvalidTransition = errors.New("invalid session transition")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrDateMismatch, "date_mismatch"},
	{ErrOutOfWorkHours, "out_of_work_hours"},
	{ErrStartAfterEnd, "start_after_end"},
	{ErrBreakConflict, "break_conflict"},
	{ErrBookingConflict, "booking_conflict"},
	{ErrDuplicateSelection, "duplicate_selection"},
	{ErrSlotRunUnavailable, "slot_run_unavailable"},
	{ErrEmptySelection, "empty_selection"},
}

// Reason returns a stable snake_case code for a slot or submission error,
// or "" when err is not one of them.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}
