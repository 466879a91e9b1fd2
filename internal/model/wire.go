package model

// AvailabilityResponse is the body of GET available-slots.
type AvailabilityResponse struct {
	AvailableDays         []AvailableDay `json:"availableDays"`
	WorkDurationPerClient int            `json:"workDurationPerClient,omitempty"`
}
