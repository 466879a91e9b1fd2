package model

// ResourceBookingMode controls how a market's specialists are booked.
type ResourceBookingMode string

const (
	// ModeSingle is a single shared timeline.
	ModeSingle ResourceBookingMode = ""
	// ModeSelect lets the client pick a specific resource.
	ModeSelect ResourceBookingMode = "select"
	// ModeMulti pools all resources into shared capacity.
	ModeMulti ResourceBookingMode = "multi"
)

// Valid reports whether m is a known mode.
func (m ResourceBookingMode) Valid() bool {
	switch m {
	case ModeSingle, ModeSelect, ModeMulti:
		return true
	}
	return false
}

// Member statuses.
const (
	MemberAccepted = "accepted"
	MemberInvited  = "invited"
	MemberDeclined = "declined"
)

// Resource is a bookable specialist or seat.
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
	Status   string `json:"status"`
	IsActive bool   `json:"isActive"`
}

// Eligible reports whether the resource can be offered to clients.
func (r Resource) Eligible() bool {
	return r.Status == MemberAccepted && r.IsActive
}

// Market is a bookable service.
type Market struct {
	ID                      string              `json:"id"`
	Name                    string              `json:"name"`
	ResourceBookingMode     ResourceBookingMode `json:"resourceBookingMode,omitempty"`
	CheckinRequiresApproval bool                `json:"checkinRequiresApproval"`
	ConcurrentSlots         int                 `json:"concurrentSlots,omitempty"`
	WorkDurationPerClient   int                 `json:"workDurationPerClient,omitempty"`
	Members                 []Resource          `json:"Members"`
}

// Member returns the member with id, if present.
func (m *Market) Member(id string) (Resource, bool) {
	for _, r := range m.Members {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}
