// README: Ride aggregate, status definitions, and the transition table.
package ride

import (
	"time"

	"medtransit/internal/auth"
	"medtransit/internal/types"
)

type Status string

const (
	StatusNone          Status = "NONE"
	StatusPending       Status = "PENDING"
	StatusConfirmed     Status = "CONFIRMED"
	StatusAssigned      Status = "ASSIGNED"
	StatusDriverEnRoute Status = "DRIVER_EN_ROUTE"
	StatusPickupArrived Status = "PICKUP_ARRIVED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
	StatusNoShow        Status = "NO_SHOW"
)

const (
	PaymentPrivate = "private"
	PaymentWaiver  = "waiver"
)

// KmToMiles converts supplied kilometers into the stored mile distance.
const KmToMiles = 0.621371

type Ride struct {
	ID                int64
	CustomerID        *int64
	DriverID          *int64
	VehicleID         *int64
	PassengerName     string
	PassengerPhone    string
	PickupAddress     string
	DropoffAddress    string
	DistanceMiles     float64
	DurationMinutes   int
	ServiceCategoryID int64
	ServiceType       string
	PaymentType       string
	BasePrice         types.Money
	FinalPrice        *types.Money
	ScheduledAt       time.Time
	ActualPickupAt    *time.Time
	ActualDropoffAt   *time.Time
	Status            Status
	StatusVersion     int
	IsGuest           bool
	AdditionalNotes   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusEvent is one row of the append-only transition audit trail.
type StatusEvent struct {
	ID         int64
	RideID     int64
	FromStatus Status
	ToStatus   Status
	ActorRole  string
	ActorID    *int64
	Note       string
	CreatedAt  time.Time
}

// AllowedTransitions is the single authoritative transition table. Role
// restrictions are layered on top via RoleCanTarget, not via per-role copies
// of this table.
var AllowedTransitions = map[Status][]Status{
	StatusPending:       {StatusConfirmed, StatusAssigned, StatusCancelled},
	StatusConfirmed:     {StatusAssigned, StatusDriverEnRoute, StatusCancelled},
	StatusAssigned:      {StatusConfirmed, StatusDriverEnRoute, StatusCancelled},
	StatusDriverEnRoute: {StatusPickupArrived, StatusCancelled},
	StatusPickupArrived: {StatusInProgress, StatusNoShow, StatusCancelled},
	StatusInProgress:    {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// nonTerminalBooking is the status set that counts against availability
// windows and guest-day exclusivity.
var nonTerminalBooking = []string{
	string(StatusPending), string(StatusAssigned), string(StatusConfirmed),
}

var roleTargets = map[string]map[Status]bool{
	auth.RoleAdmin: {
		StatusConfirmed: true, StatusAssigned: true, StatusDriverEnRoute: true,
		StatusPickupArrived: true, StatusInProgress: true, StatusCompleted: true,
		StatusCancelled: true, StatusNoShow: true,
	},
	auth.RoleDriver: {
		StatusDriverEnRoute: true, StatusPickupArrived: true, StatusInProgress: true,
		StatusCompleted: true, StatusNoShow: true, StatusCancelled: true,
	},
	auth.RoleCustomer: {
		StatusCancelled: true,
	},
}

// RoleCanTarget reports whether a role may request a transition into the
// given status at all. Ownership checks (own ride, assigned driver) are
// enforced by the service on top of this.
func RoleCanTarget(role string, to Status) bool {
	return roleTargets[role][to]
}
