// README: State machine and role gate tests (no database).
package ride

import (
	"testing"

	"medtransit/internal/auth"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusAssigned, true},
		{StatusAssigned, StatusDriverEnRoute, true},
		{StatusDriverEnRoute, StatusPickupArrived, true},
		{StatusPickupArrived, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// direct assignment from PENDING and confirmation from ASSIGNED
		{StatusPending, StatusAssigned, true},
		{StatusAssigned, StatusConfirmed, true},
		{StatusConfirmed, StatusDriverEnRoute, true},
		// cancels from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusDriverEnRoute, StatusCancelled, true},
		{StatusPickupArrived, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		// no-show only once the driver is at the pickup
		{StatusPickupArrived, StatusNoShow, true},
		{StatusDriverEnRoute, StatusNoShow, false},
		{StatusInProgress, StatusNoShow, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		// invalid: skipping states
		{StatusPending, StatusDriverEnRoute, false},
		{StatusPending, StatusInProgress, false},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusInProgress, false},
		{StatusDriverEnRoute, StatusInProgress, false},
		{StatusPickupArrived, StatusCompleted, false},
		// invalid: moving backwards mid-trip
		{StatusInProgress, StatusPickupArrived, false},
		{StatusDriverEnRoute, StatusConfirmed, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCancelled, StatusNoShow}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
		if len(AllowedTransitions[s]) != 0 {
			t.Errorf("terminal status %s has outgoing transitions", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusAssigned, StatusDriverEnRoute, StatusPickupArrived, StatusInProgress} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestRoleCanTarget(t *testing.T) {
	cases := []struct {
		role string
		to   Status
		want bool
	}{
		{auth.RoleAdmin, StatusConfirmed, true},
		{auth.RoleAdmin, StatusCancelled, true},
		{auth.RoleAdmin, StatusNoShow, true},
		{auth.RoleDriver, StatusDriverEnRoute, true},
		{auth.RoleDriver, StatusPickupArrived, true},
		{auth.RoleDriver, StatusInProgress, true},
		{auth.RoleDriver, StatusCompleted, true},
		{auth.RoleDriver, StatusNoShow, true},
		{auth.RoleDriver, StatusConfirmed, false},
		{auth.RoleDriver, StatusAssigned, false},
		{auth.RoleCustomer, StatusCancelled, true},
		{auth.RoleCustomer, StatusConfirmed, false},
		{auth.RoleCustomer, StatusCompleted, false},
		{"unknown", StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := RoleCanTarget(tc.role, tc.to); got != tc.want {
			t.Errorf("RoleCanTarget(%s, %s) = %v, want %v", tc.role, tc.to, got, tc.want)
		}
	}
}
