// README: Availability ledger: guest-day and customer-window conflict checks.
package ride

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	ReasonDateFullyBooked = "date fully booked"
	ReasonConflictingRide = "conflicting ride"

	// customerWindow is the half-width of the exclusivity window around an
	// authenticated customer's ride.
	customerWindow = 2 * time.Hour
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the ledger can
// run standalone or inside the booking transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope identifies whose availability window is being checked.
type Scope struct {
	Guest      bool
	CustomerID int64
}

func GuestScope() Scope {
	return Scope{Guest: true}
}

func CustomerScope(customerID int64) Scope {
	return Scope{CustomerID: customerID}
}

type Decision struct {
	Available bool
	Reason    string
}

// Ledger evaluates booking conflicts against existing rides. Calendar-day
// boundaries for guest bookings follow loc.
type Ledger struct {
	loc *time.Location
}

func NewLedger(loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{loc: loc}
}

// Check reports whether a booking at scheduledAt is allowed for the scope.
// Guest bookings are blocked by any non-terminal ride on the same local
// calendar day; customer bookings by any of that customer's non-terminal
// rides within the exclusivity window.
func (l *Ledger) Check(ctx context.Context, q Querier, scope Scope, scheduledAt time.Time) (Decision, error) {
	if scope.Guest {
		return l.checkGuestDay(ctx, q, scheduledAt)
	}
	return l.checkCustomerWindow(ctx, q, scope.CustomerID, scheduledAt)
}

func (l *Ledger) checkGuestDay(ctx context.Context, q Querier, scheduledAt time.Time) (Decision, error) {
	local := scheduledAt.In(l.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE scheduled_at >= $1 AND scheduled_at < $2
			  AND status = ANY($3)
		)`, dayStart, dayEnd, nonTerminalBooking,
	).Scan(&exists)
	if err != nil {
		return Decision{}, err
	}
	if exists {
		return Decision{Available: false, Reason: ReasonDateFullyBooked}, nil
	}
	return Decision{Available: true}, nil
}

func (l *Ledger) checkCustomerWindow(ctx context.Context, q Querier, customerID int64, scheduledAt time.Time) (Decision, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE customer_id = $1
			  AND scheduled_at >= $2 AND scheduled_at <= $3
			  AND status = ANY($4)
		)`, customerID, scheduledAt.Add(-customerWindow), scheduledAt.Add(customerWindow), nonTerminalBooking,
	).Scan(&exists)
	if err != nil {
		return Decision{}, err
	}
	if exists {
		return Decision{Available: false, Reason: ReasonConflictingRide}, nil
	}
	return Decision{Available: true}, nil
}

// lockKey is the advisory-lock key serializing conflicting booking attempts.
// All guest bookings for one local day contend on the same key; customer
// bookings contend per customer.
func (l *Ledger) lockKey(scope Scope, scheduledAt time.Time) string {
	if scope.Guest {
		return "guest-day:" + scheduledAt.In(l.loc).Format("2006-01-02")
	}
	return "customer:" + strconv.FormatInt(scope.CustomerID, 10)
}
