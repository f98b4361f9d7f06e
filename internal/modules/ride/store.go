// README: Ride store backed by PostgreSQL (optimistic CAS + booking tx).
package ride

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medtransit/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.db
}

func (s *Store) Get(ctx context.Context, id int64) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, driver_id, vehicle_id,
		       passenger_name, passenger_phone,
		       pickup_address, dropoff_address, distance_miles, duration_minutes,
		       service_category_id, service_type, payment_type,
		       base_price_cents, final_price_cents,
		       scheduled_at, actual_pickup_at, actual_dropoff_at,
		       status, status_version, is_guest, additional_notes,
		       created_at, updated_at
		FROM rides
		WHERE id = $1`, id,
	)

	var r Ride
	var finalPrice *int64
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.DriverID, &r.VehicleID,
		&r.PassengerName, &r.PassengerPhone,
		&r.PickupAddress, &r.DropoffAddress, &r.DistanceMiles, &r.DurationMinutes,
		&r.ServiceCategoryID, &r.ServiceType, &r.PaymentType,
		&r.BasePrice.Amount, &finalPrice,
		&r.ScheduledAt, &r.ActualPickupAt, &r.ActualDropoffAt,
		&r.Status, &r.StatusVersion, &r.IsGuest, &r.AdditionalNotes,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.BasePrice.Currency = "USD"
	if finalPrice != nil {
		v := types.Cents(*finalPrice)
		r.FinalPrice = &v
	}
	return &r, nil
}

// CreateBooked inserts a new PENDING ride with the availability check run in
// the same transaction. A per-scope advisory lock serializes concurrent
// bookings that would contend on the same window, closing the
// check-then-insert race.
func (s *Store) CreateBooked(ctx context.Context, r *Ride, scope Scope, ledger *Ledger) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`,
		ledger.lockKey(scope, r.ScheduledAt),
	); err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}

	dec, err := ledger.Check(ctx, tx, scope, r.ScheduledAt)
	if err != nil {
		return err
	}
	if !dec.Available {
		return fmt.Errorf("%w: %s", ErrConflict, dec.Reason)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			customer_id, passenger_name, passenger_phone,
			pickup_address, dropoff_address, distance_miles, duration_minutes,
			service_category_id, service_type, payment_type,
			base_price_cents, scheduled_at,
			status, status_version, is_guest, additional_notes
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10,
			$11, $12,
			$13, 0, $14, $15
		)
		RETURNING id, created_at, updated_at`,
		r.CustomerID, r.PassengerName, r.PassengerPhone,
		r.PickupAddress, r.DropoffAddress, r.DistanceMiles, r.DurationMinutes,
		r.ServiceCategoryID, r.ServiceType, r.PaymentType,
		r.BasePrice.Amount, r.ScheduledAt,
		string(StatusPending), r.IsGuest, r.AdditionalNotes,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}
	r.Status = StatusPending
	r.StatusVersion = 0

	actorRole := "customer"
	if r.IsGuest {
		actorRole = "guest"
	}
	if err := s.appendEventTx(ctx, tx, &StatusEvent{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorRole:  actorRole,
		ActorID:    r.CustomerID,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TransitionOpts carries the column side effects applied atomically with a
// status change.
type TransitionOpts struct {
	DriverID   *int64
	VehicleID  *int64
	FinalPrice *types.Money
	Note       string
	ActorRole  string
	ActorID    *int64
}

// ApplyTransition runs ApplyTransitionTx in its own transaction. It returns
// false when the compare-and-swap missed (stale status or version).
func (s *Store) ApplyTransition(ctx context.Context, r *Ride, to Status, opts TransitionOpts) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.ApplyTransitionTx(ctx, tx, r, to, opts)
	if err != nil || !ok {
		return ok, err
	}
	return true, tx.Commit(ctx)
}

// ApplyTransitionTx performs the status compare-and-swap plus its derived
// side effects inside the caller's transaction: transition timestamps,
// driver trip counter on completion, vehicle release on terminal states, and
// the audit-trail row. Dispatch uses this to keep the vehicle claim and the
// ASSIGNED transition atomic.
func (s *Store) ApplyTransitionTx(ctx context.Context, tx pgx.Tx, r *Ride, to Status, opts TransitionOpts) (bool, error) {
	var finalPrice *int64
	if opts.FinalPrice != nil {
		v := opts.FinalPrice.Amount
		finalPrice = &v
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET
			status = $1,
			status_version = status_version + 1,
			updated_at = now(),
			driver_id = COALESCE($2, driver_id),
			vehicle_id = COALESCE($3, vehicle_id),
			final_price_cents = COALESCE($4, final_price_cents),
			additional_notes = CASE
				WHEN $5::text <> '' AND additional_notes <> '' THEN additional_notes || E'\n' || $5
				WHEN $5::text <> '' THEN $5
				ELSE additional_notes
			END,
			actual_pickup_at = CASE
				WHEN $1 IN ('PICKUP_ARRIVED', 'IN_PROGRESS') AND actual_pickup_at IS NULL THEN now()
				WHEN $1 = 'COMPLETED' AND actual_pickup_at IS NULL THEN scheduled_at
				ELSE actual_pickup_at
			END,
			actual_dropoff_at = CASE WHEN $1 = 'COMPLETED' THEN now() ELSE actual_dropoff_at END
		WHERE id = $6 AND status = $7 AND status_version = $8`,
		string(to), opts.DriverID, opts.VehicleID, finalPrice, opts.Note,
		r.ID, string(r.Status), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if to == StatusCompleted {
		driverID := r.DriverID
		if opts.DriverID != nil {
			driverID = opts.DriverID
		}
		if driverID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE drivers SET completed_trips = completed_trips + 1 WHERE id = $1`,
				*driverID,
			); err != nil {
				return false, err
			}
		}
	}

	if IsTerminal(to) {
		vehicleID := r.VehicleID
		if opts.VehicleID != nil {
			vehicleID = opts.VehicleID
		}
		if vehicleID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE vehicles SET status = 'AVAILABLE' WHERE id = $1 AND status = 'IN_USE'`,
				*vehicleID,
			); err != nil {
				return false, err
			}
		}
	}

	if err := s.appendEventTx(ctx, tx, &StatusEvent{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   to,
		ActorRole:  opts.ActorRole,
		ActorID:    opts.ActorID,
		Note:       opts.Note,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) appendEventTx(ctx context.Context, tx pgx.Tx, e *StatusEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ride_status_events (ride_id, from_status, to_status, actor_role, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.RideID, string(e.FromStatus), string(e.ToStatus), e.ActorRole, e.ActorID, e.Note,
	)
	return err
}

// Events returns the audit trail for a ride, oldest first.
func (s *Store) Events(ctx context.Context, rideID int64) ([]StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, actor_role, actor_id, note, created_at
		FROM ride_status_events
		WHERE ride_id = $1
		ORDER BY id`, rideID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.RideID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
