// README: Driver/vehicle store backed by PostgreSQL; vehicle claim is a CAS.
package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetDriver returns an active driver profile.
func (s *Store) GetDriver(ctx context.Context, id int64) (Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, completed_trips, active
		FROM drivers
		WHERE id = $1 AND active`, id,
	)
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.CompletedTrips, &d.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, ErrDriverNotFound
	}
	if err != nil {
		return Driver{}, err
	}
	return d, nil
}

func (s *Store) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, plate, name, service_category_id, status
		FROM vehicles
		WHERE id = $1`, id,
	)
	var v Vehicle
	err := row.Scan(&v.ID, &v.Plate, &v.Name, &v.ServiceCategoryID, &v.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, ErrVehicleNotFound
	}
	if err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

// claimVehicleTx flips the vehicle AVAILABLE -> IN_USE as a conditional
// update. Zero rows means another assignment won the vehicle.
func (s *Store) claimVehicleTx(ctx context.Context, tx pgx.Tx, vehicleID int64) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE vehicles
		SET status = $1
		WHERE id = $2 AND status = $3`,
		string(VehicleInUse), vehicleID, string(VehicleAvailable),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseVehicle is the mirror of the claim, for operator corrections. The
// ordinary release happens inside the terminal ride transition.
func (s *Store) ReleaseVehicle(ctx context.Context, vehicleID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE vehicles
		SET status = $1
		WHERE id = $2 AND status = $3`,
		string(VehicleAvailable), vehicleID, string(VehicleInUse),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
