// README: Dispatch coordinator: atomic driver/vehicle assignment.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"medtransit/internal/auth"
	"medtransit/internal/modules/ride"
	"medtransit/internal/notify"
)

type Coordinator struct {
	db       *pgxpool.Pool
	store    *Store
	rides    *ride.Store
	presence *Presence // optional
	sink     notify.Sink
	log      *zap.Logger
}

type CoordinatorDeps struct {
	DB       *pgxpool.Pool
	Store    *Store
	Rides    *ride.Store
	Presence *Presence
	Sink     notify.Sink
	Log      *zap.Logger
}

func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		db:       deps.DB,
		store:    deps.Store,
		rides:    deps.Rides,
		presence: deps.Presence,
		sink:     deps.Sink,
		log:      log,
	}
}

// Assign puts a driver and vehicle on a ride. The vehicle claim and the
// ASSIGNED transition commit together, so two rides can never hold the same
// vehicle and a failed claim leaves the ride untouched.
func (c *Coordinator) Assign(ctx context.Context, rideID, driverID, vehicleID int64, actor auth.Actor) (*ride.Ride, error) {
	if actor.Role != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: assignment is admin-only", ride.ErrForbidden)
	}

	r, err := c.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.CanTransition(r.Status, ride.StatusAssigned) {
		return nil, fmt.Errorf("%w: cannot assign ride in status %s", ride.ErrInvalidTransition, r.Status)
	}

	drv, err := c.store.GetDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if c.presence != nil {
		online, perr := c.presence.IsOnline(ctx, drv.ID)
		if perr != nil {
			c.log.Warn("presence lookup failed; assuming driver available", zap.Int64("driver_id", drv.ID), zap.Error(perr))
		} else if !online {
			return nil, fmt.Errorf("%w: driver %d is offline", ErrDriverUnavailable, drv.ID)
		}
	}

	if _, err := c.store.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	claimed, err := c.store.claimVehicleTx(ctx, tx, vehicleID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: vehicle %d", ErrVehicleUnavailable, vehicleID)
	}

	ok, err := c.rides.ApplyTransitionTx(ctx, tx, r, ride.StatusAssigned, ride.TransitionOpts{
		DriverID:  &driverID,
		VehicleID: &vehicleID,
		ActorRole: actor.Role,
		ActorID:   &actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride %d was modified concurrently", ride.ErrConflict, r.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	updated, err := c.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, notify.Event{
		Kind:       notify.KindRideAssigned,
		RideID:     updated.ID,
		Status:     string(updated.Status),
		Recipient:  updated.PassengerPhone,
		DriverID:   updated.DriverID,
		OccurredAt: time.Now(),
	})
	return updated, nil
}

func (c *Coordinator) emit(ctx context.Context, e notify.Event) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Notify(ctx, e); err != nil {
		c.log.Error("notification failed", zap.Int64("ride_id", e.RideID), zap.Error(err))
	}
}
