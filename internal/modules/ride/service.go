// README: Ride service: booking intake and lifecycle transitions.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medtransit/internal/auth"
	"medtransit/internal/billing"
	"medtransit/internal/modules/catalog"
	"medtransit/internal/modules/pricing"
	"medtransit/internal/notify"
	"medtransit/internal/types"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("ride not found")
	ErrConflict          = errors.New("booking conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("forbidden")
)

// Pricer is the fare engine contract; satisfied by pricing.Engine.
type Pricer interface {
	Quote(cat pricing.Category, distanceMiles float64, scheduledAt time.Time) types.Money
}

// CategoryReader looks up active service categories.
type CategoryReader interface {
	GetActive(ctx context.Context, id int64) (catalog.ServiceCategory, error)
}

// ItineraryResolver supplies distance and duration when the booking request
// omits them. Route computation itself is an external concern.
type ItineraryResolver interface {
	Estimate(ctx context.Context, pickup, dropoff string) (distanceKm float64, durationMinutes int, err error)
}

type Service struct {
	store      *Store
	ledger     *Ledger
	categories CategoryReader
	pricer     Pricer
	routes     ItineraryResolver // optional
	sink       notify.Sink
	invoices   billing.Generator
	log        *zap.Logger
}

type ServiceDeps struct {
	Store      *Store
	Ledger     *Ledger
	Categories CategoryReader
	Pricer     Pricer
	Routes     ItineraryResolver
	Sink       notify.Sink
	Invoices   billing.Generator
	Log        *zap.Logger
}

func NewService(deps ServiceDeps) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      deps.Store,
		ledger:     deps.Ledger,
		categories: deps.Categories,
		pricer:     deps.Pricer,
		routes:     deps.Routes,
		sink:       deps.Sink,
		invoices:   deps.Invoices,
		log:        log,
	}
}

type CreateCommand struct {
	CustomerID        int64
	PassengerName     string
	PassengerPhone    string
	PickupAddress     string
	DropoffAddress    string
	DistanceKm        float64
	DurationMinutes   int
	ServiceCategoryID int64
	PaymentType       string
	ScheduledAt       time.Time
	Notes             string
}

type GuestCreateCommand struct {
	PassengerName     string
	PassengerPhone    string
	PickupAddress     string
	DropoffAddress    string
	DistanceKm        float64
	DurationMinutes   int
	ServiceCategoryID int64
	PaymentType       string
	ScheduledAt       time.Time
	Notes             string
}

type ApproveCommand struct {
	RideID int64
	Price  types.Money
	Note   string
	Actor  auth.Actor
}

type DeclineCommand struct {
	RideID int64
	Reason string
	Actor  auth.Actor
}

type UpdateStatusCommand struct {
	RideID int64
	To     Status
	Notes  string
	Actor  auth.Actor
}

// Create books a ride for an authenticated customer.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: customer id required", ErrValidation)
	}
	r, err := s.book(ctx, bookingRequest{
		customerID:        &cmd.CustomerID,
		passengerName:     cmd.PassengerName,
		passengerPhone:    cmd.PassengerPhone,
		pickupAddress:     cmd.PickupAddress,
		dropoffAddress:    cmd.DropoffAddress,
		distanceKm:        cmd.DistanceKm,
		durationMinutes:   cmd.DurationMinutes,
		serviceCategoryID: cmd.ServiceCategoryID,
		paymentType:       cmd.PaymentType,
		scheduledAt:       cmd.ScheduledAt,
		notes:             cmd.Notes,
	}, CustomerScope(cmd.CustomerID))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateGuest books a ride for an anonymous passenger, identified by name
// and phone only.
func (s *Service) CreateGuest(ctx context.Context, cmd GuestCreateCommand) (*Ride, error) {
	return s.book(ctx, bookingRequest{
		passengerName:     cmd.PassengerName,
		passengerPhone:    cmd.PassengerPhone,
		pickupAddress:     cmd.PickupAddress,
		dropoffAddress:    cmd.DropoffAddress,
		distanceKm:        cmd.DistanceKm,
		durationMinutes:   cmd.DurationMinutes,
		serviceCategoryID: cmd.ServiceCategoryID,
		paymentType:       cmd.PaymentType,
		scheduledAt:       cmd.ScheduledAt,
		notes:             cmd.Notes,
		guest:             true,
	}, GuestScope())
}

type bookingRequest struct {
	customerID        *int64
	passengerName     string
	passengerPhone    string
	pickupAddress     string
	dropoffAddress    string
	distanceKm        float64
	durationMinutes   int
	serviceCategoryID int64
	paymentType       string
	scheduledAt       time.Time
	notes             string
	guest             bool
}

func (s *Service) book(ctx context.Context, req bookingRequest, scope Scope) (*Ride, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	cat, err := s.categories.GetActive(ctx, req.serviceCategoryID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: service category %d", ErrNotFound, req.serviceCategoryID)
	}
	if err != nil {
		return nil, err
	}

	distanceKm, durationMinutes := req.distanceKm, req.durationMinutes
	if distanceKm <= 0 && s.routes != nil {
		km, mins, rerr := s.routes.Estimate(ctx, req.pickupAddress, req.dropoffAddress)
		if rerr != nil {
			s.log.Warn("itinerary estimate failed; pricing with default distance", zap.Error(rerr))
		} else {
			distanceKm = km
			if durationMinutes == 0 {
				durationMinutes = mins
			}
		}
	}
	distanceMiles := distanceKm * KmToMiles

	basePrice := s.pricer.Quote(pricing.Category{
		Name:         cat.Name,
		BasePrice:    cat.BasePrice,
		PricePerMile: cat.PricePerMile,
	}, distanceMiles, req.scheduledAt)

	paymentType := req.paymentType
	if paymentType == "" {
		paymentType = PaymentPrivate
	}

	r := &Ride{
		CustomerID:        req.customerID,
		PassengerName:     req.passengerName,
		PassengerPhone:    req.passengerPhone,
		PickupAddress:     req.pickupAddress,
		DropoffAddress:    req.dropoffAddress,
		DistanceMiles:     distanceMiles,
		DurationMinutes:   durationMinutes,
		ServiceCategoryID: cat.ID,
		ServiceType:       cat.ServiceType,
		PaymentType:       paymentType,
		BasePrice:         basePrice,
		ScheduledAt:       req.scheduledAt,
		IsGuest:           req.guest,
		AdditionalNotes:   req.notes,
	}
	if err := s.store.CreateBooked(ctx, r, scope, s.ledger); err != nil {
		return nil, err
	}

	s.emit(ctx, notify.Event{
		Kind:       notify.KindRideRequested,
		RideID:     r.ID,
		Status:     string(r.Status),
		Recipient:  r.PassengerPhone,
		OccurredAt: time.Now(),
	})
	return r, nil
}

func validateBooking(req bookingRequest) error {
	switch {
	case req.passengerName == "":
		return fmt.Errorf("%w: passenger name required", ErrValidation)
	case req.passengerPhone == "":
		return fmt.Errorf("%w: passenger phone required", ErrValidation)
	case req.pickupAddress == "":
		return fmt.Errorf("%w: pickup address required", ErrValidation)
	case req.dropoffAddress == "":
		return fmt.Errorf("%w: dropoff address required", ErrValidation)
	case req.serviceCategoryID <= 0:
		return fmt.Errorf("%w: service category required", ErrValidation)
	case req.distanceKm < 0:
		return fmt.Errorf("%w: distance must not be negative", ErrValidation)
	case !req.scheduledAt.After(time.Now()):
		return fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	}
	if req.paymentType != "" && req.paymentType != PaymentPrivate && req.paymentType != PaymentWaiver {
		return fmt.Errorf("%w: unknown payment type %q", ErrValidation, req.paymentType)
	}
	return nil
}

// CheckAvailability evaluates the conflict windows without booking.
func (s *Service) CheckAvailability(ctx context.Context, scope Scope, scheduledAt time.Time) (Decision, error) {
	return s.ledger.Check(ctx, s.store.Pool(), scope, scheduledAt)
}

// Approve moves a PENDING ride to CONFIRMED and fixes the billable price.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) (*Ride, error) {
	if cmd.Actor.Role != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: approval is admin-only", ErrForbidden)
	}
	if cmd.Price.Amount <= 0 {
		return nil, fmt.Errorf("%w: approval price must be positive", ErrValidation)
	}

	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, transitionError(r.Status, StatusConfirmed)
	}

	ok, err := s.store.ApplyTransition(ctx, r, StatusConfirmed, TransitionOpts{
		FinalPrice: &cmd.Price,
		Note:       cmd.Note,
		ActorRole:  cmd.Actor.Role,
		ActorID:    &cmd.Actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride %d was modified concurrently", ErrConflict, r.ID)
	}

	return s.finishTransition(ctx, r, StatusConfirmed, "")
}

// Decline cancels a PENDING ride with a mandatory reason.
func (s *Service) Decline(ctx context.Context, cmd DeclineCommand) (*Ride, error) {
	if cmd.Actor.Role != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: decline is admin-only", ErrForbidden)
	}
	if cmd.Reason == "" {
		return nil, fmt.Errorf("%w: decline reason required", ErrValidation)
	}

	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, transitionError(r.Status, StatusCancelled)
	}

	ok, err := s.store.ApplyTransition(ctx, r, StatusCancelled, TransitionOpts{
		Note:      "declined: " + cmd.Reason,
		ActorRole: cmd.Actor.Role,
		ActorID:   &cmd.Actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride %d was modified concurrently", ErrConflict, r.ID)
	}

	return s.finishTransition(ctx, r, StatusCancelled, "")
}

// UpdateStatus applies a transition requested by a driver, admin, or the
// ride's customer.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*Ride, error) {
	if !RoleCanTarget(cmd.Actor.Role, cmd.To) {
		return nil, fmt.Errorf("%w: role %s may not set status %s", ErrForbidden, cmd.Actor.Role, cmd.To)
	}

	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeActor(r, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, cmd.To) {
		return nil, transitionError(r.Status, cmd.To)
	}

	switch cmd.To {
	case StatusAssigned:
		return nil, fmt.Errorf("%w: driver assignment goes through dispatch", ErrValidation)
	case StatusConfirmed:
		if r.Status == StatusPending {
			return nil, fmt.Errorf("%w: pending rides are confirmed via approval", ErrValidation)
		}
	case StatusCancelled:
		if r.Status == StatusPending && cmd.Notes == "" {
			return nil, fmt.Errorf("%w: cancellation reason required", ErrValidation)
		}
	}

	ok, err := s.store.ApplyTransition(ctx, r, cmd.To, TransitionOpts{
		Note:      cmd.Notes,
		ActorRole: cmd.Actor.Role,
		ActorID:   &cmd.Actor.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ride %d was modified concurrently", ErrConflict, r.ID)
	}

	return s.finishTransition(ctx, r, cmd.To, cmd.Notes)
}

// Complete is the driver/admin shorthand for the COMPLETED transition.
func (s *Service) Complete(ctx context.Context, rideID int64, actor auth.Actor) (*Ride, error) {
	return s.UpdateStatus(ctx, UpdateStatusCommand{RideID: rideID, To: StatusCompleted, Actor: actor})
}

// Get returns a ride the actor is allowed to see.
func (s *Service) Get(ctx context.Context, rideID int64, actor auth.Actor) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeActor(r, actor); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) authorizeActor(r *Ride, actor auth.Actor) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDriver:
		if r.DriverID != nil && *r.DriverID == actor.ID {
			return nil
		}
		return fmt.Errorf("%w: ride %d is not assigned to driver %d", ErrForbidden, r.ID, actor.ID)
	case auth.RoleCustomer:
		if r.CustomerID != nil && *r.CustomerID == actor.ID {
			return nil
		}
		return fmt.Errorf("%w: ride %d does not belong to customer %d", ErrForbidden, r.ID, actor.ID)
	}
	return fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
}

// finishTransition reloads the ride and emits the lifecycle event; on
// completion it also hands the ride to invoicing. Both are best-effort.
func (s *Service) finishTransition(ctx context.Context, prev *Ride, to Status, note string) (*Ride, error) {
	r, err := s.store.Get(ctx, prev.ID)
	if err != nil {
		return nil, err
	}

	kind := notify.KindRideStatusChanged
	if to == StatusCompleted {
		kind = notify.KindRideCompleted
	}
	s.emit(ctx, notify.Event{
		Kind:       kind,
		RideID:     r.ID,
		Status:     string(r.Status),
		Recipient:  r.PassengerPhone,
		DriverID:   r.DriverID,
		Note:       note,
		OccurredAt: time.Now(),
	})

	if to == StatusCompleted && s.invoices != nil {
		amount := r.BasePrice
		if r.FinalPrice != nil {
			amount = *r.FinalPrice
		}
		completedAt := time.Now()
		if r.ActualDropoffAt != nil {
			completedAt = *r.ActualDropoffAt
		}
		ref, ierr := s.invoices.OnCompleted(ctx, billing.Invoice{
			RideID:         r.ID,
			CustomerID:     r.CustomerID,
			PassengerName:  r.PassengerName,
			PassengerPhone: r.PassengerPhone,
			Amount:         amount,
			CompletedAt:    completedAt,
		})
		if ierr != nil {
			s.log.Error("invoice generation failed; ride stays completed",
				zap.Int64("ride_id", r.ID), zap.Error(ierr))
		} else {
			s.log.Info("invoice requested", zap.Int64("ride_id", r.ID), zap.String("ref", ref))
		}
	}
	return r, nil
}

func (s *Service) emit(ctx context.Context, e notify.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, e); err != nil {
		s.log.Error("notification failed", zap.Int64("ride_id", e.RideID), zap.Error(err))
	}
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: cannot move ride from %s to %s", ErrInvalidTransition, from, to)
}
