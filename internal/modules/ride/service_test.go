// README: Ride service tests (booking conflicts, approval, lifecycle, races).
package ride

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"medtransit/internal/auth"
	"medtransit/internal/modules/catalog"
	"medtransit/internal/modules/pricing"
	"medtransit/internal/types"
)

var (
	adminActor    = auth.Actor{ID: 1, Role: auth.RoleAdmin}
	customerActor = auth.Actor{ID: 42, Role: auth.RoleCustomer}
)

func TestValidateBooking(t *testing.T) {
	// Validation runs before any store access, so a nil-store service is safe.
	svc := NewService(ServiceDeps{})
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	base := GuestCreateCommand{
		PassengerName:     "Pat Doe",
		PassengerPhone:    "+15550100",
		PickupAddress:     "12 Oak St",
		DropoffAddress:    "90 Elm Ave",
		ServiceCategoryID: 1,
		ScheduledAt:       future,
	}

	cases := []struct {
		name   string
		mutate func(*GuestCreateCommand)
	}{
		{"missing name", func(c *GuestCreateCommand) { c.PassengerName = "" }},
		{"missing phone", func(c *GuestCreateCommand) { c.PassengerPhone = "" }},
		{"missing pickup", func(c *GuestCreateCommand) { c.PickupAddress = "" }},
		{"missing dropoff", func(c *GuestCreateCommand) { c.DropoffAddress = "" }},
		{"missing category", func(c *GuestCreateCommand) { c.ServiceCategoryID = 0 }},
		{"negative distance", func(c *GuestCreateCommand) { c.DistanceKm = -3 }},
		{"past schedule", func(c *GuestCreateCommand) { c.ScheduledAt = time.Now().Add(-time.Hour) }},
		{"bad payment type", func(c *GuestCreateCommand) { c.PaymentType = "cash" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := base
			tc.mutate(&cmd)
			_, err := svc.CreateGuest(ctx, cmd)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := svc.Create(ctx, CreateCommand{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing customer id, got %v", err)
	}
}

func TestBookingHappyPath(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r, err := env.svc.Create(ctx, CreateCommand{
		CustomerID:        customerActor.ID,
		PassengerName:     "Pat Doe",
		PassengerPhone:    "+15550100",
		PickupAddress:     "12 Oak St",
		DropoffAddress:    "90 Elm Ave",
		DistanceKm:        8 / KmToMiles, // 8 miles
		ServiceCategoryID: env.ambulatoryID,
		ScheduledAt:       env.at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", r.Status)
	}
	if r.BasePrice.Amount != 3000 {
		t.Fatalf("expected 3000 cents for 8 day ambulatory miles, got %d", r.BasePrice.Amount)
	}
	if r.IsGuest {
		t.Fatal("customer booking flagged as guest")
	}

	events, err := env.store.Events(ctx, r.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].FromStatus != StatusNone || events[0].ToStatus != StatusPending {
		t.Fatalf("expected single NONE->PENDING event, got %+v", events)
	}
}

func TestGuestDayExclusive(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateGuest(ctx, env.guestCmd(env.at(9, 0))); err != nil {
		t.Fatalf("first guest booking: %v", err)
	}

	// Second request the same calendar day, different hour.
	_, err := env.svc.CreateGuest(ctx, env.guestCmd(env.at(15, 0)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for same-day guest booking, got %v", err)
	}

	// Next day is open again.
	if _, err := env.svc.CreateGuest(ctx, env.guestCmd(env.at(9, 0).AddDate(0, 0, 1))); err != nil {
		t.Fatalf("next-day guest booking: %v", err)
	}

	dec, err := env.svc.CheckAvailability(ctx, GuestScope(), env.at(12, 0))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if dec.Available || dec.Reason != ReasonDateFullyBooked {
		t.Fatalf("expected fully-booked decision, got %+v", dec)
	}
}

func TestGuestDayBlockedByCustomerRide(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Create(ctx, env.customerCmd(customerActor.ID, env.at(9, 0))); err != nil {
		t.Fatalf("customer booking: %v", err)
	}

	// Guest exclusivity counts any non-terminal ride that day, not only
	// guest rides.
	_, err := env.svc.CreateGuest(ctx, env.guestCmd(env.at(15, 0)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCustomerWindowConflict(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Create(ctx, env.customerCmd(customerActor.ID, env.at(10, 0))); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// 90 minutes later is inside the two-hour window.
	_, err := env.svc.Create(ctx, env.customerCmd(customerActor.ID, env.at(11, 30)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict inside window, got %v", err)
	}

	// Exactly on the boundary still conflicts.
	_, err = env.svc.Create(ctx, env.customerCmd(customerActor.ID, env.at(12, 0)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on window boundary, got %v", err)
	}

	// Past the window is fine.
	if _, err := env.svc.Create(ctx, env.customerCmd(customerActor.ID, env.at(12, 1))); err != nil {
		t.Fatalf("booking outside window: %v", err)
	}

	// Another customer inside the same window is unaffected.
	if _, err := env.svc.Create(ctx, env.customerCmd(77, env.at(10, 30))); err != nil {
		t.Fatalf("other customer booking: %v", err)
	}
}

func TestApprove(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	r := env.mustBook(t, customerActor.ID, env.at(10, 0))

	if _, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3000), Actor: customerActor}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin approve, got %v", err)
	}
	if _, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(0), Actor: adminActor}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero price, got %v", err)
	}

	approved, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3200), Actor: adminActor})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", approved.Status)
	}
	if approved.FinalPrice == nil || approved.FinalPrice.Amount != 3200 {
		t.Fatalf("expected final price 3200, got %+v", approved.FinalPrice)
	}

	_, err = env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3200), Actor: adminActor})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for second approve, got %v", err)
	}
}

func TestDecline(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	r := env.mustBook(t, customerActor.ID, env.at(10, 0))

	if _, err := env.svc.Decline(ctx, DeclineCommand{RideID: r.ID, Actor: adminActor}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing reason, got %v", err)
	}

	declined, err := env.svc.Decline(ctx, DeclineCommand{RideID: r.ID, Reason: "no coverage", Actor: adminActor})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", declined.Status)
	}
	if !strings.Contains(declined.AdditionalNotes, "declined: no coverage") {
		t.Fatalf("expected decline reason in notes, got %q", declined.AdditionalNotes)
	}
}

func TestCancelPendingRequiresReason(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	r := env.mustBook(t, customerActor.ID, env.at(10, 0))

	_, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{RideID: r.ID, To: StatusCancelled, Actor: customerActor})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without reason, got %v", err)
	}

	cancelled, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{
		RideID: r.ID, To: StatusCancelled, Notes: "plans changed", Actor: customerActor,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	driver := auth.Actor{ID: env.driverID, Role: auth.RoleDriver}

	r := env.mustBook(t, customerActor.ID, env.at(10, 0))
	if _, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3000), Actor: adminActor}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	env.mustAssign(t, r.ID)

	for _, to := range []Status{StatusDriverEnRoute, StatusPickupArrived, StatusInProgress} {
		if _, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{RideID: r.ID, To: to, Actor: driver}); err != nil {
			t.Fatalf("update to %s: %v", to, err)
		}
	}

	done, err := env.svc.Complete(ctx, r.ID, driver)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Status)
	}
	if done.ActualPickupAt == nil || done.ActualDropoffAt == nil {
		t.Fatal("expected actual pickup and dropoff timestamps")
	}

	var trips int
	if err := env.db.QueryRow(ctx, `SELECT completed_trips FROM drivers WHERE id = $1`, env.driverID).Scan(&trips); err != nil {
		t.Fatalf("driver trips: %v", err)
	}
	if trips != 1 {
		t.Fatalf("expected 1 completed trip, got %d", trips)
	}

	var vehicleStatus string
	if err := env.db.QueryRow(ctx, `SELECT status FROM vehicles WHERE id = $1`, env.vehicleID).Scan(&vehicleStatus); err != nil {
		t.Fatalf("vehicle status: %v", err)
	}
	if vehicleStatus != "AVAILABLE" {
		t.Fatalf("expected vehicle released to AVAILABLE, got %s", vehicleStatus)
	}

	events, err := env.store.Events(ctx, r.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 7 {
		t.Fatalf("expected 7 audit events, got %d", len(events))
	}
}

func TestDriverCannotTouchForeignRide(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	stranger := auth.Actor{ID: env.driverID + 1000, Role: auth.RoleDriver}

	r := env.mustBook(t, customerActor.ID, env.at(10, 0))
	if _, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3000), Actor: adminActor}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	env.mustAssign(t, r.ID)

	_, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{RideID: r.ID, To: StatusDriverEnRoute, Actor: stranger})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDirectAssignmentRejected(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	r := env.mustBook(t, customerActor.ID, env.at(10, 0))

	_, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{RideID: r.ID, To: StatusAssigned, Actor: adminActor})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for direct ASSIGNED, got %v", err)
	}
}

func TestConcurrentGuestBooking(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		hour := 8 + i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.svc.CreateGuest(ctx, env.guestCmd(env.at(hour, 0)))
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful guest booking, got %d", success)
	}
}

func TestConcurrentComplete(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	driver := auth.Actor{ID: env.driverID, Role: auth.RoleDriver}

	r := env.mustBook(t, customerActor.ID, env.at(10, 0))
	if _, err := env.svc.Approve(ctx, ApproveCommand{RideID: r.ID, Price: types.Cents(3000), Actor: adminActor}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	env.mustAssign(t, r.ID)
	for _, to := range []Status{StatusDriverEnRoute, StatusPickupArrived, StatusInProgress} {
		if _, err := env.svc.UpdateStatus(ctx, UpdateStatusCommand{RideID: r.ID, To: to, Actor: driver}); err != nil {
			t.Fatalf("update to %s: %v", to, err)
		}
	}

	const attempts = 4
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Complete(ctx, r.ID, driver)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 successful completion, got %d", success)
	}

	var trips int
	if err := env.db.QueryRow(ctx, `SELECT completed_trips FROM drivers WHERE id = $1`, env.driverID).Scan(&trips); err != nil {
		t.Fatalf("driver trips: %v", err)
	}
	if trips != 1 {
		t.Fatalf("trip counter incremented %d times, want 1", trips)
	}
}

// ---- test environment ----

type testEnv struct {
	db           *pgxpool.Pool
	store        *Store
	svc          *Service
	ambulatoryID int64
	driverID     int64
	vehicleID    int64
	day          time.Time
}

// at returns a time on the test's reference day (tomorrow, UTC) so bookings
// are always in the future and share a calendar day.
func (e *testEnv) at(hour, minute int) time.Time {
	return time.Date(e.day.Year(), e.day.Month(), e.day.Day(), hour, minute, 0, 0, time.UTC)
}

func (e *testEnv) guestCmd(at time.Time) GuestCreateCommand {
	return GuestCreateCommand{
		PassengerName:     "Guest Rider",
		PassengerPhone:    "+15550199",
		PickupAddress:     "12 Oak St",
		DropoffAddress:    "90 Elm Ave",
		DistanceKm:        8 / KmToMiles,
		ServiceCategoryID: e.ambulatoryID,
		ScheduledAt:       at,
	}
}

func (e *testEnv) customerCmd(customerID int64, at time.Time) CreateCommand {
	return CreateCommand{
		CustomerID:        customerID,
		PassengerName:     "Pat Doe",
		PassengerPhone:    "+15550100",
		PickupAddress:     "12 Oak St",
		DropoffAddress:    "90 Elm Ave",
		DistanceKm:        8 / KmToMiles,
		ServiceCategoryID: e.ambulatoryID,
		ScheduledAt:       at,
	}
}

func (e *testEnv) mustBook(t *testing.T, customerID int64, at time.Time) *Ride {
	t.Helper()
	r, err := e.svc.Create(context.Background(), e.customerCmd(customerID, at))
	if err != nil {
		t.Fatalf("book ride: %v", err)
	}
	return r
}

// mustAssign applies the ASSIGNED transition directly through the store; the
// dispatch coordinator has its own tests.
func (e *testEnv) mustAssign(t *testing.T, rideID int64) {
	t.Helper()
	ctx := context.Background()
	r, err := e.store.Get(ctx, rideID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	ok, err := e.store.ApplyTransition(ctx, r, StatusAssigned, TransitionOpts{
		DriverID:  &e.driverID,
		VehicleID: &e.vehicleID,
		ActorRole: auth.RoleAdmin,
	})
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("MEDTRANSIT_TEST_DSN")
	if dsn == "" {
		t.Skip("MEDTRANSIT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE ride_status_events, rides, vehicles, drivers, service_categories RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	env := &testEnv{db: db, day: time.Now().UTC().AddDate(0, 0, 1)}

	err = db.QueryRow(ctx, `
		INSERT INTO service_categories (name, service_type, base_price_cents, price_per_mile_cents, active)
		VALUES ('Ambulatory Transport', 'MEDICAL', 2500, 200, TRUE)
		RETURNING id`).Scan(&env.ambulatoryID)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	env.driverID = 9001
	if _, err := db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone, active) VALUES ($1, 'Drew Driver', '+15550111', TRUE)`,
		env.driverID,
	); err != nil {
		t.Fatalf("seed driver: %v", err)
	}

	err = db.QueryRow(ctx, `
		INSERT INTO vehicles (plate, name, service_category_id, status)
		VALUES ('MED-001', 'Van 1', $1, 'AVAILABLE')
		RETURNING id`, env.ambulatoryID).Scan(&env.vehicleID)
	if err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}

	env.store = NewStore(db)
	env.svc = NewService(ServiceDeps{
		Store:      env.store,
		Ledger:     NewLedger(time.UTC),
		Categories: catalog.NewStore(db),
		Pricer:     pricing.NewEngine(),
	})
	return env
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	for _, name := range []string{"0001_init.sql", "0002_seed_categories.sql"} {
		content, err := os.ReadFile(filepath.Join(root, "migrations", name))
		if err != nil {
			return err
		}
		cleaned := stripSQLComments(string(content))
		for _, stmt := range splitSQL(cleaned) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
