// README: Driver and vehicle records used by assignment.
package dispatch

import "errors"

type VehicleStatus string

const (
	VehicleAvailable    VehicleStatus = "AVAILABLE"
	VehicleInUse        VehicleStatus = "IN_USE"
	VehicleOutOfService VehicleStatus = "OUT_OF_SERVICE"
)

var (
	ErrDriverNotFound     = errors.New("driver not found")
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrVehicleUnavailable = errors.New("vehicle not available")
	ErrDriverUnavailable  = errors.New("driver not available")
)

// Driver is the dispatch-side profile. Its id is the driver's user id, so
// token subjects and ride assignments refer to the same number.
type Driver struct {
	ID             int64
	Name           string
	Phone          string
	CompletedTrips int
	Active         bool
}

type Vehicle struct {
	ID                int64
	Plate             string
	Name              string
	ServiceCategoryID *int64
	Status            VehicleStatus
}
