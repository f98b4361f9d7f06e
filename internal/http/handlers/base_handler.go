// README: Base handler utilities (JSON helpers, error mapping, DTOs).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"medtransit/internal/modules/catalog"
	"medtransit/internal/modules/dispatch"
	"medtransit/internal/modules/ride"
	"medtransit/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeRideError maps domain sentinels onto HTTP status codes.
func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, dispatch.ErrDriverNotFound),
		errors.Is(err, dispatch.ErrVehicleNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, dispatch.ErrVehicleUnavailable),
		errors.Is(err, dispatch.ErrDriverUnavailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

type moneyResponse struct {
	Amount   int64  `json:"amount_cents"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func toMoneyResponse(m types.Money) moneyResponse {
	return moneyResponse{Amount: m.Amount, Currency: m.Currency, Display: m.String()}
}

type rideResponse struct {
	ID              int64          `json:"id"`
	CustomerID      *int64         `json:"customer_id,omitempty"`
	DriverID        *int64         `json:"driver_id,omitempty"`
	VehicleID       *int64         `json:"vehicle_id,omitempty"`
	PassengerName   string         `json:"passenger_name"`
	PassengerPhone  string         `json:"passenger_phone"`
	PickupAddress   string         `json:"pickup_address"`
	DropoffAddress  string         `json:"dropoff_address"`
	DistanceMiles   float64        `json:"distance_miles"`
	DurationMinutes int            `json:"duration_minutes"`
	ServiceType     string         `json:"service_type"`
	PaymentType     string         `json:"payment_type"`
	BasePrice       moneyResponse  `json:"base_price"`
	FinalPrice      *moneyResponse `json:"final_price,omitempty"`
	ScheduledAt     time.Time      `json:"scheduled_at"`
	ActualPickupAt  *time.Time     `json:"actual_pickup_at,omitempty"`
	ActualDropoffAt *time.Time     `json:"actual_dropoff_at,omitempty"`
	Status          ride.Status    `json:"status"`
	IsGuest         bool           `json:"is_guest"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toRideResponse(r *ride.Ride) rideResponse {
	resp := rideResponse{
		ID:              r.ID,
		CustomerID:      r.CustomerID,
		DriverID:        r.DriverID,
		VehicleID:       r.VehicleID,
		PassengerName:   r.PassengerName,
		PassengerPhone:  r.PassengerPhone,
		PickupAddress:   r.PickupAddress,
		DropoffAddress:  r.DropoffAddress,
		DistanceMiles:   r.DistanceMiles,
		DurationMinutes: r.DurationMinutes,
		ServiceType:     r.ServiceType,
		PaymentType:     r.PaymentType,
		BasePrice:       toMoneyResponse(r.BasePrice),
		ScheduledAt:     r.ScheduledAt,
		ActualPickupAt:  r.ActualPickupAt,
		ActualDropoffAt: r.ActualDropoffAt,
		Status:          r.Status,
		IsGuest:         r.IsGuest,
		Notes:           r.AdditionalNotes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.FinalPrice != nil {
		fp := toMoneyResponse(*r.FinalPrice)
		resp.FinalPrice = &fp
	}
	return resp
}
