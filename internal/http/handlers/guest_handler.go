// README: Guest booking and availability handlers (no authentication).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medtransit/internal/modules/ride"
)

type GuestHandler struct {
	rides *ride.Service
}

func NewGuestHandler(svc *ride.Service) *GuestHandler {
	return &GuestHandler{rides: svc}
}

type guestBookingReq struct {
	PassengerName     string    `json:"passenger_name" binding:"required"`
	PassengerPhone    string    `json:"passenger_phone" binding:"required"`
	PickupAddress     string    `json:"pickup_address" binding:"required"`
	DropoffAddress    string    `json:"dropoff_address" binding:"required"`
	DistanceKm        float64   `json:"distance_km"`
	DurationMinutes   int       `json:"duration_minutes"`
	ServiceCategoryID int64     `json:"service_category_id" binding:"required"`
	PaymentType       string    `json:"payment_type"`
	ScheduledAt       time.Time `json:"scheduled_at" binding:"required"`
	Notes             string    `json:"notes"`
}

func (h *GuestHandler) Create(c *gin.Context) {
	var req guestBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.rides.CreateGuest(c.Request.Context(), ride.GuestCreateCommand{
		PassengerName:     req.PassengerName,
		PassengerPhone:    req.PassengerPhone,
		PickupAddress:     req.PickupAddress,
		DropoffAddress:    req.DropoffAddress,
		DistanceKm:        req.DistanceKm,
		DurationMinutes:   req.DurationMinutes,
		ServiceCategoryID: req.ServiceCategoryID,
		PaymentType:       req.PaymentType,
		ScheduledAt:       req.ScheduledAt,
		Notes:             req.Notes,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRideResponse(r))
}

type availabilityReq struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

type availabilityResp struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Availability reports whether the guest calendar day is still open.
func (h *GuestHandler) Availability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := h.rides.CheckAvailability(c.Request.Context(), ride.GuestScope(), req.ScheduledAt)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, availabilityResp{Available: d.Available, Reason: d.Reason})
}
