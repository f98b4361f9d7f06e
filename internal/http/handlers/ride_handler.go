// README: Authenticated ride handlers: booking, status updates, lookup.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medtransit/internal/http/middleware"
	"medtransit/internal/modules/ride"
)

type RideHandler struct {
	rides *ride.Service
}

func NewRideHandler(svc *ride.Service) *RideHandler {
	return &RideHandler{rides: svc}
}

type createRideReq struct {
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

func (h *RideHandler) Create(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		CustomerID:        actor.ID,
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

func (h *RideHandler) Get(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *RideHandler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.rides.UpdateStatus(c.Request.Context(), ride.UpdateStatusCommand{
		RideID: id,
		To:     ride.Status(req.Status),
		Notes:  req.Notes,
		Actor:  actor,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

func (h *RideHandler) Complete(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), id, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}
