// README: Admin handlers: ride approval, decline, and dispatch assignment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medtransit/internal/http/middleware"
	"medtransit/internal/modules/dispatch"
	"medtransit/internal/modules/ride"
	"medtransit/internal/types"
)

type AdminHandler struct {
	rides      *ride.Service
	dispatcher *dispatch.Coordinator
}

func NewAdminHandler(rides *ride.Service, dispatcher *dispatch.Coordinator) *AdminHandler {
	return &AdminHandler{rides: rides, dispatcher: dispatcher}
}

type approveReq struct {
	PriceCents int64  `json:"price_cents" binding:"required"`
	Note       string `json:"note"`
}

func (h *AdminHandler) Approve(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req approveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.rides.Approve(c.Request.Context(), ride.ApproveCommand{
		RideID: id,
		Price:  types.Cents(req.PriceCents),
		Note:   req.Note,
		Actor:  actor,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

type declineReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) Decline(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req declineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.rides.Decline(c.Request.Context(), ride.DeclineCommand{
		RideID: id,
		Reason: req.Reason,
		Actor:  actor,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

type assignReq struct {
	DriverID  int64 `json:"driver_id" binding:"required"`
	VehicleID int64 `json:"vehicle_id" binding:"required"`
}

func (h *AdminHandler) Assign(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	r, err := h.dispatcher.Assign(c.Request.Context(), id, req.DriverID, req.VehicleID, actor)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}
