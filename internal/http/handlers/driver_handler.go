// README: Driver handlers: online presence.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medtransit/internal/http/middleware"
	"medtransit/internal/modules/dispatch"
)

type DriverHandler struct {
	presence *dispatch.Presence
}

func NewDriverHandler(presence *dispatch.Presence) *DriverHandler {
	return &DriverHandler{presence: presence}
}

type presenceReq struct {
	Online *bool `json:"online" binding:"required"`
}

// Presence marks the calling driver online or offline. Online state expires
// on its own unless refreshed.
func (h *DriverHandler) Presence(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req presenceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	if *req.Online {
		err = h.presence.SetOnline(c.Request.Context(), actor.ID)
	} else {
		err = h.presence.SetOffline(c.Request.Context(), actor.ID)
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": actor.ID, "online": *req.Online})
}
