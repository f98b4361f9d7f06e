// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medtransit/internal/auth"
	"medtransit/internal/http/handlers"
	"medtransit/internal/http/middleware"
	"medtransit/internal/modules/dispatch"
	"medtransit/internal/modules/ride"
)

type RouterDeps struct {
	Rides      *ride.Service
	Dispatcher *dispatch.Coordinator
	Presence   *dispatch.Presence
	Verifier   auth.Verifier
	Log        *zap.Logger
	Debug      bool
}

func NewRouter(deps RouterDeps) http.Handler {
	if deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	guestHandler := handlers.NewGuestHandler(deps.Rides)
	guest := r.Group("/api/guest")
	{
		guest.POST("/rides", guestHandler.Create)
		guest.POST("/availability", guestHandler.Availability)
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	rideHandler := handlers.NewRideHandler(deps.Rides)
	api.POST("/rides", middleware.RequireRole(auth.RoleCustomer), rideHandler.Create)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/status", middleware.RequireRole(auth.RoleDriver, auth.RoleAdmin, auth.RoleCustomer), rideHandler.UpdateStatus)
	api.POST("/rides/:id/complete", middleware.RequireRole(auth.RoleDriver, auth.RoleAdmin), rideHandler.Complete)

	adminHandler := handlers.NewAdminHandler(deps.Rides, deps.Dispatcher)
	admin := api.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/rides/:id/approve", adminHandler.Approve)
		admin.POST("/rides/:id/decline", adminHandler.Decline)
		admin.POST("/rides/:id/assign", adminHandler.Assign)
	}

	driverHandler := handlers.NewDriverHandler(deps.Presence)
	api.POST("/drivers/presence", middleware.RequireRole(auth.RoleDriver), driverHandler.Presence)

	return r
}
