// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medtransit/internal/auth"
	"medtransit/internal/billing"
	"medtransit/internal/config"
	httptransport "medtransit/internal/http"
	"medtransit/internal/infra"
	"medtransit/internal/logging"
	"medtransit/internal/maps"
	"medtransit/internal/modules/catalog"
	"medtransit/internal/modules/dispatch"
	"medtransit/internal/modules/pricing"
	"medtransit/internal/modules/ride"
	"medtransit/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("MEDTRANSIT_JWT_SECRET is required")
	}

	logger, err := logging.New(cfg.Development)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("database connect", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	// Events degrade to log output when the broker is unreachable; booking
	// must not depend on AMQP availability.
	var sink notify.Sink = notify.NewLogSink(logger)
	var invoices billing.Generator = billing.NewLogGenerator(logger)
	amqpConn, amqpChannel, err := infra.NewAMQPChannel(cfg.AMQP.URL, notify.Exchange)
	if err != nil {
		logger.Warn("amqp unavailable; events go to the log", zap.Error(err))
	} else {
		defer amqpConn.Close()
		if err := amqpChannel.ExchangeDeclare(billing.Exchange, "topic", true, false, false, false, nil); err != nil {
			logger.Fatal("declare billing exchange", zap.Error(err))
		}
		sink = notify.NewAMQPSink(amqpChannel)
		invoices = billing.NewAMQPGenerator(amqpChannel)
	}

	var routes ride.ItineraryResolver
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps client", zap.Error(err))
		}
		routes = routeSvc
	}

	catalogStore := catalog.NewStore(dbPool)
	pricer := pricing.NewEngine()
	ledger := ride.NewLedger(cfg.Location())
	rideStore := ride.NewStore(dbPool)
	rideSvc := ride.NewService(ride.ServiceDeps{
		Store:      rideStore,
		Ledger:     ledger,
		Categories: catalogStore,
		Pricer:     pricer,
		Routes:     routes,
		Sink:       sink,
		Invoices:   invoices,
		Log:        logger,
	})

	presence := dispatch.NewPresence(redisClient)
	dispatcher := dispatch.NewCoordinator(dispatch.CoordinatorDeps{
		DB:       dbPool,
		Store:    dispatch.NewStore(dbPool),
		Rides:    rideStore,
		Presence: presence,
		Sink:     sink,
		Log:      logger,
	})

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:      rideSvc,
		Dispatcher: dispatcher,
		Presence:   presence,
		Verifier:   auth.NewJWTVerifier(cfg.Auth.JWTSecret),
		Log:        logger,
		Debug:      cfg.Development,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
