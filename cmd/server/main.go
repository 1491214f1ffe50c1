package main // reservation API server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/achtaA-a/projet-de-fin/internal/config"
	"github.com/achtaA-a/projet-de-fin/internal/database"
	"github.com/achtaA-a/projet-de-fin/internal/handler"
	"github.com/achtaA-a/projet-de-fin/internal/logger"
	"github.com/achtaA-a/projet-de-fin/internal/metrics"
	"github.com/achtaA-a/projet-de-fin/internal/middleware"
	"github.com/achtaA-a/projet-de-fin/internal/queue"
	"github.com/achtaA-a/projet-de-fin/internal/repository"
	"github.com/achtaA-a/projet-de-fin/internal/router"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open reservation store", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()

	catalog, err := database.OpenCatalog(cfg.CatalogDSN)
	if err != nil {
		log.Fatal("failed to connect to catalog", "error", err)
	}
	destRepo := repository.NewGormDestinationRepository(catalog)
	flightRepo := repository.NewGormFlightRepository(catalog)
	if err := destRepo.Migrate(ctx); err != nil {
		log.Fatal("destination migration failed", "error", err)
	}
	if err := flightRepo.Migrate(ctx); err != nil {
		log.Fatal("flight migration failed", "error", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; response cache and destination cache disabled, rate limiting is per instance")
	} else {
		defer rdb.Close()
	}
	// Bookings read the catalog directly; only flight validation is cached.
	flightDestinations := repository.NewCachedDestinationLookup(destRepo, rdb, cfg.DestinationCacheTTL)

	var publisher service.EventPublisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, log)
	} else {
		log.Warn("RABBITMQ_URL not set; reservation events are not published")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("reservations", reg)

	resSvc := service.NewReservationService(store, destRepo, publisher, m, log, service.ReservationConfig{
		Policy: service.CancellationPolicy(cfg.CancellationPolicy),
		Window: cfg.CancellationWindow,
	})
	flightSvc := service.NewFlightService(flightRepo, flightDestinations, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Recover(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	router.Register(e, router.Handlers{
		Reservations:      handler.NewReservationHandler(resSvc),
		AdminReservations: handler.NewAdminReservationHandler(resSvc),
		Flights:           handler.NewFlightHandler(flightSvc),
	}, cfg.JWTSecret, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	resSvc.Wait()
}

// openStore connects the reservation backend selected by STORE_DRIVER and
// returns it with its close function.
func openStore(ctx context.Context, cfg config.Config) (repository.ReservationStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		store, err := repository.NewMongoReservationStore(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil
	case config.DriverBolt:
		db, err := database.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewBoltReservationStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		db, err := database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewReservationRepo(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
}
