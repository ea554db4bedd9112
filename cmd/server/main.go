package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/app"
	"github.com/makerlab/booking-api/internal/config"
	"github.com/makerlab/booking-api/internal/controller"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/service"
	"github.com/makerlab/booking-api/internal/timeslot"
	"github.com/makerlab/booking-api/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting booking API",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("timezone", cfg.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("Invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	calendar := timeslot.NewCalendar(loc)

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if cfg.RunMigrator {
		migrator, err := app.NewMigrator(pool, migrations.FS, ".")
		if err != nil {
			logger.Fatal("Failed to create migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		migrator.Close()
	}

	machineRepo := repository.NewMachineRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	restrictionRepo := repository.NewRestrictionRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	restrictions := service.NewRestrictionChecker(machineRepo, restrictionRepo, calendar, logger)
	bookings := service.NewBookingService(pool, calendar, machineRepo, bookingRepo, restrictionRepo, usageRepo, userRepo, restrictions, logger)
	machines := service.NewMachineService(pool, machineRepo, restrictionRepo, bookingRepo, usageRepo, calendar, logger)
	users := service.NewUserService(userRepo, logger)
	notifications := service.NewNotificationService(notificationRepo, userRepo, calendar, logger)

	router := controller.NewRouter(controller.Deps{
		Bookings:      bookings,
		Machines:      machines,
		Users:         users,
		Notifications: notifications,
		Restrictions:  restrictions,
		Logger:        logger,
		RateRPS:       cfg.RateRPS,
		RateBurst:     cfg.RateBurst,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}

	logger.Info("Booking API stopped")
}
