package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wodbox/internal/auth"
	"wodbox/internal/backend"
	"wodbox/internal/booking"
	"wodbox/internal/box"
	"wodbox/internal/class"
	"wodbox/internal/config"
	"wodbox/internal/datastore"
	"wodbox/internal/db"
	"wodbox/internal/logger"
	"wodbox/internal/profile"
	"wodbox/internal/server"
	"wodbox/internal/session"
)

const initTimeout = 15 * time.Second

func main() {
	logger.Init()
	logger.Info("Starting wodbox")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	client := backend.GetClient()
	defer client.Close()
	logger.Info("Backend client ready", "backend_url", cfg.BackendURL)

	if cfg.RunMigrations {
		if err := db.RunMigrations(client.DB(), cfg.MigrationsPath); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Migrations completed")
	}

	store := datastore.NewPostgres(client)
	profileService := profile.NewService(store)
	boxService := box.NewService(store)
	classService := class.NewService(store, client)
	bookingService := booking.NewService(booking.NewRepository(store))

	authService := auth.NewService(client, profileService, auth.Options{
		ProfileRetries:    cfg.ProfileRetries,
		ProfileRetryDelay: cfg.ProfileRetryDelay,
	})

	nav := server.NewNavigator()
	state := session.New(authService, client, profileService, nav)
	defer state.Close()

	initCtx, initCancel := context.WithTimeout(context.Background(), initTimeout)
	if err := state.Init(initCtx); err != nil {
		logger.WithError(err).Warn("Starting without a restored session")
	}
	initCancel()

	srv := server.New(cfg, server.Deps{
		Session:   state,
		Accounts:  authService,
		Callback:  client,
		DB:        client.DB(),
		Navigator: nav,
		Profiles:  profileService,
		Boxes:     boxService,
		Classes:   classService,
		Bookings:  bookingService,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
