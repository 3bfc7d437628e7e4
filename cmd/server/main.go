// main.go - Entry point for the firmware update server.
//
// This file sets up the configuration, logging, release catalog and artifact store,
// and starts the TLS API server. It also handles graceful shutdown.
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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load environment variables from .env file if it exists
	godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logFile, err := SetupLogger(cfg.LogFilePath)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logFile.Close()

	logger.Printf("Starting firmware update server version %s", ServerVersion)
	logger.Printf("Configuration loaded from: %s", cfg.ConfigFileUsed)

	// The catalog is loaded once and shared read-only by every request.
	catalog, err := LoadCatalog(cfg.ManifestPath)
	if err != nil {
		logger.Fatalf("Failed to load release catalog: %v", err)
	}
	logger.Printf("Loaded %d release(s) from %s", catalog.Len(), catalog.Source())

	artifacts, err := NewFileArtifactStore(cfg.BinariesPath)
	if err != nil {
		logger.Fatalf("Failed to initialize artifact store: %v", err)
	}

	if err := ReconcileArtifacts(catalog, artifacts, cfg.StrictArtifacts, logger); err != nil {
		logger.Fatalf("Artifact reconciliation failed: %v", err)
	}
	logger.Println("Artifact reconciliation completed.")

	updateService := NewUpdateService(catalog, artifacts, logger)
	authService := NewDeviceAuthService(cfg.DeviceTokens, logger)
	if !authService.Enabled() {
		logger.Println("No device tokens configured, update routes are unauthenticated.")
	}

	server := &http.Server{
		Addr:         cfg.APIServerAddress,
		Handler:      NewRouter(updateService, authService, logger),
		ErrorLog:     logger,
		WriteTimeout: 5 * time.Minute, // Firmware downloads over slow device links
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLSEnabled {
		tlsConfig, err := NewTLSConfig(cfg.TLSClientCAPath)
		if err != nil {
			logger.Fatalf("Failed to configure TLS: %v", err)
		}
		server.TLSConfig = tlsConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, server, cfg, logger); err != nil {
		logger.Printf("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Println("Server shutdown completed.")
}

// run serves until ctx is cancelled, then shuts the server down within the configured delay.
func run(ctx context.Context, server *http.Server, cfg *Config, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Starting API server at %s (TLS: %t)", cfg.APIServerAddress, cfg.TLSEnabled)
		var err error
		if cfg.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownDelay)*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
