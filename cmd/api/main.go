package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
	"bigpartner/internal/reaper"
	"bigpartner/internal/server"
	"bigpartner/internal/services"
	"bigpartner/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 60 * time.Second
)

func main() {
	log.SetPrefix("[API] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Starting %s v%s", cfg.App.Name, cfg.App.Version)
	log.Printf("Environment: debug=%v, port=%s, host=%s", cfg.App.Debug, cfg.App.Port, cfg.App.Host)

	log.Println("Initializing database connection...")
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()
	defer func() {
		log.Println("Closing database connections...")
		if err := database.Close(db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	images, err := storage.NewImageStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}

	log.Println("Initializing services...")
	emailSvc := services.NewEmailService(&cfg.Email)
	notifier := services.NewNotifier(emailSvc, cfg.Notify)
	svc := server.Services{
		Auth:         services.NewAuthService(db, &cfg.Auth, notifier, cfg.Listing),
		Property:     services.NewPropertyService(db, notifier, images, cfg.Listing, cfg.Trash),
		Moderation:   services.NewModerationService(db, notifier, cfg.Listing),
		Inquiry:      services.NewInquiryService(db, notifier, cfg.Listing),
		Favorite:     services.NewFavoriteService(db, cfg.Listing),
		Registration: services.NewRegistrationService(db, notifier, cfg.Listing),
		Upload:       services.NewUploadService(images),
		Health:       services.NewHealthService(db, cfg.App.Name),
	}

	reaperCron, err := reaper.Start(cfg.Trash, db, images)
	if err != nil {
		log.Fatalf("Failed to start trash reaper: %v", err)
	}

	log.Println("Mounting HTTP handlers...")
	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.New(cfg, svc),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     log.New(os.Stderr, "[HTTP] ", log.LstdFlags),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server failed to start: %v", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v. Starting graceful shutdown...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if reaperCron != nil {
		<-reaperCron.Stop().Done()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
		if err == context.DeadlineExceeded {
			log.Println("Shutdown timeout exceeded, forcing close...")
			httpServer.Close()
		}
	}

	log.Println("Waiting for pending notifications...")
	notifier.Wait()

	log.Println("Server shutdown complete")
}

// validateConfig rejects settings that are unsafe for a running server
func validateConfig(cfg *config.Config) error {
	if cfg.Auth.SecretKey == "your-secret-key-change-in-production" {
		return fmt.Errorf("SECRET_KEY must be changed from default value")
	}
	if len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters for security")
	}
	return nil
}
