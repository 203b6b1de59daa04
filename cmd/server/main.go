// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"intesters-backend/internal/config"
	"intesters-backend/internal/database"
	"intesters-backend/internal/handlers"
	"intesters-backend/internal/middleware"
	"intesters-backend/internal/repository"
	"intesters-backend/internal/routes"
	"intesters-backend/internal/services"
	"intesters-backend/internal/storage"
	"intesters-backend/internal/verification"
)

func initLogger(env string) *zap.Logger {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func main() {
	logger := initLogger(os.Getenv("ENV"))
	defer logger.Sync() // Flush any buffered log entries

	zap.ReplaceGlobals(logger)

	logger.Info("Starting intesters-backend server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("verification_timezone", cfg.Verification.Location.String()),
		zap.Bool("proof_storage", cfg.StorageEnabled()))

	db, err := database.NewMongoDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	logger.Info("Successfully connected to MongoDB")

	var proofs storage.ProofStore
	if cfg.StorageEnabled() {
		proofs, err = storage.NewS3Store(context.Background(), cfg.Storage, logger)
		if err != nil {
			logger.Fatal("Failed to initialize proof storage", zap.Error(err))
		}
		logger.Info("Proof storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	loc := cfg.Verification.Location
	verifier := verification.New(
		verification.WithClock(func() time.Time { return time.Now().In(loc) }),
		verification.WithMaxPixels(cfg.Verification.MaxPixels),
		verification.WithLogger(logger.Named("verification")),
	)

	verificationRepo := repository.NewVerificationRepository(db.GetCollection(database.VerificationsCollection))
	submissionService := services.NewSubmissionService(verifier, verificationRepo, proofs, cfg.Storage.PresignTTL, logger.Named("submissions"))

	h := &routes.Handlers{
		Health:             handlers.NewHealthHandler(db),
		Screenshot:         handlers.NewScreenshotHandler(submissionService, cfg.Server.MaxUploadBytes),
		AdminVerifications: handlers.NewAdminVerificationHandler(submissionService),
	}

	router := routes.SetupRoutes(h, routes.Options{
		Authenticator:  middleware.NewAuthenticator(cfg.Auth, logger.Named("auth")),
		AdminRole:      cfg.Auth.AdminRole,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger.Named("http"),
	})

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", serverAddr),
			zap.Int64("max_upload_bytes", cfg.Server.MaxUploadBytes))

		endpoints := []struct {
			method      string
			path        string
			description string
			auth        string
		}{
			{"GET", "/", "Health check", "None"},
			{"GET", "/health", "Health check", "None"},
			{"POST", "/api/v1/screenshots/verify", "Verify a testing screenshot", "Bearer token"},
			{"GET", "/api/v1/admin/verifications", "List verification records", "Admin only"},
			{"GET", "/api/v1/admin/verifications/stats", "Verification statistics", "Admin only"},
			{"GET", "/api/v1/admin/verifications/{id}", "Verification record with proof URL", "Admin only"},
			{"POST", "/api/v1/admin/verifications/{id}/review", "Review a verification", "Admin only"},
		}
		for _, endpoint := range endpoints {
			logger.Debug("Endpoint registered",
				zap.String("method", endpoint.method),
				zap.String("path", endpoint.path),
				zap.String("description", endpoint.description),
				zap.String("auth", endpoint.auth))
		}

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Received shutdown signal, shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
