package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/passlink/reset-service/configs"
	"github.com/passlink/reset-service/internal/application/services"
	"github.com/passlink/reset-service/internal/core/ports"
	"github.com/passlink/reset-service/internal/infrastructure/db"
	"github.com/passlink/reset-service/internal/infrastructure/email"
	"github.com/passlink/reset-service/internal/infrastructure/health"
	"github.com/passlink/reset-service/internal/infrastructure/httpserver"
	"github.com/passlink/reset-service/internal/infrastructure/redis"
	"github.com/passlink/reset-service/internal/infrastructure/repositories"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting password reset service...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(database, logger)

	var tokenRepo ports.ResetTokenRepository
	switch cfg.Reset.TokenStore {
	case "redis":
		tokenRepo = repositories.NewResetTokenRedisRepository(redisClient, cfg.Reset.TokenTTL, logger)
	default:
		tokenRepo = repositories.NewResetTokenDBRepository(database, cfg.Reset.TokenTTL, logger)
	}
	logger.Infof("Using %s reset token store", cfg.Reset.TokenStore)

	// Initialize email dispatcher
	emailConfig := &email.EmailConfig{
		SendGridAPIKey:  cfg.Email.SendGridAPIKey,
		FromEmail:       cfg.Email.FromEmail,
		FromName:        cfg.Email.FromName,
		CompanyName:     cfg.Email.CompanyName,
		FrontendBaseURL: cfg.Email.FrontendBaseURL,
	}
	emailService, err := email.NewEmailService(emailConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service:", err)
	}

	// Wire services with their repository dependencies
	resetService := services.NewResetService(tokenRepo, userRepo, emailService, logger)
	userService := services.NewUserService(userRepo, logger)

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		ResetService:   resetService,
		UserService:    userService,
		HealthCheckers: hcSlice,
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Periodic sweep of expired tokens. Read paths never honor expired
	// tokens, the sweep just keeps the store small.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(cfg.Reset.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if err := tokenRepo.DeleteExpired(sweepCtx); err != nil {
					logger.WithError(err).Warn("failed to delete expired reset tokens")
				}
			}
		}
	}()

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
