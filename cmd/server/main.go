package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"registration-service/config"
	"registration-service/internal/api"
	"registration-service/internal/broker"
	"registration-service/internal/export"
	"registration-service/internal/redisclient"
	"registration-service/internal/service"
	"registration-service/internal/store"
	"registration-service/internal/util"
	"registration-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(util.LogConfig{
		Env:     cfg.Server.Env,
		Level:   cfg.Observ.LogLevel,
		Service: cfg.Observ.ServiceName,
		Command: "server",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting registration service")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.TracerConfig{
			ServiceName:    cfg.Observ.ServiceName,
			Environment:    cfg.Server.Env,
			JaegerEndpoint: cfg.Observ.JaegerEndpoint,
			SampleRatio:    cfg.Observ.SampleRatio,
		})
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

	var (
		participantEvents service.ParticipantEvents
		adminEvents       service.AdminEvents
		auditWorker       *worker.AuditWorker
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher := broker.NewEventPublisher(producer)
		participantEvents = publisher
		adminEvents = publisher
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
		auditWorker = worker.NewAuditWorker(consumer, db)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Audit worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events disabled")
	}

	var archiver export.Archiver
	if cfg.Export.Bucket != "" {
		s3Archiver, err := export.NewS3Archiver(context.Background(), cfg.Export.Bucket, cfg.Export.Region, cfg.Export.Prefix)
		if err != nil {
			logger.Warn("Export archive disabled", zap.Error(err))
		} else {
			archiver = s3Archiver
		}
	}

	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		logger.Warn("No admin password configured, admin login disabled")
	}

	registrationService := service.NewRegistrationService(db, participantEvents, cfg.Registration.MultiOnly)
	adminService := service.NewAdminService(db, redisClient, redisClient, adminEvents, archiver, service.AdminConfig{
		ID:           cfg.Admin.ID,
		Password:     cfg.Admin.Password,
		PasswordHash: cfg.Admin.PasswordHash,
		SessionTTL:   cfg.Admin.SessionTTL,
		MaxAttempts:  cfg.Admin.MaxAttempts,
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(registrationService, adminService, map[string]api.Pinger{
		"database": db,
		"redis":    redisClient,
	}, cfg.Server.Env == "production")
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if auditWorker != nil {
		auditWorker.Stop()
	}

	logger.Info("Server exited")
}
