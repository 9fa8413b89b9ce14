package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"registration-service/config"
	"registration-service/internal/broker"
	"registration-service/internal/ingest"
	"registration-service/internal/redisclient"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	ordersPath := flag.String("orders", cfg.Ingest.OrdersPath, "purchase export (.xlsx or .csv)")
	membersPath := flag.String("members", cfg.Ingest.MembersPath, "member export used for buyer gender")
	backupPath := flag.String("backup", "", "copy the database here before replacing it")
	force := flag.Bool("force", false, "continue when the database driver cannot take a backup")
	birthDate := flag.String("birthdate-policy", cfg.Ingest.BirthDatePolicy, "birth dates accepted from options: any or require8")
	maxQuantity := flag.Int("max-quantity", cfg.Ingest.MaxQuantity, "largest quantity accepted on one feed row")
	backfill := flag.Bool("backfill-buyer-ids", false, "derive missing buyer ids from email and exit")
	updateGender := flag.Bool("update-gender", false, "refresh buyer genders from -members and exit")
	verify := flag.Bool("verify", false, "check stored orders and participants and exit")
	flag.Parse()

	if err := util.InitLogger(util.LogConfig{
		Env:     cfg.Server.Env,
		Level:   cfg.Observ.LogLevel,
		Service: cfg.Observ.ServiceName,
		Command: "ingest",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	switch {
	case *backfill:
		n, err := db.BackfillBuyerIDs(ctx)
		if err != nil {
			logger.Fatal("Backfill failed", zap.Error(err))
		}
		logger.Info("Buyer ids backfilled", zap.Int64("orders", n))
		return

	case *updateGender:
		if *membersPath == "" {
			logger.Fatal("-update-gender needs -members")
		}
		genders, err := ingest.LoadGenderLookup(*membersPath)
		if err != nil {
			logger.Fatal("Failed to read member feed", zap.Error(err))
		}
		n, err := db.UpdateBuyerGenders(ctx, genders)
		if err != nil {
			logger.Fatal("Gender update failed", zap.Error(err))
		}
		logger.Info("Buyer genders updated", zap.Int64("orders", n), zap.Int("members", len(genders)))
		return

	case *verify:
		report, err := db.Verify(ctx)
		if err != nil {
			logger.Fatal("Verification failed", zap.Error(err))
		}
		printJSON(report)
		if !report.OK() {
			os.Exit(1)
		}
		return
	}

	policy, err := ingest.ParseBirthDatePolicy(*birthDate)
	if err != nil {
		logger.Fatal("Invalid birth date policy", zap.Error(err))
	}
	materializer := ingest.NewMaterializer(nil)
	materializer.BirthDate = policy

	var locker ingest.Locker
	if cfg.Redis.Addr != "" {
		rc, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, running without ingestion lock", zap.Error(err))
		} else {
			defer rc.Close()
			locker = rc
		}
	}

	var publisher ingest.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
	}

	grouper := ingest.NewGrouper()
	grouper.MaxQuantity = *maxQuantity

	runner := ingest.NewRunner(db, grouper, materializer, locker, publisher)
	report, err := runner.Run(ctx, ingest.Options{
		OrdersPath:  *ordersPath,
		MembersPath: *membersPath,
		BackupPath:  *backupPath,
		Force:       *force,
	})
	if errors.Is(err, ingest.ErrLocked) {
		logger.Fatal("Ingestion already running")
	}
	if err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}
	printJSON(report)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Failed to write report: %v", err)
	}
}
