package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/oasislab/checkup-export/internal/config"
	"github.com/oasislab/checkup-export/internal/export"
	httpadapter "github.com/oasislab/checkup-export/internal/interfaces/http"
	"github.com/oasislab/checkup-export/internal/repository"
	"github.com/oasislab/checkup-export/internal/storage"
	"github.com/oasislab/checkup-export/internal/worker"
	"github.com/oasislab/checkup-export/pkg/database"
	"github.com/oasislab/checkup-export/pkg/utils"
)

func main() {
	// Load .env for local development, ignore if absent
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting checkup export service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create the export root
	if err := os.MkdirAll(cfg.Export.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create export directory", zap.Error(err))
	}

	// Initialize repository
	checkupRepo := repository.NewCheckupRepository(db.DB, logger)

	// Initialize export pipeline
	destinations := storage.NewDestinationManager(cfg.Export.OutputDir, logger)
	photoExporter := export.NewPhotoExporter(logger)
	docGenerator := export.NewDocumentGenerator(photoExporter, logger)
	estimator := export.NewEstimator(export.EstimatorConfig{
		AvgPhotoBytes:    cfg.Export.AvgPhotoBytes,
		LargeExportBytes: cfg.Export.LargeExportThreshold,
	})
	orchestrator := export.NewOrchestrator(destinations, photoExporter, docGenerator, estimator, logger)

	// Initialize job manager
	manager := worker.NewManager(orchestrator, logger)

	// Background cleanup of expired export directories
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	cleaner := storage.NewCleaner(cfg.Export.OutputDir, cfg.Export.CleanupMaxAge, logger)
	go cleaner.Run(cleanupCtx, cfg.Export.CleanupInterval)

	// Initialize HTTP server
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, checkupRepo, manager, orchestrator, zapKV{logger.Sugar()})

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server terminated with error", zap.Error(err))
	}

	logger.Info("Shutting down export jobs...")
	manager.Shutdown()

	logger.Info("Server exited successfully")
}

// zapKV adapts a sugared zap logger to the HTTP adapter's logger interface.
type zapKV struct {
	s *zap.SugaredLogger
}

func (l zapKV) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l zapKV) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
