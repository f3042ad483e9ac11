package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aevon-lab/cruncher/internal/batch"
	"github.com/aevon-lab/cruncher/internal/core/backoff"
	corecfg "github.com/aevon-lab/cruncher/internal/core/config"
	"github.com/aevon-lab/cruncher/internal/core/dimension"
	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/storage/postgres"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/crunch"
	"github.com/aevon-lab/cruncher/internal/ingestion"
	"github.com/aevon-lab/cruncher/internal/migrations"
	"github.com/aevon-lab/cruncher/internal/projection"
	"github.com/aevon-lab/cruncher/internal/queue"
	"github.com/aevon-lab/cruncher/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional, env vars apply either way)")
	flag.Parse()

	// 0. Initialize Logger
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("Loaded config",
		"queue", cfg.Queue.Name,
		"batch_size", cfg.Batch.Size,
		"load_timeout", cfg.Batch.LoadTimeout,
		"partitions", cfg.Batch.Partitions,
		"concurrency", cfg.EffectiveConcurrency(),
		"slowmode", cfg.Crunch.SlowMode,
		"dimensions_source", cfg.Dimensions.Source,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler cancels ctx, which triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// 2. Initialize Storage (PostgreSQL), waiting for the database to come up
	db := mustOpenDB(ctx, cfg)
	defer db.Close()

	// 2.1. Run Database Migrations
	if err := migrations.Run(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := postgres.ValidateSchema(ctx, db); err != nil {
		slog.Error("Database schema is incomplete", "error", err)
		os.Exit(1)
	}

	// 3. Load Dimensions and build the bucket cube
	var source dimension.Source
	switch cfg.Dimensions.Source {
	case "filesystem":
		source = dimension.NewFileSystemRepository(cfg.Dimensions.Dir)
	case "postgres":
		source = postgres.NewDimensionAdapter(db)
	}
	cube := dimension.NewCube(source)
	refresher := crunch.NewRefresher(cfg.Dimensions.RefreshInterval, cube)
	if err := refresher.Load(ctx); err != nil {
		var cfgErr *cerrors.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("Invalid dimension configuration", "dimension", cfgErr.Dimension, "value", cfgErr.Value, "reason", cfgErr.Reason)
		} else {
			slog.Error("Failed to load dimensions", "error", err)
		}
		os.Exit(1)
	}

	// 4. Connect to the Broker. Prefetch covers a full batch on every
	// partition so each controller can reach its size threshold.
	broker, err := queue.Connect(ctx, queue.Options{
		URI:             cfg.Queue.URI,
		Queue:           cfg.Queue.Name,
		NotifyExchange:  cfg.Queue.NotifyExchange,
		Prefetch:        batch.Window(cfg.Batch.Size, cfg.Batch.Partitions),
		MaxMessageBytes: cfg.Queue.MaxMessageBytes,
		ReconnectDelay:  cfg.Queue.ReconnectDelay,
		Heartbeat:       cfg.Queue.Heartbeat,
	})
	if err != nil {
		slog.Error("Failed to connect to broker", "error", err)
		os.Exit(1)
	}

	// 5. Initialize the Crunch Pipeline and the batch controllers
	statStore := postgres.NewStatAdapter(db, cfg.Crunch.ChunkSize)
	pipeline := crunch.NewPipeline(
		cube,
		crunch.NewAggregator(postgres.NewFactAdapter(db)),
		statStore,
		broker, // Disposer
		broker, // Notifier
		crunch.Options{
			Concurrency: cfg.EffectiveConcurrency(),
			SlowMode:    cfg.Crunch.SlowMode,
		},
	)
	group := batch.NewGroup(cfg.Batch.Partitions, cfg.Batch.Size, cfg.Batch.LoadTimeout, func(b *work.Batch) {
		pipeline.Process(context.Background(), b)
	})

	// 6. Start the dimension refresher
	go func() {
		if err := refresher.Start(ctx); err != nil {
			slog.Error("Dimension refresher stopped with error", "error", err)
		}
	}()

	// 7. Initialize Server
	serverDone := make(chan struct{})
	if cfg.Server.Enabled {
		srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode)
		srv.AddCheck("database", server.PingFunc(db.PingContext))
		srv.AddCheck("dimensions", server.PingFunc(func(context.Context) error {
			if !cube.Ready() {
				return errors.New("dimension cube not loaded")
			}
			return nil
		}))
		ingestion.NewService(broker, group, cfg.Server.MaxBodySizeMB, cfg.Queue.MaxMessageBytes).RegisterRoutes(srv.Engine)
		projection.NewService(statStore).RegisterRoutes(srv.Engine)

		go func() {
			defer close(serverDone)
			if err := srv.Run(ctx); err != nil {
				slog.Error("Server stopped with error", "error", err)
			}
		}()
	} else {
		close(serverDone)
		slog.Info("HTTP server disabled by config")
	}

	// 8. Consume until the signal handler cancels ctx or the broker drops us.
	consumeErr := broker.Consume(ctx, group.Add)
	if consumeErr != nil {
		slog.Error("Consumer stopped", "error", consumeErr)
		cancel()
	}

	// Flush what is pending and wait for every in-flight batch to settle
	// before the channel goes away.
	group.Close()
	if err := broker.Close(); err != nil {
		slog.Warn("Broker close failed", "error", err)
	}
	<-serverDone

	if consumeErr != nil {
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func mustOpenDB(ctx context.Context, cfg *corecfg.Config) *sql.DB {
	var db *sql.DB
	err := backoff.Retry(ctx, "postgres", cfg.Queue.ReconnectDelay, func() error {
		conn, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	return db
}

func newLogger(cfg corecfg.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
