// Package bot wires the configured pipeline together and runs it once or on
// a schedule.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"forum-sync/database"
	"forum-sync/discord"
	"forum-sync/models"
	"forum-sync/scanner"
	"forum-sync/snapshot"
	"forum-sync/utils"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// Bot owns the long-lived resources of the sync: the Discord client, the
// optional Cloud Storage client and the optional history database.
type Bot struct {
	Config   *models.PipelineConfig
	Client   *discord.Client
	Pipeline *scanner.Pipeline

	db      *sql.DB
	storage *storage.Client
	log     zerolog.Logger
}

// NewBot creates the clients and the pipeline described by cfg.
func NewBot(ctx context.Context, cfg *models.PipelineConfig, log zerolog.Logger) (*Bot, error) {
	client, err := discord.New(cfg.Token, discord.Options{
		BaseURL:           cfg.APIBaseURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RetryAttempts:     cfg.RetryAttempts,
		Timeout:           cfg.RequestTimeout,
	}, utils.Module(log, "discord"))
	if err != nil {
		return nil, err
	}

	b := &Bot{Config: cfg, Client: client, log: log}

	sinks := []snapshot.Sink{snapshot.NewFileSink(cfg.OutputFile)}
	if cfg.OutputBucket != "" {
		b.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage client: %w", err)
		}
		object := filepath.Base(cfg.OutputFile)
		sinks = append(sinks, snapshot.NewGCSSink(b.storage, cfg.OutputBucket, object, utils.Module(log, "storage")))
	}

	if cfg.HistoryDB != "" {
		b.db, err = database.InitDB(cfg.HistoryDB)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		log.Debug().Str("path", cfg.HistoryDB).Msg("Run history enabled")
	}

	b.Pipeline = scanner.NewPipeline(client, cfg, sinks, b.db, utils.Module(log, "pipeline"))
	return b, nil
}

// Close releases the storage client and the history database.
func (b *Bot) Close() {
	if b.storage != nil {
		if err := b.storage.Close(); err != nil {
			b.log.Warn().Err(err).Msg("Failed to close storage client")
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.log.Warn().Err(err).Msg("Failed to close history database")
		}
	}
}

// RunOnce performs a single sync run.
func (b *Bot) RunOnce(ctx context.Context) (*models.RunContext, error) {
	return b.Pipeline.Run(ctx)
}

// Run syncs on cfg.Schedule until SIGINT or SIGTERM. With runAtStartup a
// first sync starts immediately.
func Run(ctx context.Context, cfg *models.PipelineConfig, log zerolog.Logger, runAtStartup bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	b, err := NewBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	s, err := startScheduler(ctx, cfg.Schedule, b.RunOnce, utils.Module(log, "scheduler"))
	if err != nil {
		return err
	}

	if runAtStartup {
		s.runNow()
	} else {
		log.Info().Msg("Skipping initial sync on startup")
	}

	log.Info().Str("schedule", cfg.Schedule).Msg("Scheduler is now running. Press CTRL-C to exit.")
	<-ctx.Done()

	s.stop()
	log.Info().Msg("Scheduler stopped gracefully")
	return nil
}
