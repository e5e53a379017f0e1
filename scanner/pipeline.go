package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"forum-sync/database"
	"forum-sync/models"
	"forum-sync/snapshot"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs one complete sync: discovery, per-thread processing,
// snapshot assembly and write, and run history.
type Pipeline struct {
	cfg        *models.PipelineConfig
	discoverer *Discoverer
	processor  *Processor
	sinks      []snapshot.Sink
	db         *sql.DB
	log        zerolog.Logger

	now      func() time.Time
	newRunID func() string
}

// NewPipeline wires a pipeline. db may be nil, which disables run history and
// the exclusion list.
func NewPipeline(api ForumAPI, cfg *models.PipelineConfig, sinks []snapshot.Sink, db *sql.DB, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		discoverer: NewDiscoverer(api, log.With().Str("module", "discover").Logger()),
		processor:  NewProcessor(api, cfg, log.With().Str("module", "thread").Logger()),
		sinks:      sinks,
		db:         db,
		log:        log,
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

// Run executes one sync. The snapshot is written only when discovery
// succeeded and ctx was not cancelled; otherwise the previous snapshot is left
// untouched and the error is returned. The returned run context is never nil.
func (p *Pipeline) Run(ctx context.Context) (*models.RunContext, error) {
	rc := models.NewRunContext(p.newRunID(), p.now())
	log := p.log.With().Str("run_id", rc.RunID).Logger()
	log.Info().Str("channel_id", p.cfg.ForumChannelID).Msg("Starting sync run")

	err := p.run(ctx, rc)
	rc.Err = err
	rc.FinishedAt = p.now()
	p.record(rc, log)

	if err != nil {
		log.Error().Err(err).Msg("Sync run failed")
		return rc, err
	}
	log.Info().
		Int("active", rc.ActiveCount).
		Int("archived", rc.ArchivedCount).
		Int("excluded", rc.ExcludedCount).
		Int("merged", rc.MergedCount).
		Int("posts", len(rc.Posts)).
		Int("degraded", rc.Count(models.OutcomeDegraded)).
		Int("dropped", rc.Count(models.OutcomeDropped)).
		Str("output", rc.Output).
		Dur("duration", rc.FinishedAt.Sub(rc.StartedAt)).
		Msg("Sync run finished")
	return rc, nil
}

func (p *Pipeline) run(ctx context.Context, rc *models.RunContext) error {
	excluded := p.excludedThreads()

	threads, err := p.discoverer.Discover(ctx, p.cfg, excluded, rc)
	if err != nil {
		return err
	}

	for _, res := range p.processAll(ctx, threads) {
		rc.Record(res)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled before writing snapshot: %w", err)
	}

	rc.Posts = snapshot.Assemble(rc.Posts, p.cfg.MaxPosts)
	if err := snapshot.Write(ctx, rc.Posts, p.sinks...); err != nil {
		return err
	}

	locations := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		locations = append(locations, s.Location())
	}
	rc.Output = strings.Join(locations, ",")
	return nil
}

// processAll processes threads sequentially, or with up to cfg.Workers
// concurrent workers. Results keep the order of threads either way. Threads
// not started before ctx is cancelled are skipped.
func (p *Pipeline) processAll(ctx context.Context, threads []models.ThreadRef) []models.ThreadResult {
	results := make([]models.ThreadResult, len(threads))
	started := make([]bool, len(threads))

	if p.cfg.Workers <= 1 {
		for i, t := range threads {
			if ctx.Err() != nil {
				break
			}
			results[i] = p.processor.Process(ctx, t)
			started[i] = true
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for i, t := range threads {
			if ctx.Err() != nil {
				break
			}
			started[i] = true
			g.Go(func() error {
				results[i] = p.processor.Process(ctx, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	out := results[:0]
	for i, res := range results {
		if started[i] {
			out = append(out, res)
		}
	}
	return out
}

func (p *Pipeline) excludedThreads() map[string]bool {
	if p.db == nil {
		return nil
	}
	excluded, err := database.GetExcludedThreads(p.db, p.cfg.ForumChannelID)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to load exclusion list, continuing without it")
		return nil
	}
	return excluded
}

func (p *Pipeline) record(rc *models.RunContext, log zerolog.Logger) {
	if p.db == nil {
		return
	}
	if err := database.SaveRun(p.db, rc); err != nil {
		log.Warn().Err(err).Msg("Failed to record run history")
		return
	}
	n, err := database.CleanupOldRuns(p.db, p.cfg.HistoryRetentionDays, rc.FinishedAt)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to clean up run history")
		return
	}
	if n > 0 {
		log.Debug().Int64("deleted", n).Msg("Cleaned up old runs")
	}
}
