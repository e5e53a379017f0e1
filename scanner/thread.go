package scanner

import (
	"context"
	"fmt"

	"forum-sync/content"
	"forum-sync/models"
	"forum-sync/snapshot"

	"github.com/rs/zerolog"
)

// Processor turns one discovered thread into a post.
type Processor struct {
	api ForumAPI
	cfg *models.PipelineConfig
	log zerolog.Logger
}

// NewProcessor returns a processor for threads of cfg's forum channel.
func NewProcessor(api ForumAPI, cfg *models.PipelineConfig, log zerolog.Logger) *Processor {
	return &Processor{api: api, cfg: cfg, log: log}
}

// join adds the bot to the thread. Reading history of some threads requires
// membership, but the reads are attempted whatever the result.
func (p *Processor) join(ctx context.Context, threadID string) error {
	if err := p.api.JoinThread(ctx, threadID); err != nil {
		p.log.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to join thread")
		return err
	}
	return nil
}

// fetchWindow returns the most recent limit messages of the thread, newest
// first. On failure the window is empty.
func (p *Processor) fetchWindow(ctx context.Context, threadID string, limit int) ([]models.RawMessage, error) {
	msgs, err := p.api.Messages(ctx, threadID, limit)
	if err != nil {
		p.log.Warn().Err(err).Str("thread_id", threadID).Msg("Failed to fetch messages")
		return nil, err
	}
	return msgs, nil
}

// starterID returns the id of the message that opened the thread, if known.
func (p *Processor) starterID(thread models.ThreadRef) string {
	if thread.StarterMessageID != "" {
		return thread.StarterMessageID
	}
	if p.cfg.ThreadIDAsStarter {
		return thread.ID
	}
	return ""
}

// resolveStarter fetches the starter by id when one is known and falls back
// to the oldest message of the window. ok is false when neither path yields
// a message.
func (p *Processor) resolveStarter(ctx context.Context, thread models.ThreadRef, window []models.RawMessage, outcome *models.ThreadOutcome) (models.RawMessage, bool) {
	if id := p.starterID(thread); id != "" {
		starter, err := p.api.Message(ctx, thread.ID, id)
		if err == nil {
			return starter, true
		}
		p.log.Warn().Err(err).Str("thread_id", thread.ID).Str("message_id", id).Msg("Starter fetch failed")
		outcome.Degrade(fmt.Sprintf("starter fetch failed: %v", err))
	}

	if len(window) == 0 {
		return models.RawMessage{}, false
	}
	return window[len(window)-1], true
}

// Process runs join, window fetch, starter resolution and comment building
// for one thread. Failures never escape: they are recorded on the outcome,
// and a thread without a starter yields no post.
func (p *Processor) Process(ctx context.Context, thread models.ThreadRef) models.ThreadResult {
	outcome := models.ThreadOutcome{ThreadID: thread.ID, Kind: models.OutcomeOK}
	log := p.log.With().Str("thread_id", thread.ID).Logger()

	if err := p.join(ctx, thread.ID); err != nil {
		outcome.Degrade(fmt.Sprintf("join failed: %v", err))
	}

	window, err := p.fetchWindow(ctx, thread.ID, p.cfg.MessageWindow)
	if err != nil {
		outcome.Degrade(fmt.Sprintf("message window unavailable: %v", err))
	}

	starter, ok := p.resolveStarter(ctx, thread, window, &outcome)
	if !ok {
		outcome.Drop("no starter message")
		log.Warn().Str("reason", outcome.Reason()).Msg("Thread dropped")
		return models.ThreadResult{Outcome: outcome}
	}

	comments := content.BuildComments(window, starter.ID)
	post := snapshot.BuildPost(p.cfg, thread, starter, comments)

	event := log.Info()
	if outcome.Kind == models.OutcomeDegraded {
		event = log.Warn().Str("reason", outcome.Reason())
	}
	event.Int("starter_len", len(post.Content)).
		Int("images", len(post.Images)).
		Int("comments", len(post.Comments)).
		Msg("Thread processed")

	return models.ThreadResult{Post: &post, Outcome: outcome}
}
