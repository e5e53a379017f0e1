// Package scanner discovers the threads of a forum channel, resolves their
// starter messages and comments, and runs the sync pipeline.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"forum-sync/models"

	"github.com/rs/zerolog"
)

// ArchivePageSize is the largest page the archived thread listing serves.
const ArchivePageSize = 100

// ErrDiscoveryFailed is returned when neither thread listing could be read.
var ErrDiscoveryFailed = errors.New("thread discovery failed: active and archived listings both unavailable")

// ForumAPI is the subset of the Discord REST API the pipeline consumes.
type ForumAPI interface {
	ActiveThreads(ctx context.Context, channelID string) ([]models.ThreadRef, error)
	ArchivedThreads(ctx context.Context, channelID, before string, limit int) (models.ThreadPage, error)
	JoinThread(ctx context.Context, threadID string) error
	Message(ctx context.Context, threadID, messageID string) (models.RawMessage, error)
	Messages(ctx context.Context, threadID string, limit int) ([]models.RawMessage, error)
}

// Discoverer lists the threads of a forum channel from the active and the
// archived listings.
type Discoverer struct {
	api ForumAPI
	log zerolog.Logger
}

// NewDiscoverer returns a discoverer backed by api.
func NewDiscoverer(api ForumAPI, log zerolog.Logger) *Discoverer {
	return &Discoverer{api: api, log: log}
}

// ListActive returns the active threads of the channel. On failure it logs a
// warning and returns an empty list together with the error.
func (d *Discoverer) ListActive(ctx context.Context, channelID string) ([]models.ThreadRef, error) {
	threads, err := d.api.ActiveThreads(ctx, channelID)
	if err != nil {
		d.log.Warn().Err(err).Str("channel_id", channelID).Msg("Active thread listing failed")
		return []models.ThreadRef{}, fmt.Errorf("failed to list active threads: %w", err)
	}
	return threads, nil
}

// ListArchived pages through the archived public threads until maxTotal
// threads are collected, the server has no more pages, a page is empty, or
// the cursor is missing or does not advance. The number of requests is bounded
// by ceil(maxTotal/ArchivePageSize)+1 regardless of what the server reports.
// Threads from pages fetched before a failure are returned with the error.
func (d *Discoverer) ListArchived(ctx context.Context, channelID string, maxTotal int) ([]models.ThreadRef, error) {
	threads := []models.ThreadRef{}
	if maxTotal <= 0 {
		return threads, nil
	}

	maxPages := (maxTotal+ArchivePageSize-1)/ArchivePageSize + 1
	seenCursors := make(map[string]bool)
	before := ""

	for page := 0; page < maxPages && len(threads) < maxTotal; page++ {
		limit := min(ArchivePageSize, maxTotal-len(threads))

		res, err := d.api.ArchivedThreads(ctx, channelID, before, limit)
		if err != nil {
			d.log.Warn().Err(err).
				Str("channel_id", channelID).
				Int("page", page).
				Int("collected", len(threads)).
				Msg("Archived thread listing failed")
			return threads, fmt.Errorf("failed to list archived threads (page %d): %w", page, err)
		}
		if len(res.Threads) == 0 {
			break
		}

		threads = append(threads, res.Threads...)
		if len(threads) >= maxTotal {
			threads = threads[:maxTotal]
			break
		}
		if !res.HasMore {
			break
		}

		cursor := res.Threads[len(res.Threads)-1].ArchiveCursor
		if cursor == "" || seenCursors[cursor] {
			d.log.Warn().Str("channel_id", channelID).Str("cursor", cursor).
				Msg("Archived listing reports more pages without a usable cursor, stopping")
			break
		}
		seenCursors[cursor] = true
		before = cursor
	}
	return threads, nil
}

// Merge combines the two listings, keeping the first occurrence of every
// thread id with active threads taking precedence, and truncates the result
// to maxThreads.
func Merge(active, archived []models.ThreadRef, maxThreads int) []models.ThreadRef {
	merged := make([]models.ThreadRef, 0, len(active)+len(archived))
	seen := make(map[string]bool, len(active)+len(archived))

	for _, list := range [][]models.ThreadRef{active, archived} {
		for _, t := range list {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			merged = append(merged, t)
		}
	}

	if maxThreads >= 0 && len(merged) > maxThreads {
		merged = merged[:maxThreads]
	}
	return merged
}

// Discover lists both sources, merges them and removes excluded threads. It
// fails only when both listings failed; the counts are recorded on rc.
func (d *Discoverer) Discover(ctx context.Context, cfg *models.PipelineConfig, excluded map[string]bool, rc *models.RunContext) ([]models.ThreadRef, error) {
	active, activeErr := d.ListActive(ctx, cfg.ForumChannelID)
	archived, archivedErr := d.ListArchived(ctx, cfg.ForumChannelID, cfg.MaxArchived)

	rc.ActiveCount = len(active)
	rc.ArchivedCount = len(archived)
	rc.ActiveErr = activeErr
	rc.ArchivedErr = archivedErr

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Archived pages fetched before a failure still count as a contribution.
	if activeErr != nil && archivedErr != nil && len(archived) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, errors.Join(activeErr, archivedErr))
	}

	if len(excluded) > 0 {
		skipped := make(map[string]bool)
		active = withoutExcluded(active, excluded, skipped)
		archived = withoutExcluded(archived, excluded, skipped)
		rc.ExcludedCount = len(skipped)
	}

	threads := Merge(active, archived, cfg.MaxThreadsTotal)
	rc.MergedCount = len(threads)
	return threads, nil
}

func withoutExcluded(threads []models.ThreadRef, excluded, skipped map[string]bool) []models.ThreadRef {
	out := make([]models.ThreadRef, 0, len(threads))
	for _, t := range threads {
		if excluded[t.ID] {
			skipped[t.ID] = true
			continue
		}
		out = append(out, t)
	}
	return out
}
