package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"forum-sync/models"

	"github.com/bwmarrin/discordgo"
)

// ActiveThreads lists the active threads of a forum channel. When the
// channel-scoped endpoint is unavailable (404 on newer API versions) it falls
// back to the guild-wide listing filtered by parent channel.
func (c *Client) ActiveThreads(ctx context.Context, channelID string) ([]models.ThreadRef, error) {
	body, err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/threads/active", channelID))
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		c.log.Debug().Str("channel_id", channelID).Msg("channel active thread listing unavailable, using guild listing")
		return c.guildActiveThreads(ctx, channelID)
	}

	list, err := c.decodeThreadList(body, models.SourceActive)
	if err != nil {
		return nil, err
	}
	return list.Threads, nil
}

func (c *Client) guildActiveThreads(ctx context.Context, channelID string) ([]models.ThreadRef, error) {
	body, err := c.Call(ctx, http.MethodGet, "/channels/"+channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %s: %w", channelID, err)
	}
	var ch discordgo.Channel
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("failed to decode channel %s: %w", channelID, err)
	}
	if ch.GuildID == "" {
		return nil, fmt.Errorf("channel %s has no guild", channelID)
	}

	body, err = c.Call(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/threads/active", ch.GuildID))
	if err != nil {
		return nil, fmt.Errorf("failed to get active threads for guild %s: %w", ch.GuildID, err)
	}
	list, err := c.decodeThreadList(body, models.SourceActive)
	if err != nil {
		return nil, err
	}

	var threads []models.ThreadRef
	for _, t := range list.Threads {
		if t.ParentID == channelID {
			threads = append(threads, t)
		}
	}
	return threads, nil
}

// ArchivedThreads fetches one page of archived public threads. before is the
// opaque cursor taken from the previous page; empty requests the newest page.
func (c *Client) ArchivedThreads(ctx context.Context, channelID, before string, limit int) (models.ThreadPage, error) {
	qs := url.Values{}
	qs.Set("limit", strconv.Itoa(limit))
	if before != "" {
		qs.Set("before", before)
	}

	body, err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/threads/archived/public?%s", channelID, qs.Encode()))
	if err != nil {
		return models.ThreadPage{}, err
	}
	return c.decodeThreadList(body, models.SourceArchived)
}

// JoinThread adds the bot to a thread. Discord answers 204 on success and is
// idempotent for threads the bot already belongs to.
func (c *Client) JoinThread(ctx context.Context, threadID string) error {
	_, err := c.Call(ctx, http.MethodPut, fmt.Sprintf("/channels/%s/thread-members/@me", threadID))
	return err
}

// Message fetches a single message of a thread by id.
func (c *Client) Message(ctx context.Context, threadID, messageID string) (models.RawMessage, error) {
	body, err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/messages/%s", threadID, messageID))
	if err != nil {
		return models.RawMessage{}, err
	}
	if body == nil {
		return models.RawMessage{}, fmt.Errorf("empty response for message %s", messageID)
	}

	var m discordgo.Message
	if err := json.Unmarshal(body, &m); err != nil {
		return models.RawMessage{}, fmt.Errorf("failed to decode message %s: %w", messageID, err)
	}
	return toRawMessage(&m), nil
}

// Messages fetches the most recent limit messages of a thread, newest first.
func (c *Client) Messages(ctx context.Context, threadID string, limit int) ([]models.RawMessage, error) {
	body, err := c.Call(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/messages?limit=%d", threadID, limit))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var msgs []*discordgo.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages of thread %s: %w", threadID, err)
	}

	out := make([]models.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, toRawMessage(m))
	}
	return out, nil
}
