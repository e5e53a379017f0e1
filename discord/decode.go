package discord

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"forum-sync/models"

	"github.com/bwmarrin/discordgo"
)

// threadExtras carries the thread fields discordgo.Channel does not model or
// models as parsed times; the archive timestamp is kept verbatim because it is
// echoed back as the pagination cursor.
type threadExtras struct {
	MessageID string `json:"message_id"`
	CreatedAt string `json:"created_at"`
	Metadata  *struct {
		ArchiveTimestamp string `json:"archive_timestamp"`
		CreateTimestamp  string `json:"create_timestamp"`
	} `json:"thread_metadata"`
}

type threadList struct {
	Threads []json.RawMessage `json:"threads"`
	HasMore bool              `json:"has_more"`
}

// decodeThreadList decodes a thread listing. A thread that fails to decode is
// logged and skipped so one malformed entry does not cost the whole page.
func (c *Client) decodeThreadList(body []byte, source models.ThreadSource) (models.ThreadPage, error) {
	if len(body) == 0 {
		return models.ThreadPage{}, nil
	}

	var list threadList
	if err := json.Unmarshal(body, &list); err != nil {
		return models.ThreadPage{}, fmt.Errorf("failed to decode thread list: %w", err)
	}

	page := models.ThreadPage{HasMore: list.HasMore}
	for _, raw := range list.Threads {
		ref, err := decodeThread(raw, source)
		if err != nil {
			c.log.Warn().Err(err).Str("source", string(source)).Msg("skipping undecodable thread")
			continue
		}
		page.Threads = append(page.Threads, ref)
	}
	return page, nil
}

func decodeThread(raw json.RawMessage, source models.ThreadSource) (models.ThreadRef, error) {
	var ch discordgo.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return models.ThreadRef{}, fmt.Errorf("failed to decode thread: %w", err)
	}
	var extras threadExtras
	if err := json.Unmarshal(raw, &extras); err != nil {
		return models.ThreadRef{}, fmt.Errorf("failed to decode thread %s: %w", ch.ID, err)
	}

	ref := models.ThreadRef{
		ID:               ch.ID,
		Name:             ch.Name,
		GuildID:          ch.GuildID,
		ParentID:         ch.ParentID,
		StarterMessageID: extras.MessageID,
		Source:           source,
	}

	created := extras.CreatedAt
	if extras.Metadata != nil {
		ref.ArchiveCursor = extras.Metadata.ArchiveTimestamp
		if created == "" {
			created = extras.Metadata.CreateTimestamp
		}
	}
	ref.CreatedAt = threadCreatedAt(ch.ID, created)

	return ref, nil
}

// threadCreatedAt prefers an explicit creation timestamp and otherwise derives
// it from the thread's snowflake id.
func threadCreatedAt(id, explicit string) time.Time {
	if explicit != "" {
		if t, err := time.Parse(time.RFC3339Nano, explicit); err == nil {
			return t
		}
	}
	if t, err := discordgo.SnowflakeTimestamp(id); err == nil {
		return t
	}
	return time.Time{}
}

func toRawMessage(m *discordgo.Message) models.RawMessage {
	msg := models.RawMessage{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Content:   m.Content,
	}

	if m.Author != nil {
		msg.Author = &models.Author{
			Username:      m.Author.Username,
			Discriminator: m.Author.Discriminator,
		}
	}

	for _, a := range m.Attachments {
		if a == nil || strings.TrimSpace(a.URL) == "" {
			continue
		}
		msg.Attachments = append(msg.Attachments, models.Attachment{URL: a.URL})
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		embed := models.Embed{
			Title:       e.Title,
			Description: e.Description,
		}
		if e.Image != nil {
			embed.ImageURL = e.Image.URL
		}
		if e.Thumbnail != nil {
			embed.ThumbnailURL = e.Thumbnail.URL
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			embed.Fields = append(embed.Fields, models.EmbedField{Name: f.Name, Value: f.Value})
		}
		msg.Embeds = append(msg.Embeds, embed)
	}

	return msg
}
