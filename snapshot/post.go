// Package snapshot builds post records and writes the ordered snapshot file.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"forum-sync/content"
	"forum-sync/models"
)

const channelLinkBase = "https://discord.com/channels/"

// BuildPost combines a thread, its resolved starter and its comments into a
// post. The creation time is the starter timestamp, else the thread's own.
func BuildPost(cfg *models.PipelineConfig, thread models.ThreadRef, starter models.RawMessage, comments []models.Comment) models.Post {
	normalized := content.Normalize(starter)
	name, tag := content.AuthorIdentity(starter.Author)

	createdAt := content.FormatTimestamp(starter.Timestamp)
	if createdAt == nil {
		createdAt = content.FormatTimestamp(thread.CreatedAt)
	}

	var avatar *string
	if cfg.Channel.Avatar != "" {
		a := cfg.Channel.Avatar
		avatar = &a
	}

	var link *string
	if thread.GuildID != "" {
		l := channelLinkBase + thread.GuildID + "/" + thread.ID
		link = &l
	}

	if comments == nil {
		comments = []models.Comment{}
	}

	return models.Post{
		ID:              thread.ID,
		Title:           thread.Name,
		Content:         normalized.Text,
		Images:          normalized.Images,
		CreatedAt:       createdAt,
		ChannelID:       cfg.ForumChannelID,
		ChannelName:     cfg.Channel.Name,
		ChannelVerified: cfg.Channel.Verified,
		ChannelAvatar:   avatar,
		Author:          name,
		AuthorTag:       tag,
		URL:             link,
		Comments:        comments,
	}
}

// Assemble orders posts by creation time, newest first, with missing times
// last, and caps the result at maxPosts. Ties keep their input order.
func Assemble(posts []models.Post, maxPosts int) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)

	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]) > sortKey(out[j])
	})

	if maxPosts >= 0 && len(out) > maxPosts {
		out = out[:maxPosts]
	}
	return out
}

func sortKey(p models.Post) string {
	if p.CreatedAt == nil {
		return ""
	}
	return *p.CreatedAt
}

// Marshal renders the snapshot as indented JSON. An empty snapshot is "[]".
// URLs are written unescaped so CDN query strings stay readable.
func Marshal(posts []models.Post) ([]byte, error) {
	if posts == nil {
		posts = []models.Post{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posts); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
