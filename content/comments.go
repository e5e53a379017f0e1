package content

import (
	"strings"
	"time"

	"forum-sync/models"
)

const unknownAuthor = "unknown"

// AuthorIdentity returns the display name and tag of a message author.
// The tag carries the legacy "#discriminator" suffix only for accounts that
// still have one; migrated accounts report "0".
func AuthorIdentity(a *models.Author) (name, tag string) {
	if a == nil || a.Username == "" {
		name = unknownAuthor
	} else {
		name = a.Username
	}
	tag = name
	if a != nil && a.Discriminator != "" && a.Discriminator != "0" {
		tag += "#" + a.Discriminator
	}
	return name, tag
}

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond
// precision, or nil for the zero time.
func FormatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return &s
}

// BuildComments turns the fetched window (newest first) into the comment list
// of a post: the starter is removed, empty messages are dropped and the result
// is ordered oldest first.
func BuildComments(window []models.RawMessage, starterID string) []models.Comment {
	comments := make([]models.Comment, 0, len(window))
	for _, m := range window {
		if m.ID == starterID {
			continue
		}

		normalized := Normalize(m)
		if strings.TrimSpace(normalized.Text) == "" && len(normalized.Images) == 0 {
			continue
		}

		name, tag := AuthorIdentity(m.Author)
		comments = append(comments, models.Comment{
			ID:        m.ID,
			Author:    name,
			AuthorTag: tag,
			CreatedAt: FormatTimestamp(m.Timestamp),
			Content:   normalized.Text,
			Images:    normalized.Images,
		})
	}

	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments
}
