// Package content turns raw Discord messages into the uniform text and image
// representation used by the snapshot.
package content

import (
	"strings"

	"forum-sync/models"
)

const paragraphSeparator = "\n\n"

// ExtractText flattens a message into plain text: its own content, then for
// every embed the title, description and fields, joined as paragraphs.
func ExtractText(m models.RawMessage) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(m.Content)
	for _, e := range m.Embeds {
		add(e.Title)
		add(e.Description)
		for _, f := range e.Fields {
			add(formatField(f))
		}
	}

	return strings.TrimSpace(strings.Join(parts, paragraphSeparator))
}

func formatField(f models.EmbedField) string {
	name := strings.TrimSpace(f.Name)
	value := strings.TrimSpace(f.Value)
	switch {
	case name != "" && value != "":
		return name + ": " + value
	case name != "":
		return name
	default:
		return value
	}
}

// ExtractImages collects attachment URLs, then embed image and thumbnail URLs,
// dropping duplicates while keeping the first occurrence.
func ExtractImages(m models.RawMessage) []string {
	images := make([]string, 0, len(m.Attachments))
	seen := make(map[string]bool)
	add := func(url string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		images = append(images, url)
	}

	for _, a := range m.Attachments {
		add(a.URL)
	}
	for _, e := range m.Embeds {
		add(e.ImageURL)
		add(e.ThumbnailURL)
	}
	return images
}

// Normalize applies both extractors.
func Normalize(m models.RawMessage) models.NormalizedContent {
	return models.NormalizedContent{
		Text:   ExtractText(m),
		Images: ExtractImages(m),
	}
}
