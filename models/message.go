package models

import "time"

// RawMessage is a thread message as fetched from Discord, already decoded into
// explicit fields. Absent optional parts are zero values, never nil pointers,
// except Author which is nil when the API omitted it.
type RawMessage struct {
	ID          string
	Author      *Author
	Timestamp   time.Time // zero when missing or unparsable
	Content     string
	Embeds      []Embed
	Attachments []Attachment
}

// Author identifies the sender of a message.
type Author struct {
	Username      string
	Discriminator string
}

// Embed is a structured content block attached to a message.
type Embed struct {
	Title        string
	Description  string
	Fields       []EmbedField
	ImageURL     string
	ThumbnailURL string
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name  string
	Value string
}

// Attachment is a file uploaded with a message.
type Attachment struct {
	URL string
}

// NormalizedContent is the uniform text and image view of a message.
type NormalizedContent struct {
	Text   string
	Images []string
}
