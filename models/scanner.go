package models

import "time"

// ThreadSource tells which listing a thread was discovered in.
type ThreadSource string

const (
	SourceActive   ThreadSource = "active"
	SourceArchived ThreadSource = "archived"
)

// ThreadRef is a forum thread as discovered from the channel listings.
type ThreadRef struct {
	ID               string
	Name             string
	GuildID          string
	ParentID         string
	CreatedAt        time.Time // zero when unknown
	StarterMessageID string    // empty when the listing carries none
	ArchiveCursor    string    // archive timestamp, used as the "before" cursor
	Source           ThreadSource
}

// ThreadPage is one page of the archived public thread listing.
type ThreadPage struct {
	Threads []ThreadRef
	HasMore bool
}
