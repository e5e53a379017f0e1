package models

import "time"

// RunRecord is a stored summary of a finished run.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Active     int
	Archived   int
	Merged     int
	Posts      int
	Degraded   int
	Dropped    int
	Output     string
	Error      string
}

// Exclusion is a thread that is skipped by every run until removed.
type Exclusion struct {
	ThreadID  string
	ChannelID string
	Reason    string
	Timestamp time.Time
}
