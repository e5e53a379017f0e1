package models

import (
	"strings"
	"time"
)

// OutcomeKind classifies how a thread fared during a run.
type OutcomeKind string

const (
	// OutcomeOK means every step for the thread succeeded.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeDegraded means a post was emitted from partially recovered data.
	OutcomeDegraded OutcomeKind = "degraded"
	// OutcomeDropped means no starter could be resolved and no post was emitted.
	OutcomeDropped OutcomeKind = "dropped"
)

// ThreadOutcome records what happened to one thread.
type ThreadOutcome struct {
	ThreadID string
	Kind     OutcomeKind
	Reasons  []string
}

// Degrade adds a reason and downgrades an OK outcome to degraded.
func (o *ThreadOutcome) Degrade(reason string) {
	o.Reasons = append(o.Reasons, reason)
	if o.Kind == OutcomeOK || o.Kind == "" {
		o.Kind = OutcomeDegraded
	}
}

// Drop adds a reason and marks the thread as dropped.
func (o *ThreadOutcome) Drop(reason string) {
	o.Reasons = append(o.Reasons, reason)
	o.Kind = OutcomeDropped
}

// Reason joins all recorded reasons.
func (o ThreadOutcome) Reason() string {
	return strings.Join(o.Reasons, "; ")
}

// ThreadResult is the result of processing one thread: a post unless the
// thread was dropped, and always an outcome.
type ThreadResult struct {
	Post    *Post
	Outcome ThreadOutcome
}

// RunContext accumulates the mutable state of a single pipeline run.
type RunContext struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	ActiveCount   int
	ArchivedCount int
	MergedCount   int
	ExcludedCount int
	ActiveErr     error
	ArchivedErr   error

	Posts    []Post
	Outcomes []ThreadOutcome

	Output string
	Err    error
}

// NewRunContext starts a run context.
func NewRunContext(runID string, now time.Time) *RunContext {
	return &RunContext{RunID: runID, StartedAt: now}
}

// Record adds a thread result to the run.
func (rc *RunContext) Record(res ThreadResult) {
	rc.Outcomes = append(rc.Outcomes, res.Outcome)
	if res.Post != nil {
		rc.Posts = append(rc.Posts, *res.Post)
	}
}

// Count returns how many outcomes of the given kind were recorded.
func (rc *RunContext) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range rc.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
