package scanner

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"forum-sync/discord"
	"forum-sync/models"
)

type archivedCall struct {
	before string
	limit  int
}

// fakeForum is an in-memory ForumAPI.
type fakeForum struct {
	mu sync.Mutex

	active    []models.ThreadRef
	activeErr error

	// archivedPages are served in order; calls past the end get an empty page.
	archivedPages []models.ThreadPage
	archivedErrAt int // zero disables; n fails the n-th call
	archivedCalls []archivedCall

	messages    map[string]map[string]models.RawMessage // thread -> id -> message
	windows     map[string][]models.RawMessage          // thread -> newest first
	windowErr   map[string]error
	joinErr     map[string]error
	messageErr  map[string]error
	joined      []string
	windowLimit []int
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		messages:   map[string]map[string]models.RawMessage{},
		windows:    map[string][]models.RawMessage{},
		windowErr:  map[string]error{},
		joinErr:    map[string]error{},
		messageErr: map[string]error{},
	}
}

func apiErr(status int) error {
	return &discord.APIError{Method: http.MethodGet, Path: "/test", Status: status, Body: http.StatusText(status)}
}

func (f *fakeForum) ActiveThreads(ctx context.Context, channelID string) ([]models.ThreadRef, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.active, nil
}

func (f *fakeForum) ArchivedThreads(ctx context.Context, channelID, before string, limit int) (models.ThreadPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.archivedCalls = append(f.archivedCalls, archivedCall{before: before, limit: limit})
	n := len(f.archivedCalls)
	if f.archivedErrAt == n {
		return models.ThreadPage{}, apiErr(http.StatusInternalServerError)
	}
	if n > len(f.archivedPages) {
		return models.ThreadPage{}, nil
	}
	page := f.archivedPages[n-1]
	if len(page.Threads) > limit {
		page.Threads = page.Threads[:limit]
	}
	return page, nil
}

func (f *fakeForum) JoinThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, threadID)
	return f.joinErr[threadID]
}

func (f *fakeForum) Message(ctx context.Context, threadID, messageID string) (models.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.messageErr[threadID]; err != nil {
		return models.RawMessage{}, err
	}
	m, ok := f.messages[threadID][messageID]
	if !ok {
		return models.RawMessage{}, apiErr(http.StatusNotFound)
	}
	return m, nil
}

func (f *fakeForum) Messages(ctx context.Context, threadID string, limit int) ([]models.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowLimit = append(f.windowLimit, limit)
	if err := f.windowErr[threadID]; err != nil {
		return nil, err
	}
	w := f.windows[threadID]
	if len(w) > limit {
		w = w[:limit]
	}
	return w, nil
}

// addThread registers a thread whose window holds the given messages, newest
// first. Every message is also retrievable by id.
func (f *fakeForum) addThread(threadID string, window ...models.RawMessage) {
	f.windows[threadID] = window
	if f.messages[threadID] == nil {
		f.messages[threadID] = map[string]models.RawMessage{}
	}
	for _, m := range window {
		f.messages[threadID][m.ID] = m
	}
}

func ts(minute int) time.Time {
	return time.Date(2024, 1, 1, 12, minute, 0, 0, time.UTC)
}

func msg(id, text string, minute int) models.RawMessage {
	return models.RawMessage{
		ID:        id,
		Author:    &models.Author{Username: "user-" + id, Discriminator: "0"},
		Timestamp: ts(minute),
		Content:   text,
	}
}

func thread(id string) models.ThreadRef {
	return models.ThreadRef{ID: id, Name: "thread " + id, GuildID: "7", ParentID: "10"}
}

func archivedThreads(from, count int) []models.ThreadRef {
	out := make([]models.ThreadRef, 0, count)
	for i := from; i < from+count; i++ {
		t := thread(fmt.Sprintf("a%d", i))
		t.Source = models.SourceArchived
		t.ArchiveCursor = fmt.Sprintf("cursor-%04d", i)
		out = append(out, t)
	}
	return out
}
