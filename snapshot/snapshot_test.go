package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"forum-sync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *models.PipelineConfig {
	return &models.PipelineConfig{
		ForumChannelID: "900",
		MaxPosts:       500,
		Channel: models.ChannelIdentity{
			Name:     "news",
			Verified: true,
		},
	}
}

func strPtr(s string) *string { return &s }

func TestBuildPost(t *testing.T) {
	thread := models.ThreadRef{
		ID:        "100",
		Name:      "Title",
		GuildID:   "7",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	starter := models.RawMessage{
		ID:          "100",
		Author:      &models.Author{Username: "walter", Discriminator: "0"},
		Timestamp:   time.Date(2024, 2, 2, 3, 4, 5, 6000000, time.UTC),
		Content:     "body",
		Attachments: []models.Attachment{{URL: "https://cdn/a.png"}},
	}

	post := BuildPost(testConfig(), thread, starter, nil)

	assert.Equal(t, "100", post.ID)
	assert.Equal(t, "Title", post.Title)
	assert.Equal(t, "body", post.Content)
	assert.Equal(t, []string{"https://cdn/a.png"}, post.Images)
	require.NotNil(t, post.CreatedAt)
	assert.Equal(t, "2024-02-02T03:04:05.006Z", *post.CreatedAt)
	assert.Equal(t, "900", post.ChannelID)
	assert.Equal(t, "news", post.ChannelName)
	assert.True(t, post.ChannelVerified)
	assert.Nil(t, post.ChannelAvatar)
	assert.Equal(t, "walter", post.Author)
	assert.Equal(t, "walter", post.AuthorTag)
	require.NotNil(t, post.URL)
	assert.Equal(t, "https://discord.com/channels/7/100", *post.URL)
	assert.NotNil(t, post.Comments)
	assert.Empty(t, post.Comments)
}

func TestBuildPost_FallsBackToThreadTime(t *testing.T) {
	cfg := testConfig()
	cfg.Channel.Avatar = "https://cdn/avatar.png"
	thread := models.ThreadRef{ID: "1", CreatedAt: time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)}

	post := BuildPost(cfg, thread, models.RawMessage{ID: "1"}, nil)

	require.NotNil(t, post.CreatedAt)
	assert.Equal(t, "2023-06-01T12:00:00.000Z", *post.CreatedAt)
	assert.Nil(t, post.URL)
	require.NotNil(t, post.ChannelAvatar)
	assert.Equal(t, "https://cdn/avatar.png", *post.ChannelAvatar)
	assert.Equal(t, "unknown", post.Author)
	assert.NotNil(t, post.Images)
}

func TestBuildPost_NoTimesAtAll(t *testing.T) {
	post := BuildPost(testConfig(), models.ThreadRef{ID: "1"}, models.RawMessage{ID: "1"}, nil)
	assert.Nil(t, post.CreatedAt)
}

func TestAssemble_SortsDescendingNullLast(t *testing.T) {
	posts := []models.Post{
		{ID: "nil-1"},
		{ID: "old", CreatedAt: strPtr("2023-01-01T00:00:00.000Z")},
		{ID: "empty", CreatedAt: strPtr("")},
		{ID: "new", CreatedAt: strPtr("2024-01-01T00:00:00.000Z")},
		{ID: "nil-2"},
		{ID: "mid", CreatedAt: strPtr("2023-06-01T00:00:00.000Z")},
	}

	out := Assemble(posts, 10)

	var ids []string
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old", "nil-1", "empty", "nil-2"}, ids)
	assert.Equal(t, "nil-1", posts[0].ID, "input must not be reordered")
}

func TestAssemble_Caps(t *testing.T) {
	posts := []models.Post{
		{ID: "a", CreatedAt: strPtr("2024-01-01T00:00:00.000Z")},
		{ID: "b", CreatedAt: strPtr("2024-01-03T00:00:00.000Z")},
		{ID: "c", CreatedAt: strPtr("2024-01-02T00:00:00.000Z")},
	}

	out := Assemble(posts, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "c", out[1].ID)

	assert.Empty(t, Assemble(posts, 0))
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	post := BuildPost(testConfig(), models.ThreadRef{ID: "1", Name: "t"}, models.RawMessage{
		ID:          "1",
		Attachments: []models.Attachment{{URL: "https://cdn/x.png?ex=1&is=2"}},
	}, nil)
	data, err = Marshal([]models.Post{post})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"https://cdn/x.png?ex=1&is=2"`)
	assert.Contains(t, string(data), "\n  {")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	for _, key := range []string{
		"id", "title", "content", "images", "created_at", "channel_id", "channel_name",
		"channel_verified", "channel_avatar", "author", "author_tag", "url", "comments",
	} {
		assert.Contains(t, decoded[0], key)
	}
	assert.Nil(t, decoded[0]["created_at"])
	assert.Nil(t, decoded[0]["url"])
	assert.Equal(t, []any{}, decoded[0]["comments"])
}

func TestFileSink_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "posts.json")
	sink := NewFileSink(path)
	assert.Equal(t, path, sink.Location())

	require.NoError(t, sink.Write(context.Background(), []byte(`["old"]`)))
	require.NoError(t, sink.Write(context.Background(), []byte(`["new"]`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `["new"]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileSink_CancelledContextWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFileSink(path).Write(ctx, []byte(`[]`))
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

type memorySink struct {
	data []byte
	err  error
}

func (m *memorySink) Write(_ context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data = data
	return nil
}

func (m *memorySink) Location() string { return "memory" }

func TestWrite_AllSinks(t *testing.T) {
	a, b := &memorySink{}, &memorySink{}
	require.NoError(t, Write(context.Background(), nil, a, b))
	assert.JSONEq(t, `[]`, string(a.data))
	assert.Equal(t, a.data, b.data)
}

func TestWrite_StopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	failing, after := &memorySink{err: boom}, &memorySink{}

	err := Write(context.Background(), nil, failing, after)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, after.data)
}
