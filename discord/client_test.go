package discord

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"forum-sync/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-token", Options{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		RetryAttempts:     3,
		RetryDelay:        time.Millisecond,
		Timeout:           5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestCall_InjectsBotAuthorization(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"threads":[]}`))
	})

	body, err := c.Call(context.Background(), http.MethodGet, "/channels/1/threads/active")
	require.NoError(t, err)
	assert.JSONEq(t, `{"threads":[]}`, string(body))
	assert.Equal(t, "Bot test-token", auth)
}

func TestCall_NoContentYieldsNil(t *testing.T) {
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.JoinThread(context.Background(), "42"))
	assert.Equal(t, http.MethodPut, method)

	body, err := c.Call(context.Background(), http.MethodPut, "/channels/42/thread-members/@me")
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Message","code":10008}`))
	})

	_, err := c.Message(context.Background(), "1", "2")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Body, "Unknown Message")
	assert.True(t, IsNotFound(err))
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`oops`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	msgs, err := c.Messages(context.Background(), "1", 100)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCall_RateLimitRetriedThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.01,"global":false}`))
	})

	_, err := c.Call(context.Background(), http.MethodGet, "/channels/1/messages?limit=100")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestActiveThreads_Decodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/10/threads/active", r.URL.Path)
		_, _ = w.Write([]byte(`{"threads":[
			{"id":"100","name":"first","guild_id":"7","parent_id":"10","message_id":"555",
			 "thread_metadata":{"archived":false,"archive_timestamp":"2024-03-01T10:00:00.000000+00:00","create_timestamp":"2024-02-28T09:00:00.000000+00:00"}},
			{"id":"175928847299117063","name":"second","guild_id":"7","parent_id":"10"}
		]}`))
	})

	threads, err := c.ActiveThreads(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, threads, 2)

	first := threads[0]
	assert.Equal(t, "100", first.ID)
	assert.Equal(t, "first", first.Name)
	assert.Equal(t, "7", first.GuildID)
	assert.Equal(t, "555", first.StarterMessageID)
	assert.Equal(t, "2024-03-01T10:00:00.000000+00:00", first.ArchiveCursor)
	assert.Equal(t, models.SourceActive, first.Source)
	assert.Equal(t, time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC), first.CreatedAt.UTC())

	// Without an explicit creation time the snowflake timestamp is used.
	second := threads[1]
	assert.Empty(t, second.StarterMessageID)
	assert.Equal(t, 2016, second.CreatedAt.UTC().Year())
}

func TestActiveThreads_FallsBackToGuildListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels/10/threads/active":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404: Not Found","code":0}`))
		case "/channels/10":
			_, _ = w.Write([]byte(`{"id":"10","guild_id":"7","type":15}`))
		case "/guilds/7/threads/active":
			_, _ = w.Write([]byte(`{"threads":[
				{"id":"1","name":"mine","guild_id":"7","parent_id":"10"},
				{"id":"2","name":"other","guild_id":"7","parent_id":"11"}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	threads, err := c.ActiveThreads(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "1", threads[0].ID)
}

func TestArchivedThreads_QueryAndHasMore(t *testing.T) {
	var limit, before string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/10/threads/archived/public", r.URL.Path)
		limit = r.URL.Query().Get("limit")
		before = r.URL.Query().Get("before")
		_, _ = w.Write([]byte(`{"threads":[{"id":"1","name":"a","parent_id":"10",
			"thread_metadata":{"archive_timestamp":"2024-01-01T00:00:00+00:00"}}],"has_more":true}`))
	})

	page, err := c.ArchivedThreads(context.Background(), "10", "2024-02-01T00:00:00+00:00", 50)
	require.NoError(t, err)
	assert.Equal(t, "50", limit)
	assert.Equal(t, "2024-02-01T00:00:00+00:00", before)
	assert.True(t, page.HasMore)
	require.Len(t, page.Threads, 1)
	assert.Equal(t, models.SourceArchived, page.Threads[0].Source)
	assert.Equal(t, "2024-01-01T00:00:00+00:00", page.Threads[0].ArchiveCursor)
}

func TestMessage_DecodesEmbedsAndAttachments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":"2","channel_id":"1","content":"hello",
			"timestamp":"2024-05-06T07:08:09.123000+00:00",
			"author":{"id":"9","username":"walter","discriminator":"0"},
			"attachments":[{"id":"a","url":"https://cdn.example/a.png","filename":"a.png"}],
			"embeds":[{"title":"T","description":"D",
				"fields":[{"name":"k","value":"v"}],
				"image":{"url":"https://cdn.example/i.png"},
				"thumbnail":{"url":"https://cdn.example/t.png"}}]
		}`))
	})

	msg, err := c.Message(context.Background(), "1", "2")
	require.NoError(t, err)

	assert.Equal(t, "2", msg.ID)
	assert.Equal(t, "hello", msg.Content)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "walter", msg.Author.Username)
	assert.Equal(t, "0", msg.Author.Discriminator)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC), msg.Timestamp.UTC())
	assert.Equal(t, []models.Attachment{{URL: "https://cdn.example/a.png"}}, msg.Attachments)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, models.Embed{
		Title:        "T",
		Description:  "D",
		Fields:       []models.EmbedField{{Name: "k", Value: "v"}},
		ImageURL:     "https://cdn.example/i.png",
		ThumbnailURL: "https://cdn.example/t.png",
	}, msg.Embeds[0])
}

func TestCall_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, http.MethodGet, "/channels/1/messages?limit=1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestCall_BadGatewayIsAPIError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	})

	_, err := c.Messages(context.Background(), "1", 100)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Body)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_RateLimitWithHTMLBody(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<html>cloudflare</html>`))
	})

	_, err := c.Call(context.Background(), http.MethodGet, "/channels/1/messages?limit=100")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, http.StatusTooManyRequests, StatusOf(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "cloudflare")
	assert.InDelta(t, float64(10*time.Millisecond), float64(apiErr.RetryAfter), float64(time.Microsecond))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_RateLimitCarriesRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.02,"global":false}`))
	})

	_, err := c.Call(context.Background(), http.MethodGet, "/channels/1/messages?limit=1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.InDelta(t, float64(20*time.Millisecond), float64(apiErr.RetryAfter), float64(time.Microsecond))
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestActiveThreads_SkipsUndecodableThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"threads":[
			{"id":"1","name":"good","parent_id":"10"},
			{"id":{"broken":true},"name":"bad","parent_id":"10"},
			{"id":"3","name":"also good","parent_id":"10"}
		]}`))
	})

	threads, err := c.ActiveThreads(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "1", threads[0].ID)
	assert.Equal(t, "3", threads[1].ID)
}
