package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

type fakeClient struct {
	channel  *RemoteChannel
	messages []Message // any order; served newest first
	replies  map[int64][]Message
	users    map[int64]*RemoteUser

	startErr     error
	historyCalls []HistoryQuery
	stopped      bool
}

func (f *fakeClient) Start(ctx context.Context) error { return f.startErr }

func (f *fakeClient) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeClient) ResolveChannel(ctx context.Context, handle string) (*RemoteChannel, error) {
	if f.channel == nil || f.channel.Username != handle {
		return nil, fmt.Errorf("channel %w", types.ErrNotFound)
	}
	return f.channel, nil
}

func (f *fakeClient) History(ctx context.Context, ch *RemoteChannel, q HistoryQuery) ([]Message, error) {
	f.historyCalls = append(f.historyCalls, q)
	sorted := append([]Message(nil), f.messages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	var out []Message
	for _, m := range sorted {
		if q.OffsetID != 0 && m.ID >= q.OffsetID {
			continue
		}
		out = append(out, m)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeClient) Message(ctx context.Context, ch *RemoteChannel, id int64) (*Message, error) {
	for _, m := range f.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %w", types.ErrNotFound)
}

func (f *fakeClient) Replies(ctx context.Context, ch *RemoteChannel, msgID int64, limit int) ([]Message, error) {
	r := f.replies[msgID]
	if len(r) > limit {
		r = r[:limit]
	}
	return r, nil
}

func (f *fakeClient) User(ctx context.Context, id int64) (*RemoteUser, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d %w", id, types.ErrNotFound)
	}
	return u, nil
}

var base = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func msg(id int64, text string) Message {
	return Message{ID: id, Date: base.Add(time.Duration(id) * time.Hour), Text: text, Views: int(id) * 10}
}

func setup(t *testing.T, client *fakeClient, opts ...Option) (*Collector, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := New(client, st, zap.NewNop(), opts...)
	require.NoError(t, c.Start(context.Background()))
	return c, st
}

func newsChannel() *RemoteChannel {
	return &RemoteChannel{ID: 777, Username: "news", Title: "News", About: "daily", MemberCount: 1200}
}

func TestOperationsRequireStartedSession(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()

	client := &fakeClient{channel: newsChannel()}
	c := New(client, st, zap.NewNop())
	ctx := context.Background()

	_, err = c.FetchChannelInfo(ctx, "news")
	assert.ErrorIs(t, err, types.ErrSessionNotStarted)
	_, err = c.FetchPosts(ctx, "news", 10, time.Time{})
	assert.ErrorIs(t, err, types.ErrSessionNotStarted)
	_, err = c.FetchComments(ctx, "news", 1, 10)
	assert.ErrorIs(t, err, types.ErrSessionNotStarted)

	// stopping a never-started session is a no-op
	require.NoError(t, c.Stop())
	assert.False(t, client.stopped)
}

func TestFetchChannelInfoMergesChannel(t *testing.T) {
	client := &fakeClient{channel: newsChannel()}
	c, st := setup(t, client)
	ctx := context.Background()

	ch, err := c.FetchChannelInfo(ctx, " @news ")
	require.NoError(t, err)
	assert.Equal(t, int64(777), ch.TelegramID)
	assert.Equal(t, "daily", ch.Description)
	assert.Equal(t, 1200, ch.MemberCount)

	client.channel.Title = "News Daily"
	again, err := c.FetchChannelInfo(ctx, "https://t.me/news")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, again.ID)

	stored, err := st.ChannelByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "News Daily", stored.Title)

	_, err = c.FetchChannelInfo(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = c.FetchChannelInfo(ctx, "  @ ")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFetchPostsPaginatesAndSkipsEmpty(t *testing.T) {
	client := &fakeClient{channel: newsChannel()}
	for id := int64(1); id <= 7; id++ {
		client.messages = append(client.messages, msg(id, fmt.Sprintf("post %d", id)))
	}
	client.messages[5].Text = "   " // id 6
	client.messages[6].Reactions = []RawReaction{
		{Emoticon: "👍", Count: 5},
		{DocumentID: 5368324170671202286, Count: 2},
		{Descriptor: "ReactionPaid", Count: 1},
	}

	c, st := setup(t, client, WithPageSize(3))
	ctx := context.Background()

	records, err := c.FetchPosts(ctx, "news", 5, time.Time{})
	require.NoError(t, err)

	// examined 7,6,5,4,3; 6 is empty
	require.Len(t, records, 4)
	assert.Equal(t, int64(7), records[0].Post.TelegramID)
	assert.Equal(t, int64(3), records[3].Post.TelegramID)

	require.Len(t, client.historyCalls, 2)
	assert.Equal(t, HistoryQuery{Limit: 3}, client.historyCalls[0])
	assert.Equal(t, HistoryQuery{Limit: 2, OffsetID: 5}, client.historyCalls[1])

	labels := []string{}
	for _, r := range records[0].Reactions {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"👍", "custom_5368324170671202286", "ReactionPaid"}, labels)

	ch, err := st.ChannelByUsername(ctx, "news")
	require.NoError(t, err)
	_, err = st.PostByExternalID(ctx, ch.ID, 6)
	assert.ErrorIs(t, err, types.ErrNotFound)

	stored, err := st.ReactionsByPost(ctx, records[0].Post.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Len(t, store.LatestSnapshot(stored), 3, "one message's reactions form one snapshot")
}

func TestFetchPostsIsIdempotent(t *testing.T) {
	client := &fakeClient{channel: newsChannel(), messages: []Message{msg(1, "a"), msg(2, "b")}}
	c, st := setup(t, client)
	ctx := context.Background()

	first, err := c.FetchPosts(ctx, "news", 10, time.Time{})
	require.NoError(t, err)
	client.messages[0].Views = 999
	second, err := c.FetchPosts(ctx, "news", 10, time.Time{})
	require.NoError(t, err)

	require.Len(t, second, 2)
	assert.Equal(t, first[1].Post.ID, second[1].Post.ID)

	posts, err := st.PostsByChannel(ctx, first[0].Post.ChannelID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	p, err := st.PostByExternalID(ctx, first[0].Post.ChannelID, 1)
	require.NoError(t, err)
	assert.Equal(t, 999, p.Views)
}

func TestFetchPostsStopsAtSince(t *testing.T) {
	client := &fakeClient{channel: newsChannel()}
	for id := int64(1); id <= 5; id++ {
		client.messages = append(client.messages, msg(id, "x"))
	}
	c, _ := setup(t, client)

	since := base.Add(3 * time.Hour) // message 3's date
	records, err := c.FetchPosts(context.Background(), "news", 100, since)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[2].Post.TelegramID)
}

func TestFetchPostsRejectsBadLimit(t *testing.T) {
	c, _ := setup(t, &fakeClient{channel: newsChannel()})
	_, err := c.FetchPosts(context.Background(), "news", 0, time.Time{})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestFetchCommentsResolvesAuthorsBestEffort(t *testing.T) {
	reply := func(id, from int64, text string) Message {
		m := msg(id, text)
		m.FromUserID = from
		return m
	}
	client := &fakeClient{
		channel:  newsChannel(),
		messages: []Message{msg(10, "parent")},
		replies: map[int64][]Message{
			10: {
				reply(101, 1, "known author"),
				reply(102, 2, "unknown author"),
				reply(103, 0, ""),
				{ID: 104, Date: base, Text: "liked", Reactions: []RawReaction{{Emoticon: "❤", Count: 3}}},
			},
		},
		users: map[int64]*RemoteUser{1: {ID: 1, Username: "ann", FirstName: "Ann"}},
	}
	c, st := setup(t, client)
	ctx := context.Background()

	records, err := c.FetchComments(ctx, "news", 10, 50)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.NotNil(t, records[0].Author)
	assert.Equal(t, "ann", records[0].Author.Username)
	require.NotNil(t, records[0].Comment.UserID)
	assert.Nil(t, records[1].Author)
	assert.Nil(t, records[1].Comment.UserID)
	require.Len(t, records[2].Reactions, 1)
	assert.Equal(t, "❤", records[2].Reactions[0].Label)

	// parent post was fetched and stored on demand
	parent, err := st.PostByID(ctx, records[0].Comment.PostID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), parent.TelegramID)

	comments, err := st.CommentsByPost(ctx, parent.ID, 0)
	require.NoError(t, err)
	assert.Len(t, comments, 3)

	// repeat collection merges instead of duplicating
	_, err = c.FetchComments(ctx, "news", 10, 50)
	require.NoError(t, err)
	comments, err = st.CommentsByPost(ctx, parent.ID, 0)
	require.NoError(t, err)
	assert.Len(t, comments, 3)
}

func TestFetchCommentsMissingParent(t *testing.T) {
	client := &fakeClient{channel: newsChannel(), messages: []Message{msg(5, "")}}
	c, _ := setup(t, client)

	_, err := c.FetchComments(context.Background(), "news", 99, 10)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = c.FetchComments(context.Background(), "news", 5, 10)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReactionLabel(t *testing.T) {
	tests := []struct {
		name string
		in   RawReaction
		want string
	}{
		{"emoji", RawReaction{Emoticon: "🔥", DocumentID: 1}, "🔥"},
		{"custom", RawReaction{DocumentID: 42}, "custom_42"},
		{"fallback", RawReaction{Descriptor: "reactionPaid"}, "reactionPaid"},
		{"blank descriptor", RawReaction{Descriptor: "  ", Count: 2}, "unknown"},
		{"nothing at all", RawReaction{Count: 3}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReactionLabel(tt.in))
		})
	}
}

func TestNormalizeHandle(t *testing.T) {
	for in, want := range map[string]string{
		"news":                 "news",
		"@news":                "news",
		" @news ":              "news",
		"https://t.me/news":    "news",
		"https://t.me/s/news/": "news",
	} {
		got, err := NormalizeHandle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
