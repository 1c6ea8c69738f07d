package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func setupTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, err := New(filepath.Join(t.TempDir(), "test.db"), WithClock(clock.now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func seedChannel(t *testing.T, s *Store) *types.Channel {
	t.Helper()
	c := &types.Channel{TelegramID: 1001, Username: "news", Title: "News"}
	_, err := s.UpsertChannel(context.Background(), c)
	require.NoError(t, err)
	return c
}

func seedPost(t *testing.T, s *Store, channelID, tgID int64) *types.Post {
	t.Helper()
	p := &types.Post{
		ChannelID:  channelID,
		TelegramID: tgID,
		Content:    "hello",
		PostedAt:   time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC),
	}
	_, err := s.UpsertPost(context.Background(), p)
	require.NoError(t, err)
	return p
}

func TestUpsertChannelMergesByExternalID(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	first := &types.Channel{TelegramID: 42, Username: "news", Title: "Old", MemberCount: 10}
	id1, err := s.UpsertChannel(ctx, first)
	require.NoError(t, err)

	second := &types.Channel{TelegramID: 42, Username: "news", Title: "New", Description: "about", MemberCount: 20}
	id2, err := s.UpsertChannel(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := s.ChannelByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "about", got.Description)
	assert.Equal(t, 20, got.MemberCount)

	byName, err := s.ChannelByUsername(ctx, "@NEWS")
	require.NoError(t, err)
	assert.Equal(t, id1, byName.ID)

	list, err := s.ListChannels(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestChannelNotFound(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.ChannelByID(context.Background(), 99)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = s.ChannelByUsername(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpsertPostRefreshesCounters(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)

	p := seedPost(t, s, c.ID, 7)
	p2 := &types.Post{ChannelID: c.ID, TelegramID: 7, Content: "edited", PostedAt: p.PostedAt, Views: 100, Forwards: 3}
	id, err := s.UpsertPost(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	got, err := s.PostByExternalID(ctx, c.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.Equal(t, 100, got.Views)
	assert.Equal(t, 3, got.Forwards)
	assert.True(t, got.PostedAt.Equal(p.PostedAt))

	_, err = s.PostByExternalID(ctx, c.ID, 8)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPostsByChannelNewestFirst(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)

	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		_, err := s.UpsertPost(ctx, &types.Post{
			ChannelID: c.ID, TelegramID: int64(i), Content: "p", PostedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	posts, err := s.PostsByChannel(ctx, c.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(3), posts[0].TelegramID)
	assert.Equal(t, int64(2), posts[1].TelegramID)
}

func TestCommentsAndUsers(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)
	p := seedPost(t, s, c.ID, 1)

	u := &types.User{TelegramID: 500, Username: "ann"}
	uid, err := s.UpsertUser(ctx, u)
	require.NoError(t, err)

	at := time.Date(2024, 4, 30, 11, 0, 0, 0, time.UTC)
	_, err = s.UpsertComment(ctx, &types.Comment{PostID: p.ID, UserID: &uid, TelegramID: 2, Content: "second", CommentedAt: at.Add(time.Minute)})
	require.NoError(t, err)
	_, err = s.UpsertComment(ctx, &types.Comment{PostID: p.ID, TelegramID: 1, Content: "first", CommentedAt: at})
	require.NoError(t, err)
	// same external id merges
	_, err = s.UpsertComment(ctx, &types.Comment{PostID: p.ID, TelegramID: 1, Content: "first edited", CommentedAt: at})
	require.NoError(t, err)

	comments, err := s.CommentsByPost(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first edited", comments[0].Content)
	assert.Nil(t, comments[0].UserID)
	require.NotNil(t, comments[1].UserID)
	assert.Equal(t, uid, *comments[1].UserID)

	n, err := s.CountComments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := s.CommentsPage(ctx, p.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, comments[1].ID, page[0].ID)

	got, err := s.UserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "ann", got.Username)
}

func TestInsertReactionRequiresExactlyOneTarget(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)
	p := seedPost(t, s, c.ID, 1)

	_, err := s.InsertReaction(ctx, &types.Reaction{Label: "👍", Count: 1})
	assert.ErrorIs(t, err, types.ErrValidation)

	cid, err := s.UpsertComment(ctx, &types.Comment{PostID: p.ID, TelegramID: 9, Content: "c", CommentedAt: time.Now()})
	require.NoError(t, err)
	_, err = s.InsertReaction(ctx, &types.Reaction{PostID: &p.ID, CommentID: &cid, Label: "👍", Count: 1})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = s.InsertReaction(ctx, &types.Reaction{PostID: &p.ID, Label: "👍", Count: 5})
	require.NoError(t, err)
	_, err = s.InsertReaction(ctx, &types.Reaction{PostID: &p.ID, Label: "👍", Count: 7})
	require.NoError(t, err)
	_, err = s.InsertReaction(ctx, &types.Reaction{CommentID: &cid, Label: "custom_55", Count: 1})
	require.NoError(t, err)

	postReactions, err := s.ReactionsByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, postReactions, 2, "reaction snapshots are append-only")

	commentReactions, err := s.ReactionsByComment(ctx, cid)
	require.NoError(t, err)
	require.Len(t, commentReactions, 1)
	assert.Equal(t, "custom_55", commentReactions[0].Label)
}

func TestLatestSnapshot(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)
	p := seedPost(t, s, c.ID, 1)

	for _, r := range []types.Reaction{
		{PostID: &p.ID, Label: "👍", Count: 5},
		{PostID: &p.ID, Label: "❤️", Count: 2},
	} {
		_, err := s.InsertReaction(ctx, &r)
		require.NoError(t, err)
	}
	clock.t = clock.t.Add(time.Hour)
	_, err := s.InsertReaction(ctx, &types.Reaction{PostID: &p.ID, Label: "👍", Count: 9})
	require.NoError(t, err)

	all, err := s.ReactionsByPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	latest := LatestSnapshot(all)
	require.Len(t, latest, 1)
	assert.Equal(t, "👍", latest[0].Label)
	assert.Equal(t, 9, latest[0].Count)

	assert.Nil(t, LatestSnapshot(nil))
}

func TestLatestAnalysisBreaksTiesByInsertOrder(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)

	_, err := s.LatestAnalysis(ctx, AnalysisFilter{ChannelID: c.ID, Type: types.AnalysisChannelContent})
	assert.ErrorIs(t, err, types.ErrNotFound)

	for _, content := range []string{`{"n":1}`, `{"n":2}`} {
		_, err := s.InsertAnalysis(ctx, &types.Analysis{ChannelID: &c.ID, Type: types.AnalysisChannelContent, Content: content})
		require.NoError(t, err)
	}

	latest, err := s.LatestAnalysis(ctx, AnalysisFilter{ChannelID: c.ID, Type: types.AnalysisChannelContent})
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, latest.Content)

	clock.t = clock.t.Add(-time.Hour)
	_, err = s.InsertAnalysis(ctx, &types.Analysis{ChannelID: &c.ID, Type: types.AnalysisChannelContent, Content: `{"n":0}`})
	require.NoError(t, err)

	latest, err = s.LatestAnalysis(ctx, AnalysisFilter{ChannelID: c.ID, Type: types.AnalysisChannelContent})
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, latest.Content)

	_, err = s.InsertAnalysis(ctx, &types.Analysis{Type: types.AnalysisChannelContent, Content: `{}`})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListAnalysesFilters(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)
	p := seedPost(t, s, c.ID, 1)

	_, err := s.InsertAnalysis(ctx, &types.Analysis{ChannelID: &c.ID, Type: types.AnalysisChannelContent, Content: `{}`})
	require.NoError(t, err)
	_, err = s.InsertAnalysis(ctx, &types.Analysis{ChannelID: &c.ID, PostID: &p.ID, Type: types.AnalysisPostPerformance, Content: `{}`})
	require.NoError(t, err)

	all, err := s.ListAnalyses(ctx, AnalysisFilter{ChannelID: c.ID}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	postOnly, err := s.ListAnalyses(ctx, AnalysisFilter{PostID: p.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, postOnly, 1)
	assert.Equal(t, types.AnalysisPostPerformance, postOnly[0].Type)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(q *Queries) error {
		if _, err := q.UpsertPost(ctx, &types.Post{ChannelID: c.ID, TelegramID: 1, Content: "x", PostedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.PostByExternalID(ctx, c.ID, 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestContentPlansAndSurveys(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()
	c := seedChannel(t, s)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.InsertContentPlan(ctx, &types.ContentPlan{
			ChannelID: c.ID, Title: "t", PlannedDate: day.AddDate(0, 0, i), Content: `{}`,
		})
		require.NoError(t, err)
	}
	plans, err := s.ContentPlansByChannel(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, types.StatusDraft, plans[0].Status)
	assert.True(t, plans[0].PlannedDate.Equal(day))
	assert.True(t, plans[2].PlannedDate.Equal(day.AddDate(0, 0, 2)))

	clock.t = clock.t.Add(time.Minute)
	_, err = s.InsertSurvey(ctx, &types.Survey{ChannelID: c.ID, Title: "old", Questions: `[]`})
	require.NoError(t, err)
	clock.t = clock.t.Add(time.Minute)
	_, err = s.InsertSurvey(ctx, &types.Survey{ChannelID: c.ID, Title: "new", Questions: `[]`})
	require.NoError(t, err)

	surveys, err := s.SurveysByChannel(ctx, c.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	assert.Equal(t, "new", surveys[0].Title)
}

func TestSaveLLMExchange(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveLLMExchange(dir, LLMExchange{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Task:      "survey",
		Prompt:    "p",
		Response:  "r",
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task": "survey"`)
}
