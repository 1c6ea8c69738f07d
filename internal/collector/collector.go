// Package collector pulls channel metadata, posts, comments and reactions
// from a messaging session and merges them into the store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

const defaultPageSize = 100

// PostRecord is a stored post together with the reactions recorded for it
type PostRecord struct {
	Post      types.Post
	Reactions []types.Reaction
}

// CommentRecord is a stored comment, its author when resolved, and its reactions
type CommentRecord struct {
	Comment   types.Comment
	Author    *types.User
	Reactions []types.Reaction
}

// Collector owns a messaging session and writes what it reads to the store
type Collector struct {
	client   Client
	store    *store.Store
	log      *zap.Logger
	pageSize int

	mu      sync.Mutex
	started bool
}

// Option configures a Collector
type Option func(*Collector)

// WithPageSize sets how many messages are requested per history call
func WithPageSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a collector over client
func New(client Client, st *store.Store, log *zap.Logger, opts ...Option) *Collector {
	c := &Collector{
		client:   client,
		store:    st,
		log:      log.Named("collector"),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the messaging session. Calling it twice is a no-op.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	c.started = true
	c.log.Info("session started")
	return nil
}

// Stop closes the session. Stopping a session that never started is a no-op.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if err := c.client.Stop(); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	c.log.Info("session stopped")
	return nil
}

// Started reports whether the session is open
func (c *Collector) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Collector) checkStarted() error {
	if !c.Started() {
		return types.ErrSessionNotStarted
	}
	return nil
}

// NormalizeHandle strips whitespace, a leading @ and a t.me URL prefix
func NormalizeHandle(handle string) (string, error) {
	h := strings.TrimSpace(handle)
	for _, prefix := range []string{"https://t.me/s/", "https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(strings.ToLower(h), prefix) {
			h = h[len(prefix):]
			break
		}
	}
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimRight(h, "/")
	if h == "" {
		return "", fmt.Errorf("%w: channel handle is empty", types.ErrValidation)
	}
	return h, nil
}

// resolve looks the channel up on the platform and merges it into the store
func (c *Collector) resolve(ctx context.Context, handle string) (*RemoteChannel, *types.Channel, error) {
	h, err := NormalizeHandle(handle)
	if err != nil {
		return nil, nil, err
	}

	rc, err := c.client.ResolveChannel(ctx, h)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve channel @%s: %w", h, err)
	}

	ch := &types.Channel{
		TelegramID:  rc.ID,
		Username:    rc.Username,
		Title:       rc.Title,
		Description: rc.About,
		MemberCount: rc.MemberCount,
	}
	if ch.Username == "" {
		ch.Username = h
	}
	if _, err := c.store.UpsertChannel(ctx, ch); err != nil {
		return nil, nil, fmt.Errorf("failed to save channel @%s: %w", h, err)
	}
	return rc, ch, nil
}

// FetchChannelInfo returns the channel's metadata and merges it into the store
func (c *Collector) FetchChannelInfo(ctx context.Context, handle string) (*types.Channel, error) {
	if err := c.checkStarted(); err != nil {
		return nil, err
	}
	_, ch, err := c.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// FetchPosts walks the channel history newest first, examining at most
// limit messages and stopping at the first one older than since (when
// set). Every non-empty message is stored with its reactions, each in
// its own transaction.
func (c *Collector) FetchPosts(ctx context.Context, handle string, limit int, since time.Time) ([]PostRecord, error) {
	if err := c.checkStarted(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", types.ErrValidation)
	}

	rc, ch, err := c.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	var (
		records  []PostRecord
		examined int
		offsetID int64
	)
	for examined < limit {
		page := min(c.pageSize, limit-examined)
		msgs, err := c.client.History(ctx, rc, HistoryQuery{Limit: page, OffsetID: offsetID})
		if err != nil {
			return records, fmt.Errorf("failed to fetch history of @%s: %w", ch.Username, err)
		}
		c.log.Debug("history page", zap.String("channel", ch.Username), zap.Int64("offset_id", offsetID), zap.Int("messages", len(msgs)))
		if len(msgs) == 0 {
			break
		}

		for _, m := range msgs {
			if examined >= limit {
				break
			}
			if !since.IsZero() && m.Date.Before(since) {
				return records, nil
			}
			examined++

			if isEmpty(m.Text) {
				c.log.Debug("skipping empty message", zap.Int64("message_id", m.ID))
				continue
			}

			rec, err := c.savePost(ctx, ch.ID, m)
			if err != nil {
				return records, err
			}
			records = append(records, *rec)
		}

		offsetID = msgs[len(msgs)-1].ID
		if len(msgs) < page {
			break
		}
	}

	c.log.Info("posts collected", zap.String("channel", ch.Username), zap.Int("examined", examined), zap.Int("stored", len(records)))
	return records, nil
}

func (c *Collector) savePost(ctx context.Context, channelID int64, m Message) (*PostRecord, error) {
	rec := &PostRecord{Post: types.Post{
		ChannelID:  channelID,
		TelegramID: m.ID,
		Content:    m.Text,
		PostedAt:   m.Date,
		Views:      m.Views,
		Forwards:   m.Forwards,
	}}

	err := c.store.InTx(ctx, func(q *store.Queries) error {
		postID, err := q.UpsertPost(ctx, &rec.Post)
		if err != nil {
			return fmt.Errorf("failed to save post %d: %w", m.ID, err)
		}
		rec.Reactions, err = insertReactions(ctx, q, m.Reactions, &postID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FetchComments stores up to limit replies to the post with external id
// postID. The parent post is fetched first if it is not stored yet.
// Authors are resolved best-effort: a failed lookup leaves the comment
// without an author.
func (c *Collector) FetchComments(ctx context.Context, handle string, postID int64, limit int) ([]CommentRecord, error) {
	if err := c.checkStarted(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", types.ErrValidation)
	}

	rc, ch, err := c.resolve(ctx, handle)
	if err != nil {
		return nil, err
	}

	parent, err := c.ensureParent(ctx, rc, ch, postID)
	if err != nil {
		return nil, err
	}

	replies, err := c.client.Replies(ctx, rc, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies to post %d: %w", postID, err)
	}

	records := make([]CommentRecord, 0, len(replies))
	for _, m := range replies {
		if isEmpty(m.Text) {
			continue
		}

		var author *types.User
		if m.FromUserID != 0 {
			ru, err := c.client.User(ctx, m.FromUserID)
			if err != nil {
				c.log.Warn("failed to resolve comment author",
					zap.Int64("comment_id", m.ID), zap.Int64("user_id", m.FromUserID), zap.Error(err))
			} else {
				author = &types.User{
					TelegramID: ru.ID,
					Username:   ru.Username,
					FirstName:  ru.FirstName,
					LastName:   ru.LastName,
				}
			}
		}

		rec := CommentRecord{
			Comment: types.Comment{
				PostID:      parent.ID,
				TelegramID:  m.ID,
				Content:     m.Text,
				CommentedAt: m.Date,
			},
			Author: author,
		}
		err := c.store.InTx(ctx, func(q *store.Queries) error {
			if author != nil {
				uid, err := q.UpsertUser(ctx, author)
				if err != nil {
					return fmt.Errorf("failed to save user %d: %w", author.TelegramID, err)
				}
				rec.Comment.UserID = &uid
			}
			commentID, err := q.UpsertComment(ctx, &rec.Comment)
			if err != nil {
				return fmt.Errorf("failed to save comment %d: %w", m.ID, err)
			}
			rec.Reactions, err = insertReactions(ctx, q, m.Reactions, nil, &commentID)
			return err
		})
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}

	c.log.Info("comments collected", zap.String("channel", ch.Username), zap.Int64("post", postID), zap.Int("stored", len(records)))
	return records, nil
}

func (c *Collector) ensureParent(ctx context.Context, rc *RemoteChannel, ch *types.Channel, postID int64) (*types.Post, error) {
	parent, err := c.store.PostByExternalID(ctx, ch.ID, postID)
	if err == nil {
		return parent, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	m, err := c.client.Message(ctx, rc, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post %d: %w", postID, err)
	}
	if m == nil || isEmpty(m.Text) {
		return nil, fmt.Errorf("post %d %w", postID, types.ErrNotFound)
	}

	rec, err := c.savePost(ctx, ch.ID, *m)
	if err != nil {
		return nil, err
	}
	return &rec.Post, nil
}

// insertReactions records one snapshot: every row shares the timestamp
// the store gives the first one.
func insertReactions(ctx context.Context, q *store.Queries, raw []RawReaction, postID, commentID *int64) ([]types.Reaction, error) {
	out := make([]types.Reaction, 0, len(raw))
	var at time.Time
	for _, rr := range raw {
		r := types.Reaction{
			PostID:      postID,
			CommentID:   commentID,
			Label:       ReactionLabel(rr),
			Count:       rr.Count,
			CollectedAt: at,
		}
		if _, err := q.InsertReaction(ctx, &r); err != nil {
			return nil, fmt.Errorf("failed to save reaction %q: %w", r.Label, err)
		}
		at = r.CollectedAt
		out = append(out, r)
	}
	return out, nil
}

// unknownReaction labels a reaction the platform did not describe at all
const unknownReaction = "unknown"

// ReactionLabel names a reaction: the emoji itself, custom_<id> for
// custom emoji, otherwise the platform's descriptor. The label is never empty.
func ReactionLabel(r RawReaction) string {
	switch {
	case r.Emoticon != "":
		return r.Emoticon
	case r.DocumentID != 0:
		return "custom_" + strconv.FormatInt(r.DocumentID, 10)
	case strings.TrimSpace(r.Descriptor) != "":
		return strings.TrimSpace(r.Descriptor)
	default:
		return unknownReaction
	}
}

func isEmpty(text string) bool {
	return strings.TrimSpace(text) == ""
}
