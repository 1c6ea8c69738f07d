package store

import (
	"context"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

const postColumns = `id, channel_id, tg_id, content, posted_at, views, forwards, created_at, updated_at`

// UpsertPost inserts a post or refreshes its content and counters, keyed
// by (channel, external id). Returns the local id.
func (q *Queries) UpsertPost(ctx context.Context, p *types.Post) (int64, error) {
	now := q.now()
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO posts (channel_id, tg_id, content, posted_at, views, forwards, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, tg_id) DO UPDATE SET
			content = excluded.content,
			views = excluded.views,
			forwards = excluded.forwards,
			updated_at = excluded.updated_at
		RETURNING id
	`, p.ChannelID, p.TelegramID, p.Content, p.PostedAt.UTC(), p.Views, p.Forwards, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// PostByID returns a post by local id
func (q *Queries) PostByID(ctx context.Context, id int64) (*types.Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

// PostByExternalID returns a post by its message id within a channel
func (q *Queries) PostByExternalID(ctx context.Context, channelID, tgID int64) (*types.Post, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE channel_id = ? AND tg_id = ?`, channelID, tgID)
	p, err := scanPost(row)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

// PostsByChannel returns a channel's posts, newest first
func (q *Queries) PostsByChannel(ctx context.Context, channelID int64, limit, offset int) ([]types.Post, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE channel_id = ?
		ORDER BY posted_at DESC, tg_id DESC
		LIMIT ? OFFSET ?
	`, channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func scanPost(row scanner) (*types.Post, error) {
	var p types.Post
	err := row.Scan(&p.ID, &p.ChannelID, &p.TelegramID, &p.Content, &p.PostedAt,
		&p.Views, &p.Forwards, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
