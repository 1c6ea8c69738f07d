package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

const channelColumns = `id, tg_id, username, title, description, member_count, created_at, updated_at`

// UpsertChannel inserts a channel or merges it by external id and returns
// the local id.
func (q *Queries) UpsertChannel(ctx context.Context, c *types.Channel) (int64, error) {
	now := q.now()
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO channels (tg_id, username, title, description, member_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tg_id) DO UPDATE SET
			username = excluded.username,
			title = excluded.title,
			description = excluded.description,
			member_count = excluded.member_count,
			updated_at = excluded.updated_at
		RETURNING id
	`, c.TelegramID, c.Username, c.Title, c.Description, c.MemberCount, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// ChannelByID returns a channel by local id
func (q *Queries) ChannelByID(ctx context.Context, id int64) (*types.Channel, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	c, err := scanChannel(row)
	if err != nil {
		return nil, notFound(err, "channel")
	}
	return c, nil
}

// ChannelByUsername returns a channel by handle, ignoring case and a leading @
func (q *Queries) ChannelByUsername(ctx context.Context, username string) (*types.Channel, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	row := q.db.QueryRowContext(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE username = ? COLLATE NOCASE
		ORDER BY updated_at DESC
		LIMIT 1
	`, username)
	c, err := scanChannel(row)
	if err != nil {
		return nil, notFound(err, "channel")
	}
	return c, nil
}

// ListChannels returns channels ordered by title
func (q *Queries) ListChannels(ctx context.Context, limit, offset int) ([]types.Channel, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+channelColumns+` FROM channels
		ORDER BY title, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []types.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChannel(row scanner) (*types.Channel, error) {
	var c types.Channel
	err := row.Scan(&c.ID, &c.TelegramID, &c.Username, &c.Title, &c.Description,
		&c.MemberCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ scanner = (*sql.Row)(nil)
