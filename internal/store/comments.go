package store

import (
	"context"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// UpsertUser inserts a user or refreshes their names, keyed by external id
func (q *Queries) UpsertUser(ctx context.Context, u *types.User) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO users (tg_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tg_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name
		RETURNING id
	`, u.TelegramID, u.Username, u.FirstName, u.LastName).Scan(&id)
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// UserByID returns a user by local id
func (q *Queries) UserByID(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	err := q.db.QueryRowContext(ctx, `
		SELECT id, tg_id, username, first_name, last_name FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// UpsertComment inserts a comment or refreshes it, keyed by (post, external id)
func (q *Queries) UpsertComment(ctx context.Context, c *types.Comment) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, user_id, tg_id, content, commented_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(post_id, tg_id) DO UPDATE SET
			user_id = COALESCE(excluded.user_id, comments.user_id),
			content = excluded.content
		RETURNING id
	`, c.PostID, c.UserID, c.TelegramID, c.Content, c.CommentedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// CommentsByPost returns a post's comments in chronological order.
// limit <= 0 returns all of them.
func (q *Queries) CommentsByPost(ctx context.Context, postID int64, limit int) ([]types.Comment, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, tg_id, content, commented_at FROM comments
		WHERE post_id = ?
		ORDER BY commented_at, id
		LIMIT ?
	`, postID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.TelegramID, &c.Content, &c.CommentedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CountComments returns how many comments a post has
func (q *Queries) CountComments(ctx context.Context, postID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = ?`, postID).Scan(&n)
	return n, err
}

// CommentsPage returns a page of a post's comments, newest first
func (q *Queries) CommentsPage(ctx context.Context, postID int64, limit, offset int) ([]types.Comment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, tg_id, content, commented_at FROM comments
		WHERE post_id = ?
		ORDER BY commented_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, postID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.TelegramID, &c.Content, &c.CommentedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
