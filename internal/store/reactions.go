package store

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// InsertReaction appends a reaction snapshot. Exactly one of PostID and
// CommentID must be set.
func (q *Queries) InsertReaction(ctx context.Context, r *types.Reaction) (int64, error) {
	if (r.PostID == nil) == (r.CommentID == nil) {
		return 0, fmt.Errorf("%w: reaction must target exactly one of post or comment", types.ErrValidation)
	}
	if r.CollectedAt.IsZero() {
		r.CollectedAt = q.now()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO reactions (post_id, comment_id, label, count, collected_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.PostID, r.CommentID, r.Label, r.Count, r.CollectedAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// LatestSnapshot keeps only the reactions recorded by the newest
// collection run. all must be ordered oldest first, as ReactionsByPost
// and ReactionsByComment return it.
func LatestSnapshot(all []types.Reaction) []types.Reaction {
	if len(all) == 0 {
		return nil
	}
	newest := all[len(all)-1].CollectedAt
	var out []types.Reaction
	for _, r := range all {
		if r.CollectedAt.Equal(newest) {
			out = append(out, r)
		}
	}
	return out
}

// ReactionsByPost returns every reaction snapshot recorded for a post
func (q *Queries) ReactionsByPost(ctx context.Context, postID int64) ([]types.Reaction, error) {
	return q.reactions(ctx, `post_id = ?`, postID)
}

// ReactionsByComment returns every reaction snapshot recorded for a comment
func (q *Queries) ReactionsByComment(ctx context.Context, commentID int64) ([]types.Reaction, error) {
	return q.reactions(ctx, `comment_id = ?`, commentID)
}

func (q *Queries) reactions(ctx context.Context, where string, arg int64) ([]types.Reaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, post_id, comment_id, label, count, collected_at FROM reactions
		WHERE `+where+`
		ORDER BY collected_at, id
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []types.Reaction
	for rows.Next() {
		var r types.Reaction
		if err := rows.Scan(&r.ID, &r.PostID, &r.CommentID, &r.Label, &r.Count, &r.CollectedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}
