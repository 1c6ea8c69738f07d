package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// AnalysisFilter selects analyses. Zero fields match anything.
type AnalysisFilter struct {
	ChannelID int64
	PostID    int64
	Type      types.AnalysisType
}

func (f AnalysisFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.ChannelID != 0 {
		conds = append(conds, "channel_id = ?")
		args = append(args, f.ChannelID)
	}
	if f.PostID != 0 {
		conds = append(conds, "post_id = ?")
		args = append(args, f.PostID)
	}
	if f.Type != "" {
		conds = append(conds, "analysis_type = ?")
		args = append(args, string(f.Type))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// InsertAnalysis appends an analysis record
func (q *Queries) InsertAnalysis(ctx context.Context, a *types.Analysis) (int64, error) {
	if a.ChannelID == nil && a.PostID == nil {
		return 0, fmt.Errorf("%w: analysis must belong to a channel or a post", types.ErrValidation)
	}
	a.CreatedAt = q.now()

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO analyses (channel_id, post_id, analysis_type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ChannelID, a.PostID, string(a.Type), a.Content, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// LatestAnalysis returns the most recent analysis matching f. Ties on
// created_at go to the later insert.
func (q *Queries) LatestAnalysis(ctx context.Context, f AnalysisFilter) (*types.Analysis, error) {
	list, err := q.ListAnalyses(ctx, f, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("analysis %w", types.ErrNotFound)
	}
	return &list[0], nil
}

// ListAnalyses returns analyses matching f, newest first
func (q *Queries) ListAnalyses(ctx context.Context, f AnalysisFilter, limit, offset int) ([]types.Analysis, error) {
	where, args := f.where()
	args = append(args, limit, offset)

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, channel_id, post_id, analysis_type, content, created_at FROM analyses
		`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []types.Analysis
	for rows.Next() {
		var a types.Analysis
		var kind string
		if err := rows.Scan(&a.ID, &a.ChannelID, &a.PostID, &kind, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = types.AnalysisType(kind)
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
