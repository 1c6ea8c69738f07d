package store

import (
	"context"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// InsertContentPlan stores one planned day
func (q *Queries) InsertContentPlan(ctx context.Context, p *types.ContentPlan) (int64, error) {
	if p.Status == "" {
		p.Status = types.StatusDraft
	}
	p.CreatedAt = q.now()

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO content_plans (channel_id, title, description, planned_date, content, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ChannelID, p.Title, p.Description, p.PlannedDate.UTC(), p.Content, p.Status, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// ContentPlansByChannel returns a channel's planned days, latest plan first
func (q *Queries) ContentPlansByChannel(ctx context.Context, channelID int64, limit, offset int) ([]types.ContentPlan, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, channel_id, title, description, planned_date, content, status, created_at
		FROM content_plans
		WHERE channel_id = ?
		ORDER BY created_at DESC, planned_date, id
		LIMIT ? OFFSET ?
	`, channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []types.ContentPlan
	for rows.Next() {
		var p types.ContentPlan
		err := rows.Scan(&p.ID, &p.ChannelID, &p.Title, &p.Description, &p.PlannedDate,
			&p.Content, &p.Status, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// InsertSurvey stores a generated survey
func (q *Queries) InsertSurvey(ctx context.Context, s *types.Survey) (int64, error) {
	if s.Status == "" {
		s.Status = types.StatusDraft
	}
	s.CreatedAt = q.now()

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO surveys (channel_id, title, description, questions, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ChannelID, s.Title, s.Description, s.Questions, s.Status, s.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

// SurveysByChannel returns a channel's surveys, newest first
func (q *Queries) SurveysByChannel(ctx context.Context, channelID int64, limit, offset int) ([]types.Survey, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, channel_id, title, description, questions, status, created_at
		FROM surveys
		WHERE channel_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var surveys []types.Survey
	for rows.Next() {
		var s types.Survey
		if err := rows.Scan(&s.ID, &s.ChannelID, &s.Title, &s.Description, &s.Questions, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		surveys = append(surveys, s)
	}
	return surveys, rows.Err()
}
