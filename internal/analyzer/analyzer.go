// Package analyzer builds prompts from stored channel data, sends them to
// a language model, repairs and validates the replies and persists the
// results.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/analyzer/providers"
	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

var (
	// ErrNoPosts is returned when a channel has nothing to analyze
	ErrNoPosts = errors.New("no posts found for analysis")

	// ErrPostNotFound is returned when the post to analyze does not exist
	ErrPostNotFound = fmt.Errorf("post %w", types.ErrNotFound)
)

// Options tunes an Analyzer. Zero values take defaults.
type Options struct {
	Model           string
	PostsLimit      int
	CommentsPerPost int
	ExchangeDir     string         // when set, every model exchange is written here
	Location        *time.Location // plan dates follow this zone; time.Local when nil
	Now             func() time.Time
}

// Analyzer handles LLM-based channel and post analysis
type Analyzer struct {
	provider providers.Provider
	store    *store.Store
	log      *zap.Logger

	model           string
	postsLimit      int
	commentsPerPost int
	exchangeDir     string
	location        *time.Location
	now             func() time.Time
}

// New creates a new analyzer
func New(provider providers.Provider, st *store.Store, log *zap.Logger, opts Options) *Analyzer {
	a := &Analyzer{
		provider:        provider,
		store:           st,
		log:             log.Named("analyzer"),
		model:           opts.Model,
		postsLimit:      opts.PostsLimit,
		commentsPerPost: opts.CommentsPerPost,
		exchangeDir:     opts.ExchangeDir,
		location:        opts.Location,
		now:             opts.Now,
	}
	if a.postsLimit <= 0 {
		a.postsLimit = 50
	}
	if a.commentsPerPost <= 0 {
		a.commentsPerPost = 10
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.location == nil {
		a.location = time.Local
	}
	return a
}

// guard turns a panic into an error and logs every failure leaving a
// public method
func (a *Analyzer) guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: unexpected failure: %v", op, r)
	}
	if *err != nil {
		a.log.Error(op+" failed", zap.Error(*err))
	}
}

// AnalyzeChannelContent analyzes the channel's latest posts and stores the
// result. A reply that is not JSON is kept as unparsed text rather than
// failing.
func (a *Analyzer) AnalyzeChannelContent(ctx context.Context, channelID int64) (report *ChannelReport, err error) {
	defer a.guard("channel content analysis", &err)
	return a.analyzeChannel(ctx, channelID)
}

func (a *Analyzer) analyzeChannel(ctx context.Context, channelID int64) (*ChannelReport, error) {
	posts, err := a.store.PostsByChannel(ctx, channelID, a.postsLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, ErrNoPosts
	}

	data := make([]promptPost, 0, len(posts))
	for _, p := range posts {
		comments, err := a.store.CommentsByPost(ctx, p.ID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load comments of post %d: %w", p.ID, err)
		}
		reactions, err := a.store.ReactionsByPost(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load reactions of post %d: %w", p.ID, err)
		}

		total := len(comments)
		pp := newPromptPost(p, comments[:min(total, a.commentsPerPost)], reactions, false)
		pp.CommentsCount = &total
		data = append(data, pp)
	}

	raw, err := a.complete(ctx, taskChannel, buildChannelPrompt(data))
	if err != nil {
		return nil, err
	}

	report, perr := parseChannelReport(raw)
	if perr != nil {
		a.log.Warn("channel analysis reply is not JSON, storing as text", zap.Int64("channel_id", channelID), zap.Error(perr))
		doc, err := json.Marshal(map[string]string{"analysis": raw})
		if err != nil {
			return nil, err
		}
		report = &ChannelReport{Unparsed: raw, Document: doc}
	}
	report.ChannelID = channelID

	if _, err := a.store.InsertAnalysis(ctx, &types.Analysis{
		ChannelID: &channelID,
		Type:      types.AnalysisChannelContent,
		Content:   string(report.Document),
	}); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	return report, nil
}

// channelDocument returns the latest stored channel analysis, running a
// fresh one when there is none
func (a *Analyzer) channelDocument(ctx context.Context, channelID int64) (string, error) {
	latest, err := a.store.LatestAnalysis(ctx, store.AnalysisFilter{
		ChannelID: channelID,
		Type:      types.AnalysisChannelContent,
	})
	if err == nil {
		return latest.Content, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return "", fmt.Errorf("failed to load channel analysis: %w", err)
	}

	a.log.Info("no channel analysis yet, running one", zap.Int64("channel_id", channelID))
	report, err := a.analyzeChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	return string(report.Document), nil
}

// GenerateContentPlan plans days of posts from the channel analysis and
// stores one record per day, dated from today.
func (a *Analyzer) GenerateContentPlan(ctx context.Context, channelID int64, days int) (plan *ContentPlan, err error) {
	defer a.guard("content plan generation", &err)

	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", types.ErrValidation)
	}

	analysis, err := a.channelDocument(ctx, channelID)
	if err != nil {
		return nil, err
	}

	raw, err := a.complete(ctx, taskPlan, buildPlanPrompt(analysis, days))
	if err != nil {
		return nil, err
	}

	planned, err := parseContentPlan(raw)
	if err != nil {
		return nil, err
	}

	// calendar day in the operator's zone, stored as that date's UTC midnight
	now := a.now().In(a.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := range planned {
		planned[i].Date = today.AddDate(0, 0, planned[i].Day-1)
	}

	err = a.store.InTx(ctx, func(q *store.Queries) error {
		for _, d := range planned {
			if _, err := q.InsertContentPlan(ctx, &types.ContentPlan{
				ChannelID:   channelID,
				Title:       string(d.Plan.Title),
				Description: string(d.Plan.Description),
				PlannedDate: d.Date,
				Content:     string(d.Raw),
				Status:      types.StatusDraft,
			}); err != nil {
				return fmt.Errorf("failed to save %s: %w", dayKey(d.Day), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ContentPlan{ChannelID: channelID, Days: planned}, nil
}

// AnalyzePostPerformance evaluates one stored post with all its comments
// and reactions
func (a *Analyzer) AnalyzePostPerformance(ctx context.Context, postID int64) (report *PostReport, err error) {
	defer a.guard("post performance analysis", &err)

	post, err := a.store.PostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	comments, err := a.store.CommentsByPost(ctx, post.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	reactions, err := a.store.ReactionsByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %w", err)
	}

	raw, err := a.complete(ctx, taskPost, buildPostPrompt(newPromptPost(*post, comments, reactions, true)))
	if err != nil {
		return nil, err
	}

	report, err = parsePostReport(raw)
	if err != nil {
		return nil, err
	}
	report.PostID = post.ID

	if _, err := a.store.InsertAnalysis(ctx, &types.Analysis{
		ChannelID: &post.ChannelID,
		PostID:    &post.ID,
		Type:      types.AnalysisPostPerformance,
		Content:   string(report.Document),
	}); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	return report, nil
}

// GenerateSurvey drafts an audience survey from the channel analysis
func (a *Analyzer) GenerateSurvey(ctx context.Context, channelID int64) (survey *SurveyDraft, err error) {
	defer a.guard("survey generation", &err)

	analysis, err := a.channelDocument(ctx, channelID)
	if err != nil {
		return nil, err
	}

	raw, err := a.complete(ctx, taskSurvey, buildSurveyPrompt(analysis))
	if err != nil {
		return nil, err
	}

	survey, questions, err := parseSurvey(raw)
	if err != nil {
		return nil, err
	}
	survey.ChannelID = channelID

	id, err := a.store.InsertSurvey(ctx, &types.Survey{
		ChannelID:   channelID,
		Title:       string(survey.Title),
		Description: string(survey.Description),
		Questions:   string(questions),
		Status:      types.StatusDraft,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save survey: %w", err)
	}
	survey.ID = id

	return survey, nil
}

// complete sends one prompt and, when configured, records the exchange
func (a *Analyzer) complete(ctx context.Context, t task, prompt string) (string, error) {
	req := providers.Request{
		Model:       a.model,
		System:      t.system,
		Prompt:      prompt,
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	}

	a.log.Debug("calling model",
		zap.String("task", t.name),
		zap.String("provider", a.provider.Name()),
		zap.String("model", a.model),
		zap.Float64("temperature", t.temperature))

	start := time.Now()
	resp, err := a.provider.Complete(ctx, req)
	a.log.Info("model call finished", zap.String("task", t.name), zap.Duration("took", time.Since(start)), zap.Bool("ok", err == nil))

	if a.exchangeDir != "" {
		exchange := store.LLMExchange{
			Timestamp: a.now(),
			Task:      t.name,
			Provider:  a.provider.Name(),
			Model:     a.model,
			System:    t.system,
			Prompt:    prompt,
			Response:  resp,
		}
		if err != nil {
			exchange.Error = err.Error()
		}
		if path, cacheErr := store.SaveLLMExchange(a.exchangeDir, exchange); cacheErr != nil {
			a.log.Warn("failed to cache LLM exchange", zap.Error(cacheErr))
		} else {
			a.log.Debug("cached LLM exchange", zap.String("path", path))
		}
	}

	if err != nil {
		return "", err
	}
	return resp, nil
}
