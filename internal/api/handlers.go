package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

const maxPageSize = 500

func (s *Server) health(c *gin.Context) {
	status := "ok"
	if err := s.app.Store().Ping(c.Request.Context()); err != nil {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"collector":      s.app.CanCollect(),
		"scheduled_runs": s.app.LastRuns(),
	})
}

func (s *Server) listChannels(c *gin.Context) {
	limit, offset, ok := page(c, 100)
	if !ok {
		return
	}
	channels, err := s.app.Store().ListChannels(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": nonNil(channels), "total": len(channels)})
}

type addChannelRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) addChannel(c *gin.Context) {
	var req addChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: channel username is required", types.ErrValidation))
		return
	}
	ch, err := s.app.AddChannel(c.Request.Context(), req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "channel": ch})
}

func (s *Server) getChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch})
}

func (s *Server) channelPosts(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, offset, ok := page(c, 50)
	if !ok {
		return
	}
	posts, err := s.app.Store().PostsByChannel(c.Request.Context(), id, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": nonNil(posts), "total": len(posts)})
}

type collectRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) collectChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	var req collectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("%w: %w", types.ErrValidation, err))
			return
		}
	}
	if req.Limit < 0 {
		fail(c, fmt.Errorf("%w: limit must not be negative", types.ErrValidation))
		return
	}

	res, err := s.app.CollectChannel(c.Request.Context(), ch.Username, req.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Collected %d posts and %d comments from @%s", res.Posts, res.Comments, ch.Username),
		"result":  res,
	})
}

func (s *Server) analyzeChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	report, err := s.app.Analyzer().AnalyzeChannelContent(c.Request.Context(), ch.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": report.Document})
}

type planRequest struct {
	Days int `json:"days"`
}

func (s *Server) generateContentPlan(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}

	days := s.app.Config().Analysis.PlanDays
	var req planRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, fmt.Errorf("%w: %w", types.ErrValidation, err))
			return
		}
		if req.Days != 0 {
			days = req.Days
		}
	}
	if q := c.Query("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			fail(c, fmt.Errorf("%w: days must be a number", types.ErrValidation))
			return
		}
		days = n
	}

	plan, err := s.app.Analyzer().GenerateContentPlan(c.Request.Context(), ch.ID, days)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "content_plan": plan.Document()})
}

func (s *Server) contentPlans(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, offset, ok := page(c, 10)
	if !ok {
		return
	}
	plans, err := s.app.Store().ContentPlansByChannel(c.Request.Context(), id, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content_plans": nonNil(plans), "total": len(plans)})
}

func (s *Server) generateSurvey(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	survey, err := s.app.Analyzer().GenerateSurvey(c.Request.Context(), ch.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "survey_id": survey.ID, "survey": survey.Document})
}

func (s *Server) surveys(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, offset, ok := page(c, 10)
	if !ok {
		return
	}
	list, err := s.app.Store().SurveysByChannel(c.Request.Context(), id, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"surveys": nonNil(list), "total": len(list)})
}

func (s *Server) channelReport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := s.reports.Build(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", r.HTML)
}

func (s *Server) getPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	post, err := s.app.Store().PostByID(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	comments, err := s.app.Store().CommentsByPost(ctx, id, 0)
	if err != nil {
		fail(c, err)
		return
	}
	reactions, err := s.app.Store().ReactionsByPost(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "comments": nonNil(comments), "reactions": nonNil(reactions)})
}

func (s *Server) postComments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, offset, ok := page(c, 50)
	if !ok {
		return
	}
	comments, err := s.app.Store().CommentsPage(c.Request.Context(), id, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": nonNil(comments), "total": len(comments)})
}

func (s *Server) analyzePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	report, err := s.app.Analyzer().AnalyzePostPerformance(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": report.Document})
}

type analysisView struct {
	ID        int64              `json:"id"`
	ChannelID *int64             `json:"channel_id"`
	PostID    *int64             `json:"post_id"`
	Type      types.AnalysisType `json:"analysis_type"`
	Content   any                `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

func (s *Server) analyses(c *gin.Context) {
	var f store.AnalysisFilter
	var ok bool
	if f.ChannelID, ok = optionalID(c, "channel_id"); !ok {
		return
	}
	if f.PostID, ok = optionalID(c, "post_id"); !ok {
		return
	}
	f.Type = types.AnalysisType(c.Query("analysis_type"))

	limit, offset, ok := page(c, 10)
	if !ok {
		return
	}
	list, err := s.app.Store().ListAnalyses(c.Request.Context(), f, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	views := make([]analysisView, 0, len(list))
	for _, a := range list {
		v := analysisView{ID: a.ID, ChannelID: a.ChannelID, PostID: a.PostID, Type: a.Type, CreatedAt: a.CreatedAt}
		if json.Valid([]byte(a.Content)) {
			v.Content = json.RawMessage(a.Content)
		} else {
			v.Content = a.Content
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"analyses": views, "total": len(views)})
}

// channel loads the channel named by the :id path parameter
func (s *Server) channel(c *gin.Context) (*types.Channel, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}
	ch, err := s.app.Store().ChannelByID(c.Request.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		err = fmt.Errorf("channel with ID %d %w", id, types.ErrNotFound)
	}
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return ch, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, fmt.Errorf("%w: bad id %q", types.ErrValidation, c.Param("id")))
		return 0, false
	}
	return id, true
}

func optionalID(c *gin.Context, name string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		fail(c, fmt.Errorf("%w: bad %s %q", types.ErrValidation, name, v))
		return 0, false
	}
	return id, true
}

// page reads limit and offset query parameters
func page(c *gin.Context, defaultLimit int) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageSize {
			fail(c, fmt.Errorf("%w: limit must be between 1 and %d", types.ErrValidation, maxPageSize))
			return 0, 0, false
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, fmt.Errorf("%w: offset must not be negative", types.ErrValidation))
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// nonNil keeps empty lists as [] in JSON
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
