// Package api serves stored channel data and the analysis operations
// over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/app"
	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/report"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// Server is the REST front end
type Server struct {
	app     *app.App
	reports *report.Builder
	cfg     config.APIConfig
	log     *zap.Logger
	engine  *gin.Engine
}

// New builds the router. Routes live under cfg.Prefix.
func New(a *app.App, reports *report.Builder, cfg config.APIConfig, log *zap.Logger) *Server {
	s := &Server{
		app:     a,
		reports: reports,
		cfg:     cfg,
		log:     log.Named("api"),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes(s.engine.Group(cfg.Prefix))
	return s
}

func (s *Server) routes(r *gin.RouterGroup) {
	r.GET("/health", s.health)

	r.GET("/channels", s.listChannels)
	r.POST("/channels", s.addChannel)
	r.GET("/channels/:id", s.getChannel)
	r.GET("/channels/:id/posts", s.channelPosts)
	r.POST("/channels/:id/collect", s.collectChannel)
	r.POST("/channels/:id/analyze", s.analyzeChannel)
	r.POST("/channels/:id/content-plan", s.generateContentPlan)
	r.GET("/channels/:id/content-plans", s.contentPlans)
	r.POST("/channels/:id/survey", s.generateSurvey)
	r.GET("/channels/:id/surveys", s.surveys)
	r.GET("/channels/:id/report", s.channelReport)

	r.GET("/posts/:id", s.getPost)
	r.GET("/posts/:id/comments", s.postComments)
	r.POST("/posts/:id/analyze", s.analyzePost)

	r.GET("/analyses", s.analyses)
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr), zap.String("prefix", s.cfg.Prefix))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.log.Error("request failed", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// fail aborts with the error payload
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), analyzer.Failure(err))
}
