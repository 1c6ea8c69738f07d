package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/analyzer/providers"
	"github.com/ibeckermayer/tganalytics/internal/api"
	"github.com/ibeckermayer/tganalytics/internal/app"
	"github.com/ibeckermayer/tganalytics/internal/bot"
	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/collector/mtproto"
	"github.com/ibeckermayer/tganalytics/internal/collector/preview"
	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/conversation"
	"github.com/ibeckermayer/tganalytics/internal/report"
	"github.com/ibeckermayer/tganalytics/internal/scheduler"
	"github.com/ibeckermayer/tganalytics/internal/store"
)

// reportPosts is how many top posts the HTML report lists
const reportPosts = 10

// buildApp validates cfg for reqs and assembles the application. The
// collector is built when reqs name it or when its settings happen to be
// complete; the analyzer only when reqs name the LLM.
func buildApp(ctx context.Context, reqs ...config.Requirement) (*app.App, error) {
	if err := cfg.Validate(reqs...); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var col *collector.Collector
	if err := cfg.Validate(config.RequireCollector); err == nil {
		col = newCollector(st)
	} else {
		logger.Warn("collection disabled", zap.Error(err))
	}

	var an *analyzer.Analyzer
	if requires(reqs, config.RequireLLM) {
		an, err = newAnalyzer(ctx, st)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	return app.New(cfg, st, col, an, logger), nil
}

func requires(reqs []config.Requirement, r config.Requirement) bool {
	for _, req := range reqs {
		if req == r {
			return true
		}
	}
	return false
}

func closeApp(a *app.App) {
	if err := errors.Join(a.Close(), a.Store().Close()); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func newCollector(st *store.Store) *collector.Collector {
	var client collector.Client
	switch cfg.Telegram.Source {
	case config.SourcePreview:
		client = preview.New(cfg.Telegram.Headless, logger)
	default:
		client = mtproto.New(cfg.Telegram, logger)
	}
	return collector.New(client, st, logger, collector.WithPageSize(cfg.Collector.PageSize))
}

func newAnalyzer(ctx context.Context, st *store.Store) (*analyzer.Analyzer, error) {
	provider, err := providers.New(ctx, cfg.Analysis)
	if err != nil {
		return nil, err
	}

	opts := analyzer.Options{
		Model:           cfg.Analysis.Model,
		PostsLimit:      cfg.Analysis.PostsLimit,
		CommentsPerPost: cfg.Analysis.CommentsPerPost,
	}
	if cfg.Schedule.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Schedule.Timezone, err)
		}
		opts.Location = loc
	}
	if cfg.Analysis.CacheExchanges {
		dir, err := config.CacheDir()
		if err != nil {
			return nil, err
		}
		opts.ExchangeDir = filepath.Join(dir, "exchanges")
	}
	return analyzer.New(provider, st, logger, opts), nil
}

func newBot(a *app.App) (*bot.Bot, error) {
	controller := conversation.New(a.Analyzer(), a, logger, cfg.Analysis.PlanDays)
	return bot.New(cfg.Bot.Token, controller, logger)
}

func newReportBuilder(a *app.App) (*report.Builder, error) {
	return report.New(a.Store(), reportPosts)
}

func newServer(a *app.App) (*api.Server, error) {
	reports, err := newReportBuilder(a)
	if err != nil {
		return nil, err
	}
	return api.New(a, reports, cfg.API, logger), nil
}

func newScheduler(a *app.App) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(cfg.Schedule.Timezone, logger)
	if err != nil {
		return nil, err
	}
	if a.CanCollect() {
		if err := s.AddCollectJob(cfg.Schedule.CollectCron, a.CollectScheduled); err != nil {
			return nil, err
		}
	}
	if cfg.Schedule.AnalyzeAt != "" {
		if err := s.AddDailyJob("analyze", cfg.Schedule.AnalyzeAt, a.AnalyzeScheduled); err != nil {
			return nil, err
		}
	}
	return s, nil
}
