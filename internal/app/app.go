// Package app wires the collector, store and analyzer into the runs the
// front adapters and the scheduler trigger.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// App holds the long-lived components of a process.
type App struct {
	cfg       *config.Config
	store     *store.Store
	collector *collector.Collector // nil when no messaging source is configured
	analyzer  *analyzer.Analyzer
	log       *zap.Logger

	mu      sync.RWMutex
	lastRun map[string]RunInfo
}

// RunInfo describes the last scheduled run of a job
type RunInfo struct {
	Job      string        `json:"job"`
	Finished time.Time     `json:"finished"`
	Took     time.Duration `json:"took"`
	Error    string        `json:"error,omitempty"`
}

// CollectResult summarizes one collection run
type CollectResult struct {
	Channel  *types.Channel `json:"channel"`
	Posts    int            `json:"posts"`
	Comments int            `json:"comments"`
}

// New creates a new App instance. col may be nil.
func New(cfg *config.Config, st *store.Store, col *collector.Collector, an *analyzer.Analyzer, log *zap.Logger) *App {
	return &App{
		cfg:       cfg,
		store:     st,
		collector: col,
		analyzer:  an,
		log:       log.Named("app"),
		lastRun:   make(map[string]RunInfo),
	}
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Store() *store.Store { return a.store }

func (a *App) Analyzer() *analyzer.Analyzer { return a.analyzer }

// CanCollect reports whether a messaging source is configured
func (a *App) CanCollect() bool {
	return a.collector != nil
}

// Close stops the messaging session
func (a *App) Close() error {
	if a.collector == nil {
		return nil
	}
	return a.collector.Stop()
}

// ResolveChannel maps a handle to a stored channel. A channel that was
// never collected is collected first when a messaging source is available.
func (a *App) ResolveChannel(ctx context.Context, handle string) (*types.Channel, error) {
	h, err := collector.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}

	ch, err := a.store.ChannelByUsername(ctx, h)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, types.ErrNotFound) || a.collector == nil {
		return nil, err
	}

	a.log.Info("channel not stored yet, collecting", zap.String("channel", h))
	res, err := a.CollectChannel(ctx, h, 0)
	if err != nil {
		return nil, err
	}
	return res.Channel, nil
}

// AddChannel fetches a channel's metadata and stores it
func (a *App) AddChannel(ctx context.Context, handle string) (*types.Channel, error) {
	if err := a.startCollector(ctx); err != nil {
		return nil, err
	}
	return a.collector.FetchChannelInfo(ctx, handle)
}

func (a *App) startCollector(ctx context.Context) error {
	if a.collector == nil {
		return fmt.Errorf("collection: %w", types.ErrUnsupported)
	}
	return a.collector.Start(ctx)
}

// CollectChannel runs a full collection of one channel: metadata, the
// latest posts, and comments of the newest posts. limit <= 0 uses the
// configured post limit.
func (a *App) CollectChannel(ctx context.Context, handle string, limit int) (*CollectResult, error) {
	if err := a.startCollector(ctx); err != nil {
		return nil, err
	}

	cc := a.cfg.Collector
	if limit <= 0 {
		limit = cc.PostsLimit
	}
	start := time.Now()

	ch, err := a.collector.FetchChannelInfo(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel info: %w", err)
	}
	a.log.Info("collecting channel", zap.String("channel", ch.Username), zap.String("title", ch.Title))

	posts, err := a.collector.FetchPosts(ctx, ch.Username, limit, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}

	res := &CollectResult{Channel: ch, Posts: len(posts)}
	if cc.CommentPosts <= 0 || len(posts) == 0 {
		return res, nil
	}

	var (
		mu       sync.Mutex
		comments int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cc.Concurrency, 1))
	for _, p := range posts[:min(cc.CommentPosts, len(posts))] {
		postID := p.Post.TelegramID
		g.Go(func() error {
			recs, err := a.collector.FetchComments(gctx, ch.Username, postID, cc.CommentsLimit)
			switch {
			case errors.Is(err, types.ErrUnsupported):
				return err
			case err != nil:
				a.log.Warn("failed to fetch comments", zap.Int64("post", postID), zap.Error(err))
				return nil
			}
			mu.Lock()
			comments += len(recs)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, types.ErrUnsupported) {
			return nil, err
		}
		a.log.Info("messaging source has no comments, skipping them", zap.String("channel", ch.Username))
	}
	res.Comments = comments

	a.log.Info("channel collected",
		zap.String("channel", ch.Username),
		zap.Int("posts", res.Posts),
		zap.Int("comments", res.Comments),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// CollectScheduled collects every configured channel, continuing past
// failures
func (a *App) CollectScheduled(ctx context.Context) error {
	return a.track("collect", func() error {
		var errs []error
		for _, h := range a.cfg.Schedule.Channels {
			if _, err := a.CollectChannel(ctx, h, 0); err != nil {
				errs = append(errs, fmt.Errorf("@%s: %w", h, err))
			}
		}
		return errors.Join(errs...)
	})
}

// AnalyzeScheduled runs a channel content analysis for every configured
// channel that is already stored
func (a *App) AnalyzeScheduled(ctx context.Context) error {
	return a.track("analyze", func() error {
		var errs []error
		for _, h := range a.cfg.Schedule.Channels {
			ch, err := a.ResolveChannel(ctx, h)
			if err != nil {
				errs = append(errs, fmt.Errorf("@%s: %w", h, err))
				continue
			}
			if _, err := a.analyzer.AnalyzeChannelContent(ctx, ch.ID); err != nil {
				errs = append(errs, fmt.Errorf("@%s: %w", h, err))
			}
		}
		return errors.Join(errs...)
	})
}

func (a *App) track(job string, fn func() error) error {
	start := time.Now()
	err := fn()

	info := RunInfo{Job: job, Finished: time.Now(), Took: time.Since(start)}
	if err != nil {
		info.Error = err.Error()
	}
	a.mu.Lock()
	a.lastRun[job] = info
	a.mu.Unlock()
	return err
}

// LastRuns returns the outcome of the latest scheduled runs
func (a *App) LastRuns() []RunInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]RunInfo, 0, len(a.lastRun))
	for _, job := range []string{"collect", "analyze"} {
		if info, ok := a.lastRun[job]; ok {
			out = append(out, info)
		}
	}
	return out
}
