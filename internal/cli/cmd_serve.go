package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/tganalytics/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the REST API and the background scheduler",
	Long: `Runs every long-lived component in one process until interrupted.
The bot is skipped when bot.token is empty and the scheduler when
schedule.enabled is false.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run only the REST API",
	Args:  cobra.NoArgs,
	RunE:  runAPI,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireLLM)
	if err != nil {
		return err
	}
	defer closeApp(a)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Bot.Token == "" {
		logger.Warn("bot.token is empty, bot disabled")
	} else {
		b, err := newBot(a)
		if err != nil {
			return err
		}
		g.Go(func() error { return b.Run(ctx) })
	}

	srv, err := newServer(a)
	if err != nil {
		return err
	}
	g.Go(func() error { return srv.Run(ctx) })

	if cfg.Schedule.Enabled {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	logger.Info("tganalytics running", zap.Bool("collector", a.CanCollect()), zap.Bool("scheduler", cfg.Schedule.Enabled))
	return g.Wait()
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireBot, config.RequireLLM)
	if err != nil {
		return err
	}
	defer closeApp(a)

	b, err := newBot(a)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}

func runAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireLLM)
	if err != nil {
		return err
	}
	defer closeApp(a)

	srv, err := newServer(a)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
