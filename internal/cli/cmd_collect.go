package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

var collectLimit int

var collectCmd = &cobra.Command{
	Use:   "collect [channel]",
	Short: "Collect a channel's info, posts, comments and reactions",
	Long: `Collects one channel into the database. The channel defaults to
telegram.default_channel (CHANNEL_USERNAME). Comments are fetched for the
newest collector.comment_posts posts.

Example:
  tganalytics collect @durov --limit 200`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().IntVarP(&collectLimit, "limit", "n", 0, "max posts to collect (default collector.posts_limit)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	handle, err := channelArg(args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireCollector)
	if err != nil {
		return err
	}
	defer closeApp(a)

	res, err := a.CollectChannel(ctx, handle, collectLimit)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Collected @%s (id %d): %d posts, %d comments\n",
		res.Channel.Username, res.Channel.ID, res.Posts, res.Comments)
	return nil
}

// channelArg returns the channel argument or the configured default
func channelArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Telegram.DefaultChannel != "" {
		return cfg.Telegram.DefaultChannel, nil
	}
	return "", fmt.Errorf("%w: no channel given and telegram.default_channel is empty", types.ErrValidation)
}
