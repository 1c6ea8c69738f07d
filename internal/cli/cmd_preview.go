package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/collector/preview"
)

var (
	previewLimit int
	previewShow  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <channel>",
	Short: "Print the newest posts of a public channel from its web preview",
	Long: `Scrapes t.me/s/<channel> with the same browser settings the preview
source uses and prints what it sees, without touching the database. Handy
for checking the page selectors after Telegram changes its markup.

Use --show to watch the browser work.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewLimit, "limit", "n", 10, "posts to print")
	previewCmd.Flags().BoolVar(&previewShow, "show", false, "run the browser with a visible window")
}

func runPreview(cmd *cobra.Command, args []string) error {
	handle, err := collector.NormalizeHandle(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	client := preview.New(!previewShow, logger)
	if err := client.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Warn("failed to stop browser", zap.Error(err))
		}
	}()

	ch, err := client.ResolveChannel(ctx, handle)
	if err != nil {
		return err
	}
	msgs, err := client.History(ctx, ch, collector.HistoryQuery{Limit: previewLimit})
	if err != nil {
		return err
	}

	printPreview(cmd.OutOrStdout(), ch, msgs)
	return nil
}

func printPreview(w io.Writer, ch *collector.RemoteChannel, msgs []collector.Message) {
	fmt.Fprintf(w, "%s (@%s), %d subscribers\n", ch.Title, ch.Username, ch.MemberCount)
	if ch.About != "" {
		fmt.Fprintln(w, ch.About)
	}
	fmt.Fprintln(w)

	for _, m := range msgs {
		var reactions []string
		for _, r := range m.Reactions {
			reactions = append(reactions, fmt.Sprintf("%s %d", collector.ReactionLabel(r), r.Count))
		}
		fmt.Fprintf(w, "#%d  %s  views %d", m.ID, m.Date.Format("2006-01-02 15:04"), m.Views)
		if len(reactions) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(reactions, ", "))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    %s\n", firstLine(m.Text, 120))
	}
}

func firstLine(s string, maxRunes int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > maxRunes {
		return string(r[:maxRunes-3]) + "..."
	}
	return s
}
