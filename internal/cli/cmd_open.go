package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tganalytics/internal/config"
)

var openCmd = &cobra.Command{
	Use:   "open <config|cache|report> [channel]",
	Short: "Open the config file, the cache directory or a channel report",
	Long: `Opens a local file with the system's default handler.

  config           the config file in the default editor
  cache            the cache directory (LLM exchanges, rendered reports)
  report <channel> renders the channel's HTML report into the cache
                   directory and opens it in the browser`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"config", "cache", "report"},
	RunE:      runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	var path string
	var err error

	switch args[0] {
	case "config":
		path = configPath
		if path == "" {
			path, err = config.ConfigPath()
		}
	case "cache":
		path, err = config.CacheDir()
		if err == nil {
			err = os.MkdirAll(path, 0700)
		}
	case "report":
		path, err = writeReport(cmd, args[1:])
	default:
		return fmt.Errorf("unknown target: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

// writeReport renders a channel report to <cache>/reports/<channel>.html
func writeReport(cmd *cobra.Command, args []string) (string, error) {
	handle, err := channelArg(args)
	if err != nil {
		return "", err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return "", err
	}
	defer closeApp(a)

	ch, err := a.ResolveChannel(ctx, handle)
	if err != nil {
		return "", err
	}
	builder, err := newReportBuilder(a)
	if err != nil {
		return "", err
	}
	rep, err := builder.Build(ctx, ch.ID)
	if err != nil {
		return "", err
	}

	dir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "reports")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	name := ch.Username
	if name == "" {
		name = strconv.FormatInt(ch.ID, 10)
	}
	path := filepath.Join(dir, name+".html")
	if err := os.WriteFile(path, rep.HTML, 0600); err != nil {
		return "", err
	}
	return path, nil
}
