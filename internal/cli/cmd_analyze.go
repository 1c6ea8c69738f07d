package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/app"
	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

var planDays int

var analyzeCmd = &cobra.Command{
	Use:   "analyze [channel]",
	Short: "Analyse a channel's recent content with the LLM",
	Long: `Runs the channel content analysis over the latest stored posts and
prints the stored JSON document. A channel that was never collected is
collected first when a messaging source is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var planCmd = &cobra.Command{
	Use:   "plan [channel]",
	Short: "Generate a content plan for a channel",
	Long: `Generates a day-by-day content plan. The latest channel analysis is
reused; when there is none it is run first.

Example:
  tganalytics plan @durov --days 14`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

var postCmd = &cobra.Command{
	Use:   "post <id>",
	Short: "Analyse the performance of one stored post",
	Args:  cobra.ExactArgs(1),
	RunE:  runPost,
}

var surveyCmd = &cobra.Command{
	Use:   "survey [channel]",
	Short: "Draft an audience survey for a channel",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSurvey,
}

func init() {
	planCmd.Flags().IntVarP(&planDays, "days", "d", 0, "plan length in days (default analysis.plan_days)")
}

// withChannel resolves the channel argument and hands it to fn. Analyzer
// failures are printed as the error payload before being returned.
func withChannel(cmd *cobra.Command, args []string, fn func(ctx context.Context, a *app.App, ch *types.Channel) (any, error)) error {
	handle, err := channelArg(args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireLLM)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ch, err := a.ResolveChannel(ctx, handle)
	if err != nil {
		return err
	}

	doc, err := fn(ctx, a, ch)
	if err != nil {
		return printFailure(cmd.OutOrStdout(), err)
	}
	return printJSON(cmd.OutOrStdout(), doc)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withChannel(cmd, args, func(ctx context.Context, a *app.App, ch *types.Channel) (any, error) {
		report, err := a.Analyzer().AnalyzeChannelContent(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		return report.Document, nil
	})
}

func runPlan(cmd *cobra.Command, args []string) error {
	days := planDays
	if days <= 0 {
		days = cfg.Analysis.PlanDays
	}
	if days <= 0 {
		return fmt.Errorf("%w: --days must be positive", types.ErrValidation)
	}

	return withChannel(cmd, args, func(ctx context.Context, a *app.App, ch *types.Channel) (any, error) {
		plan, err := a.Analyzer().GenerateContentPlan(ctx, ch.ID, days)
		if err != nil {
			return nil, err
		}
		return plan.Days, nil
	})
}

func runSurvey(cmd *cobra.Command, args []string) error {
	return withChannel(cmd, args, func(ctx context.Context, a *app.App, ch *types.Channel) (any, error) {
		survey, err := a.Analyzer().GenerateSurvey(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		return survey.Document, nil
	})
}

func runPost(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: post id must be a positive number", types.ErrValidation)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.RequireLLM)
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := a.Analyzer().AnalyzePostPerformance(ctx, id)
	if err != nil {
		return printFailure(cmd.OutOrStdout(), err)
	}
	return printJSON(cmd.OutOrStdout(), report.Document)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFailure writes the analyzer's error payload and returns err so the
// process exits non-zero
func printFailure(w io.Writer, err error) error {
	if perr := printJSON(w, analyzer.Failure(err)); perr != nil {
		return perr
	}
	return err
}
