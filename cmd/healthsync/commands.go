package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/trend"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/spf13/cobra"
)

var (
	syncFrom   string
	syncTo     string
	trendSince string
	jsonOutput bool
)

const defaultTrendDays = 90

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one device sync and regenerate annotations for changed dates",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print the weight trend",
	Args:  cobra.NoArgs,
	RunE:  runTrend,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <date>",
	Short: "Generate the annotation for one date and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnnotate,
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "First date to sync (default: today minus lookback)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "Last date to sync (default: today)")
	trendCmd.Flags().StringVar(&trendSince, "since", "", "First date of the weight series (default: 90 days ago)")

	for _, c := range []*cobra.Command{syncCmd, trendCmd, annotateCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	}
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

// parseDateFlag parses a YYYY-MM-DD flag value, using def when empty.
func parseDateFlag(name, value string, def types.Date) (types.Date, error) {
	if value == "" {
		return def, nil
	}
	d, err := types.ParseDate(value)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	to, err := parseDateFlag("to", syncTo, a.today())
	if err != nil {
		return err
	}
	from, err := parseDateFlag("from", syncFrom, to.AddDays(-a.cfg.Sync.LookbackDays))
	if err != nil {
		return err
	}
	if to.Before(from) {
		return errors.New("--from must not be after --to")
	}

	report := a.engine.Sync(ctx, from, to)
	errs := a.cache.Batch(ctx, report.Changed, "device_sync")

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"run_id":              report.RunID,
			"from":                from,
			"to":                  to,
			"changed":             nonNilDates(report.Changed),
			"fetch_failures":      len(report.Failures),
			"annotation_failures": len(errs),
		})
	}

	fmt.Fprintf(out, "Synced %s to %s (run %s)\n", from, to, report.RunID)
	fmt.Fprintf(out, "Changed:             %d\n", len(report.Changed))
	for _, d := range report.Changed {
		fmt.Fprintf(out, "  %s\n", d)
	}
	fmt.Fprintf(out, "Fetch failures:      %d\n", len(report.Failures))
	fmt.Fprintf(out, "Annotation failures: %d\n", len(errs))
	return nil
}

func runTrend(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	today := a.today()
	since, err := parseDateFlag("since", trendSince, today.AddDays(-defaultTrendDays))
	if err != nil {
		return err
	}

	series, err := a.store.WeightSeries(ctx, since)
	if err != nil {
		return err
	}
	goal, err := a.store.GetGoal(ctx)
	if err != nil {
		return err
	}

	result := trend.Calculate(series, goal.TargetWeight, goal.WeeklyRate, today)
	out := cmd.OutOrStdout()
	if result == nil {
		if jsonOutput {
			return printJSON(out, nil)
		}
		fmt.Fprintf(out, "No weight samples since %s\n", since)
		return nil
	}
	if jsonOutput {
		return printJSON(out, result)
	}
	printTrend(out, result)
	return nil
}

func printTrend(out io.Writer, r *trend.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Samples:\t%d\n", r.SampleCount)
	fmt.Fprintf(tw, "7-day average:\t%.2f kg\n", r.Avg7d)
	if r.Avg14d != nil {
		fmt.Fprintf(tw, "14-day average:\t%.2f kg\n", *r.Avg14d)
	}
	fmt.Fprintf(tw, "Recent:\t%.2f kg\n", r.Recent)
	fmt.Fprintf(tw, "Direction:\t%s\n", r.Direction)
	fmt.Fprintf(tw, "Range:\t%.2f to %.2f kg\n", r.ConfidenceLow, r.ConfidenceHigh)
	fmt.Fprintf(tw, "To goal:\t%.2f kg\n", r.DeviationFromPlan)
	if r.ProjectedGoalDate != nil {
		fmt.Fprintf(tw, "Projected goal date:\t%s\n", *r.ProjectedGoalDate)
	}
	tw.Flush()
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	date, err := types.ParseDate(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cache.Enabled() {
		return errors.New("annotation is disabled: set OPENAI_API_KEY")
	}

	outcome, err := a.cache.Generate(ctx, date)
	if err != nil {
		return err
	}

	var text string
	rec, err := a.store.Get(ctx, date)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	case rec.Annotation != nil:
		text = *rec.Annotation
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"date":       date,
			"outcome":    outcome.String(),
			"annotation": text,
		})
	}
	fmt.Fprintf(out, "%s: %s\n", date, outcome)
	if text != "" {
		fmt.Fprintf(out, "\n%s\n", text)
	}
	return nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNilDates(d []types.Date) []types.Date {
	if d == nil {
		return []types.Date{}
	}
	return d
}
