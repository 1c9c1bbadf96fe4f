package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/modcheck/pkg/config"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/history"
	"github.com/platinummonkey/modcheck/pkg/report"
)

// newHistoryCommand creates the history command
func newHistoryCommand(out io.Writer) *Command {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var (
		common commonFlags
		limit  = fs.Int("limit", history.DefaultLimit, "Number of runs to list")
		id     = fs.String("id", "", "Show the findings of one run")
		format = fs.String("format", "text", "Output format: text or json")
		dsn    = fs.String("dsn", "", "History database DSN (overrides config)")
	)
	common.register(fs)

	return &Command{
		Name:        "history",
		Description: "List recorded runs",
		Flags:       fs,
		Out:         out,
		Run: func(ctx context.Context, args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			a, err := newApp(ctx, &common, func(cfg *config.Config) {
				if *dsn != "" {
					cfg.History.DSN = *dsn
				}
			})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if err := a.openHistory(ctx); err != nil {
				return err
			}
			if a.history == nil {
				return fmt.Errorf("no history database configured (history.dsn or MODCHECK_HISTORY_DSN)")
			}
			if *id != "" {
				run, err := a.history.Get(ctx, *id)
				if err != nil {
					return err
				}
				return printRun(out, run, *format, a.root)
			}
			runs, err := a.history.List(ctx, *limit)
			if err != nil {
				return err
			}
			return printRuns(out, runs, *format)
		},
	}
}

func printRuns(out io.Writer, runs []*history.Run, format string) error {
	if format == "json" {
		if runs == nil {
			runs = []*history.Run{}
		}
		return writeIndented(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tRESULTS\tFIXED\tUNFIXED\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.RFC3339), r.Duration.Round(time.Millisecond),
			r.Results, r.Fixed, r.Unfixed, runStatus(r))
	}
	return tw.Flush()
}

func runStatus(r *history.Run) string {
	switch {
	case r.Error != "":
		return "error"
	case r.Failed:
		return "failed"
	default:
		return "ok"
	}
}

// printRun renders a recorded run with the report renderers.
func printRun(out io.Writer, run *history.Run, format, root string) error {
	if format == "json" {
		return writeIndented(out, run)
	}
	var runErr error
	if run.Error != "" {
		runErr = errors.New(run.Error)
	}
	o := finding.NewOutcome(run.ID, run.Findings, nil, runErr)
	fmt.Fprintf(out, "Run %s started %s (%s)\n", run.ID, run.StartedAt.Local().Format(time.RFC3339), run.Duration)
	renderer, err := report.NewRenderer(config.FormatText, report.WithRoot(root), report.WithVerbose(true))
	if err != nil {
		return err
	}
	return renderer.Render(out, o)
}

func writeIndented(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
