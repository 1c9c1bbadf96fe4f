package cli

import (
	"context"
	"flag"
	"io"

	"github.com/platinummonkey/modcheck/pkg/config"
)

// newCheckCommand creates the check command
func newCheckCommand(out io.Writer) *Command {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)

	var (
		common       commonFlags
		format       = fs.String("format", "", "Output format: text, json, github")
		output       = fs.String("output", "", "Also write the JSON report to this file")
		noFix        = fs.Bool("no-fix", false, "Report findings without editing build files")
		deleteUnused = fs.Bool("delete-unused", false, "Delete removed statements instead of commenting them out")
		concurrency  = fs.Int("concurrency", 0, "Modules evaluated at once (0 = half the CPUs)")
		verbose      = fs.Bool("verbose", false, "Verbose output")
	)
	common.register(fs)

	return &Command{
		Name:        "check",
		Description: "Find and fix dependency issues",
		Flags:       fs,
		Out:         out,
		Run: func(ctx context.Context, args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			return runCheck(ctx, out, &common, func(cfg *config.Config) {
				if *format != "" {
					cfg.Reports.Format = *format
				}
				if *output != "" {
					cfg.Reports.Output = *output
				}
				if *noFix {
					cfg.AutoCorrect = false
				}
				if *deleteUnused {
					cfg.DeleteUnused = true
				}
				if *concurrency > 0 {
					cfg.Analysis.Concurrency = *concurrency
				}
			}, *verbose)
		},
	}
}

func runCheck(ctx context.Context, out io.Writer, common *commonFlags, override func(*config.Config), verbose bool) error {
	a, err := newApp(ctx, common, override)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if err := a.openStore(); err != nil {
		return err
	}
	if err := a.openHistory(ctx); err != nil {
		return err
	}

	o := a.run(ctx)
	if err := a.report(ctx, out, o, verbose || a.cfg.Trace); err != nil {
		return err
	}
	return checkResult(o)
}
