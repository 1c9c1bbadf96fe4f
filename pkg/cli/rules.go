package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/linter/rules"
)

// newRulesCommand creates the rules command
func newRulesCommand(out io.Writer) *Command {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)

	return &Command{
		Name:        "rules",
		Description: "List the built-in rules",
		Flags:       fs,
		Out:         out,
		Run: func(ctx context.Context, args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			a, err := newApp(ctx, &common, nil)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			settings, err := a.cfg.Settings()
			if err != nil {
				return err
			}
			return listRules(out, settings)
		},
	}
}

func listRules(out io.Writer, settings *linter.Settings) error {
	registry := linter.NewRuleRegistry()
	// rules only hold the resolver; listing never evaluates them
	rules.RegisterDefaultRules(registry, nil, settings)

	all := registry.GetAllRules()
	fmt.Fprintf(out, "Available rules (%d):\n\n", len(all))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tENABLED\tDESCRIPTION")
	for _, rule := range all {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", rule.ID(), rule.Kind(), settings.Checks.Enabled(rule.ID()), rule.Description())
	}
	return tw.Flush()
}
