package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// Version is set at build time.
var Version = "dev"

// ErrCheckFailed is returned when a run ends with unfixed findings or module errors.
var ErrCheckFailed = errors.New("unfixed dependency issues")

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	Out         io.Writer
}

// NewRootCommand creates the root command writing to stdout
func NewRootCommand() *Command {
	return NewRootCommandWithOutput(os.Stdout)
}

// NewRootCommandWithOutput creates the root command writing to out
func NewRootCommandWithOutput(out io.Writer) *Command {
	root := &Command{
		Name:        "modcheck",
		Description: "modcheck - dependency hygiene for Gradle multi-module workspaces",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("modcheck", flag.ContinueOnError),
		Out:         out,
	}

	root.Subcommands["check"] = newCheckCommand(out)
	root.Subcommands["rules"] = newRulesCommand(out)
	root.Subcommands["graph"] = newGraphCommand(out)
	root.Subcommands["history"] = newHistoryCommand(out)
	root.Subcommands["watch"] = newWatchCommand(out)
	root.Subcommands["version"] = &Command{
		Name:        "version",
		Description: "Print the version",
		Run: func(context.Context, []string) error {
			_, err := fmt.Fprintf(out, "modcheck %s\n", Version)
			return err
		},
	}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.Out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.Out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.Out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, ErrCheckFailed):
		return 1
	default:
		return 2
	}
}
