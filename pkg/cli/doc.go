// Package cli implements the modcheck command-line interface.
//
// # Commands
//
// check: evaluate the workspace, apply fixes and report
//
//	modcheck check --dir . --format github --output report.json
//	modcheck check --no-fix          # report only, exit 1 on findings
//	modcheck check --delete-unused   # delete instead of commenting out
//
// rules: list the built-in rules and whether they are enabled
//
//	modcheck rules --dir .
//
// graph: print the project graph with module depths
//
//	modcheck graph --dir . --format json
//
// history: list recorded runs, or show one
//
//	modcheck history --limit 10
//	modcheck history --id 7c0b8c1e-...
//
// watch: re-run on descriptor and source changes and serve the status API
//
//	modcheck watch --dir . --addr :9090 --schedule "@every 30m"
//
// Every command reads modcheck.yaml from the workspace root; flags override
// the file and MODCHECK_* environment variables.
//
// # Exit codes
//
//	0  no unfixed findings
//	1  unfixed findings or module errors (ErrCheckFailed)
//	2  usage, configuration or fatal run errors
package cli
