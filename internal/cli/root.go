package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion overrides the version information displayed by --version.
// Typically called by the main package with values injected via ldflags
// at build time; without it the buildinfo defaults apply.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// ExecuteContext runs the canopy CLI with the given context.
//
// It builds the root command with all subcommands (vault, docs, layout,
// visualize, sync, serve, auth, cache), wires the --verbose flag to the
// log level, and attaches the logger to the command context so commands
// can recover it with loggerFromContext.
func ExecuteContext(ctx context.Context) error {
	var verbose bool

	c := New(os.Stderr, charmlog.InfoLevel)
	root := c.RootCommand()
	if version != "" {
		root.Version = version
		root.SetVersionTemplate(fmt.Sprintf("canopy %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := charmlog.InfoLevel
		if verbose {
			level = charmlog.DebugLevel
		}
		c.SetLogLevel(level)
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	return root.ExecuteContext(ctx)
}

// Execute runs the CLI with a background context. Callers that need
// signal-aware cancellation use ExecuteContext instead.
func Execute() error {
	return ExecuteContext(context.Background())
}
