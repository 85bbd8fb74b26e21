// reqgraph: requirements traceability MCP server.
//
// Keeps business and system requirements linked both ways, gives every
// requirement and acceptance criterion a stable sequential ID, and tracks
// links that need re-confirmation after a change.
//
// Usage:
//
//	reqgraph serve                 # Start MCP server (stdio transport)
//	reqgraph next-id business T1   # Preview the next BR id of task T1
//	reqgraph suspect list          # List suspect links
//	reqgraph suspect confirm <id>  # Confirm links
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/HendryAvila/reqgraph/internal/config"
	rgserver "github.com/HendryAvila/reqgraph/internal/server"
	"github.com/HendryAvila/reqgraph/internal/store"
	"github.com/HendryAvila/reqgraph/internal/telemetry"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	configPath string
	project    string
	dataDir    string

	cfg      *config.Config
	log      *slog.Logger
	shutdown func(context.Context) error
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "reqgraph",
		Short:         "Requirements traceability MCP server",
		Version:       rgserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context(), stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: reqgraph.yaml in ~/.reqgraph or the working directory)")
	root.PersistentFlags().StringVarP(&a.project, "project", "p", "", "project scope (overrides config)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory of the SQLite database (overrides config)")

	root.AddCommand(serveCmd(a))
	root.AddCommand(versionCmd())
	root.AddCommand(nextIDCmd(a))
	root.AddCommand(suspectCmd(a))
	return root
}

// setup loads configuration, applies flag overrides and sets up logging and
// telemetry. Logs go to stderr so stdout stays free for the MCP transport.
func (a *app) setup(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.project != "" {
		cfg.Project = a.project
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	a.cfg = cfg
	a.log = telemetry.NewLogger(stderr, cfg.LogLevel)

	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:      cfg.Tracing,
		OTLPEndpoint: cfg.OTLPEndpoint,
		ServiceName:  "reqgraph",
		Version:      rgserver.Version,
		Writer:       stderr,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// openStore opens the database for one-shot CLI commands.
func (a *app) openStore() (*store.Store, error) {
	st, err := store.New(store.Config{DataDir: a.cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading: version must work without a readable config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reqgraph v%s\n", rgserver.Version)
		},
	}
}
