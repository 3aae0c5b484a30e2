// Package cli is the lazytracker command tree. Every command opens the
// configured storage backend, works on a restored tracker.Manager and lets
// storage.Autosave persist what it changed.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytracker/internal/tui"
)

// RootOptions holds global flags for all commands. Empty values leave the
// config file setting alone.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json"
	ConfigPath string
	Backend    string
	Path       string
	DSN        string
	Port       int
	Web        bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lazytracker",
		Short: "Tasks, epics and subtasks in the terminal",
		Long: `lazytracker keeps tasks, epics and their subtasks with a bounded history
of recently viewed entries.

Without a subcommand it opens the terminal UI. --web also serves the JSON API
while the UI runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file path")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (memory|file|sqlite|postgres)")
	flags.StringVar(&opts.Path, "path", "", "database or CSV file for the sqlite and file backends")
	flags.StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string")
	flags.IntVar(&opts.Port, "port", 0, "web server port")
	cmd.Flags().BoolVar(&opts.Web, "web", false, "serve the JSON API while the UI runs")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

func runInteractive(cmd *cobra.Command, opts *RootOptions) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	if s.cfg.Web.Enabled {
		go func() {
			if err := serveWeb(cmd.Context(), s); err != nil {
				s.logger.Error("web server stopped", "err", err)
			}
		}()
	}

	return s.finish(tui.Run(s.manager))
}
