package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytracker/internal/filestore"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the whole state as CSV to a file or stdout",
		Long: `Write every entity, the history and the id counter in the CSV format of
the file backend.

Example:
  lazytracker export backup.csv
  lazytracker export --backend postgres --dsn postgres://localhost/lazytracker > backup.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			snap := s.manager.Snapshot()
			if len(args) == 0 {
				return s.finish(filestore.Encode(cmd.OutOrStdout(), snap))
			}
			if err := filestore.New(args[0]).Save(cmd.Context(), snap); err != nil {
				return s.finish(err)
			}
			s.logger.Info("exported", "file", args[0], "tasks", len(snap.Tasks), "epics", len(snap.Epics), "subtasks", len(snap.Subtasks))
			return s.finish(nil)
		},
	}
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored state with a CSV export",
		Long: `Replace everything in the configured backend with the content of an
export. Ids, the history and the id counter are kept.

Example:
  lazytracker import backup.csv --backend sqlite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			snap, err := filestore.Decode(bufio.NewReader(file))
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			if err := s.manager.Restore(snap); err != nil {
				return s.finish(fmt.Errorf("import %s: %w", args[0], err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks, %d epics, %d subtasks\n",
				len(snap.Tasks), len(snap.Epics), len(snap.Subtasks))
			return s.finish(nil)
		},
	}
}
