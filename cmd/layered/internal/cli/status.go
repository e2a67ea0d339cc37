package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which posts changed since the last gen",
	Long: `Shows the status of the generated corpus.

Compares the current posts against the state recorded by the last
'layered gen' to identify posts that need to be re-read, and reports
whether new commits were made since, which requires a full run.

The --verbose flag shows individual file changes (new, modified, deleted).
The --json flag outputs the result as JSON for scripting.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show individual file changes")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for layered status.
type StatusOutput struct {
	Stale          bool     `json:"stale"`
	HistoryChanged bool     `json:"history_changed"`
	NewFiles       []string `json:"new_files,omitempty"`
	ModifiedFiles  []string `json:"modified_files,omitempty"`
	DeletedFiles   []string `json:"deleted_files,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	tracker := p.tracker()

	// Check if state file exists
	if !tracker.HasState() {
		if statusFlags.json {
			return outputJSON(out, StatusOutput{Stale: true, Error: "no state found"})
		}
		fmt.Fprintln(out, "No state found. Run 'layered gen' to create initial state.")
		return nil
	}

	head, err := p.head()
	if err != nil {
		return err
	}
	recorded, err := tracker.Head()
	if err != nil {
		return err
	}

	cs, err := tracker.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}
	historyChanged := recorded != head

	// Output result
	if statusFlags.json {
		return outputJSON(out, StatusOutput{
			Stale:          historyChanged || !cs.IsEmpty(),
			HistoryChanged: historyChanged,
			NewFiles:       cs.Added,
			ModifiedFiles:  cs.Modified,
			DeletedFiles:   cs.Deleted,
		})
	}

	// Text output
	if !historyChanged && cs.IsEmpty() {
		fmt.Fprintln(out, "Posts are up to date")
		return nil
	}

	if historyChanged {
		fmt.Fprintln(out, "New commits since the last gen; all dates may have moved")
	}
	if !cs.IsEmpty() {
		fmt.Fprintf(out, "Changed posts: %d\n", cs.TotalChanges())
	}

	if statusFlags.verbose {
		printFiles(out, "New files", "+", cs.Added)
		printFiles(out, "Modified files", "~", cs.Modified)
		printFiles(out, "Deleted files", "-", cs.Deleted)
	}

	if historyChanged {
		fmt.Fprintln(out, "\nRun 'layered gen' to regenerate the corpus")
	} else {
		fmt.Fprintln(out, "\nRun 'layered gen --incremental' to update changed posts")
	}
	return nil
}

func printFiles(out io.Writer, title, mark string, files []string) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(files))
	for _, f := range files {
		fmt.Fprintf(out, "  %s %s\n", mark, f)
	}
}
