package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CircuitCoder/layered/cmd/layered/internal/watch"
	"github.com/CircuitCoder/layered/pkg/post"
)

var watchFlags struct {
	debounce int
	verbose  bool
	json     bool
	noColor  bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch posts and regenerate the corpus on change",
	Long: `Generates the corpus, then watches the posts directory and refreshes
the posts that change, rewriting the output whenever the corpus changes.

Example output:

  $ layered watch

  layered: watching 42 posts in /path/to/blog/posts
  layered: ready

  [14:32:15] refreshing 2024-03-01-hello.md...
  [14:32:15] ~ 2024-03-01-hello.md updated
  [14:32:15] ✓ wrote 42 posts to /path/to/blog/out.json

Press Ctrl+C to stop watching.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds (overrides watch.debounce_ms)")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// Include SIGHUP to handle terminal hangup
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	tracker := p.tracker()
	res, err := generate(ctx, p, tracker, false)
	if err != nil {
		return err
	}
	if err := post.WriteFile(p.outputPath(), res.corpus); err != nil {
		return err
	}
	if err := tracker.Refresh(ctx, res.head); err != nil {
		return err
	}

	debounce := p.cfg.Debounce()
	if watchFlags.debounce > 0 {
		debounce = time.Duration(watchFlags.debounce) * time.Millisecond
	}

	w, err := watch.New(watch.Config{
		PostsDir: p.postsDir(),
		Output:   p.outputPath(),
		Debounce: debounce,
		Options:  p.options(),
		// Commits made while watching are not picked up, so the state keeps
		// the tip the corpus was generated from and the next incremental
		// gen falls back to a full run if it moved.
		AfterWrite: func(ctx context.Context) error {
			return tracker.Refresh(ctx, res.head)
		},
		Writer:  cmd.OutOrStdout(),
		Verbose: watchFlags.verbose,
		NoColor: watchFlags.noColor,
		JSON:    watchFlags.json,
	}, res.corpus)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// Run watch loop
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
