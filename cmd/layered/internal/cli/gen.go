package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CircuitCoder/layered/cmd/layered/internal/incremental"
	"github.com/CircuitCoder/layered/internal/log"
	"github.com/CircuitCoder/layered/pkg/post"
)

var genFlags struct {
	posts       string
	output      string
	incremental bool
}

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate the post corpus",
	Long: `Reads every post, derives its publish and update times from git
history, and writes the corpus as JSON.

With --incremental, only posts that changed since the last 'layered gen'
are re-read and merged into the existing output. A full run is done
instead when there is no usable previous state, or when new commits were
made since, because a commit can move the dates of posts that did not
change on disk.`,
	RunE: runGen,
}

func init() {
	genCmd.Flags().StringVar(&genFlags.posts, "posts", "",
		"Posts directory (overrides posts.dir)")
	genCmd.Flags().StringVar(&genFlags.output, "output", "",
		"Output file (overrides output.path)")
	genCmd.Flags().BoolVar(&genFlags.incremental, "incremental", false,
		"Only re-read posts changed since the last run")

	rootCmd.AddCommand(genCmd)
}

// genResult describes one corpus generation.
type genResult struct {
	corpus  map[string]*post.Post
	head    string
	full    bool
	changed int
}

func runGen(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	if err := override(&p.cfg.Posts.Dir, genFlags.posts); err != nil {
		return err
	}
	if err := override(&p.cfg.Output.Path, genFlags.output); err != nil {
		return err
	}

	ctx := cmd.Context()
	tracker := p.tracker()

	res, err := generate(ctx, p, tracker, genFlags.incremental)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.full && res.changed == 0 {
		fmt.Fprintln(out, "Posts are up to date")
		return nil
	}

	if err := post.WriteFile(p.outputPath(), res.corpus); err != nil {
		return err
	}
	if err := tracker.Refresh(ctx, res.head); err != nil {
		return err
	}

	if res.full {
		fmt.Fprintf(out, "Wrote %d posts to %s\n", len(res.corpus), p.outputPath())
	} else {
		fmt.Fprintf(out, "Wrote %d posts to %s (%d changed)\n", len(res.corpus), p.outputPath(), res.changed)
	}
	return nil
}

// generate builds the corpus, incrementally when allowed and possible.
func generate(ctx context.Context, p *project, tracker *incremental.Tracker, allowIncremental bool) (*genResult, error) {
	logger := log.Component("gen")
	opts := p.options()
	dir := p.postsDir()

	head, err := p.head()
	if err != nil {
		return nil, err
	}

	if allowIncremental {
		corpus, cs, reason := incrementalBase(ctx, p, tracker, head)
		if reason == "" {
			res := &genResult{corpus: corpus, head: head}
			if cs.IsEmpty() {
				return res, nil
			}
			paths := cs.Paths(dir)
			logger.Info("refreshing changed posts", "count", len(paths))
			updates, err := post.Refresh(dir, paths, opts)
			if err != nil {
				return nil, err
			}
			post.Apply(corpus, updates)
			res.changed = cs.TotalChanges()
			return res, nil
		}
		logger.Info("falling back to a full run", "reason", reason)
	}

	corpus, err := post.ReadDir(dir, opts)
	if err != nil {
		return nil, err
	}
	return &genResult{corpus: corpus, head: head, full: true}, nil
}

// incrementalBase loads the previous corpus and what changed since. When
// that is not possible it returns the reason instead.
func incrementalBase(ctx context.Context, p *project, tracker *incremental.Tracker, head string) (map[string]*post.Post, *incremental.ChangeSet, string) {
	if !tracker.HasState() {
		return nil, nil, "no previous state"
	}

	recorded, err := tracker.Head()
	if err != nil {
		return nil, nil, err.Error()
	}
	if recorded != head {
		return nil, nil, "history changed since the last run"
	}

	corpus, err := post.ReadFile(p.outputPath())
	if err != nil {
		return nil, nil, err.Error()
	}

	cs, err := tracker.Status(ctx)
	if err != nil {
		return nil, nil, err.Error()
	}
	return corpus, cs, ""
}
