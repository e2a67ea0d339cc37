package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/CircuitCoder/layered/pkg/post"
	"github.com/CircuitCoder/layered/pkg/provenance"
)

var datesFlags struct {
	json bool
}

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Show the dates history assigns to each post",
	Long: `Walks the history of the posts directory and prints, for every post,
when it was created and when it was last updated.

Front matter is not read, so forced times are not applied. A post that was
never committed shows no dates, and a post never changed after creation
shows no update.`,
	RunE: runDates,
}

func init() {
	datesCmd.Flags().BoolVar(&datesFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(datesCmd)
}

// DatesEntry is the JSON output format for one post of layered dates.
type DatesEntry struct {
	Filename string     `json:"filename"`
	Created  *time.Time `json:"created"`
	Updated  *time.Time `json:"updated"`
}

func runDates(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	opts := p.options()

	names, err := post.ListDir(p.postsDir(), opts)
	if err != nil {
		return err
	}
	history, err := provenance.OpenGit(p.postsDir())
	if err != nil {
		return err
	}
	store, err := provenance.NewWalker(history, history.Dir(), opts.Walk...).Run(names)
	if err != nil {
		return err
	}

	entries := make([]DatesEntry, 0, store.Len())
	for _, name := range store.Names() {
		rec, _ := store.Get(name)
		entries = append(entries, DatesEntry{
			Filename: name,
			Created:  rec.Created,
			Updated:  rec.LastUpdate(),
		})
	}

	if datesFlags.json {
		return outputJSON(cmd.OutOrStdout(), entries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Filename, formatTime(e.Created), formatTime(e.Updated))
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
