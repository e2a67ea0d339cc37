// Package cli implements the layered command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CircuitCoder/layered/internal/log"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to all commands
var globalFlags struct {
	verbosity int
	logFormat string
	chdir     string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "layered",
	Short: "Derive post timestamps from git history",
	Long: `Layered reads the posts directory of a blog, attributes each post a
publish time and an update time from the git history of the repository
that contains it, and writes the result as a single JSON corpus.

Renames are followed, so moving a post does not reset its dates. Commits
whose message contains the skip marker ("[skip time]" by default) do not
count as updates.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
	// Default behavior: show help
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "layered %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Global flags (persistent across all commands)
	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 1,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.chdir, "chdir", "C", "",
		"Run as if layered was started in this directory")
}

// initLogging applies the configured log settings, with CLI flags taking
// precedence over config files and the environment.
func initLogging(cmd *cobra.Command, _ []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	verbosity := globalFlags.verbosity
	if !cmd.Flags().Changed("verbosity") && p.cfg.Log.Verbosity != nil {
		verbosity = *p.cfg.Log.Verbosity
	}
	format := globalFlags.logFormat
	if !cmd.Flags().Changed("log-format") && p.cfg.Log.Format != "" {
		format = p.cfg.Log.Format
	}

	return log.Init(verbosity, format)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
