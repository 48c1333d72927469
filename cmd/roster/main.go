// Command roster runs the duty-roster assignment engine end to end:
// it reads a run definition (workers, date range, posts, policy
// knobs) from a YAML file and writes the resulting schedule and
// termination report to stdout or a file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Duty-roster assignment engine",
	Long: `roster builds a fair, coverage-complete duty roster from a worker
roster and a date range, running the mandatory-lock, multi-attempt
distribution, iterative optimization, and advanced-distribution phases
before emitting the final schedule and its tolerance report.`,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("roster %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
			return nil
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}
