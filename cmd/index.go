package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <repo-path>",
	Short: "Index a repository without starting the agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Indexing %s...\n", s.repo)
		start := time.Now()

		stats, err := s.engine.Index(s.repo)
		if stats != nil {
			fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("  Files:   %d total, %d indexed, %d skipped\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped)
			fmt.Printf("  Chunks:  %d\n", stats.ChunksTotal)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
