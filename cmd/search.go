package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagSearchRepo string
	flagSearchK    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one hybrid search against an indexed repository",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		s, err := openSession(flagSearchRepo)
		if err != nil {
			return err
		}
		defer s.Close()

		if s.engine.FileCount() == 0 {
			return fmt.Errorf("nothing indexed at %s; run 'repopilot index %s' first", s.repo, flagSearchRepo)
		}

		results := s.engine.Search(query, flagSearchK)
		if len(results) == 0 {
			fmt.Printf("No results for %q.\n", query)
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. %s (lines %d-%d, %s, score %.3f)\n",
				i+1, r.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Language, r.Score)
			fmt.Println(indent(snippet(r.Chunk.Content, 300), "   "))
		}
		return nil
	},
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchRepo, "repo", ".", "repository to search")
	searchCmd.Flags().IntVar(&flagSearchK, "k", 5, "results to return")
	rootCmd.AddCommand(searchCmd)
}
