package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"repopilot/internal/config"
)

var (
	flagDB        string
	flagOllama    string
	flagModel     string
	flagChatModel string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "repopilot <repo-path>",
	Short: "Local retrieval-augmented coding agent",
	Long: `repopilot indexes a repository into a local hybrid search index and runs
an interactive agent over it: ask questions, search, edit files with diff
previews, undo applied edits, and self-heal broken scripts. Everything runs
against a local Ollama instance; nothing leaves the machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(args[0])
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: environment first, then
// flag overrides.
func loadConfig() config.Config {
	cfg := config.Load()
	if flagOllama != "" {
		cfg.OllamaBaseURL = flagOllama
	}
	if flagModel != "" {
		cfg.EmbedModel = flagModel
	}
	if flagChatModel != "" {
		cfg.ChatModel = flagChatModel
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default <repo>/.repopilot/index.db)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL (default http://localhost:11434)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "embedding model (default nomic-embed-text)")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "", "generative model (default qwen2.5:7b-instruct-q4_0)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
}
