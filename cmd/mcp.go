package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"repopilot/internal/retrieval"
	"repopilot/internal/store"
)

var flagMCPRepo string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing read-only search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	dbPath := dbPathFor(flagMCPRepo)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'repopilot index %s' first to build the index", dbPath, flagMCPRepo)
	}

	s, err := openSession(flagMCPRepo)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := mcpserver.NewMCPServer("repopilot", "1.0.0", mcpserver.WithToolCapabilities(false))

	srv.AddTool(searchCodebaseTool(), makeSearchHandler(s.engine))
	srv.AddTool(listIndexedFilesTool(), makeListFilesHandler(s.engine))
	srv.AddTool(repoArchitectureTool(), makeArchitectureHandler(s.engine))

	return mcpserver.ServeStdio(srv)
}

func init() {
	mcpCmd.Flags().StringVar(&flagMCPRepo, "repo", ".", "indexed repository to serve")
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Hybrid dense + lexical search over the indexed repository. Returns relevant chunks with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 5)"),
		),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all indexed files with their language."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'Go', 'Python'). Case-insensitive."),
		),
	)
}

func repoArchitectureTool() mcp.Tool {
	return mcp.NewTool("repo_architecture",
		mcp.WithDescription("Language-grouped summary of the indexed repository tree."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchHandler(engine *retrieval.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 5)
		if k <= 0 {
			k = 5
		}

		results := engine.Search(query, k)
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeListFilesHandler(engine *retrieval.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		langFilter := strings.ToLower(req.GetString("language", ""))

		var filtered []store.FileMeta
		for _, m := range engine.FileList() {
			if langFilter == "" || strings.ToLower(m.Language) == langFilter {
				filtered = append(filtered, m)
			}
		}

		var sb strings.Builder
		if langFilter != "" {
			fmt.Fprintf(&sb, "## Indexed files (%d, language: %s)\n\n", len(filtered), langFilter)
		} else {
			fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(filtered))
		}
		for _, m := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%s)\n", m.Path, m.Language)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeArchitectureHandler(engine *retrieval.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(engine.ArchitectureSummary()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, r.FilePath)
		fmt.Fprintf(&sb, "**Lines:** %d-%d  \n**Language:** %s  \n**Score:** %.3f\n\n",
			r.Chunk.StartLine, r.Chunk.EndLine, r.Language, r.Score)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", strings.ToLower(r.Language), r.Chunk.Content)
	}
	return sb.String()
}
