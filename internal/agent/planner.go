package agent

import (
	"fmt"
	"regexp"
	"strings"

	"repopilot/internal/history"
	"repopilot/internal/router"
	"repopilot/internal/store"
)

const (
	listShown           = 20
	chunkClip           = 500
	retrieveK           = 5
	retrieveKWithMemory = 3
)

// Planner turns a routed query into a step plan. Metadata intents are
// answered locally here; only reasoning and search plans reach the model.
type Planner struct {
	index  Index
	editor EditEngine
	hist   *history.History
}

// NewPlanner creates a planner over the session's index, editor, and memory.
func NewPlanner(index Index, editor EditEngine, hist *history.History) *Planner {
	return &Planner{index: index, editor: editor, hist: hist}
}

var toolKeywordRe = regexp.MustCompile(`\b(clone|download)\b`)

// CreatePlan maps a query to the steps that answer it. Every returned plan
// is non-empty.
func (p *Planner) CreatePlan(query string) *Plan {
	lower := strings.ToLower(query)
	intent := router.Classify(query)

	// Clone requests are checked before the router so owner/repo shorthand
	// works; the router only recognizes literal URLs. Undo keeps its
	// priority so "undo the clone of x/y" reverts rather than re-clones.
	if intent != router.Undo && toolKeywordRe.MatchString(lower) {
		if url, dest := extractRepoTarget(query); url != "" {
			return planOf(CloneStep{URL: url, Dest: dest}, AnalyzeStep{Path: dest})
		}
	}

	switch intent {
	case router.Metadata:
		return planOf(ReportStep{Text: p.answerMetadata(lower)})
	case router.Edit:
		return p.planEdit(query)
	case router.Undo:
		return planOf(UndoStep{})
	case router.Fix:
		return p.planFix(query)
	case router.IndexDocs:
		return planOf(IngestDocsStep{Folder: extractFolder(query)})
	case router.ToolCall:
		if url, dest := extractRepoTarget(query); url != "" {
			return planOf(CloneStep{URL: url, Dest: dest}, AnalyzeStep{Path: dest})
		}
		return planOf(ReportStep{Text: "I couldn't find a repository URL in that request."})
	default:
		return planOf(AnswerStep{Prompt: p.buildPrompt(query)})
	}
}

// answerMetadata serves counting and listing queries from the metadata
// cache. No model call.
func (p *Planner) answerMetadata(lower string) string {
	switch {
	case strings.Contains(lower, "how many") || strings.Contains(lower, "count") ||
		strings.Contains(lower, "number of files"):
		return fmt.Sprintf("The repository has %d indexed files.", p.index.FileCount())

	case strings.Contains(lower, "structure") || strings.Contains(lower, "hierarchy") ||
		strings.Contains(lower, "architecture"):
		return p.index.ArchitectureSummary()

	case strings.Contains(lower, "list") || strings.Contains(lower, "what files"):
		metas := p.index.FileList()
		if len(metas) == 0 {
			return "No files are indexed yet."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Indexed files (%d total):\n", len(metas))
		for i, m := range metas {
			if i == listShown {
				fmt.Fprintf(&b, "  ... and %d more\n", len(metas)-listShown)
				break
			}
			fmt.Fprintf(&b, "  - %s (%s)\n", m.Path, m.Language)
		}
		return b.String()

	default:
		return fmt.Sprintf("The repository has %d indexed files.", p.index.FileCount())
	}
}

func (p *Planner) planEdit(query string) *Plan {
	path := p.editor.ResolvePath(query)
	if path == "" {
		return planOf(ReportStep{Text: "I couldn't determine which file to edit. Name the file, e.g. \"edit src/main.py: ...\"."})
	}
	return planOf(EditFileStep{
		FilePath:    path,
		Instruction: query,
		Target:      p.editor.ExtractTarget(query),
	})
}

func (p *Planner) planFix(query string) *Plan {
	path := p.editor.ResolvePath(query)
	if path == "" {
		return planOf(ReportStep{Text: "Tell me which file to fix, e.g. \"fix errors in scripts/train.py\"."})
	}
	return planOf(HealStep{FilePath: path})
}

var folderPattern = regexp.MustCompile(`(?i)(?:folder|directory)\s+([\w./-]+)`)

// extractFolder pulls a folder path out of an ingestion request, defaulting
// to "documents".
func extractFolder(query string) string {
	if m := folderPattern.FindStringSubmatch(query); m != nil {
		return strings.TrimRight(m[1], ".,;:")
	}
	for _, tok := range strings.Fields(query) {
		if strings.Contains(tok, "/") {
			return strings.TrimRight(tok, ".,;:")
		}
	}
	return "documents"
}

// buildPrompt assembles the answer prompt: conversational memory, retrieved
// chunks, then the question. With memory present the retrieval budget drops
// so the prompt stays inside the model's window.
func (p *Planner) buildPrompt(query string) string {
	k := retrieveK
	memory := ""
	if p.hist != nil {
		memory = p.hist.ContextBlock()
	}
	if memory != "" {
		k = retrieveKWithMemory
	}

	results := p.index.Search(query, k)

	var b strings.Builder
	b.WriteString("You are a coding assistant answering questions about one repository.\n\n")
	if memory != "" {
		b.WriteString(memory)
		b.WriteString("\n\n")
	}
	if len(results) == 0 {
		b.WriteString("No indexed code matched the question; answer from general knowledge and say so.\n\n")
	} else {
		b.WriteString("Relevant code:\n")
		for _, r := range results {
			writeChunk(&b, r)
		}
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\nAnswer concisely, citing file paths where relevant.")
	return b.String()
}

func writeChunk(b *strings.Builder, r store.SearchResult) {
	content := r.Chunk.Content
	if len(content) > chunkClip {
		content = content[:chunkClip] + "..."
	}
	fmt.Fprintf(b, "\n--- %s (lines %d-%d, %s) ---\n%s\n",
		r.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Language, content)
}
