package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"repopilot/internal/config"
	"repopilot/internal/edit"
	"repopilot/internal/ingest"
	"repopilot/internal/llm"
	"repopilot/internal/store"
)

// EditEngine is the editing surface the executor drives.
type EditEngine interface {
	ResolvePath(instruction string) string
	ExtractTarget(instruction string) string
	PreviewEdit(filePath, instruction, target string) (*edit.Preview, error)
	ApplyEdit(filePath, content, instruction, summary string) error
}

// Index is the retrieval surface the agent reads from.
type Index interface {
	Search(query string, k int) []store.SearchResult
	FileList() []store.FileMeta
	FileCount() int
	ArchitectureSummary() string
}

// DocIngester feeds document folders into the index.
type DocIngester interface {
	IngestFolder(folder string) (*ingest.Stats, error)
}

// PendingEdit is the single parked edit awaiting confirmation. Generating a
// new preview replaces it; there is never more than one.
type PendingEdit struct {
	Preview     *edit.Preview
	Instruction string
}

// undoEntry snapshots a file before a write so undo can restore it
// byte for byte.
type undoEntry struct {
	FilePath string
	Content  []byte
	Existed  bool
	Summary  string
}

// Deps wires an Executor. Analyzer may be nil when clone-then-analyze is not
// needed (tests, MCP server).
type Deps struct {
	Config   config.Config
	Repo     string
	LLM      llm.Service
	Editor   EditEngine
	Index    Index
	Docs     DocIngester
	Analyzer func(path string) (string, error)
	Out      io.Writer
	Logger   *slog.Logger
}

// Executor runs plan steps against one repository and holds the mutable
// session state: the pending edit slot and the undo stack.
type Executor struct {
	cfg      config.Config
	repo     string
	svc      llm.Service
	editor   EditEngine
	index    Index
	docs     DocIngester
	analyzer func(path string) (string, error)
	out      io.Writer
	log      *slog.Logger

	pending   *PendingEdit
	undoStack []undoEntry
}

// NewExecutor creates an executor from its dependencies.
func NewExecutor(d Deps) *Executor {
	if d.Out == nil {
		d.Out = io.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Executor{
		cfg:      d.Config,
		repo:     d.Repo,
		svc:      d.LLM,
		editor:   d.Editor,
		index:    d.Index,
		docs:     d.Docs,
		analyzer: d.Analyzer,
		out:      d.Out,
		log:      d.Logger,
	}
}

// ExecutePlan runs steps in order. Each step is isolated: a failure (or
// panic) becomes a fault on that step's result and the remaining steps still
// run.
func (ex *Executor) ExecutePlan(plan *Plan) []Result {
	results := make([]Result, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		res := ex.runIsolated(step)
		if res.Err != nil {
			ex.log.Warn("step failed", "tool", res.Tool, "kind", res.Err.Kind.String(), "detail", res.Err.Detail)
		}
		results = append(results, res)
	}
	return results
}

func (ex *Executor) runIsolated(step Step) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = fail(step.Tool(), ToolFault, "step panicked: %v", r)
		}
	}()
	return step.run(ex)
}

// answer streams a model completion to the output writer and returns the
// full text.
func (ex *Executor) answer(prompt string) Result {
	text, err := ex.svc.GenerateStream(prompt, 1024, 0.7, func(token string) {
		io.WriteString(ex.out, token)
	})
	if err != nil {
		return fail("answer", ServiceUnavailable, "model service: %v", err)
	}
	return ok("answer", text)
}

// clone shallow-clones url into dest under the repository root.
func (ex *Executor) clone(url, dest string) Result {
	target := filepath.Join(ex.repo, dest)
	if _, err := os.Stat(target); err == nil {
		return fail("clone", ToolFault, "%s already exists; remove it or pick another destination", dest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ex.cfg.CloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, target)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fail("clone", TimeoutFault, "clone of %s exceeded %s", url, ex.cfg.CloneTimeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not found") || strings.Contains(msg, "Repository not found") {
			return fail("clone", ToolFault, "repository %s was not found; check the URL", url)
		}
		return fail("clone", ToolFault, "git clone failed: %s", firstLine(msg))
	}
	return ok("clone", fmt.Sprintf("Cloned %s into %s", url, dest))
}

// analyze builds a fresh index for a cloned tree and reports its shape.
func (ex *Executor) analyze(path string) Result {
	if ex.analyzer == nil {
		return fail("analyze", ToolFault, "analysis is not available in this session")
	}
	summary, err := ex.analyzer(filepath.Join(ex.repo, path))
	if err != nil {
		return fail("analyze", IOFault, "analyze %s: %v", path, err)
	}
	return ok("analyze", summary)
}

// previewEdit generates a diff preview and parks it. Last preview wins.
func (ex *Executor) previewEdit(filePath, instruction, target string) Result {
	preview, err := ex.editor.PreviewEdit(filePath, instruction, target)
	if err != nil {
		if strings.Contains(err.Error(), "read ") {
			return fail("edit_file", IOFault, "%v", err)
		}
		return fail("edit_file", ServiceUnavailable, "%v", err)
	}

	// A no-op preview is not a new edit; a previously parked one stays.
	if preview.Summary == "No changes needed" {
		return ok("edit_file", fmt.Sprintf("%s: no changes needed.", preview.FilePath))
	}

	ex.pending = &PendingEdit{Preview: preview, Instruction: instruction}
	var b strings.Builder
	fmt.Fprintf(&b, "Proposed edit to %s (%s):\n\n%s", preview.FilePath, preview.Summary, preview.Diff)
	return ok("edit_file", b.String())
}

// HasPending reports whether an edit is awaiting confirmation.
func (ex *Executor) HasPending() bool {
	return ex.pending != nil
}

// PendingInfo describes the parked edit for the confirmation prompt.
func (ex *Executor) PendingInfo() (file, summary string) {
	if ex.pending == nil {
		return "", ""
	}
	return ex.pending.Preview.FilePath, ex.pending.Preview.Summary
}

// ApplyPending writes the parked edit, pushing an undo snapshot first, and
// clears the slot. Returns the file and summary for history recording.
func (ex *Executor) ApplyPending() (file, summary string, err error) {
	if ex.pending == nil {
		return "", "", fmt.Errorf("no pending edit to apply")
	}
	p := ex.pending.Preview

	ex.pushUndo(p.FilePath, p.Summary)
	if err := ex.editor.ApplyEdit(p.FilePath, p.Modified, ex.pending.Instruction, p.Summary); err != nil {
		ex.popUndo()
		return "", "", err
	}
	ex.pending = nil
	return p.FilePath, p.Summary, nil
}

// DiscardPending drops the parked edit without writing.
func (ex *Executor) DiscardPending() {
	ex.pending = nil
}

// pushUndo snapshots a file's current bytes before a write.
func (ex *Executor) pushUndo(relPath, summary string) {
	abs := filepath.Join(ex.repo, relPath)
	entry := undoEntry{FilePath: relPath, Summary: summary}
	if data, err := os.ReadFile(abs); err == nil {
		entry.Content = data
		entry.Existed = true
	}
	ex.undoStack = append(ex.undoStack, entry)
}

func (ex *Executor) popUndo() {
	if len(ex.undoStack) > 0 {
		ex.undoStack = ex.undoStack[:len(ex.undoStack)-1]
	}
}

// undo restores the most recent snapshot byte for byte. An empty stack is a
// reported failure.
func (ex *Executor) undo() Result {
	if len(ex.undoStack) == 0 {
		return fail("undo", ToolFault, "nothing to undo")
	}
	entry := ex.undoStack[len(ex.undoStack)-1]
	ex.undoStack = ex.undoStack[:len(ex.undoStack)-1]

	abs := filepath.Join(ex.repo, entry.FilePath)
	if !entry.Existed {
		if err := os.Remove(abs); err != nil {
			return fail("undo", IOFault, "remove %s: %v", entry.FilePath, err)
		}
		return ok("undo", fmt.Sprintf("Removed %s (created by the reverted edit).", entry.FilePath))
	}
	if err := os.WriteFile(abs, entry.Content, 0o644); err != nil {
		return fail("undo", IOFault, "restore %s: %v", entry.FilePath, err)
	}
	return ok("undo", fmt.Sprintf("Reverted %s (%s).", entry.FilePath, entry.Summary))
}

// ingestDocs feeds a folder of documents into the index.
func (ex *Executor) ingestDocs(folder string) Result {
	if ex.docs == nil {
		return fail("index_docs", ToolFault, "document ingestion is not available in this session")
	}
	stats, err := ex.docs.IngestFolder(filepath.Join(ex.repo, folder))
	if err != nil {
		return fail("index_docs", IOFault, "ingest %s: %v", folder, err)
	}
	return ok("index_docs", fmt.Sprintf(
		"Ingested %d documents (%d chunks, %d skipped) from %s.",
		stats.FilesIngested, stats.ChunksTotal, stats.FilesSkipped, folder))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
