// Package edit implements grounded file editing: the whole target file is
// retrieved (never a chunk), the model returns a complete replacement, and
// the result is sanitized and previewed as a unified diff before anything
// touches disk.
package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"repopilot/internal/llm"
	"repopilot/internal/store"
)

// Searcher is the retrieval fallback used when an instruction names no file.
type Searcher interface {
	Search(query string, k int) []store.SearchResult
}

// Preview is a generated, not-yet-applied edit.
type Preview struct {
	FilePath string
	Diff     string
	Original string
	Modified string
	Summary  string
}

// Engine generates and applies edits against one repository.
type Engine struct {
	repo   string
	svc    llm.Service
	search Searcher
}

// New creates an edit engine rooted at repo.
func New(repo string, svc llm.Service, search Searcher) *Engine {
	return &Engine{repo: repo, svc: svc, search: search}
}

var (
	filePattern   = regexp.MustCompile(`[\w\-/.]*\w\.(?:py|js|ts|go|rs|java|cpp|c|jsx|tsx)\b`)
	funcPattern   = regexp.MustCompile(`(?i)(?:function|func|def|method)\s+(\w+)`)
	classPattern  = regexp.MustCompile(`(?i)class\s+(\w+)`)
	fenceOpen     = regexp.MustCompile("^```[\\w-]*\\n?")
	fenceClose    = regexp.MustCompile("\\n?```\\s*$")
	noisyPrefixes = []string{
		"here is the modified file:",
		"modified file:",
		"updated code:",
	}
)

// ResolvePath finds the file an instruction targets: an explicit path in the
// text first, then a basename search, then the top retrieval hit. Returns ""
// when nothing matches.
func (e *Engine) ResolvePath(instruction string) string {
	if m := filePattern.FindString(instruction); m != "" {
		if e.exists(m) {
			return m
		}
		if found := e.findByName(filepath.Base(m)); found != "" {
			return found
		}
	}
	if e.search != nil {
		if results := e.search.Search(instruction, 1); len(results) > 0 {
			return results[0].FilePath
		}
	}
	return ""
}

// ExtractTarget pulls a function or class name out of the instruction, if
// one is mentioned.
func (e *Engine) ExtractTarget(instruction string) string {
	if m := funcPattern.FindStringSubmatch(instruction); m != nil {
		return m[1]
	}
	if m := classPattern.FindStringSubmatch(instruction); m != nil {
		return m[1]
	}
	return ""
}

func (e *Engine) exists(relPath string) bool {
	abs, ok := e.securePath(relPath)
	if !ok {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

func (e *Engine) findByName(name string) string {
	var found string
	filepath.Walk(e.repo, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if !info.IsDir() && info.Name() == name {
			rel, _ := filepath.Rel(e.repo, path)
			found = filepath.ToSlash(rel)
		}
		return nil
	})
	return found
}

// securePath resolves a repo-relative path and rejects traversal outside it.
func (e *Engine) securePath(relPath string) (string, bool) {
	abs, err := filepath.Abs(filepath.Join(e.repo, relPath))
	if err != nil {
		return "", false
	}
	repoAbs, err := filepath.Abs(e.repo)
	if err != nil {
		return "", false
	}
	if abs != repoAbs && !strings.HasPrefix(abs, repoAbs+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

const editPromptTemplate = `You are editing code. Return ONLY the complete modified file content.
No explanations. No markdown. No code fences. Just the code.

%sFILE: %s
---
%s
---

INSTRUCTION: %s

Return the complete modified file:`

// PreviewEdit generates an edit and returns a diff preview without writing
// anything. An edit whose sanitized output produces an empty diff is a
// success with a "no changes" summary, not a failure.
func (e *Engine) PreviewEdit(filePath, instruction, target string) (*Preview, error) {
	if filePath == "" {
		return nil, fmt.Errorf("no file specified or found")
	}
	abs, ok := e.securePath(filePath)
	if !ok {
		return nil, fmt.Errorf("path escapes repository: %s", filePath)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	original := string(data)

	// Editing needs full-file grounding; the target section is extra
	// focus, never a substitute for the whole file.
	var focus string
	if target != "" {
		if section, ok := locateDefinition(original, target); ok {
			focus = fmt.Sprintf("TARGET SECTION:\n%s\n\n", section)
		}
	}

	prompt := fmt.Sprintf(editPromptTemplate, focus, filePath, original, instruction)
	raw, err := e.svc.Generate(prompt, 4096, 0.3)
	if err != nil {
		return nil, fmt.Errorf("generate edit: %w", err)
	}
	modified := sanitize(raw, original)

	diff, err := unifiedDiff(original, modified, filePath)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	if strings.TrimSpace(diff) == "" {
		return &Preview{
			FilePath: filePath,
			Diff:     "[No changes detected]",
			Original: original,
			Modified: modified,
			Summary:  "No changes needed",
		}, nil
	}

	summary := e.summarize(instruction)
	return &Preview{
		FilePath: filePath,
		Diff:     diff,
		Original: original,
		Modified: modified,
		Summary:  summary,
	}, nil
}

// summarize asks for a one-line change description; a second, separate
// short prompt so the edit generation stays code-only.
func (e *Engine) summarize(instruction string) string {
	prompt := fmt.Sprintf(
		"Summarize this code change in ONE short sentence (max 10 words):\nInstruction: %s", instruction)
	out, err := e.svc.Generate(prompt, 50, 0.3)
	if err != nil {
		return "Code change"
	}
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 100 {
		line = line[:100]
	}
	if line == "" {
		return "Code change"
	}
	return line
}

// ApplyEdit writes the modified content and appends to the edit log.
func (e *Engine) ApplyEdit(filePath, content, instruction, summary string) error {
	abs, ok := e.securePath(filePath)
	if !ok {
		return fmt.Errorf("path escapes repository: %s", filePath)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	if err := appendEditLog(e.repo, instruction, filePath, summary); err != nil {
		// The write succeeded; a broken log shouldn't fail the edit.
		return nil
	}
	return nil
}

// sanitize strips code fences and boilerplate prefixes from model output.
// Output shorter than 30% of the original is treated as truncated and the
// original is returned, which surfaces downstream as an empty diff.
func sanitize(output, original string) string {
	out := strings.TrimSpace(output)
	out = fenceOpen.ReplaceAllString(out, "")
	out = fenceClose.ReplaceAllString(out, "")

	lower := strings.ToLower(out)
	for _, prefix := range noisyPrefixes {
		if strings.HasPrefix(lower, prefix) {
			out = strings.TrimLeft(out[len(prefix):], " \n")
			break
		}
	}

	if len(out) < len(original)*3/10 {
		return original
	}
	return strings.TrimSpace(out)
}

func unifiedDiff(original, modified, filePath string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: "a/" + filePath,
		ToFile:   "b/" + filePath,
		Context:  3,
	})
}
