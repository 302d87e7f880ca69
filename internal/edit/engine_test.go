package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repopilot/internal/llm"
	"repopilot/internal/store"
)

// queuedLLM replays canned responses in order.
type queuedLLM struct {
	responses []string
	i         int
	err       error
}

func (q *queuedLLM) Generate(string, int, float64) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if q.i >= len(q.responses) {
		return "", fmt.Errorf("no more responses")
	}
	r := q.responses[q.i]
	q.i++
	return r, nil
}

func (q *queuedLLM) GenerateStream(prompt string, maxTokens int, temperature float64, onToken func(string)) (string, error) {
	return q.Generate(prompt, maxTokens, temperature)
}

func (q *queuedLLM) Chat([]llm.Message, float64, bool) (string, error) {
	return q.Generate("", 0, 0)
}

type fakeSearcher struct {
	hits []store.SearchResult
}

func (f *fakeSearcher) Search(string, int) []store.SearchResult {
	return f.hits
}

func writeRepoFile(t *testing.T, repo, rel, content string) {
	t.Helper()
	path := filepath.Join(repo, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolvePathExplicit(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "src/main.py", "print('hi')\n")

	e := New(repo, nil, nil)
	assert.Equal(t, "src/main.py", e.ResolvePath("edit src/main.py: add a docstring"))
}

func TestResolvePathBasenameFallback(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "deep/nested/util.py", "x = 1\n")

	e := New(repo, nil, nil)
	assert.Equal(t, "deep/nested/util.py", e.ResolvePath("change util.py to export x"))
}

func TestResolvePathRetrievalFallback(t *testing.T) {
	repo := t.TempDir()
	search := &fakeSearcher{hits: []store.SearchResult{{FilePath: "found/by/search.go"}}}

	e := New(repo, nil, search)
	assert.Equal(t, "found/by/search.go", e.ResolvePath("rename the config loader"))
}

func TestResolvePathNothingFound(t *testing.T) {
	e := New(t.TempDir(), nil, nil)
	assert.Equal(t, "", e.ResolvePath("do something vague"))
}

func TestExtractTarget(t *testing.T) {
	e := New(t.TempDir(), nil, nil)
	assert.Equal(t, "parse", e.ExtractTarget("rename the function parse to parse_args"))
	assert.Equal(t, "Config", e.ExtractTarget("add a field to class Config"))
	assert.Equal(t, "", e.ExtractTarget("tidy the imports"))
}

func TestSanitizeStripsFences(t *testing.T) {
	original := "line one\nline two\nline three\nline four\n"
	out := sanitize("```python\nline one\nline two\nline three\nCHANGED\n```", original)
	assert.Equal(t, "line one\nline two\nline three\nCHANGED", out)
}

func TestSanitizeStripsBoilerplatePrefix(t *testing.T) {
	original := "aaaa\nbbbb\ncccc\n"
	out := sanitize("Here is the modified file:\naaaa\nbbbb\nCHANGED", original)
	assert.Equal(t, "aaaa\nbbbb\nCHANGED", out)
}

func TestSanitizeRejectsTruncatedOutput(t *testing.T) {
	original := "a long original file\nwith many lines\nof content here\nand more\nand more\n"
	out := sanitize("ok", original)
	assert.Equal(t, original, out)
}

func TestPreviewEditProducesDiff(t *testing.T) {
	repo := t.TempDir()
	original := "def greet():\n    print('hello')\n    return True\n"
	writeRepoFile(t, repo, "app.py", original)

	svc := &queuedLLM{responses: []string{
		"def greet():\n    print('goodbye')\n    return True\n",
		"Changed greeting text",
	}}
	e := New(repo, svc, nil)

	preview, err := e.PreviewEdit("app.py", "change hello to goodbye", "greet")
	require.NoError(t, err)
	assert.Equal(t, "app.py", preview.FilePath)
	assert.Contains(t, preview.Diff, "-    print('hello')")
	assert.Contains(t, preview.Diff, "+    print('goodbye')")
	assert.Equal(t, "Changed greeting text", preview.Summary)
	assert.Equal(t, original, preview.Original)
}

func TestPreviewEditNoChanges(t *testing.T) {
	repo := t.TempDir()
	content := "x = 1\ny = 2\nz = 3\n"
	writeRepoFile(t, repo, "vals.py", content)

	svc := &queuedLLM{responses: []string{content}}
	e := New(repo, svc, nil)

	preview, err := e.PreviewEdit("vals.py", "nothing really", "")
	require.NoError(t, err)
	assert.Equal(t, "No changes needed", preview.Summary)
	assert.Equal(t, "[No changes detected]", preview.Diff)
}

func TestPreviewEditMissingFile(t *testing.T) {
	e := New(t.TempDir(), &queuedLLM{}, nil)
	_, err := e.PreviewEdit("ghost.py", "edit it", "")
	require.Error(t, err)
}

func TestPreviewEditRejectsEscapingPath(t *testing.T) {
	e := New(t.TempDir(), &queuedLLM{}, nil)
	_, err := e.PreviewEdit("../../etc/passwd.py", "edit it", "")
	require.Error(t, err)
}

func TestApplyEditWritesFileAndLog(t *testing.T) {
	repo := t.TempDir()
	writeRepoFile(t, repo, "app.py", "old\n")

	e := New(repo, nil, nil)
	require.NoError(t, e.ApplyEdit("app.py", "new content\n", "replace everything", "Replaced content"))

	data, err := os.ReadFile(filepath.Join(repo, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "new content\n", string(data))

	logData, err := os.ReadFile(filepath.Join(repo, ".repopilot", "task.md"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "File: app.py")
	assert.Contains(t, string(logData), "Change: Replaced content")
	assert.Contains(t, string(logData), "Status: done")
}
