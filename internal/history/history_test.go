package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowNeverExceedsCapacity(t *testing.T) {
	h := Load(t.TempDir(), 2)

	h.AddTurn("first question", "answered first", nil)
	h.AddTurn("second question", "answered second", nil)
	h.AddTurn("third question", "answered third", nil)

	require.Len(t, h.Recent, 2)
	assert.Equal(t, "second question", h.Recent[0].User)
	assert.Equal(t, "third question", h.Recent[1].User)
}

func TestEvictedTurnIsFoldedIntoSummary(t *testing.T) {
	h := Load(t.TempDir(), 1)

	h.AddTurn("what does the parser do", "explained the parser", nil)
	assert.Empty(t, h.Summary)

	h.AddTurn("now rename it", "renamed", nil)
	assert.Contains(t, h.Summary, "what does the parser do")
	assert.Contains(t, h.Summary, "explained the parser")
	assert.NotContains(t, h.Summary, "now rename it")
}

func TestFoldRecordsEdits(t *testing.T) {
	h := Load(t.TempDir(), 1)
	h.AddTurn("change the greeting", "previewed edit", &EditNote{File: "main.py", Change: "new greeting"})
	h.AddTurn("thanks", "acknowledged", nil)

	assert.Contains(t, h.Summary, "[edited main.py]")
}

func TestSummaryStaysBounded(t *testing.T) {
	h := Load(t.TempDir(), 1)
	long := strings.Repeat("x", 200)
	for i := 0; i < 30; i++ {
		h.AddTurn(long, long, nil)
	}
	assert.LessOrEqual(t, len(h.Summary), 1200)
}

func TestEditsLogCapped(t *testing.T) {
	h := Load(t.TempDir(), 2)
	for i := 0; i < 25; i++ {
		h.AddTurn("edit something", "done", &EditNote{File: "f.go", Change: "change"})
	}
	assert.Len(t, h.EditsLog, 20)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	h := Load(dir, 2)
	h.AddTurn("hello", "greeted", &EditNote{File: "a.py", Change: "tweak"})

	_, err := os.Stat(filepath.Join(dir, ".repopilot", "chat_history.json"))
	require.NoError(t, err)

	reloaded := Load(dir, 2)
	require.Len(t, reloaded.Recent, 1)
	assert.Equal(t, "hello", reloaded.Recent[0].User)
	require.Len(t, reloaded.EditsLog, 1)
	assert.Equal(t, "a.py", reloaded.EditsLog[0].File)
}

func TestLoadClampsOversizedWindow(t *testing.T) {
	dir := t.TempDir()

	h := Load(dir, 4)
	h.AddTurn("q1", "a1", nil)
	h.AddTurn("q2", "a2", nil)
	h.AddTurn("q3", "a3", nil)

	smaller := Load(dir, 2)
	require.Len(t, smaller.Recent, 2)
	assert.Contains(t, smaller.Summary, "q1")
}

func TestContextBlock(t *testing.T) {
	h := Load(t.TempDir(), 1)
	assert.Empty(t, h.ContextBlock())

	h.AddTurn("where is main", "pointed at cmd/main.go", nil)
	h.AddTurn("edit it", "previewed", &EditNote{File: "cmd/main.go", Change: "added flag"})

	block := h.ContextBlock()
	assert.Contains(t, block, "[Previous context]")
	assert.Contains(t, block, "[Recent edits]")
	assert.Contains(t, block, "cmd/main.go")
	assert.Contains(t, block, "edit it")
}

func TestCorruptHistoryStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".repopilot"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".repopilot", "chat_history.json"), []byte("{not json"), 0o644))

	h := Load(dir, 2)
	assert.Empty(t, h.Recent)
	assert.Empty(t, h.Summary)
}
