// Package history is the agent's three-tier conversational memory: a
// rule-based rolling summary, a short raw window of recent turns, and a
// structured log of applied edits. Compression never calls the model.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultRecentTurns is the raw window size.
	DefaultRecentTurns = 2
	// summaryMaxBytes bounds the rolling summary (~300 tokens).
	summaryMaxBytes = 1200
	// editsLogCap bounds the persisted edit log.
	editsLogCap = 20
	// editsShown is how many recent edits enter the context block.
	editsShown = 5
)

// EditNote records one applied edit.
type EditNote struct {
	File   string `json:"file"`
	Change string `json:"change"`
}

// Turn is one completed user interaction.
type Turn struct {
	User   string    `json:"user"`
	Action string    `json:"action"`
	Edit   *EditNote `json:"edit,omitempty"`
}

// History is the persistent conversational memory for one repository.
type History struct {
	Summary  string     `json:"summary"`
	Recent   []Turn     `json:"recent"`
	EditsLog []EditNote `json:"edits_log"`

	maxRecent int
	path      string
}

// Load reads the history file under repoPath, or starts empty. maxRecent <= 0
// uses the default window.
func Load(repoPath string, maxRecent int) *History {
	if maxRecent <= 0 {
		maxRecent = DefaultRecentTurns
	}
	h := &History{
		maxRecent: maxRecent,
		path:      filepath.Join(repoPath, ".repopilot", "chat_history.json"),
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		return h
	}
	if err := json.Unmarshal(data, h); err != nil {
		return &History{maxRecent: maxRecent, path: h.path}
	}
	// Clamp a window persisted under a larger configuration.
	for len(h.Recent) > maxRecent {
		h.fold(h.Recent[0])
		h.Recent = h.Recent[1:]
	}
	return h
}

// AddTurn records a completed turn. When the raw window is full, the oldest
// turn is folded into the summary before the new turn is appended, so the
// window never exceeds its capacity and every evicted turn is folded exactly
// once.
func (h *History) AddTurn(user, action string, edit *EditNote) {
	if len(action) > 150 {
		action = action[:150]
	}
	turn := Turn{User: user, Action: action}
	if edit != nil {
		note := EditNote{File: edit.File, Change: clip(edit.Change, 80)}
		turn.Edit = &note
		h.EditsLog = append(h.EditsLog, note)
		if len(h.EditsLog) > editsLogCap {
			h.EditsLog = h.EditsLog[len(h.EditsLog)-editsLogCap:]
		}
	}

	if len(h.Recent) == h.maxRecent {
		h.fold(h.Recent[0])
		h.Recent = h.Recent[1:]
	}
	h.Recent = append(h.Recent, turn)
	h.save()
}

// fold compresses one evicted turn into the summary. Deterministic string
// work only; no model call.
func (h *History) fold(turn Turn) {
	var parts []string
	if h.Summary != "" {
		parts = append(parts, h.Summary)
	}
	desc := fmt.Sprintf("User asked: %q -> %s", clip(turn.User, 60), clip(turn.Action, 60))
	if turn.Edit != nil {
		desc += fmt.Sprintf(" [edited %s]", turn.Edit.File)
	}
	parts = append(parts, desc)

	joined := strings.Join(parts, "\n")
	if len(joined) > summaryMaxBytes {
		joined = joined[len(joined)-summaryMaxBytes:]
	}
	h.Summary = joined
}

// ContextBlock renders the memory for prompt injection: summary, recent
// edits, then the raw window. Empty when there is no history yet.
func (h *History) ContextBlock() string {
	var parts []string
	if h.Summary != "" {
		parts = append(parts, "[Previous context]\n"+h.Summary)
	}
	if len(h.EditsLog) > 0 {
		recent := h.EditsLog
		if len(recent) > editsShown {
			recent = recent[len(recent)-editsShown:]
		}
		notes := make([]string, len(recent))
		for i, e := range recent {
			notes[i] = fmt.Sprintf("%s(%s)", e.File, clip(e.Change, 30))
		}
		parts = append(parts, "[Recent edits] "+strings.Join(notes, ", "))
	}
	for _, turn := range h.Recent {
		parts = append(parts, fmt.Sprintf("User: %s\nAction: %s", clip(turn.User, 100), clip(turn.Action, 100)))
	}
	return strings.Join(parts, "\n")
}

func (h *History) save() {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return
	}
	// Best effort: losing memory is annoying, not fatal.
	os.WriteFile(h.path, data, 0o644)
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
