package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// appendEditLog records an applied edit in the repository's Markdown task
// log. One entry per applied edit, append-only.
func appendEditLog(repo, instruction, filePath, summary string) error {
	dir := filepath.Join(repo, ".repopilot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	logPath := filepath.Join(dir, "task.md")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(instruction) > 80 {
		instruction = instruction[:80]
	}
	entry := fmt.Sprintf("### %s\nUser: %s\nFile: %s\nChange: %s\nStatus: done\n\n",
		time.Now().Format("2006-01-02 15:04:05"), instruction, filePath, summary)
	_, err = f.WriteString(entry)
	return err
}
