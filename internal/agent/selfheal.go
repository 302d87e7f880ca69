package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"repopilot/internal/llm"
)

// interpreters maps file extensions to the command that runs them during
// self-heal. Files outside this table cannot be healed.
var interpreters = map[string][]string{
	".py": {"python3"},
	".js": {"node"},
	".go": {"go", "run"},
	".sh": {"sh"},
}

const healSystemPrompt = `You fix broken code. You receive a file and the error produced when running it.
Respond with a JSON object: {"fixed_code": "<the complete corrected file content>"}.
Return the whole file, not a fragment. No explanations.`

type healReply struct {
	FixedCode string `json:"fixed_code"`
}

// heal runs the file and, while it fails, asks the model for a corrected
// version and retries, up to the configured cycle budget. Every rewrite is
// snapshotted on the undo stack first. A run that exceeds its timeout ends
// the heal immediately.
func (ex *Executor) heal(relPath string) Result {
	runner, ok := interpreters[strings.ToLower(filepath.Ext(relPath))]
	if !ok {
		return fail("self_heal", ToolFault, "no interpreter known for %s; cannot heal it", relPath)
	}
	abs := filepath.Join(ex.repo, relPath)
	if _, err := os.Stat(abs); err != nil {
		return fail("self_heal", IOFault, "open %s: %v", relPath, err)
	}

	for cycle := 1; cycle <= ex.cfg.HealMaxCycles; cycle++ {
		output, timedOut, runErr := ex.runOnce(runner, abs)
		if timedOut {
			return fail("self_heal", TimeoutFault,
				"%s ran past %s on cycle %d; stopping", relPath, ex.cfg.RunTimeout, cycle)
		}
		if runErr == nil {
			if cycle == 1 {
				return Result{Tool: "self_heal", Output: fmt.Sprintf("%s already runs successfully.", relPath)}
			}
			return Result{Tool: "self_heal", Output: fmt.Sprintf(
				"Fixed %s: runs cleanly after %d cycles.", relPath, cycle)}
		}

		current, err := os.ReadFile(abs)
		if err != nil {
			return fail("self_heal", IOFault, "read %s: %v", relPath, err)
		}

		fixed, err := ex.requestFix(relPath, string(current), output)
		if err != nil {
			// A bad reply consumes the cycle; the next run re-measures.
			ex.log.Warn("heal cycle produced no usable fix", "path", relPath, "cycle", cycle, "err", err)
			continue
		}

		ex.pushUndo(relPath, fmt.Sprintf("self-heal cycle %d", cycle))
		if err := os.WriteFile(abs, []byte(fixed), 0o644); err != nil {
			ex.popUndo()
			return fail("self_heal", IOFault, "write %s: %v", relPath, err)
		}
	}

	return fail("self_heal", ToolFault,
		"%s still fails after %d cycles; say \"undo\" to roll back the attempted fixes",
		relPath, ex.cfg.HealMaxCycles)
}

// runOnce executes the file under its interpreter with the run timeout.
func (ex *Executor) runOnce(runner []string, abs string) (output string, timedOut bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), ex.cfg.RunTimeout)
	defer cancel()

	args := append(append([]string{}, runner[1:]...), abs)
	cmd := exec.CommandContext(ctx, runner[0], args...)
	cmd.Dir = ex.repo
	combined, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return string(combined), true, ctx.Err()
	}
	return string(combined), false, err
}

// requestFix asks the model for a complete corrected file in JSON mode.
func (ex *Executor) requestFix(relPath, code, errOutput string) (string, error) {
	user := fmt.Sprintf("FILE: %s\n---\n%s\n---\n\nERROR OUTPUT:\n%s\n\nReturn the corrected file.",
		relPath, code, clipTail(errOutput, 2000))
	reply, err := ex.svc.Chat([]llm.Message{
		{Role: "system", Content: healSystemPrompt},
		{Role: "user", Content: user},
	}, 0.2, true)
	if err != nil {
		return "", err
	}

	var parsed healReply
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return "", fmt.Errorf("decode fix reply: %w", err)
	}
	if strings.TrimSpace(parsed.FixedCode) == "" {
		return "", fmt.Errorf("fix reply had no code")
	}
	return parsed.FixedCode, nil
}

// clipTail keeps the last n bytes; run errors matter most at the end.
func clipTail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
