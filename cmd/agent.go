package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"repopilot/internal/agent"
	"repopilot/internal/config"
	"repopilot/internal/edit"
	"repopilot/internal/embedder"
	"repopilot/internal/history"
	"repopilot/internal/ingest"
	"repopilot/internal/llm"
	"repopilot/internal/retrieval"
	"repopilot/internal/store"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	applyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func dbPathFor(repo string) string {
	if flagDB != "" {
		return flagDB
	}
	return filepath.Join(repo, ".repopilot", "index.db")
}

// session bundles the per-repository stack: store, models, and engine.
type session struct {
	cfg    config.Config
	repo   string
	st     *store.SQLiteStore
	emb    embedder.Embedder
	chat   llm.Service
	rr     retrieval.Reranker
	engine *retrieval.Engine
	log    *slog.Logger
}

func openSession(repoPath string) (*session, error) {
	repo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", repoPath)
	}

	cfg := loadConfig()
	log := newLogger()

	dbPath := dbPathFor(repo)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	st, err := store.Open(dbPath, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	emb := embedder.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbedModel)
	chat := llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.ChatModel)
	rr := retrieval.NewLLMReranker(chat)

	engine, err := retrieval.New(st, emb, rr, retrieval.Options{
		TopN:        cfg.TopKRetrieval,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      log,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		repo:   repo,
		st:     st,
		emb:    emb,
		chat:   chat,
		rr:     rr,
		engine: engine,
		log:    log,
	}, nil
}

func (s *session) Close() {
	s.st.Close()
}

// analyzer builds a fresh index for a cloned tree and returns its shape.
func (s *session) analyzer(path string) (string, error) {
	dbPath := filepath.Join(path, ".repopilot", "index.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return "", err
	}
	sub, err := store.Open(dbPath, s.cfg.EmbedDim)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	eng, err := retrieval.New(sub, s.emb, s.rr, retrieval.Options{
		TopN:        s.cfg.TopKRetrieval,
		MaxFileSize: s.cfg.MaxFileSize,
		Logger:      s.log,
	})
	if err != nil {
		return "", err
	}
	stats, err := eng.Index(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Indexed %d files (%d chunks).\n\n%s",
		stats.FilesIndexed, stats.ChunksTotal, eng.ArchitectureSummary()), nil
}

func runAgent(repoPath string) error {
	s, err := openSession(repoPath)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Println(statusStyle.Render(fmt.Sprintf("Indexing %s...", s.repo)))
	start := time.Now()
	stats, err := s.engine.Index(s.repo)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	fmt.Println(statusStyle.Render(fmt.Sprintf(
		"Ready in %s: %d files indexed, %d skipped, %d chunks (%d files total in index).",
		time.Since(start).Round(time.Millisecond),
		stats.FilesIndexed, stats.FilesSkipped, stats.ChunksTotal, s.engine.FileCount())))

	hist := history.Load(s.repo, s.cfg.RecentWindow)
	editor := edit.New(s.repo, s.chat, s.engine)
	docs := ingest.New(s.engine, nil, s.log)

	ex := agent.NewExecutor(agent.Deps{
		Config:   s.cfg,
		Repo:     s.repo,
		LLM:      s.chat,
		Editor:   editor,
		Index:    s.engine,
		Docs:     docs,
		Analyzer: s.analyzer,
		Out:      os.Stdout,
		Logger:   s.log,
	})
	planner := agent.NewPlanner(s.engine, editor, hist)

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))

	fmt.Println(statusStyle.Render(`Ask about the code, "edit <file>: ...", "undo", "fix errors in <file>", or "exit".`))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		plan := planner.CreatePlan(line)
		results := ex.ExecutePlan(plan)
		action := renderResults(results, renderer)

		if agent.Verify(results) == agent.Retry {
			fmt.Println(statusStyle.Render("(that didn't produce a usable result; try rephrasing)"))
		}

		var note *history.EditNote
		if ex.HasPending() {
			note = confirmPending(ex, scanner)
		}
		hist.AddTurn(line, action, note)
	}
	return scanner.Err()
}

// renderResults prints each step's output and returns a one-line action
// description for the history.
func renderResults(results []agent.Result, renderer *glamour.TermRenderer) string {
	action := ""
	for _, r := range results {
		if r.Err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("[%s] %s", r.Tool, r.Err.Detail)))
			if action == "" {
				action = "failed: " + r.Err.Detail
			}
			continue
		}
		switch r.Tool {
		case "answer":
			// Already streamed token by token.
			fmt.Println()
		default:
			printMarkdown(renderer, r.Output)
		}
		if action == "" {
			action = firstLineOf(r.Output)
		}
	}
	return action
}

// confirmPending runs the y/N prompt for a parked edit and applies or
// discards it. Returns the edit note when applied.
func confirmPending(ex *agent.Executor, scanner *bufio.Scanner) *history.EditNote {
	file, _ := ex.PendingInfo()
	fmt.Print(promptStyle.Render(fmt.Sprintf("Apply this edit to %s? [y/N] ", file)))
	if !scanner.Scan() {
		ex.DiscardPending()
		return nil
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	if answer != "y" && answer != "yes" {
		ex.DiscardPending()
		fmt.Println(statusStyle.Render("Edit discarded."))
		return nil
	}

	appliedFile, appliedSummary, err := ex.ApplyPending()
	if err != nil {
		fmt.Println(errorStyle.Render("apply failed: " + err.Error()))
		return nil
	}
	fmt.Println(applyStyle.Render(fmt.Sprintf("Applied to %s (%s). Say \"undo\" to revert.", appliedFile, appliedSummary)))
	return &history.EditNote{File: appliedFile, Change: appliedSummary}
}

func printMarkdown(renderer *glamour.TermRenderer, text string) {
	if renderer != nil {
		if out, err := renderer.Render(text); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(text)
}

func firstLineOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
