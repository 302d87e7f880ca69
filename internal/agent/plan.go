package agent

// Step is one unit of plan execution. The variant set is closed: every step
// the planner can emit is defined in this file, and the executor knows how to
// run exactly these.
type Step interface {
	// Tool names the step for results and logging.
	Tool() string
	run(ex *Executor) Result
}

// Plan is an ordered step sequence for one user turn.
type Plan struct {
	Steps []Step
}

func planOf(steps ...Step) *Plan {
	return &Plan{Steps: steps}
}

// ReportStep emits locally computed text. No model, no side effects.
type ReportStep struct {
	Text string
}

func (ReportStep) Tool() string { return "report" }

func (s ReportStep) run(*Executor) Result {
	return ok(s.Tool(), s.Text)
}

// AnswerStep streams a model answer for an already-built prompt.
type AnswerStep struct {
	Prompt string
}

func (AnswerStep) Tool() string { return "answer" }

func (s AnswerStep) run(ex *Executor) Result {
	return ex.answer(s.Prompt)
}

// CloneStep shallow-clones a git repository.
type CloneStep struct {
	URL  string
	Dest string
}

func (CloneStep) Tool() string { return "clone" }

func (s CloneStep) run(ex *Executor) Result {
	return ex.clone(s.URL, s.Dest)
}

// AnalyzeStep indexes a repository tree and reports its shape.
type AnalyzeStep struct {
	Path string
}

func (AnalyzeStep) Tool() string { return "analyze" }

func (s AnalyzeStep) run(ex *Executor) Result {
	return ex.analyze(s.Path)
}

// EditFileStep generates an edit preview and parks it as the pending edit.
// Nothing is written until the pending edit is confirmed.
type EditFileStep struct {
	FilePath    string
	Instruction string
	Target      string
}

func (EditFileStep) Tool() string { return "edit_file" }

func (s EditFileStep) run(ex *Executor) Result {
	return ex.previewEdit(s.FilePath, s.Instruction, s.Target)
}

// UndoStep reverts the most recent applied write.
type UndoStep struct{}

func (UndoStep) Tool() string { return "undo" }

func (UndoStep) run(ex *Executor) Result {
	return ex.undo()
}

// HealStep runs a file, and on failure asks the model for a fix and retries,
// up to the configured cycle budget.
type HealStep struct {
	FilePath string
}

func (HealStep) Tool() string { return "self_heal" }

func (s HealStep) run(ex *Executor) Result {
	return ex.heal(s.FilePath)
}

// IngestDocsStep feeds a document folder into the semantic index.
type IngestDocsStep struct {
	Folder string
}

func (IngestDocsStep) Tool() string { return "index_docs" }

func (s IngestDocsStep) run(ex *Executor) Result {
	return ex.ingestDocs(s.Folder)
}
