// Package router classifies a free-text query into an intent category.
// Classification is an ordered rule table of keyword scans: deterministic,
// stateless, and fast — trivial queries never reach the model.
package router

import (
	"regexp"
	"strings"
)

// Intent is the category a query routes to.
type Intent int

const (
	Reasoning Intent = iota // default: explain, refactor advice, capability questions
	Metadata                // file counts, listings, structure
	Search                  // locate where X is
	ToolCall                // clone/download with an actual URL
	Edit                    // modify code via the edit engine
	Undo                    // revert the last applied edit
	Fix                     // self-heal a broken file
	IndexDocs               // ingest a document folder
)

func (i Intent) String() string {
	switch i {
	case Metadata:
		return "metadata"
	case Search:
		return "search"
	case ToolCall:
		return "tool_call"
	case Edit:
		return "edit"
	case Undo:
		return "undo"
	case Fix:
		return "fix"
	case IndexDocs:
		return "index_docs"
	default:
		return "reasoning"
	}
}

var (
	undoKeywords = []string{"undo", "revert", "cancel last", "go back"}

	// Note: "fix" is also an edit keyword and the edit rule runs first, so
	// the fix rule is reachable mainly through heal-specific phrasing.
	// Known routing tension; keep the order.
	editKeywords = []string{
		"edit", "change", "modify", "update", "fix", "refactor",
		"add to", "remove from", "delete from", "replace", "rename",
	}
	fixKeywords = []string{
		"fix", "heal", "auto-fix", "self-heal", "debug and fix", "fix errors in",
	}
	indexDocsKeywords = []string{
		"index documents", "index folder", "index files", "add documents", "scan folder",
	}
	metadataKeywords = []string{
		"how many", "list", "count", "what files", "structure", "hierarchy", "number of files",
	}
	searchKeywords = []string{"where", "find", "locate", "look for", "search for"}
	toolKeywords   = []string{"clone", "download"}

	// Capability questions stay in reasoning even when they mention tools.
	capabilityKeywords = []string{"can you", "would it", "is it able", "do you support", "can it"}
)

var urlPattern = regexp.MustCompile(`https?://|github\.com/[\w\-/]+`)

// rule pairs an intent with its predicate. Order is priority.
type rule struct {
	intent Intent
	match  func(q string) bool
}

var rules = []rule{
	{Undo, anyKeyword(undoKeywords)},
	{Edit, anyKeyword(editKeywords)},
	{Fix, anyKeyword(fixKeywords)},
	{IndexDocs, anyKeyword(indexDocsKeywords)},
	{Metadata, anyKeyword(metadataKeywords)},
	{Search, anyKeyword(searchKeywords)},
	{ToolCall, func(q string) bool {
		return anyKeyword(toolKeywords)(q) && urlPattern.MatchString(q)
	}},
	{Reasoning, anyKeyword(capabilityKeywords)},
}

func anyKeyword(keywords []string) func(string) bool {
	return func(q string) bool {
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				return true
			}
		}
		return false
	}
}

// Classify maps a query to its intent. Pure function; the default is
// Reasoning.
func Classify(query string) Intent {
	q := strings.ToLower(query)
	for _, r := range rules {
		if r.match(q) {
			return r.intent
		}
	}
	return Reasoning
}

// NeedsModel reports whether an intent requires model reasoning.
func NeedsModel(i Intent) bool {
	return i == Reasoning || i == Search
}
