package retrieval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"repopilot/internal/llm"
	"repopilot/internal/store"
)

// Reranker reorders a small candidate set by (query, passage) relevance.
// Implementations may fail; callers must fall back to the incoming order.
type Reranker interface {
	Rerank(query string, candidates []store.SearchResult, topK int) ([]store.SearchResult, error)
}

const rerankSystemPrompt = `You are a relevance scoring engine. Given a query and a numbered list of code passages, score how relevant each passage is to the query on a 0.0-1.0 scale. Respond with a JSON object of the form {"scores": [s0, s1, ...]} containing exactly one score per passage, in passage order. No other keys, no prose.`

// passageClip bounds how much of each candidate enters the scoring prompt.
const passageClip = 600

// LLMReranker scores candidates with one chat call in JSON mode.
type LLMReranker struct {
	svc llm.Service
}

// NewLLMReranker creates a reranker backed by the given model service.
func NewLLMReranker(svc llm.Service) *LLMReranker {
	return &LLMReranker{svc: svc}
}

func (r *LLMReranker) Rerank(query string, candidates []store.SearchResult, topK int) ([]store.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, c := range candidates {
		content := c.Chunk.Content
		if len(content) > passageClip {
			content = content[:passageClip]
		}
		fmt.Fprintf(&b, "[%d] %s (lines %d-%d)\n%s\n\n", i, c.FilePath, c.Chunk.StartLine, c.Chunk.EndLine, content)
	}

	raw, err := r.svc.Chat([]llm.Message{
		{Role: "system", Content: rerankSystemPrompt},
		{Role: "user", Content: b.String()},
	}, 0.0, true)
	if err != nil {
		return nil, fmt.Errorf("rerank chat: %w", err)
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(parsed.Scores) != len(candidates) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(candidates), len(parsed.Scores))
	}

	reranked := make([]store.SearchResult, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].Score = parsed.Scores[i]
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
