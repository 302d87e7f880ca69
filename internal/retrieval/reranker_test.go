package retrieval

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repopilot/internal/llm"
	"repopilot/internal/store"
)

type cannedChat struct {
	reply string
	err   error
}

func (c *cannedChat) Generate(string, int, float64) (string, error) { return "", nil }
func (c *cannedChat) GenerateStream(string, int, float64, func(string)) (string, error) {
	return "", nil
}
func (c *cannedChat) Chat([]llm.Message, float64, bool) (string, error) {
	return c.reply, c.err
}

func TestRerankOrdersByScore(t *testing.T) {
	candidates := []store.SearchResult{res("a", "a.go"), res("b", "b.go"), res("c", "c.go")}
	rr := NewLLMReranker(&cannedChat{reply: `{"scores": [0.1, 0.9, 0.5]}`})

	out, err := rr.Rerank("query", candidates, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Chunk.UID)
	assert.Equal(t, "c", out[1].Chunk.UID)
	assert.Equal(t, 0.9, out[0].Score)
}

func TestRerankScoreCountMismatch(t *testing.T) {
	candidates := []store.SearchResult{res("a", "a.go"), res("b", "b.go")}
	rr := NewLLMReranker(&cannedChat{reply: `{"scores": [0.5]}`})

	_, err := rr.Rerank("query", candidates, 2)
	require.Error(t, err)
}

func TestRerankMalformedReply(t *testing.T) {
	rr := NewLLMReranker(&cannedChat{reply: "not json at all"})
	_, err := rr.Rerank("query", []store.SearchResult{res("a", "a.go")}, 1)
	require.Error(t, err)
}

func TestRerankServiceError(t *testing.T) {
	rr := NewLLMReranker(&cannedChat{err: fmt.Errorf("down")})
	_, err := rr.Rerank("query", []store.SearchResult{res("a", "a.go")}, 1)
	require.Error(t, err)
}

func TestRerankEmptyCandidates(t *testing.T) {
	rr := NewLLMReranker(&cannedChat{})
	out, err := rr.Rerank("query", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, out)
}
