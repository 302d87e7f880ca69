package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{
			{1, 0}, {0, 1},
		}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embed-model")
	vecs, err := e.Embed([]string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embed-model")
	_, err := e.Embed([]string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("http://unused", "embed-model")
	vecs, err := e.Embed(nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5, 0.5}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embed-model")
	vec, err := e.EmbedSingle("query")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}
