package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repopilot/internal/chunker"
	"repopilot/internal/store"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	files   map[string]store.FileRecord
	ids     map[string]int64
	nextID  int64
	chunks  int
	dense   []store.SearchResult
	lexical []store.SearchResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]store.FileRecord{}, ids: map[string]int64{}}
}

func (f *fakeStore) HasFile(path string) (bool, error) {
	_, ok := f.files[path]
	return ok, nil
}

func (f *fakeStore) UpsertFile(rec store.FileRecord) (int64, error) {
	f.files[rec.Path] = rec
	f.nextID++
	f.ids[rec.Path] = f.nextID
	return f.nextID, nil
}

func (f *fakeStore) InsertChunks(fileID int64, chunks []store.Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))
	for i := range chunks {
		f.nextID++
		ids[i] = f.nextID
	}
	f.chunks += len(chunks)
	return ids, nil
}

func (f *fakeStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched ids and embeddings")
	}
	return nil
}

func (f *fakeStore) SearchDense([]float32, int) ([]store.SearchResult, error) {
	return f.dense, nil
}

func (f *fakeStore) SearchLexical(string, int) ([]store.SearchResult, error) {
	return f.lexical, nil
}

func (f *fakeStore) FileMetadata() ([]store.FileMeta, error) {
	var metas []store.FileMeta
	for path, rec := range f.files {
		metas = append(metas, store.FileMeta{Path: path, Language: rec.Language})
	}
	return metas, nil
}

func (f *fakeStore) ChunkCount() (int64, error)  { return int64(f.chunks), nil }
func (f *fakeStore) DeleteFile(string) error     { return nil }
func (f *fakeStore) DeleteAll() error            { return nil }
func (f *fakeStore) GetMeta(string) (string, error) { return "", nil }
func (f *fakeStore) SetMeta(string, string) error   { return nil }
func (f *fakeStore) Close() error                { return nil }

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

type fakeReranker struct {
	err     error
	results []store.SearchResult
}

func (f *fakeReranker) Rerank(_ string, candidates []store.SearchResult, topK int) ([]store.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func newTestEngine(t *testing.T, st store.Store, emb *fakeEmbedder, rr Reranker) *Engine {
	t.Helper()
	e, err := New(st, emb, rr, Options{TopN: 10})
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndexSkipsAlreadyIndexedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "print('a')\n")
	writeFile(t, dir, "b.py", "print('b')\n")

	st := newFakeStore()
	st.files["a.py"] = store.FileRecord{Path: "a.py", Language: "Python"}

	e := newTestEngine(t, st, &fakeEmbedder{}, &fakeReranker{})
	stats, err := e.Index(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	has, _ := st.HasFile("b.py")
	assert.True(t, has)
}

func TestIndexIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	st := newFakeStore()
	e := newTestEngine(t, st, &fakeEmbedder{}, &fakeReranker{})

	first, err := e.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FilesIndexed)

	second, err := e.Index(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesIndexed)
	assert.Equal(t, 1, second.FilesSkipped)
}

func TestSearchEmptyWhenEmbedderDown(t *testing.T) {
	st := newFakeStore()
	st.lexical = []store.SearchResult{res("l1", "l.go")}

	emb := &fakeEmbedder{}
	e := newTestEngine(t, st, emb, &fakeReranker{})
	emb.err = fmt.Errorf("connection refused")

	assert.Empty(t, e.Search("anything", 5))
}

func TestSearchFallsBackWhenRerankerFails(t *testing.T) {
	st := newFakeStore()
	st.lexical = []store.SearchResult{res("a", "a.go"), res("b", "b.go")}
	st.dense = []store.SearchResult{res("b", "b.go"), res("c", "c.go")}

	e := newTestEngine(t, st, &fakeEmbedder{}, &fakeReranker{err: fmt.Errorf("model down")})
	results := e.Search("query", 2)

	// Fused order: "b" hit both lists.
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Chunk.UID)
}

func TestSearchUsesRerankerOrder(t *testing.T) {
	st := newFakeStore()
	st.lexical = []store.SearchResult{res("a", "a.go"), res("b", "b.go")}

	rr := &fakeReranker{results: []store.SearchResult{res("b", "b.go")}}
	e := newTestEngine(t, st, &fakeEmbedder{}, rr)

	results := e.Search("query", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Chunk.UID)
}

func TestSearchEmptyIndex(t *testing.T) {
	e := newTestEngine(t, newFakeStore(), &fakeEmbedder{}, &fakeReranker{})
	assert.Empty(t, e.Search("query", 5))
}

func TestMetadataCache(t *testing.T) {
	st := newFakeStore()
	st.files["z.go"] = store.FileRecord{Path: "z.go", Language: "Go"}
	st.files["a.py"] = store.FileRecord{Path: "a.py", Language: "Python"}

	e := newTestEngine(t, st, &fakeEmbedder{}, &fakeReranker{})

	assert.Equal(t, 2, e.FileCount())
	list := e.FileList()
	require.Len(t, list, 2)
	assert.Equal(t, "a.py", list[0].Path)
	assert.Equal(t, "z.go", list[1].Path)

	summary := e.ArchitectureSummary()
	assert.Contains(t, summary, "Go (1 files)")
	assert.Contains(t, summary, "Python (1 files)")
}

func TestAddDocumentRefreshesCache(t *testing.T) {
	st := newFakeStore()
	e := newTestEngine(t, st, &fakeEmbedder{}, &fakeReranker{})

	chunks := chunker.New().Split("notes.md", "document", "document", []byte("hello\nworld\n"))
	n, err := e.AddDocument("notes.md", chunks)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.FileCount())
}
