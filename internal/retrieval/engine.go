// Package retrieval composes the walker, chunker, embedder, and store into
// the hybrid index/search engine: dense and lexical candidates are fused by
// reciprocal rank and reranked, and a local file-metadata cache answers
// listing and counting queries without touching the model service.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"repopilot/internal/chunker"
	"repopilot/internal/embedder"
	"repopilot/internal/lang"
	"repopilot/internal/store"
	"repopilot/internal/walker"
)

const embedBatchSize = 32

// Options configures an Engine.
type Options struct {
	// TopN is the candidate count fetched per signal before fusion.
	TopN int
	// MaxFileSize bounds files considered during indexing.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	ChunksTotal  int
}

// Engine is the retrieval/indexing API the agent depends on.
type Engine struct {
	store    store.Store
	emb      embedder.Embedder
	reranker Reranker
	splitter *chunker.Chunker
	topN     int
	maxSize  int64
	log      *slog.Logger

	// files is the metadata cache: path → language, rebuilt from the store
	// at load time. Serves listing/counting queries only.
	files map[string]string
}

// New creates an Engine and builds the file-metadata cache from the store.
func New(st store.Store, emb embedder.Embedder, rr Reranker, opts Options) (*Engine, error) {
	if opts.TopN <= 0 {
		opts.TopN = 20
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 1_000_000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		store:    st,
		emb:      emb,
		reranker: rr,
		splitter: chunker.New(),
		topN:     opts.TopN,
		maxSize:  opts.MaxFileSize,
		log:      opts.Logger,
	}
	if err := e.refreshCache(); err != nil {
		return nil, fmt.Errorf("build file cache: %w", err)
	}
	return e, nil
}

func (e *Engine) refreshCache() error {
	metas, err := e.store.FileMetadata()
	if err != nil {
		return err
	}
	e.files = make(map[string]string, len(metas))
	for _, m := range metas {
		e.files[m.Path] = m.Language
	}
	return nil
}

// Index scans the repository tree rooted at root and indexes every new
// file. Files whose path is already in the store are skipped, which makes
// indexing idempotent and incremental. Unreadable files are skipped and
// counted, never fatal.
func (e *Engine) Index(root string) (*Stats, error) {
	var stats Stats

	fileCh, errCh := walker.Walk(root, e.maxSize)
	for fi := range fileCh {
		stats.FilesTotal++

		exists, err := e.store.HasFile(fi.RelPath)
		if err != nil {
			return &stats, fmt.Errorf("check %s: %w", fi.RelPath, err)
		}
		if exists {
			stats.FilesSkipped++
			continue
		}

		src, err := os.ReadFile(fi.Path)
		if err != nil {
			e.log.Warn("skipping unreadable file", "path", fi.RelPath, "err", err)
			stats.FilesSkipped++
			continue
		}

		language := lang.Detect(fi.Path)
		chunks := e.splitter.Split(fi.RelPath, language, "code", src)
		if len(chunks) == 0 {
			stats.FilesSkipped++
			continue
		}

		h := sha256.Sum256(src)
		n, err := e.storeFile(store.FileRecord{
			Path:      fi.RelPath,
			Hash:      hex.EncodeToString(h[:]),
			Language:  language,
			SizeBytes: fi.Size,
		}, chunks)
		if err != nil {
			return &stats, fmt.Errorf("index %s: %w", fi.RelPath, err)
		}

		stats.FilesIndexed++
		stats.ChunksTotal += n
	}
	if err := <-errCh; err != nil {
		return &stats, fmt.Errorf("walk: %w", err)
	}

	if err := e.refreshCache(); err != nil {
		return &stats, err
	}
	return &stats, nil
}

// AddDocument indexes pre-chunked document content under the given path,
// replacing any previous entry for it. Used by the ingestion pipeline.
func (e *Engine) AddDocument(path string, chunks []chunker.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	var size int64
	for _, c := range chunks {
		size += int64(len(c.Content))
	}
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Content))
	}

	n, err := e.storeFile(store.FileRecord{
		Path:      path,
		Hash:      hex.EncodeToString(h.Sum(nil)),
		Language:  "document",
		SizeBytes: size,
	}, chunks)
	if err != nil {
		return 0, err
	}
	return n, e.refreshCache()
}

// storeFile embeds chunks in batches and persists the file, its chunks, and
// their vectors.
func (e *Engine) storeFile(rec store.FileRecord, chunks []chunker.Chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.emb.Embed(texts[i:end])
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}

	fileID, err := e.store.UpsertFile(rec)
	if err != nil {
		return 0, fmt.Errorf("upsert file: %w", err)
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
			Type:      c.Type,
		}
	}
	chunkIDs, err := e.store.InsertChunks(fileID, storeChunks)
	if err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	if err := e.store.InsertEmbeddings(chunkIDs, embeddings); err != nil {
		return 0, fmt.Errorf("insert embeddings: %w", err)
	}
	return len(chunks), nil
}

// Search runs the hybrid query: dense and lexical candidates fetched
// independently, merged by reciprocal-rank fusion, then reranked down to k.
// If the reranker fails or returns nothing, the fused ranking truncated to k
// is returned instead. If the embedding service is unreachable the result is
// empty — never an error to the caller.
func (e *Engine) Search(query string, k int) []store.SearchResult {
	if k <= 0 {
		return nil
	}

	qvec, err := e.emb.EmbedSingle(query)
	if err != nil {
		e.log.Warn("embedding service unreachable, search degraded to empty", "err", err)
		return nil
	}

	dense, err := e.store.SearchDense(qvec, e.topN)
	if err != nil {
		e.log.Warn("dense search failed", "err", err)
	}
	lexical, err := e.store.SearchLexical(query, e.topN)
	if err != nil {
		// Lexical failures (e.g. query syntax) are non-fatal; dense carries on.
		e.log.Warn("lexical search failed", "err", err)
	}

	fused := fuse(e.topN, lexical, dense)
	if len(fused) == 0 {
		return nil
	}

	reranked, err := e.reranker.Rerank(query, fused, k)
	if err != nil || len(reranked) == 0 {
		if err != nil {
			e.log.Warn("reranker failed, falling back to fused ranking", "err", err)
		}
		if len(fused) > k {
			fused = fused[:k]
		}
		return fused
	}
	return reranked
}

// FileList returns every indexed file with its language, sorted by path.
// Answered from the metadata cache; no model or search calls.
func (e *Engine) FileList() []store.FileMeta {
	metas := make([]store.FileMeta, 0, len(e.files))
	for path, language := range e.files {
		metas = append(metas, store.FileMeta{Path: path, Language: language})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
	return metas
}

// FileCount returns the number of indexed files.
func (e *Engine) FileCount() int {
	return len(e.files)
}

// ArchitectureSummary renders a language-grouped view of the indexed tree.
func (e *Engine) ArchitectureSummary() string {
	metas := e.FileList()
	if len(metas) == 0 {
		return "Repository is empty or not indexed."
	}

	byLang := make(map[string][]string)
	for _, m := range metas {
		byLang[m.Language] = append(byLang[m.Language], m.Path)
	}
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	var b strings.Builder
	fmt.Fprintf(&b, "Repository has %d indexed files:\n", len(metas))
	for _, l := range langs {
		paths := byLang[l]
		fmt.Fprintf(&b, "\n  %s (%d files):\n", l, len(paths))
		for i, p := range paths {
			if i == 5 {
				fmt.Fprintf(&b, "    ... and %d more\n", len(paths)-5)
				break
			}
			fmt.Fprintf(&b, "    - %s\n", p)
		}
	}
	return b.String()
}
