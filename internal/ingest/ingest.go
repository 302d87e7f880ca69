// Package ingest feeds non-code documents into the semantic index. Plain
// text and Markdown are read directly; office and PDF formats go through a
// Converter supplied by the caller.
package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"repopilot/internal/chunker"
)

// Converter turns a document file into plain text. Implementations wrap
// external conversion tooling; the pipeline only needs the text back.
type Converter interface {
	Supported(path string) bool
	Convert(path string) (string, error)
}

// Indexer is the slice of the retrieval engine the pipeline needs.
type Indexer interface {
	AddDocument(path string, chunks []chunker.Chunk) (int, error)
}

// textExtensions are handled without a Converter.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Stats reports an ingestion run.
type Stats struct {
	FilesIngested int
	FilesSkipped  int
	ChunksTotal   int
}

// Pipeline chunks and indexes documents from a folder.
type Pipeline struct {
	indexer   Indexer
	converter Converter // may be nil: only txt/md are ingested then
	splitter  *chunker.Chunker
	log       *slog.Logger
}

// New creates a pipeline. converter may be nil.
func New(indexer Indexer, converter Converter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		indexer:   indexer,
		converter: converter,
		splitter:  chunker.New(),
		log:       logger,
	}
}

// Supported reports whether a file can be ingested.
func (p *Pipeline) Supported(path string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	return p.converter != nil && p.converter.Supported(path)
}

// IngestFolder walks folder and ingests every supported document.
// Unsupported and failing files are skipped and counted.
func (p *Pipeline) IngestFolder(folder string) (*Stats, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("open folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var stats Stats
	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !p.Supported(path) {
			return nil
		}
		n, err := p.IngestFile(path)
		if err != nil {
			p.log.Warn("skipping document", "path", path, "err", err)
			stats.FilesSkipped++
			return nil
		}
		stats.FilesIngested++
		stats.ChunksTotal += n
		return nil
	})
	if err != nil {
		return &stats, fmt.Errorf("walk folder: %w", err)
	}
	return &stats, nil
}

// IngestFile converts, chunks, and indexes a single document. Returns the
// number of chunks stored.
func (p *Pipeline) IngestFile(path string) (int, error) {
	text, err := p.extractText(path)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("document is empty")
	}

	chunks := p.splitter.Split(path, "document", "document", []byte(text))
	return p.indexer.AddDocument(path, chunks)
}

func (p *Pipeline) extractText(path string) (string, error) {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(data), nil
	}
	if p.converter == nil || !p.converter.Supported(path) {
		return "", fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}
	text, err := p.converter.Convert(path)
	if err != nil {
		return "", fmt.Errorf("convert document: %w", err)
	}
	return text, nil
}
