// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// On-disk names inside a run directory. The read-side query tool depends
// on these staying stable, as does the one-JSON-object-per-line, UTF-8
// chunk format.
const (
	AuthorChunkPrefix      = "authors_chunk_"
	PublicationChunkPrefix = "publications_chunk_"
	ManifestFile           = "run_summary.json"
	RunMetaFile            = "run.yaml"
)

const (
	defaultChunkMaxRecords = 1000
	defaultChunkMaxBytes   = 64 << 20
)

// Manifest is the run-completion summary written to ManifestFile. It
// lists every chunk file the run produced plus the aggregate counts.
type Manifest struct {
	Summary            types.RunSummary `json:"summary"`
	AuthorChunks       []string         `json:"author_chunks"`
	PublicationChunks  []string         `json:"publication_chunks"`
	AuthorRecords      int              `json:"author_records"`
	PublicationRecords int              `json:"publication_records"`
}

// runMeta is the run metadata record written to RunMetaFile at open.
type runMeta struct {
	RunID     string `yaml:"run_id"`
	CreatedAt string `yaml:"created_at"`
	Format    string `yaml:"format"`
	Compress  bool   `yaml:"compress"`
}

// Chunked is the append-only file sink. Each run writes into its own
// run directory, so repeated runs never collide; idempotence across
// runs comes from namespace isolation rather than per-record conflict
// resolution.
type Chunked struct {
	mu      sync.Mutex
	runDir  string
	authors *chunkWriter
	pubs    *chunkWriter
	closed  bool
}

// OpenChunked creates the run directory under cfg.OutputDir and opens
// the initial author and publication chunks.
func OpenChunked(cfg types.StoreConfig, runID string) (*Chunked, error) {
	runDir := filepath.Join(cfg.OutputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	meta := runMeta{
		RunID:     runID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Format:    "jsonl",
		Compress:  cfg.Compress,
	}
	metaData, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, RunMetaFile), metaData, 0o644); err != nil {
		return nil, fmt.Errorf("writing run metadata: %w", err)
	}

	maxRecords := cfg.ChunkMaxRecords
	if maxRecords <= 0 {
		maxRecords = defaultChunkMaxRecords
	}
	maxBytes := cfg.ChunkMaxBytes
	if maxBytes < 0 {
		maxBytes = defaultChunkMaxBytes
	}

	authors, err := newChunkWriter(runDir, AuthorChunkPrefix, cfg.Compress, maxRecords, maxBytes)
	if err != nil {
		return nil, err
	}
	pubs, err := newChunkWriter(runDir, PublicationChunkPrefix, cfg.Compress, maxRecords, maxBytes)
	if err != nil {
		authors.close()
		return nil, err
	}

	return &Chunked{runDir: runDir, authors: authors, pubs: pubs}, nil
}

// RunDir returns the run's output directory.
func (c *Chunked) RunDir() string { return c.runDir }

// UpsertAuthor appends the author record to the current author chunk.
func (c *Chunked) UpsertAuthor(author types.Author) error {
	return c.append(c.authors, "append author "+author.ID, author)
}

// UpsertPublication appends the publication record to the current
// publication chunk.
func (c *Chunked) UpsertPublication(pub types.Publication) error {
	return c.append(c.pubs, "append publication "+pub.ID, pub)
}

func (c *Chunked) append(w *chunkWriter, op string, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &PersistenceError{Op: op, Err: fmt.Errorf("sink closed")}
	}
	if err := w.write(line); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// Close flushes and closes both chunk writers, then writes the manifest.
func (c *Chunked) Close(summary types.RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.authors.close(); err != nil {
		return &PersistenceError{Op: "close author chunks", Err: err}
	}
	if err := c.pubs.close(); err != nil {
		return &PersistenceError{Op: "close publication chunks", Err: err}
	}

	manifest := Manifest{
		Summary:            summary,
		AuthorChunks:       c.authors.files,
		PublicationChunks:  c.pubs.files,
		AuthorRecords:      c.authors.totalRecords,
		PublicationRecords: c.pubs.totalRecords,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal manifest", Err: err}
	}
	if err := os.WriteFile(filepath.Join(c.runDir, ManifestFile), data, 0o644); err != nil {
		return &PersistenceError{Op: "write manifest", Err: err}
	}
	return nil
}

// chunkWriter appends newline-delimited records into numbered chunk
// files, rotating when either the record count or the byte size of the
// current chunk reaches its threshold.
type chunkWriter struct {
	dir        string
	prefix     string
	compress   bool
	maxRecords int
	maxBytes   int64

	index   int
	records int
	bytes   int64
	file    *os.File
	gz      *gzip.Writer
	out     io.Writer

	files        []string
	totalRecords int
}

func newChunkWriter(dir, prefix string, compress bool, maxRecords int, maxBytes int64) (*chunkWriter, error) {
	w := &chunkWriter{
		dir:        dir,
		prefix:     prefix,
		compress:   compress,
		maxRecords: maxRecords,
		maxBytes:   maxBytes,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *chunkWriter) chunkName() string {
	name := fmt.Sprintf("%s%04d.jsonl", w.prefix, w.index)
	if w.compress {
		name += ".gz"
	}
	return name
}

func (w *chunkWriter) open() error {
	name := w.chunkName()
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("opening chunk %s: %w", name, err)
	}
	w.file = f
	if w.compress {
		w.gz = gzip.NewWriter(f)
		w.out = w.gz
	} else {
		w.out = f
	}
	w.records = 0
	w.bytes = 0
	w.files = append(w.files, name)
	return nil
}

func (w *chunkWriter) write(line []byte) error {
	if w.records >= w.maxRecords || (w.maxBytes > 0 && w.bytes >= w.maxBytes) {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.out.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("writing chunk record: %w", err)
	}
	w.records++
	w.totalRecords++
	w.bytes += int64(n)
	return nil
}

func (w *chunkWriter) rotate() error {
	if err := w.closeCurrent(); err != nil {
		return err
	}
	w.index++
	return w.open()
}

func (w *chunkWriter) closeCurrent() error {
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return fmt.Errorf("closing gzip stream: %w", err)
		}
		w.gz = nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing chunk file: %w", err)
	}
	return nil
}

func (w *chunkWriter) close() error {
	return w.closeCurrent()
}

// OpenChunk opens a chunk file for reading, transparently decompressing
// gzip chunks. The caller owns the returned ReadCloser.
func OpenChunk(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip chunk %s: %w", path, err)
	}
	return &gzipChunk{gz: gz, f: f}, nil
}

type gzipChunk struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipChunk) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipChunk) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
