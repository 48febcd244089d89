// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query answers read-only lookups over a chunked-store run
// directory. It never mutates run output; the chunk format contract
// (stable field names, one JSON object per line, UTF-8) is owned by the
// store package.
package query

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tdiprima/openalex-pipeline/internal/store"
	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// maxLineBytes bounds a single record line while scanning chunks.
const maxLineBytes = 4 << 20

// Dataset is a read handle on one run directory.
type Dataset struct {
	runDir   string
	manifest *store.Manifest
}

// Open validates runDir and loads its manifest when present. A missing
// manifest (interrupted run) is not an error; chunk discovery falls
// back to globbing.
func Open(runDir string) (*Dataset, error) {
	info, err := os.Stat(runDir)
	if err != nil {
		return nil, fmt.Errorf("run directory %s: %w", runDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run directory %s: not a directory", runDir)
	}

	d := &Dataset{runDir: runDir}
	data, err := os.ReadFile(filepath.Join(runDir, store.ManifestFile))
	if err == nil {
		var m store.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
		d.manifest = &m
	}
	return d, nil
}

// Manifest returns the run manifest, or nil for an interrupted run.
func (d *Dataset) Manifest() *store.Manifest { return d.manifest }

// Stats reports record counts for the run. With a manifest the counts
// come straight from it; otherwise the chunks are scanned.
func (d *Dataset) Stats() (authors, pubs int, err error) {
	if d.manifest != nil {
		return d.manifest.AuthorRecords, d.manifest.PublicationRecords, nil
	}
	err = d.scan(store.AuthorChunkPrefix, func([]byte) (bool, error) {
		authors++
		return true, nil
	})
	if err != nil {
		return 0, 0, err
	}
	err = d.scan(store.PublicationChunkPrefix, func([]byte) (bool, error) {
		pubs++
		return true, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return authors, pubs, nil
}

// RunInfo summarizes one run directory under an output root.
type RunInfo struct {
	RunID   string
	Path    string
	Status  types.RunStatus
	Authors int
	Pubs    int
}

// ListRuns scans outputDir for run directories, newest first by name
// (run identifiers sort chronologically).
func ListRuns(outputDir string) ([]RunInfo, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading output directory %s: %w", outputDir, err)
	}

	var runs []RunInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "run_") {
			continue
		}
		info := RunInfo{RunID: entry.Name(), Path: filepath.Join(outputDir, entry.Name())}
		if d, err := Open(info.Path); err == nil && d.manifest != nil {
			info.Status = d.manifest.Summary.Status
			info.Authors = d.manifest.AuthorRecords
			info.Pubs = d.manifest.PublicationRecords
		}
		runs = append(runs, info)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID > runs[j].RunID })
	return runs, nil
}

// chunks returns the run's chunk files for the given prefix, preferring
// the manifest's list and falling back to directory globbing.
func (d *Dataset) chunks(prefix string) ([]string, error) {
	var names []string
	if d.manifest != nil {
		switch prefix {
		case store.AuthorChunkPrefix:
			names = d.manifest.AuthorChunks
		case store.PublicationChunkPrefix:
			names = d.manifest.PublicationChunks
		}
	}
	if len(names) == 0 {
		matches, err := filepath.Glob(filepath.Join(d.runDir, prefix+"*.jsonl*"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		return matches, nil
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(d.runDir, n)
	}
	return paths, nil
}

// scan streams every record line across the prefix's chunks, in chunk
// order, calling fn with the raw line. fn returns false to stop early.
func (d *Dataset) scan(prefix string, fn func(line []byte) (bool, error)) error {
	paths, err := d.chunks(prefix)
	if err != nil {
		return err
	}
	for _, path := range paths {
		rc, err := store.OpenChunk(path)
		if err != nil {
			return fmt.Errorf("opening chunk: %w", err)
		}
		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
		for scanner.Scan() {
			cont, err := fn(scanner.Bytes())
			if err != nil {
				rc.Close()
				return err
			}
			if !cont {
				rc.Close()
				return nil
			}
		}
		scanErr := scanner.Err()
		rc.Close()
		if scanErr != nil {
			return fmt.Errorf("scanning %s: %w", filepath.Base(path), scanErr)
		}
	}
	return nil
}

// FindAuthors returns authors whose name contains substr,
// case-insensitively. An empty substr returns every author.
func (d *Dataset) FindAuthors(substr string) ([]types.Author, error) {
	needle := strings.ToLower(substr)
	var out []types.Author
	err := d.scan(store.AuthorChunkPrefix, func(line []byte) (bool, error) {
		var a types.Author
		if err := json.Unmarshal(line, &a); err != nil {
			return false, fmt.Errorf("parsing author record: %w", err)
		}
		if needle == "" || strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
		return true, nil
	})
	return out, err
}

// Filter selects publications. Zero values mean "no constraint".
type Filter struct {
	// AuthorName matches any listed author name, case-insensitive substring.
	AuthorName string
	// Year matches the publication year exactly.
	Year int
	// ValidatedOnly keeps records whose validation flag is set.
	ValidatedOnly bool
}

// FindPublications returns publications matching every set filter field.
func (d *Dataset) FindPublications(f Filter) ([]types.Publication, error) {
	needle := strings.ToLower(f.AuthorName)
	var out []types.Publication
	err := d.scan(store.PublicationChunkPrefix, func(line []byte) (bool, error) {
		var p types.Publication
		if err := json.Unmarshal(line, &p); err != nil {
			return false, fmt.Errorf("parsing publication record: %w", err)
		}
		if f.Year != 0 && p.Year != f.Year {
			return true, nil
		}
		if f.ValidatedOnly && (p.Processing == nil || p.Processing.Validation == nil || !p.Processing.Validation.Found) {
			return true, nil
		}
		if needle != "" && !matchesAuthor(p.Authors, needle) {
			return true, nil
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

func matchesAuthor(authors []string, needle string) bool {
	for _, name := range authors {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

// Combine streams every publication record line to w as one continuous
// JSONL document, concatenating the chunks in order.
func (d *Dataset) Combine(w io.Writer) (int, error) {
	count := 0
	err := d.scan(store.PublicationChunkPrefix, func(line []byte) (bool, error) {
		if _, err := w.Write(line); err != nil {
			return false, err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return false, err
		}
		count++
		return true, nil
	})
	return count, err
}
