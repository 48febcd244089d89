// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tdiprima/openalex-pipeline/internal/store"
	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// writeRun produces a finished run directory through the chunked sink so
// the fixtures match real output exactly.
func writeRun(t *testing.T, outputDir, runID string, compress bool, authors []types.Author, pubs []types.Publication) string {
	t.Helper()
	cfg := types.StoreConfig{
		Backend:         types.BackendChunked,
		OutputDir:       outputDir,
		ChunkMaxRecords: 2,
		Compress:        compress,
	}
	c, err := store.OpenChunked(cfg, runID)
	if err != nil {
		t.Fatalf("OpenChunked: %v", err)
	}
	for _, a := range authors {
		if err := c.UpsertAuthor(a); err != nil {
			t.Fatalf("UpsertAuthor: %v", err)
		}
	}
	for _, p := range pubs {
		if err := c.UpsertPublication(p); err != nil {
			t.Fatalf("UpsertPublication: %v", err)
		}
	}
	summary := types.RunSummary{RunID: runID, Status: types.RunCompleted}
	if err := c.Close(summary); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return c.RunDir()
}

func fixtureAuthors() []types.Author {
	return []types.Author{
		{ID: "A1", Name: "Alice Chen", WorksCount: 40},
		{ID: "A2", Name: "Bob Patel", WorksCount: 25},
		{ID: "A3", Name: "Carol Chen-Diaz", WorksCount: 12},
	}
}

func fixturePubs() []types.Publication {
	return []types.Publication{
		{ID: "W1", Title: "First", Year: 2024, Authors: []string{"Alice Chen"}, AuthorID: "A1",
			Processing: &types.Processing{Validation: &types.Validation{Found: true}}},
		{ID: "W2", Title: "Second", Year: 2023, Authors: []string{"Alice Chen", "Bob Patel"}, AuthorID: "A1"},
		{ID: "W3", Title: "Third", Year: 2024, Authors: []string{"Bob Patel"}, AuthorID: "A2",
			Processing: &types.Processing{Validation: &types.Validation{Found: true}}},
		{ID: "W4", Title: "Fourth", Year: 2022, Authors: []string{"Carol Chen-Diaz"}, AuthorID: "A3"},
		{ID: "W5", Title: "Fifth", Year: 2024, Authors: []string{"Carol Chen-Diaz"}, AuthorID: "A3"},
	}
}

func TestOpenAndStats(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_a", false, fixtureAuthors(), fixturePubs())

	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Manifest() == nil {
		t.Fatal("expected a manifest for a finished run")
	}
	authors, pubs, err := d.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if authors != 3 || pubs != 5 {
		t.Errorf("Stats = %d authors, %d pubs, want 3 and 5", authors, pubs)
	}
}

func TestOpenMissingDir(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "run_nope")); err == nil {
		t.Error("expected error for a missing run directory")
	}
}

func TestStatsWithoutManifest(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_b", false, fixtureAuthors(), fixturePubs())
	// An interrupted run has chunks but no manifest.
	if err := os.Remove(filepath.Join(runDir, store.ManifestFile)); err != nil {
		t.Fatal(err)
	}

	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Manifest() != nil {
		t.Fatal("manifest should be absent")
	}
	authors, pubs, err := d.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if authors != 3 || pubs != 5 {
		t.Errorf("Stats = %d authors, %d pubs, want counts from chunk scan", authors, pubs)
	}
}

func TestFindAuthors(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_c", false, fixtureAuthors(), nil)
	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tests := []struct {
		name   string
		substr string
		want   int
	}{
		{"case-insensitive substring", "chen", 2},
		{"exact name", "Bob Patel", 1},
		{"no match", "zhang", 0},
		{"empty matches all", "", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.FindAuthors(tt.substr)
			if err != nil {
				t.Fatalf("FindAuthors: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFindPublications(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_d", false, nil, fixturePubs())
	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"W1", "W2", "W3", "W4", "W5"}},
		{"by year", Filter{Year: 2024}, []string{"W1", "W3", "W5"}},
		{"by author name", Filter{AuthorName: "patel"}, []string{"W2", "W3"}},
		{"validated only", Filter{ValidatedOnly: true}, []string{"W1", "W3"}},
		{"combined", Filter{Year: 2024, ValidatedOnly: true}, []string{"W1", "W3"}},
		{"combined no match", Filter{Year: 2022, AuthorName: "alice"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.FindPublications(tt.filter)
			if err != nil {
				t.Fatalf("FindPublications: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFindPublicationsGzipChunks(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_e", true, nil, fixturePubs())
	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := d.FindPublications(Filter{Year: 2024})
	if err != nil {
		t.Fatalf("FindPublications: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3 from compressed chunks", len(got))
	}
}

func TestCombine(t *testing.T) {
	out := t.TempDir()
	runDir := writeRun(t, out, "run_f", false, nil, fixturePubs())
	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var buf bytes.Buffer
	n, err := d.Combine(&buf)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if n != 5 {
		t.Errorf("Combine wrote %d records, want 5", n)
	}

	// Output is valid JSONL preserving chunk order.
	scanner := bufio.NewScanner(&buf)
	var ids []string
	for scanner.Scan() {
		var p types.Publication
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(ids)+1, err)
		}
		ids = append(ids, p.ID)
	}
	for i, want := range []string{"W1", "W2", "W3", "W4", "W5"} {
		if ids[i] != want {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want)
		}
	}
}

func TestListRuns(t *testing.T) {
	out := t.TempDir()
	writeRun(t, out, "run_20260801_100000_aaaa1111", false, fixtureAuthors(), nil)
	writeRun(t, out, "run_20260802_100000_bbbb2222", false, nil, fixturePubs())
	// A stray non-run directory is ignored.
	if err := os.Mkdir(filepath.Join(out, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}

	runs, err := ListRuns(out)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].RunID != "run_20260802_100000_bbbb2222" {
		t.Errorf("runs[0] = %q, want the newer run first", runs[0].RunID)
	}
	if runs[0].Pubs != 5 || runs[1].Authors != 3 {
		t.Errorf("counts = %+v", runs)
	}
	for _, r := range runs {
		if r.Status != types.RunCompleted {
			t.Errorf("run %s status = %q", r.RunID, r.Status)
		}
	}
}

func TestListRunsMissingOutputDir(t *testing.T) {
	if _, err := ListRuns(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for a missing output directory")
	}
}

func TestScanSkipsNothingAcrossRotatedChunks(t *testing.T) {
	out := t.TempDir()
	var pubs []types.Publication
	for i := 0; i < 7; i++ {
		pubs = append(pubs, types.Publication{ID: fmt.Sprintf("W%02d", i), Year: 2020 + i%3})
	}
	runDir := writeRun(t, out, "run_g", false, nil, pubs)
	d, err := Open(runDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := d.FindPublications(Filter{})
	if err != nil {
		t.Fatalf("FindPublications: %v", err)
	}
	// ChunkMaxRecords of 2 spreads 7 records over 4 chunks.
	if len(got) != 7 {
		t.Errorf("len = %d, want all 7 records across rotated chunks", len(got))
	}
}
