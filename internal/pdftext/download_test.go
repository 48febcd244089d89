// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

func TestDownloadWritesDestination(t *testing.T) {
	body := "%PDF-1.4 fake document body"
	var accept, userAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		userAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "pdfs", "W123.pdf")
	cfg := types.HTTPConfig{UserAgent: "openalex-pipeline/1.0"}
	if err := Download(context.Background(), ts.Client(), ts.URL, dest, cfg); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(got) != body {
		t.Errorf("content = %q, want %q", got, body)
	}
	if accept != "application/pdf" {
		t.Errorf("Accept = %q", accept)
	}
	if userAgent != "openalex-pipeline/1.0" {
		t.Errorf("User-Agent = %q", userAgent)
	}
}

func TestDownloadNon200LeavesNoFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "W404.pdf")
	err := Download(context.Background(), ts.Client(), ts.URL, dest, types.HTTPConfig{})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want HTTP 404 error", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("destination file should not exist after a failed download")
	}
}

func TestDownloadNoTempFileLeftBehind(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok body")
	}))
	defer ts.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "W1.pdf")
	if err := Download(context.Background(), ts.Client(), ts.URL, dest, types.HTTPConfig{}); err != nil {
		t.Fatalf("Download: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "W1.pdf" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only W1.pdf", names)
	}
}

func TestDownloadCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "body")
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "W2.pdf")
	if err := Download(ctx, ts.Client(), ts.URL, dest, types.HTTPConfig{}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
