// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

const usableText = "This document carries more than one hundred characters of body text, " +
	"which clears the minimum threshold for a usable extraction result."

func fixedStage(method types.ExtractionMethod, text string, err error) stage {
	return stage{method: method, fn: func(string) (string, error) { return text, err }}
}

func TestExtractFirstUsableStageWins(t *testing.T) {
	e := &Extractor{stages: []stage{
		fixedStage(types.MethodText, usableText, nil),
		fixedStage(types.MethodFallback, "should never run: "+usableText, nil),
	}}
	got := e.Extract("doc.pdf")
	if got.Method != types.MethodText {
		t.Errorf("Method = %q, want %q", got.Method, types.MethodText)
	}
	if got.Text != usableText {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestExtractFallsThroughOnError(t *testing.T) {
	e := &Extractor{stages: []stage{
		fixedStage(types.MethodText, "", errors.New("damaged text layer")),
		fixedStage(types.MethodFallback, usableText, nil),
	}}
	got := e.Extract("doc.pdf")
	if got.Method != types.MethodFallback {
		t.Errorf("Method = %q, want %q", got.Method, types.MethodFallback)
	}
}

func TestExtractFallsThroughOnShortOutput(t *testing.T) {
	e := &Extractor{stages: []stage{
		// A scanned paper's text layer often holds a few stray glyphs.
		fixedStage(types.MethodText, "p. 3", nil),
		fixedStage(types.MethodOCR, usableText, nil),
	}}
	got := e.Extract("doc.pdf")
	if got.Method != types.MethodOCR {
		t.Errorf("Method = %q, want %q (short output must not win)", got.Method, types.MethodOCR)
	}
}

func TestExtractAllStagesExhausted(t *testing.T) {
	e := &Extractor{stages: []stage{
		fixedStage(types.MethodText, "", errors.New("unreadable")),
		fixedStage(types.MethodFallback, "tiny", nil),
	}}
	got := e.Extract("doc.pdf")
	if got.Method != types.MethodNone {
		t.Errorf("Method = %q, want %q", got.Method, types.MethodNone)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
}

func TestExtractRecoverFromStagePanic(t *testing.T) {
	e := &Extractor{stages: []stage{
		{method: types.MethodText, fn: func(string) (string, error) { panic("malformed xref table") }},
		fixedStage(types.MethodFallback, usableText, nil),
	}}
	got := e.Extract("doc.pdf")
	if got.Method != types.MethodFallback {
		t.Errorf("Method = %q, want %q after panic in earlier stage", got.Method, types.MethodFallback)
	}
}

func TestExtractBoundsTextSize(t *testing.T) {
	huge := strings.Repeat("word ", maxTextBytes/4)
	e := &Extractor{stages: []stage{fixedStage(types.MethodText, huge, nil)}}
	got := e.Extract("doc.pdf")
	if len(got.Text) > maxTextBytes {
		t.Errorf("len(Text) = %d, want at most %d", len(got.Text), maxTextBytes)
	}
}

func TestExtractBoundsMultibyteTextByBytes(t *testing.T) {
	// Three bytes per rune, so a rune-counted cut would overshoot the
	// byte bound by a factor of three.
	huge := strings.Repeat("文獻 ", maxTextBytes/4)
	e := &Extractor{stages: []stage{fixedStage(types.MethodText, huge, nil)}}
	got := e.Extract("doc.pdf")
	if len(got.Text) > maxTextBytes {
		t.Errorf("len(Text) = %d bytes, want at most %d", len(got.Text), maxTextBytes)
	}
	if !utf8.ValidString(got.Text) {
		t.Error("truncated text must not end mid-rune")
	}
}

func TestNewChainComposition(t *testing.T) {
	withoutOCR := New(types.ExtractionConfig{}, NewRunner())
	if len(withoutOCR.stages) != 2 {
		t.Errorf("len(stages) = %d, want 2 without optical recognition", len(withoutOCR.stages))
	}
	withOCR := New(types.ExtractionConfig{EnableOCR: true}, NewRunner())
	if len(withOCR.stages) != 3 {
		t.Errorf("len(stages) = %d, want 3 with optical recognition", len(withOCR.stages))
	}
	if withOCR.stages[2].method != types.MethodOCR {
		t.Errorf("last stage = %q, want %q", withOCR.stages[2].method, types.MethodOCR)
	}
}

func TestExtractNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-pdf.pdf")
	if err := os.WriteFile(path, []byte("plain text body, not a document"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := New(types.ExtractionConfig{}, NewRunner())
	got := e.Extract(path)
	if got.Method != types.MethodNone {
		t.Errorf("Method = %q, want %q for a non-PDF file", got.Method, types.MethodNone)
	}
}

func TestUsable(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"short", "abstract", false},
		{"whitespace only", strings.Repeat(" \n\t", 100), false},
		{"padding does not count", "ab" + strings.Repeat(" ", 200) + "cd", false},
		{"long enough", usableText, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usable(tt.text); got != tt.want {
				t.Errorf("usable(%.20q...) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
