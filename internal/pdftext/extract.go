// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext retrieves publication documents and extracts linear
// plain text from them. Extraction walks a strictly ordered fallback
// chain: the PDF's embedded text layer, an alternate per-page decode,
// then optical recognition over rendered page images. The first stage
// that yields usable text wins; a document no stage can read is a valid
// "no text" outcome, not an error.
package pdftext

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

const (
	// minUsableChars is the threshold below which a stage's output is
	// treated as no text. Scanned papers often carry a handful of stray
	// glyphs in their text layer; those must not short-circuit OCR.
	minUsableChars = 100

	// maxTextBytes bounds extracted text handed downstream.
	maxTextBytes = 500 << 10
)

// stage is one strategy in the fallback chain.
type stage struct {
	method types.ExtractionMethod
	fn     func(path string) (string, error)
}

// Extractor runs the ordered extraction chain. It is stateless per call
// and safe for concurrent use.
type Extractor struct {
	stages []stage
}

// New builds the extraction chain. The optical-recognition stage is
// appended only when enabled by configuration.
func New(cfg types.ExtractionConfig, runner Runner) *Extractor {
	e := &Extractor{}
	e.stages = []stage{
		{method: types.MethodText, fn: extractTextLayer},
		{method: types.MethodFallback, fn: extractByRows},
	}
	if cfg.EnableOCR {
		ocr := &ocrStage{runner: runner}
		e.stages = append(e.stages, stage{method: types.MethodOCR, fn: ocr.extract})
	}
	return e
}

// Extract runs the stages in order and returns the first usable result.
// When every stage is exhausted it returns MethodNone with empty text.
func (e *Extractor) Extract(path string) types.Extraction {
	for _, s := range e.stages {
		text, err := runStage(s.fn, path)
		if err != nil {
			continue
		}
		if !usable(text) {
			continue
		}
		if len(text) > maxTextBytes {
			text = clipBytes(text, maxTextBytes)
		}
		return types.Extraction{Method: s.method, Text: text}
	}
	return types.Extraction{Method: types.MethodNone}
}

// runStage invokes one strategy, converting panics into stage failures.
// The pdf parser panics on malformed xref tables and damaged streams,
// and a damaged file is exactly when the next stage should get its turn.
func runStage(fn func(string) (string, error), path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction stage panic: %v", r)
		}
	}()
	return fn(path)
}

// clipBytes truncates s to at most max bytes, backing up so the cut
// lands on a rune boundary. The bound is a byte budget, so counting
// runes here would let multibyte-heavy text blow past it.
func clipBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// usable reports whether text carries enough content to count as
// extracted, measured after whitespace normalization.
func usable(text string) bool {
	return len(strings.Join(strings.Fields(text), " ")) >= minUsableChars
}

// extractTextLayer reads the document's embedded text layer in one pass.
func extractTextLayer(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading text layer: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("copying text layer: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// extractByRows decodes each page separately, assembling text row by
// row. Some encodings that defeat the single-pass reader still yield
// positioned glyph runs here.
func extractByRows(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
				b.WriteByte(' ')
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
