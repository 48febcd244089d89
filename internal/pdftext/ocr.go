// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// OCR toolchain binaries. The renderer turns each PDF page into an
// image; the recognizer reads one image at a time.
const (
	renderTool    = "pdftoppm"
	recognizeTool = "tesseract"
	renderDPI     = "150"
)

// ocrStage recognizes text from rendered page images. Each page is
// recognized independently and results are concatenated in page order.
type ocrStage struct {
	runner Runner
}

func (o *ocrStage) extract(path string) (string, error) {
	for _, tool := range []string{renderTool, recognizeTool} {
		if err := o.runner.LookPath(tool); err != nil {
			return "", fmt.Errorf("ocr tool %s not available: %w", tool, err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "openalex-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating ocr work directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	if err := o.runner.Run(renderTool, "-png", "-r", renderDPI, path, prefix); err != nil {
		return "", fmt.Errorf("rendering pages: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		return "", fmt.Errorf("no pages rendered from %s", path)
	}
	// pdftoppm numbers pages with zero-padded suffixes, so a
	// lexicographic sort restores page order.
	sort.Strings(pages)

	var b strings.Builder
	for _, img := range pages {
		out, err := o.runner.Output(recognizeTool, img, "stdout")
		if err != nil {
			return "", fmt.Errorf("recognizing %s: %w", filepath.Base(img), err)
		}
		b.Write(out)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
