// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Runner abstracts external tool invocation so tests can fake the OCR
// toolchain instead of requiring pdftoppm and tesseract on the host.
type Runner interface {
	// LookPath reports whether the named tool is available.
	LookPath(file string) error
	// Run executes the tool, discarding output.
	Run(name string, args ...string) error
	// Output executes the tool and returns its stdout.
	Output(name string, args ...string) ([]byte, error)
}

// osRunner is the production Runner backed by os/exec.
type osRunner struct{}

// NewRunner returns the production Runner.
func NewRunner() Runner { return osRunner{} }

func (osRunner) LookPath(file string) error {
	_, err := exec.LookPath(file)
	return err
}

func (osRunner) Run(name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	return nil
}

func (osRunner) Output(name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
