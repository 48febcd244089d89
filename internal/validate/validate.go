// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate scans extracted text and metadata fields for
// configured institutional match terms. Matching is exact,
// case-insensitive substring search; no fuzzy matching. The result is
// deterministic for identical input.
package validate

import (
	"strings"
	"unicode"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

const (
	// snippetRadius is the number of characters kept on each side of a
	// match when cutting a context snippet.
	snippetRadius = 100

	// maxSnippetsPerTerm caps the audit snippets recorded per term.
	maxSnippetsPerTerm = 3
)

// DefaultTerms names Stony Brook University the way it appears in
// affiliation strings and paper headers.
var DefaultTerms = []string{
	"stony brook",
	"suny stony brook",
	"state university of new york at stony brook",
	"stony brook university",
	"stony brook medicine",
	"sbu",
}

// Check searches text and the given metadata fields for the match terms.
// Every term found at least once is reported, with up to
// maxSnippetsPerTerm surrounding-context snippets per term taken from
// the text. Matches found only in metadata fields contribute the field
// value itself as the snippet.
func Check(text string, metadataFields []string, terms []string) types.Validation {
	if len(terms) == 0 {
		terms = DefaultTerms
	}

	var result types.Validation
	textRunes := []rune(text)
	loweredText := foldRunes(textRunes)

	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		if lowerTerm == "" {
			continue
		}

		snippets := textSnippets(textRunes, loweredText, foldRunes([]rune(term)))
		inMetadata := false
		for _, field := range metadataFields {
			if strings.Contains(strings.ToLower(field), lowerTerm) {
				inMetadata = true
				if len(snippets) < maxSnippetsPerTerm {
					snippets = append(snippets, field)
				}
			}
		}

		if len(snippets) == 0 && !inMetadata {
			continue
		}
		result.Found = true
		result.Terms = append(result.Terms, term)
		result.Snippets = append(result.Snippets, snippets...)
	}

	return result
}

// foldRunes lowercases rune by rune. Unlike strings.ToLower, per-rune
// folding never changes the rune count, so every index into the folded
// slice is also a valid index into the original.
func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// textSnippets collects up to maxSnippetsPerTerm context windows around
// occurrences of term in the folded text. Window boundaries are rune
// positions shared with the original text, so snippets keep the source
// casing; they are clipped to the text bounds and newlines flattened so
// a snippet stays one line.
func textSnippets(text, lowered, term []rune) []string {
	var snippets []string
	if len(term) == 0 {
		return snippets
	}
	for i := 0; i+len(term) <= len(lowered) && len(snippets) < maxSnippetsPerTerm; i++ {
		if !matchAt(lowered, term, i) {
			continue
		}
		start := i - snippetRadius
		if start < 0 {
			start = 0
		}
		end := i + len(term) + snippetRadius
		if end > len(text) {
			end = len(text)
		}
		snippet := strings.Join(strings.Fields(string(text[start:end])), " ")
		snippets = append(snippets, "..."+snippet+"...")
		i += len(term) - 1
	}
	return snippets
}

func matchAt(lowered, term []rune, at int) bool {
	for j, r := range term {
		if lowered[at+j] != r {
			return false
		}
	}
	return true
}
