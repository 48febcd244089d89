// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the openalex-pipeline.
// Author and Publication mirror the OpenAlex entities the harvester pulls;
// the remaining types carry per-publication processing outcomes and
// run-level accounting between the scheduler and the persistence sinks.
package types

import "time"

// Field length limits applied at ingestion. Over-long values are
// truncated, never rejected: a clipped record is still worth keeping.
const (
	MaxIDLen          = 500
	MaxNameLen        = 500
	MaxTitleLen       = 1000
	MaxDOILen         = 500
	MaxURLLen         = 1000
	MaxAffiliationLen = 500
	MaxAbstractLen    = 5000
)

// Author represents an OpenAlex author record. ID is the upsert key.
type Author struct {
	// ID is the OpenAlex author identifier (e.g. "https://openalex.org/A123").
	ID string `json:"id" yaml:"id"`

	// Name is the author's display name.
	Name string `json:"name" yaml:"name"`

	// WorksCount is the total number of works attributed to the author.
	WorksCount int `json:"works_count" yaml:"works_count"`

	// CitedByCount is the total citation count across all works.
	CitedByCount int `json:"cited_by_count" yaml:"cited_by_count"`

	// Affiliations lists institution display names in source order.
	Affiliations []string `json:"affiliations" yaml:"affiliations"`
}

// Publication represents an OpenAlex work. ID is the upsert key.
type Publication struct {
	// ID is the OpenAlex work identifier.
	ID string `json:"id" yaml:"id"`

	// Title is the work title.
	Title string `json:"title" yaml:"title"`

	// DOI is the bare DOI with the https://doi.org/ prefix stripped.
	// Empty when OpenAlex has no DOI for the work.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Year is the publication year.
	Year int `json:"publication_year" yaml:"publication_year"`

	// PDFURL is the open-access document URL, when one exists.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the serialized abstract_inverted_index JSON as returned
	// by OpenAlex. The word-position index is stored verbatim; prose
	// reconstruction is not attempted.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AuthorID links the publication back to the harvested author.
	AuthorID string `json:"author_id,omitempty" yaml:"author_id,omitempty"`

	// Processing holds the document-processing outcome for this
	// publication. It annotates the record and is never merged into the
	// bibliographic fields above.
	Processing *Processing `json:"processing,omitempty" yaml:"processing,omitempty"`
}

// ExtractionMethod tags which extraction stage produced a document's text.
type ExtractionMethod string

const (
	// MethodText means the PDF's embedded text layer was readable.
	MethodText ExtractionMethod = "text"
	// MethodFallback means the alternate per-page decoder was needed.
	MethodFallback ExtractionMethod = "fallback"
	// MethodOCR means page images were rendered and recognized.
	MethodOCR ExtractionMethod = "ocr"
	// MethodNone means no stage yielded usable text. This is a valid
	// terminal outcome, not a failure.
	MethodNone ExtractionMethod = "none"
)

// Extraction is the outcome of the document-text-extraction chain.
type Extraction struct {
	// Method tags the stage that produced Text, or MethodNone.
	Method ExtractionMethod `json:"method" yaml:"method"`

	// Text is the extracted plain text, empty when Method is MethodNone.
	Text string `json:"-" yaml:"-"`
}

// Validation is the outcome of the affiliation match over extracted text
// and metadata fields.
type Validation struct {
	// Found reports whether any match term appeared at least once.
	Found bool `json:"found" yaml:"found"`

	// Terms lists each configured term that matched, in term order.
	Terms []string `json:"terms,omitempty" yaml:"terms,omitempty"`

	// Snippets holds short context windows around matches, newlines
	// flattened, for auditing why a record validated.
	Snippets []string `json:"snippets,omitempty" yaml:"snippets,omitempty"`
}

// Processing annotates a publication with document-processing results.
type Processing struct {
	// PDFDownloaded reports whether the document was retrieved.
	PDFDownloaded bool `json:"pdf_downloaded" yaml:"pdf_downloaded"`

	// PDFPath is the local path of the retrieved document, if kept.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// Method tags the winning extraction stage, or "none".
	Method ExtractionMethod `json:"extraction_method,omitempty" yaml:"extraction_method,omitempty"`

	// TextLength is the length in bytes of the extracted text.
	TextLength int `json:"text_length" yaml:"text_length"`

	// Validation is the affiliation match result over the extracted text.
	Validation *Validation `json:"validation,omitempty" yaml:"validation,omitempty"`

	// Summary is the optional generated summary of the extracted text.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Timestamp records when the publication was processed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RunStatus is the terminal state of a harvest run.
type RunStatus string

const (
	// RunCompleted means every admitted unit finished without an
	// unhandled failure.
	RunCompleted RunStatus = "completed"
	// RunFailed means an unhandled failure surfaced. Records already
	// persisted remain valid.
	RunFailed RunStatus = "failed"
)

// RunSummary accumulates run-level statistics. The scheduler owns it for
// the duration of the run and returns it once all units have drained.
type RunSummary struct {
	// RunID uniquely identifies the run (timestamp-derived).
	RunID string `json:"run_id" yaml:"run_id"`

	// OutputPath is the run's output location (run directory or
	// database path, depending on backend).
	OutputPath string `json:"output_path" yaml:"output_path"`

	// Status is the terminal run state.
	Status RunStatus `json:"status" yaml:"status"`

	// AuthorsProcessed counts author units that finished successfully.
	AuthorsProcessed int `json:"authors_processed" yaml:"authors_processed"`

	// AuthorsFailed counts author units that propagated a failure.
	AuthorsFailed int `json:"authors_failed" yaml:"authors_failed"`

	// PublicationsSaved counts publication records handed to the sink.
	PublicationsSaved int `json:"publications_saved" yaml:"publications_saved"`

	// DocumentsWithText counts publications whose document yielded text.
	DocumentsWithText int `json:"documents_with_text" yaml:"documents_with_text"`

	// ValidatedPositive counts publications whose text or metadata
	// matched a configured affiliation term.
	ValidatedPositive int `json:"validated_positive" yaml:"validated_positive"`

	// SummariesGenerated counts publications that received a summary.
	SummariesGenerated int `json:"summaries_generated" yaml:"summaries_generated"`

	// Elapsed is the wall-clock run duration.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Truncate clips s to at most max runes. Clipping counts runes rather
// than bytes so a clipped value stays valid UTF-8 for the line-oriented
// export format.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
