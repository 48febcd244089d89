// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Its expiry is an ordinary
	// per-operation failure, not a retryable condition.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "openalex-pipeline/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// APIConfig holds settings for the OpenAlex fetch stage.
type APIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Email is the contact address sent as the mailto parameter for
	// polite-pool access. Optional; absence means reduced throughput.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// InstitutionROR is the Research Organization Registry ID used to
	// scope the author collection (default: Stony Brook University).
	InstitutionROR string `json:"institution_ror" yaml:"institution_ror"`

	// AuthorPageDelay is the minimum interval between author-collection
	// page requests (default 100ms).
	AuthorPageDelay time.Duration `json:"author_page_delay" yaml:"author_page_delay"`

	// WorkPageDelay is the minimum interval between per-author
	// publication page requests (default 50ms).
	WorkPageDelay time.Duration `json:"work_page_delay" yaml:"work_page_delay"`
}

// ExtractionConfig holds settings for the document-text-extraction stage.
type ExtractionConfig struct {
	// EnableOCR allows the optical-recognition stage to run when both
	// text-layer stages yield nothing.
	EnableOCR bool `json:"enable_ocr" yaml:"enable_ocr"`
}

// StoreBackend selects the persistence backend for a run.
type StoreBackend string

const (
	BackendSQLite  StoreBackend = "sqlite"
	BackendChunked StoreBackend = "chunks"
)

// StoreConfig holds settings for the persistence sink.
type StoreConfig struct {
	// Backend selects the sink: sqlite or chunks. Exactly one backend is
	// authoritative per run.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// OutputDir is the base directory for chunked-store run directories
	// (default "./output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// DBPath is the SQLite database path for the relational backend
	// (default "<output_dir>/openalex.db").
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// ChunkMaxRecords rotates a chunk file after this many records
	// (default 1000).
	ChunkMaxRecords int `json:"chunk_max_records" yaml:"chunk_max_records"`

	// ChunkMaxBytes rotates a chunk file after it exceeds this size
	// (default 64 MiB). Zero disables the byte threshold.
	ChunkMaxBytes int64 `json:"chunk_max_bytes" yaml:"chunk_max_bytes"`

	// Compress gzips chunk files as they are written.
	Compress bool `json:"compress" yaml:"compress"`
}

// HarvestConfig groups all stage configurations for one harvest run. It is
// resolved once at startup and passed down by value; stages never consult
// process-global state.
type HarvestConfig struct {
	API        APIConfig        `json:"api" yaml:"api"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Store      StoreConfig      `json:"store" yaml:"store"`

	// MaxAuthors caps the number of authors harvested.
	MaxAuthors int `json:"max_authors" yaml:"max_authors"`

	// MaxPubsPerAuthor caps publications fetched per author. Publication
	// pages are sorted newest-year-first, so the cap keeps the most
	// recent works.
	MaxPubsPerAuthor int `json:"max_pubs_per_author" yaml:"max_pubs_per_author"`

	// Concurrency bounds the number of author units processing at once.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DownloadPDFs enables document retrieval and the extraction/
	// validation stages. Off means metadata-only harvesting.
	DownloadPDFs bool `json:"download_pdfs" yaml:"download_pdfs"`

	// KeepPDFs retains downloaded documents under the run directory
	// instead of deleting them after extraction.
	KeepPDFs bool `json:"keep_pdfs" yaml:"keep_pdfs"`

	// MatchTerms are the affiliation substrings the validator scans for.
	MatchTerms []string `json:"match_terms" yaml:"match_terms"`
}
