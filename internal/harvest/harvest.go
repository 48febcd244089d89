// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest orchestrates a harvesting run: it drains the author
// collection, fans out per-author processing units under a bounded
// concurrency gate, and routes finished records to the persistence sink.
// Units are I/O bound, so the bound protects the remote API and the
// storage layer rather than parallelizing CPU work.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tdiprima/openalex-pipeline/internal/pdftext"
	"github.com/tdiprima/openalex-pipeline/internal/store"
	"github.com/tdiprima/openalex-pipeline/internal/validate"
	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// API is the paginated metadata source. The production implementation is
// the openalex client; tests substitute stubs.
type API interface {
	ListAuthors(ctx context.Context, max int) ([]types.Author, error)
	ListWorks(ctx context.Context, authorID string, max int) ([]types.Publication, error)
}

// Extractor produces plain text from a downloaded document.
type Extractor interface {
	Extract(path string) types.Extraction
}

// Summarizer condenses extracted text. It is an optional collaborator;
// a nil Summarizer disables summarization. Summarizer failures are
// absorbed as per-document warnings.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// NewRunID derives a unique run identifier from the start time. The
// short uuid suffix keeps two runs started within the same second from
// sharing an output namespace.
func NewRunID(now time.Time) string {
	return "run_" + now.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// Pipeline wires the harvesting stages together for one run.
type Pipeline struct {
	API        API
	HTTPClient *http.Client
	Extractor  Extractor
	Sink       store.Sink
	Summarizer Summarizer

	// RunID identifies this run; OutputPath is where the sink persists.
	RunID      string
	OutputPath string

	cfg types.HarvestConfig
}

// NewPipeline creates a Pipeline for a single run. cfg is immutable for
// the run's duration.
func NewPipeline(api API, httpClient *http.Client, extractor Extractor, sink store.Sink, runID, outputPath string, cfg types.HarvestConfig) *Pipeline {
	return &Pipeline{
		API:        api,
		HTTPClient: httpClient,
		Extractor:  extractor,
		Sink:       sink,
		RunID:      runID,
		OutputPath: outputPath,
		cfg:        cfg,
	}
}

// runState accumulates statistics and the first fatal error across
// concurrently-running units.
type runState struct {
	mu sync.Mutex

	authorsProcessed   int
	authorsFailed      int
	publicationsSaved  int
	documentsWithText  int
	validatedPositive  int
	summariesGenerated int

	fatal error
}

func (st *runState) recordFatal(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.fatal == nil {
		st.fatal = err
	}
}

func (st *runState) fatalErr() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.fatal
}

// Run executes the harvest: fetch authors, process them concurrently,
// drain, and close the sink with the final summary. A unit failure is
// counted and absorbed; a persistence failure stops admission of
// waiting units, lets in-flight units finish, and fails the run.
// Records already persisted stand either way.
func (p *Pipeline) Run(ctx context.Context, w io.Writer) (types.RunSummary, error) {
	start := time.Now()
	summary := types.RunSummary{
		RunID:      p.RunID,
		OutputPath: p.OutputPath,
		Status:     types.RunFailed,
	}

	fmt.Fprintf(w, "run %s: fetching up to %d authors...\n", p.RunID, p.cfg.MaxAuthors)
	authors, err := p.API.ListAuthors(ctx, p.cfg.MaxAuthors)
	if err != nil {
		summary.Elapsed = time.Since(start)
		if closeErr := p.Sink.Close(summary); closeErr != nil {
			fmt.Fprintf(w, "closing sink: %v\n", closeErr)
		}
		return summary, fmt.Errorf("fetching authors: %w", err)
	}
	fmt.Fprintf(w, "found %d authors, processing with concurrency %d\n", len(authors), p.concurrency())

	st := &runState{}
	sem := make(chan struct{}, p.concurrency())
	var wg sync.WaitGroup

	for _, author := range authors {
		// Stop admitting new units once a fatal failure surfaced.
		// Units already in flight run to completion.
		if st.fatalErr() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(author types.Author) {
			defer wg.Done()
			defer func() { <-sem }()

			err := p.processAuthor(ctx, author, st, w)
			st.mu.Lock()
			defer st.mu.Unlock()
			switch {
			case err == nil:
				st.authorsProcessed++
			case isPersistence(err):
				st.authorsFailed++
				if st.fatal == nil {
					st.fatal = err
				}
				fmt.Fprintf(w, "fatal: %s: %v\n", author.Name, err)
			default:
				st.authorsFailed++
				fmt.Fprintf(w, "failed: %s (%v)\n", author.Name, err)
			}
		}(author)
	}
	wg.Wait()

	st.mu.Lock()
	summary.AuthorsProcessed = st.authorsProcessed
	summary.AuthorsFailed = st.authorsFailed
	summary.PublicationsSaved = st.publicationsSaved
	summary.DocumentsWithText = st.documentsWithText
	summary.ValidatedPositive = st.validatedPositive
	summary.SummariesGenerated = st.summariesGenerated
	fatal := st.fatal
	st.mu.Unlock()

	if fatal == nil {
		summary.Status = types.RunCompleted
	}
	summary.Elapsed = time.Since(start)

	if err := p.Sink.Close(summary); err != nil {
		summary.Status = types.RunFailed
		if fatal == nil {
			fatal = err
		}
	}

	fmt.Fprintf(w, "\nrun %s %s: %d authors (%d failed), %d publications, %d with text, %d validated, %v elapsed\n",
		summary.RunID, summary.Status, summary.AuthorsProcessed, summary.AuthorsFailed,
		summary.PublicationsSaved, summary.DocumentsWithText, summary.ValidatedPositive,
		summary.Elapsed.Round(time.Millisecond))

	return summary, fatal
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Concurrency <= 0 {
		return 1
	}
	return p.cfg.Concurrency
}

func isPersistence(err error) bool {
	var pe *store.PersistenceError
	return errors.As(err, &pe)
}

// processAuthor is one processing unit: upsert the author, fetch their
// publications, process each, and hand the records to the sink.
func (p *Pipeline) processAuthor(ctx context.Context, author types.Author, st *runState, w io.Writer) error {
	fmt.Fprintf(w, "processing %s (%d works, %d citations)\n", author.Name, author.WorksCount, author.CitedByCount)

	if err := p.Sink.UpsertAuthor(author); err != nil {
		return err
	}

	pubs, err := p.API.ListWorks(ctx, author.ID, p.cfg.MaxPubsPerAuthor)
	if err != nil {
		return fmt.Errorf("fetching publications for %s: %w", author.Name, err)
	}

	for i := range pubs {
		proc := p.processPublication(ctx, &pubs[i], author, w)
		pubs[i].Processing = proc

		if err := p.Sink.UpsertPublication(pubs[i]); err != nil {
			return err
		}

		st.mu.Lock()
		st.publicationsSaved++
		if proc.Method != types.MethodNone && proc.TextLength > 0 {
			st.documentsWithText++
		}
		if proc.Validation != nil && proc.Validation.Found {
			st.validatedPositive++
		}
		if proc.Summary != "" {
			st.summariesGenerated++
		}
		st.mu.Unlock()
	}

	fmt.Fprintf(w, "done: %s (%d publications)\n", author.Name, len(pubs))
	return nil
}

// processPublication optionally retrieves the publication's document,
// extracts text, and validates it. Per-document failures are absorbed:
// the record is still persisted, just without text.
func (p *Pipeline) processPublication(ctx context.Context, pub *types.Publication, author types.Author, w io.Writer) *types.Processing {
	proc := &types.Processing{
		Method:    types.MethodNone,
		Timestamp: time.Now().UTC(),
	}

	var text string
	if p.cfg.DownloadPDFs && pub.PDFURL != "" {
		dest := p.documentPath(pub.ID)
		if err := p.downloadDocument(ctx, pub.PDFURL, dest); err != nil {
			fmt.Fprintf(w, "  warning: download %s: %v\n", pub.ID, err)
		} else {
			proc.PDFDownloaded = true
			extraction := p.Extractor.Extract(dest)
			proc.Method = extraction.Method
			proc.TextLength = len(extraction.Text)
			text = extraction.Text

			if p.cfg.KeepPDFs {
				proc.PDFPath = dest
			} else {
				os.Remove(dest)
			}
		}
	}

	validation := validate.Check(text, author.Affiliations, p.cfg.MatchTerms)
	proc.Validation = &validation

	if p.Summarizer != nil && text != "" {
		summary, err := p.Summarizer.Summarize(ctx, text)
		if err != nil {
			fmt.Fprintf(w, "  warning: summarize %s: %v\n", pub.ID, err)
		} else {
			proc.Summary = summary
		}
	}

	return proc
}

func (p *Pipeline) downloadDocument(ctx context.Context, url, dest string) error {
	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return pdftext.Download(ctx, client, url, dest, p.cfg.API.HTTPConfig)
}

// documentPath places downloaded documents under the run's namespace,
// named by the identifier's final path segment.
func (p *Pipeline) documentPath(pubID string) string {
	base := path.Base(strings.TrimSuffix(pubID, "/"))
	if base == "" || base == "." || base == "/" {
		base = uuid.NewString()
	}
	return filepath.Join(p.cfg.Store.OutputDir, p.RunID, "pdfs", base+".pdf")
}
