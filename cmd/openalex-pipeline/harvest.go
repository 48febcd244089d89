// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tdiprima/openalex-pipeline/internal/harvest"
	"github.com/tdiprima/openalex-pipeline/internal/openalex"
	"github.com/tdiprima/openalex-pipeline/internal/pdftext"
	"github.com/tdiprima/openalex-pipeline/internal/store"
	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "openalex-pipeline/0.1"

	// Stony Brook University's Research Organization Registry ID.
	defaultROR = "https://ror.org/05qghxh33"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect authors and publications for an institution",
	Long: `Harvest fetches the institution's most-cited authors and their recent
publications from OpenAlex and persists them through the selected
backend. With --download-pdfs it also retrieves open-access documents,
extracts their text, and scans it for affiliation terms.

Both backends are idempotent: the sqlite backend upserts on the OpenAlex
identifier, and the chunks backend isolates each run in its own output
directory. Re-running over the same scope is always safe.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().String("email", "", "contact email for the OpenAlex polite pool (default: openalex-email secret)")
	harvestCmd.Flags().String("ror", "", "institution ROR ID (default: Stony Brook University)")
	harvestCmd.Flags().Int("authors", 100, "maximum authors to harvest")
	harvestCmd.Flags().Int("pubs", 50, "maximum publications per author (newest first)")
	harvestCmd.Flags().Int("concurrency", 4, "author units processed at once")
	harvestCmd.Flags().String("backend", "chunks", "persistence backend: sqlite or chunks")
	harvestCmd.Flags().String("output-dir", "output", "base directory for run output")
	harvestCmd.Flags().String("db-path", "", "SQLite database path (default: <output-dir>/openalex.db)")
	harvestCmd.Flags().Bool("download-pdfs", false, "retrieve open-access documents and extract text")
	harvestCmd.Flags().Bool("keep-pdfs", false, "keep downloaded documents under the run directory")
	harvestCmd.Flags().Bool("ocr", false, "enable optical recognition for documents without a text layer")
	harvestCmd.Flags().Bool("compress", false, "gzip chunk files (chunks backend)")
	harvestCmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
	harvestCmd.Flags().StringSlice("match-term", nil, "affiliation term to scan for (repeatable; default: Stony Brook terms)")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := harvestConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.API.Email == "" {
		fmt.Fprintln(os.Stderr, "warning: no contact email configured; requests run outside the OpenAlex polite pool")
	}

	runID := harvest.NewRunID(time.Now())

	sink, outputPath, err := openSink(cfg, runID)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	api := openalex.New(httpClient, cfg.API)
	extractor := pdftext.New(cfg.Extraction, pdftext.NewRunner())

	p := harvest.NewPipeline(api, httpClient, extractor, sink, runID, outputPath, cfg)
	summary, err := p.Run(cmd.Context(), os.Stdout)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", summary.RunID, err)
	}
	return nil
}

// harvestConfig resolves flags, config file values, and secrets into the
// run configuration. Flags win over the config file; the config file
// wins over secrets.
func harvestConfig(cmd *cobra.Command) (types.HarvestConfig, error) {
	flags := cmd.Flags()

	email, _ := flags.GetString("email")
	if email == "" {
		email = viper.GetString("email")
	}
	email = secretDefault("openalex-email", email)

	ror, _ := flags.GetString("ror")
	if ror == "" {
		ror = viper.GetString("institution_ror")
	}
	if ror == "" {
		ror = defaultROR
	}

	backend, _ := flags.GetString("backend")
	switch types.StoreBackend(backend) {
	case types.BackendSQLite, types.BackendChunked:
	default:
		return types.HarvestConfig{}, fmt.Errorf("unknown backend %q (want sqlite or chunks)", backend)
	}

	maxAuthors, _ := flags.GetInt("authors")
	maxPubs, _ := flags.GetInt("pubs")
	if maxAuthors <= 0 || maxPubs <= 0 {
		return types.HarvestConfig{}, fmt.Errorf("--authors and --pubs must be positive")
	}
	concurrency, _ := flags.GetInt("concurrency")
	outputDir, _ := flags.GetString("output-dir")
	dbPath, _ := flags.GetString("db-path")
	if dbPath == "" {
		dbPath = filepath.Join(outputDir, "openalex.db")
	}
	timeout, _ := flags.GetDuration("timeout")
	downloadPDFs, _ := flags.GetBool("download-pdfs")
	keepPDFs, _ := flags.GetBool("keep-pdfs")
	enableOCR, _ := flags.GetBool("ocr")
	compress, _ := flags.GetBool("compress")
	matchTerms, _ := flags.GetStringSlice("match-term")

	return types.HarvestConfig{
		API: types.APIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   timeout,
				UserAgent: defaultUserAgent,
			},
			Email:          email,
			InstitutionROR: ror,
		},
		Extraction: types.ExtractionConfig{EnableOCR: enableOCR},
		Store: types.StoreConfig{
			Backend:   types.StoreBackend(backend),
			OutputDir: outputDir,
			DBPath:    dbPath,
			Compress:  compress,
		},
		MaxAuthors:       maxAuthors,
		MaxPubsPerAuthor: maxPubs,
		Concurrency:      concurrency,
		DownloadPDFs:     downloadPDFs,
		KeepPDFs:         keepPDFs,
		MatchTerms:       matchTerms,
	}, nil
}

// openSink opens the configured backend and reports the run's output
// location.
func openSink(cfg types.HarvestConfig, runID string) (store.Sink, string, error) {
	switch cfg.Store.Backend {
	case types.BackendSQLite:
		s, err := store.OpenSQLite(cfg.Store.DBPath)
		if err != nil {
			return nil, "", fmt.Errorf("opening sqlite backend: %w", err)
		}
		return s, cfg.Store.DBPath, nil
	default:
		c, err := store.OpenChunked(cfg.Store, runID)
		if err != nil {
			return nil, "", fmt.Errorf("opening chunked backend: %w", err)
		}
		return c, c.RunDir(), nil
	}
}
