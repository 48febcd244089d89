// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tdiprima/openalex-pipeline/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Inspect finished harvest runs",
	Long: `Query answers read-only lookups over chunked-store run directories:
list runs, show one run's statistics, search authors and publications,
or combine a run's publication chunks into a single JSONL stream.`,
}

var queryRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List harvest runs under the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output-dir")
		runs, err := query.ListRuns(outputDir)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs found")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTATUS\tAUTHORS\tPUBLICATIONS")
		for _, r := range runs {
			status := string(r.Status)
			if status == "" {
				status = "interrupted"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.RunID, status, r.Authors, r.Pubs)
		}
		return w.Flush()
	},
}

var queryStatsCmd = &cobra.Command{
	Use:   "stats <run-id>",
	Short: "Show one run's record counts and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openRun(cmd, args[0])
		if err != nil {
			return err
		}
		authors, pubs, err := d.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("run: %s\nauthors: %d\npublications: %d\n", args[0], authors, pubs)
		if m := d.Manifest(); m != nil {
			fmt.Printf("status: %s\nwith text: %d\nvalidated: %d\nelapsed: %s\n",
				m.Summary.Status, m.Summary.DocumentsWithText,
				m.Summary.ValidatedPositive, m.Summary.Elapsed)
		} else {
			fmt.Println("status: interrupted (no manifest)")
		}
		return nil
	},
}

var queryAuthorsCmd = &cobra.Command{
	Use:   "authors <run-id> [name-substring]",
	Short: "Search a run's authors by name",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openRun(cmd, args[0])
		if err != nil {
			return err
		}
		substr := ""
		if len(args) == 2 {
			substr = args[1]
		}
		authors, err := d.FindAuthors(substr)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tWORKS\tCITATIONS\tID")
		for _, a := range authors {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", a.Name, a.WorksCount, a.CitedByCount, a.ID)
		}
		return w.Flush()
	},
}

var queryPubsCmd = &cobra.Command{
	Use:   "pubs <run-id>",
	Short: "Search a run's publications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openRun(cmd, args[0])
		if err != nil {
			return err
		}
		author, _ := cmd.Flags().GetString("author")
		year, _ := cmd.Flags().GetInt("year")
		validated, _ := cmd.Flags().GetBool("validated")

		pubs, err := d.FindPublications(query.Filter{
			AuthorName:    author,
			Year:          year,
			ValidatedOnly: validated,
		})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "YEAR\tTITLE\tDOI")
		for _, p := range pubs {
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.Year, p.Title, p.DOI)
		}
		return w.Flush()
	},
}

var queryCombineCmd = &cobra.Command{
	Use:   "combine <run-id>",
	Short: "Stream a run's publications as one JSONL document to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openRun(cmd, args[0])
		if err != nil {
			return err
		}
		n, err := d.Combine(os.Stdout)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "combined %d records\n", n)
		return nil
	},
}

func openRun(cmd *cobra.Command, runID string) (*query.Dataset, error) {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	return query.Open(filepath.Join(outputDir, runID))
}

func init() {
	queryCmd.PersistentFlags().String("output-dir", "output", "base directory holding run directories")

	queryPubsCmd.Flags().String("author", "", "filter by author name substring")
	queryPubsCmd.Flags().Int("year", 0, "filter by publication year")
	queryPubsCmd.Flags().Bool("validated", false, "only publications with a positive affiliation match")

	queryCmd.AddCommand(queryRunsCmd, queryStatsCmd, queryAuthorsCmd, queryPubsCmd, queryCombineCmd)
	rootCmd.AddCommand(queryCmd)
}
