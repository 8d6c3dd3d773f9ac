package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/export"
	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/storage"
)

var (
	topLimit  int
	topDB     string
	topFormat string
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the highest-ranked papers",
	Long: `List the highest-ranked papers from a built database.

Formats: json (default), bibtex. --human prints a table.

Examples:
  citegraph top -n 50 --human
  citegraph top -n 100 --format bibtex > reading-list.bib`,
	Args: cobra.NoArgs,
	RunE: runTop,
}

func init() {
	rootCmd.AddCommand(topCmd)
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", DefaultTopLimit, "Number of papers")
	topCmd.Flags().StringVar(&topDB, "db", "", "Database path (default from output.dir/output.db)")
	topCmd.Flags().StringVar(&topFormat, "format", "json", "Output format: json or bibtex")
}

func runTop(cmd *cobra.Command, args []string) error {
	if topFormat != "json" && topFormat != "bibtex" {
		exitWithError(ExitError, "invalid format %q: must be json or bibtex", topFormat)
	}

	db := mustOpenDatabase(dbPath(topDB))
	defer db.Close()

	top, err := db.TopRanked(topLimit)
	if err != nil {
		exitWithError(ExitError, "querying database: %v", err)
	}

	switch {
	case topFormat == "bibtex":
		papers := make([]paper.Paper, len(top))
		for i, n := range top {
			papers[i] = n.Paper
		}
		fmt.Print(export.ToBibTeXList(papers))
	case humanOutput:
		printRankedHuman(top)
	default:
		if top == nil {
			top = []storage.RankedPaper{}
		}
		return outputJSON(top)
	}
	return nil
}

// printRankedHuman prints a numbered table of ranked papers.
func printRankedHuman(papers []storage.RankedPaper) {
	if len(papers) == 0 {
		outputHuman("No papers found\n")
		return
	}
	for i, p := range papers {
		year := "----"
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		marker := ""
		if p.Placeholder {
			marker = " *"
		}
		outputHuman("%3d. %.4f  %s  %s%s\n", i+1, p.Rank, year, truncateString(p.Title, ListTitleMaxLen), marker)
		outputHuman("     %s (%d citations)\n", p.ID, p.CitationCount)
	}
}
