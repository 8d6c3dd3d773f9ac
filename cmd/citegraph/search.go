package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/storage"
)

var (
	searchLimit int
	searchDB    string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored paper titles",
	Long: `Search paper ids and titles in a built database.
Results are ordered by rank.

Examples:
  citegraph search "phylogenetic inference" --human
  citegraph search bayes -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", DefaultTopLimit, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchDB, "db", "", "Database path (default from output.dir/output.db)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	db := mustOpenDatabase(dbPath(searchDB))
	defer db.Close()

	results, err := db.Search(args[0], searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	if humanOutput {
		printRankedHuman(results)
		return nil
	}
	if results == nil {
		results = []storage.RankedPaper{}
	}
	return outputJSON(results)
}
