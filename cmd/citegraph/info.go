package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/storage"
)

var (
	infoDB    string
	infoLimit int
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize a built database",
	Long: `Report the run that produced a database: run id, build time, solver
outcome, node and edge counts, self-citations, and the citing/cited pairs
recorded most often.

Examples:
  citegraph info --human
  citegraph info --db out/citegraph.db -n 20`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoDB, "db", "", "Database path (default from output.dir/output.db)")
	infoCmd.Flags().IntVarP(&infoLimit, "limit", "n", 10, "Number of repeated pairs to list")
}

// InfoResult is the JSON output of the info command.
type InfoResult struct {
	Database      string                  `json:"database"`
	Run           storage.RunInfo         `json:"run"`
	Nodes         int                     `json:"nodes"`
	Edges         int                     `json:"edges"`
	RepeatedPairs []storage.DuplicateEdge `json:"repeated_pairs"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := dbPath(infoDB)
	db := mustOpenDatabase(path)
	defer db.Close()

	result, err := collectInfo(db, infoLimit)
	if err != nil {
		exitWithError(ExitError, "querying database: %v", err)
	}
	result.Database = path

	if humanOutput {
		printInfoHuman(result)
		return nil
	}
	return outputJSON(result)
}

// collectInfo reads the stored run summary and live table counts.
func collectInfo(db *storage.DB, limit int) (InfoResult, error) {
	var r InfoResult
	var err error
	if r.Run, err = db.GetRunInfo(); err != nil {
		return r, err
	}
	if r.Nodes, err = db.CountNodes(); err != nil {
		return r, err
	}
	if r.Edges, err = db.CountEdges(); err != nil {
		return r, err
	}
	if r.RepeatedPairs, err = db.GetDuplicateEdges(limit); err != nil {
		return r, err
	}
	if r.RepeatedPairs == nil {
		r.RepeatedPairs = []storage.DuplicateEdge{}
	}
	return r, nil
}

func printInfoHuman(r InfoResult) {
	outputHuman("Database: %s\n", r.Database)
	if r.Run.RunID != "" {
		outputHuman("Run:      %s\n", r.Run.RunID)
	}
	if !r.Run.BuiltAt.IsZero() {
		outputHuman("Built:    %s\n", r.Run.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	}
	outputHuman("Papers:   %d\n", r.Nodes)
	outputHuman("Edges:    %d (%d self-citations)\n", r.Edges, r.Run.SelfCitations)

	status := "converged"
	if !r.Run.Converged {
		status = "hit iteration cap"
	}
	if r.Run.Iterations > 0 {
		outputHuman("PageRank: %d iterations (%s), delta %.3g\n", r.Run.Iterations, status, r.Run.Delta)
	}

	if len(r.RepeatedPairs) > 0 {
		outputHuman("\nMost repeated citations:\n")
		for _, d := range r.RepeatedPairs {
			outputHuman("  %4dx  %s -> %s\n", d.Count, d.CitingID, d.CitedID)
		}
	}
}
