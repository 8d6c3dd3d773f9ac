package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/viz"
)

var (
	vizDB     string
	vizOutput string
	vizNodes  int
	vizLayout string
	vizTitle  string
)

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Render the top of the ranked graph as interactive HTML",
	Long: `Generate a self-contained HTML page showing the highest-ranked papers
and the citations between them. Node size follows rank.

Layouts: force (default), circle, grid, concentric.

Examples:
  citegraph viz --output graph.html
  citegraph viz --nodes 500 --layout concentric > graph.html`,
	Args: cobra.NoArgs,
	RunE: runViz,
}

func init() {
	rootCmd.AddCommand(vizCmd)
	vizCmd.Flags().StringVar(&vizDB, "db", "", "Database path (default from output.dir/output.db)")
	vizCmd.Flags().StringVarP(&vizOutput, "output", "o", "", "Write HTML to file instead of stdout")
	vizCmd.Flags().IntVar(&vizNodes, "nodes", viz.DefaultMaxNodes, "Number of top-ranked papers to include")
	vizCmd.Flags().StringVar(&vizLayout, "layout", "force", "Layout: "+strings.Join(viz.ValidLayouts, ", "))
	vizCmd.Flags().StringVar(&vizTitle, "title", "", "Page title")
}

func runViz(cmd *cobra.Command, args []string) error {
	db := mustOpenDatabase(dbPath(vizDB))
	defer db.Close()

	data, err := viz.BuildGraphFromDatabase(db, vizNodes)
	if err != nil {
		exitWithError(ExitError, "building graph: %v", err)
	}

	html, err := viz.GenerateHTML(data, viz.HTMLOptions{Layout: vizLayout, Title: vizTitle})
	if err != nil {
		exitWithError(ExitError, "generating HTML: %v", err)
	}

	if vizOutput == "" {
		fmt.Print(html)
		return nil
	}
	if err := os.WriteFile(vizOutput, []byte(html), 0644); err != nil {
		exitWithError(ExitError, "writing output: %v", err)
	}
	logger.Info().Str("path", vizOutput).Int("nodes", len(data.Nodes)).Msg("wrote visualization")
	return nil
}
