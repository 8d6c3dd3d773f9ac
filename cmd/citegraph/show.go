package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citegraph/internal/edge"
	"github.com/matsen/citegraph/internal/storage"
)

var showDB string

var showCmd = &cobra.Command{
	Use:   "show <paper-id>",
	Short: "Show a paper with its citations",
	Long: `Show a stored paper, the papers it cites, and the papers citing it.
Repeated citations of the same pair are reported with a count.

Examples:
  citegraph show 649def34f8be52c8b66281af98ae884c09aef38b --human`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVar(&showDB, "db", "", "Database path (default from output.dir/output.db)")
}

// ShowResult is the JSON output of the show command.
type ShowResult struct {
	Paper   storage.RankedPaper `json:"paper"`
	Cites   []CitationLink      `json:"cites"`
	CitedBy []CitationLink      `json:"cited_by"`
}

// CitationLink is a neighbouring paper and how many times the pair was recorded.
type CitationLink struct {
	ID    string  `json:"id"`
	Title string  `json:"title,omitempty"`
	Rank  float64 `json:"rank"`
	Count int     `json:"count"`
}

func runShow(cmd *cobra.Command, args []string) error {
	id := args[0]

	db := mustOpenDatabase(dbPath(showDB))
	defer db.Close()

	node, err := db.GetNode(id)
	if err != nil {
		exitWithError(ExitError, "querying database: %v", err)
	}
	if node == nil {
		exitWithError(ExitDataError, "paper not found: %s", id)
	}

	out, err := db.GetEdgesBySource(id)
	if err != nil {
		exitWithError(ExitError, "querying citations: %v", err)
	}
	in, err := db.GetEdgesByTarget(id)
	if err != nil {
		exitWithError(ExitError, "querying citations: %v", err)
	}

	cites, err := collectLinks(db, out, func(c edge.Citation) string { return c.CitedID })
	if err != nil {
		exitWithError(ExitError, "querying cited papers: %v", err)
	}
	citedBy, err := collectLinks(db, in, func(c edge.Citation) string { return c.CitingID })
	if err != nil {
		exitWithError(ExitError, "querying citing papers: %v", err)
	}

	result := ShowResult{Paper: *node, Cites: cites, CitedBy: citedBy}

	if humanOutput {
		printShowHuman(result)
		return nil
	}
	return outputJSON(result)
}

// collectLinks groups citations by neighbour, keeping first-seen order.
func collectLinks(db *storage.DB, citations []edge.Citation, other func(edge.Citation) string) ([]CitationLink, error) {
	links := []CitationLink{}
	index := make(map[string]int)
	for _, c := range citations {
		id := other(c)
		if i, ok := index[id]; ok {
			links[i].Count++
			continue
		}
		link := CitationLink{ID: id, Count: 1}
		n, err := db.GetNode(id)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", id, err)
		}
		if n != nil {
			link.Title = n.Title
			link.Rank = n.Rank
		}
		index[id] = len(links)
		links = append(links, link)
	}
	return links, nil
}

func printShowHuman(r ShowResult) {
	p := r.Paper
	outputHuman("%s\n", truncateString(p.Title, DetailTitleMaxLen))
	outputHuman("  ID:        %s\n", p.ID)
	if p.Year > 0 {
		outputHuman("  Year:      %d\n", p.Year)
	}
	outputHuman("  Citations: %d\n", p.CitationCount)
	outputHuman("  Rank:      %.6f\n", p.Rank)
	if p.URL != "" {
		outputHuman("  URL:       %s\n", p.URL)
	}
	if p.Placeholder {
		outputHuman("  (no metadata record; known only from citations)\n")
	}

	printLinks := func(header string, links []CitationLink) {
		outputHuman("\n%s (%d):\n", header, len(links))
		for _, l := range links {
			count := ""
			if l.Count > 1 {
				count = fmt.Sprintf(" x%d", l.Count)
			}
			outputHuman("  %.4f  %s%s\n", l.Rank, truncateString(l.Title, ListTitleMaxLen), count)
			outputHuman("          %s\n", l.ID)
		}
	}
	printLinks("Cites", r.Cites)
	printLinks("Cited by", r.CitedBy)
}
