package viz

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// Layout names accepted by GenerateHTML.
var ValidLayouts = []string{"force", "circle", "grid", "concentric"}

// SidebarSize is how many papers the ranked list beside the graph shows.
const SidebarSize = 25

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Layout string // one of ValidLayouts; empty means force
	Title  string
}

// DefaultOptions returns the options used by the build command.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{Layout: "force", Title: "Citation graph"}
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

type pageData struct {
	Title     string
	Empty     bool
	NodeCount int
	EdgeCount int
	Ranked    []Node
	GraphJSON template.JS
	Layout    string
}

// GenerateHTML renders graph as a standalone page: the Cytoscape.js view,
// a ranked list of the top papers, and a detail panel for the selection.
func GenerateHTML(graph *GraphData, opts HTMLOptions) (string, error) {
	if graph == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}
	layout, err := cytoscapeLayout(opts.Layout)
	if err != nil {
		return "", err
	}

	data := pageData{
		Title:     opts.Title,
		Empty:     graph.IsEmpty(),
		NodeCount: len(graph.Nodes),
		EdgeCount: len(graph.Edges),
		Layout:    layout,
	}
	if data.Title == "" {
		data.Title = DefaultOptions().Title
	}

	if !data.Empty {
		elements, err := graph.ToCytoscapeJSON()
		if err != nil {
			return "", err
		}
		data.GraphJSON = template.JS(elements)
		data.Ranked = rankedNodes(graph.Nodes, SidebarSize)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return buf.String(), nil
}

// cytoscapeLayout maps a layout name to the Cytoscape.js algorithm.
func cytoscapeLayout(name string) (string, error) {
	switch name {
	case "", "force":
		return "cose", nil
	case "circle", "grid", "concentric":
		return name, nil
	default:
		return "", fmt.Errorf("invalid layout %q: must be one of %s", name, strings.Join(ValidLayouts, ", "))
	}
}

// rankedNodes returns up to n nodes by descending rank.
func rankedNodes(nodes []Node, n int) []Node {
	out := append([]Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if not .Empty}}
<script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
{{- end}}
<style>
  html, body { margin: 0; height: 100%; font: 13px system-ui, sans-serif; color: #222; }
  header { height: 40px; display: flex; align-items: center; gap: 16px; padding: 0 14px;
           border-bottom: 1px solid #ddd; background: #fafafa; }
  header h1 { font-size: 15px; margin: 0; }
  header .counts { color: #777; }
  header input { margin-left: auto; width: 240px; padding: 4px 8px; }
  main { display: grid; grid-template-columns: 300px 1fr; height: calc(100% - 41px); }
  aside { overflow-y: auto; border-right: 1px solid #ddd; }
  aside ol { margin: 0; padding: 6px 10px 6px 34px; }
  aside li { padding: 3px 0; cursor: pointer; }
  aside li:hover { color: #1f6feb; }
  aside li .score { color: #999; font-variant-numeric: tabular-nums; }
  aside li.stub { color: #888; font-style: italic; }
  #details { border-top: 1px solid #ddd; padding: 10px 12px; min-height: 90px; }
  #details .heading { font-weight: 600; margin-bottom: 4px; }
  #details .row { color: #555; }
  #graph { width: 100%; height: 100%; }
  .empty { display: flex; flex-direction: column; align-items: center; justify-content: center;
           height: 100%; color: #666; }
  .empty code { background: #eee; padding: 1px 5px; }
</style>
</head>
<body>
{{- if .Empty}}
<div class="empty">
  <h2>No graph data</h2>
  <p>Nothing has been ranked yet.</p>
  <p>Run <code>citegraph build --metadata papers.csv --citations events.jsonl</code></p>
</div>
{{- else}}
<header>
  <h1>{{.Title}}</h1>
  <span class="counts">{{.NodeCount}} papers, {{.EdgeCount}} citation links</span>
  <input id="filter" type="search" placeholder="Filter by title or id">
</header>
<main>
  <aside>
    <ol>
    {{- range .Ranked}}
      <li data-id="{{.ID}}"{{if eq .Type "placeholder"}} class="stub"{{end}}>
        <span class="score">{{printf "%.3f" .Rank}}</span> {{.Label}}
      </li>
    {{- end}}
    </ol>
    <div id="details">Click a paper to see its details.</div>
  </aside>
  <div id="graph"></div>
</main>
<script>
(function() {
  const elements = {{.GraphJSON}};
  const layout = "{{.Layout}}";

  const cy = cytoscape({
    container: document.getElementById('graph'),
    elements: elements,
    minZoom: 0.1,
    style: [
      { selector: 'node', style: {
          'label': 'data(label)', 'font-size': 9, 'text-valign': 'bottom', 'text-margin-y': 4,
          'width': 'mapData(rank, 0, 1, 10, 64)', 'height': 'mapData(rank, 0, 1, 10, 64)',
          'background-color': 'mapData(rank, 0, 1, #9ecae1, #08519c)' } },
      { selector: 'node[type="placeholder"]', style: { 'shape': 'diamond', 'background-color': '#bbb' } },
      { selector: 'edge', style: {
          'width': 'mapData(count, 1, 5, 0.8, 4)', 'line-color': '#ccc',
          'target-arrow-color': '#ccc', 'target-arrow-shape': 'vee', 'curve-style': 'bezier' } },
      { selector: '.focus', style: { 'border-width': 3, 'border-color': '#e6550d' } },
      { selector: '.faded', style: { 'opacity': 0.15 } }
    ],
    layout: {
      name: layout,
      animate: false,
      nodeRepulsion: 9000,
      concentric: function(n) { return n.data('rank'); },
      levelWidth: function() { return 0.1; }
    }
  });

  const details = document.getElementById('details');

  function text(s) {
    const span = document.createElement('span');
    span.textContent = s == null ? '' : String(s);
    return span.innerHTML;
  }

  function describe(n) {
    const d = n.data();
    let html = '<div class="heading">' + text(d.title || d.id) + '</div>';
    if (d.type === 'placeholder') html += '<div class="row">known only from citations</div>';
    if (d.year) html += '<div class="row">' + d.year + '</div>';
    html += '<div class="row">rank ' + d.rank.toFixed(4) + ', ' + d.citationCount + ' citations</div>';
    html += '<div class="row">cites ' + n.outgoers('node').length + ', cited by ' + n.incomers('node').length + ' shown</div>';
    if (d.url) html += '<div class="row"><a href="' + text(d.url) + '" target="_blank" rel="noopener">open</a></div>';
    return html;
  }

  function focus(n) {
    cy.elements().removeClass('focus faded');
    if (!n) { details.textContent = 'Click a paper to see its details.'; return; }
    const hood = n.closedNeighborhood();
    cy.elements().not(hood).addClass('faded');
    n.addClass('focus');
    details.innerHTML = describe(n);
  }

  cy.on('tap', 'node', function(evt) { focus(evt.target); });
  cy.on('tap', function(evt) { if (evt.target === cy) focus(null); });

  document.querySelectorAll('aside li').forEach(function(li) {
    li.addEventListener('click', function() {
      const n = cy.getElementById(li.dataset.id);
      if (n.empty()) return;
      focus(n);
      cy.animate({ center: { eles: n }, zoom: Math.max(cy.zoom(), 1) }, { duration: 300 });
    });
  });

  document.getElementById('filter').addEventListener('input', function(evt) {
    const q = evt.target.value.trim().toLowerCase();
    cy.nodes().forEach(function(n) {
      const hit = !q || (n.data('title') || '').toLowerCase().includes(q) || n.id().toLowerCase().includes(q);
      n.style('display', hit ? 'element' : 'none');
    });
  });
})();
</script>
{{- end}}
</body>
</html>
`
