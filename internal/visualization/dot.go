// Package visualization renders corpus graph documents in various output formats.
package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat maps a user-supplied name to a Format. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatDOT:
		return FormatDOT, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use 'dot', 'json', or 'html')", s)
	}
}

// nodeColors maps node types to DOT colors.
var nodeColors = map[models.NodeType]string{
	models.NodeTypeDecision:   "steelblue",
	models.NodeTypeLearning:   "mediumseagreen",
	models.NodeTypeEnrichment: "goldenrod",
}

// edgeStyles maps relations to DOT styles.
var edgeStyles = map[models.Relation]string{
	models.RelationRelatedTo:  "dotted",
	models.RelationSupersedes: "bold",
	models.RelationEnriches:   "dashed",
}

// RenderDOT produces a Graphviz DOT representation of a graph document.
// relatedTo edges are drawn without arrowheads.
func RenderDOT(doc *models.GraphDocument) string {
	var b strings.Builder
	b.WriteString("digraph corpus {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	if doc == nil {
		b.WriteString("}\n")
		return b.String()
	}

	for _, n := range doc.Nodes {
		color := nodeColors[n.Type]
		if color == "" {
			color = "lightgray"
		}
		label := truncate(n.Title, 40)
		if label == "" {
			label = n.ID
		}
		fmt.Fprintf(&b, "  %q [label=%q, fillcolor=%q, tooltip=\"%s confidence=%.2f decay=%.2f\"];\n",
			n.ID, label, color, n.Type, n.Confidence, n.DecayScore)
	}
	b.WriteString("\n")

	for _, e := range doc.Edges {
		style := edgeStyles[e.Relation]
		if style == "" {
			style = "solid"
		}
		dir := ""
		if e.Relation.Symmetric() {
			dir = ", dir=none"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q, style=%s%s];\n", e.Source, e.Target, e.Relation, style, dir)
	}

	b.WriteString("}\n")
	return b.String()
}

// GraphNode is a node in the JSON rendering.
type GraphNode struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Type       models.NodeType `json:"type"`
	Category   string          `json:"category,omitempty"`
	Confidence float64         `json:"confidence"`
	DecayScore float64         `json:"decay_score"`
	PageRank   *float64        `json:"pagerank,omitempty"`
}

// GraphEdge is an edge in the JSON rendering.
type GraphEdge struct {
	Source   string          `json:"source"`
	Target   string          `json:"target"`
	Relation models.Relation `json:"relation"`
	Reason   string          `json:"reason,omitempty"`
}

// Graph is the JSON rendering of a graph document.
type Graph struct {
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
	BuildID   string      `json:"build_id,omitempty"`
}

// RenderJSON produces the node/edge view of a graph document. When pageRank
// is non-nil each node carries its score.
func RenderJSON(doc *models.GraphDocument, pageRank map[string]float64) Graph {
	g := Graph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if doc == nil {
		return g
	}
	g.BuildID = doc.BuildID

	for _, n := range doc.Nodes {
		gn := GraphNode{
			ID:         n.ID,
			Title:      n.Title,
			Type:       n.Type,
			Category:   n.Category,
			Confidence: n.Confidence,
			DecayScore: n.DecayScore,
		}
		if pr, ok := pageRank[n.ID]; ok {
			gn.PageRank = &pr
		}
		g.Nodes = append(g.Nodes, gn)
	}
	for _, e := range doc.Edges {
		g.Edges = append(g.Edges, GraphEdge{Source: e.Source, Target: e.Target, Relation: e.Relation, Reason: e.Reason})
	}
	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)
	return g
}

// htmlTemplateData holds data passed to the HTML template.
// GraphJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	Title     string
	Graph     Graph
	GraphJSON template.JS
}

// RenderHTML produces a self-contained HTML report listing every node and
// edge, with the JSON rendering embedded for scripting.
func RenderHTML(doc *models.GraphDocument, pageRank map[string]float64) ([]byte, error) {
	graph := RenderJSON(doc, pageRank)

	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("marshal graph data: %w", err)
	}

	tmplBytes, err := templates.ReadFile("templates/graph.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read HTML template: %w", err)
	}
	tmpl, err := template.New("graph").Funcs(template.FuncMap{"score": formatScore}).Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("parse HTML template: %w", err)
	}

	// json.HTMLEscape turns <, > and & into unicode escapes so node titles
	// cannot close the surrounding <script>.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, graphJSON)

	var buf bytes.Buffer
	data := htmlTemplateData{
		Title:     "Corpus graph",
		Graph:     graph,
		GraphJSON: template.JS(escaped.String()), // #nosec G203
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}

func formatScore(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *p)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
