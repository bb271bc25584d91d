package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/incidentlab/topograph/pkg/incident"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds entity type, rank and anomaly score to node labels.
	// When false, only the entity name (or id) is shown.
	Detailed bool

	// ClusterRanks draws the entities of each rank inside a labelled box.
	ClusterRanks bool
}

// Fill colours by entity state, strongest first.
const (
	colorRoot    = "#f5b7b1"
	colorAnomaly = "#fadbd8"
	colorAlert   = "#fdebd0"
	colorNormal  = "white"
	colorEdgeBad = "#c0392b"
)

// ToDOT converts a snapshot to Graphviz DOT format for node-link
// visualization. The resulting DOT string can be rendered using [RenderSVG]
// or [RenderPNG].
//
// Root entities get a thick outline and anomalous or alerting entities are
// tinted. A representative that absorbed peers shows "(+N)" in its label and
// an edge that absorbed peers is labelled with its count. Non-dependency
// edges are dashed.
func ToDOT(s *incident.Snapshot, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if opts.ClusterRanks {
		writeClusters(&buf, s, opts)
	} else {
		for _, e := range s.Entities() {
			writeNode(&buf, "  ", e, opts)
		}
	}

	buf.WriteString("\n")
	for _, e := range s.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q", e.Source.ID, e.Target.ID)
		if attrs := edgeAttrs(e); len(attrs) > 0 {
			fmt.Fprintf(&buf, " [%s]", strings.Join(attrs, ", "))
		}
		buf.WriteString(";\n")
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeClusters(buf *bytes.Buffer, s *incident.Snapshot, opts Options) {
	byRank := make(map[*incident.Rank][]*incident.Entity)
	for _, e := range s.Entities() {
		byRank[e.Rank] = append(byRank[e.Rank], e)
	}
	for i, r := range s.Ranks() {
		members := byRank[r]
		if len(members) == 0 {
			continue
		}
		label := r.Alias
		if label == "" {
			label = r.Name
		}
		fmt.Fprintf(buf, "  subgraph \"cluster_%d\" {\n", i)
		fmt.Fprintf(buf, "    label=%q;\n", label)
		buf.WriteString("    style=\"rounded,dashed\";\n")
		buf.WriteString("    color=grey;\n")
		for _, e := range members {
			writeNode(buf, "    ", e, opts)
		}
		buf.WriteString("  }\n")
	}
}

func writeNode(buf *bytes.Buffer, indent string, e *incident.Entity, opts Options) {
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, e.ID, strings.Join(nodeAttrs(e, fmtLabel(e, opts.Detailed)), ", "))
}

func fmtLabel(e *incident.Entity, detailed bool) string {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	if n := len(e.AggregatedEntities); n > 0 {
		name = fmt.Sprintf("%s (+%d)", name, n)
	}
	if !detailed {
		return name
	}

	parts := []string{"type: " + e.Type}
	if e.Rank != nil {
		parts = append(parts, "rank: "+e.Rank.Name)
	}
	if e.IsAnomaly {
		parts = append(parts, "score: "+strconv.FormatFloat(e.AnomalyScore, 'f', 2, 64))
	}
	return name + "\n" + strings.Join(parts, "\n")
}

func nodeAttrs(e *incident.Entity, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case e.IsRoot:
		attrs = append(attrs, "fillcolor=\""+colorRoot+"\"", "penwidth=3")
	case e.IsAnomaly:
		attrs = append(attrs, "fillcolor=\""+colorAnomaly+"\"")
	case e.IsOnAlert:
		attrs = append(attrs, "fillcolor=\""+colorAlert+"\"")
	}
	return attrs
}

func edgeAttrs(e *incident.Edge) []string {
	var attrs []string
	if n := e.Count(); n > 1 {
		attrs = append(attrs, fmt.Sprintf("label=\"x%d\"", n))
	}
	if e.Type != incident.EdgeTypeDependency {
		attrs = append(attrs, "style=dashed")
	}
	if e.IsAnomaly {
		attrs = append(attrs, "color=\""+colorEdgeBad+"\"", "penwidth=2")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	data, err := render(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(data), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
