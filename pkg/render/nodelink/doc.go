// Package nodelink renders incident snapshots as node-link diagrams.
//
// # Overview
//
// Entities appear as boxes connected by arrows along their edges. Roots,
// anomalous and alerting entities are coloured, aggregated representatives
// show how many peers they absorbed, and edges carry their aggregated count.
//
// # Usage
//
// Convert a snapshot to DOT format, then render:
//
//	dot := nodelink.ToDOT(snap, nodelink.Options{ClusterRanks: true})
//	svg, err := nodelink.RenderSVG(dot)
//	png, err := nodelink.RenderPNG(dot)
//
// # Options
//
//   - Detailed: node labels include entity type, rank and anomaly score
//   - ClusterRanks: entities are boxed by rank, in rank order
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG and
// PNG rendering; no Graphviz installation is needed.
package nodelink
