// Package render groups the visual outputs of incident snapshots.
//
// The [nodelink] subpackage renders a snapshot as a Graphviz node-link
// diagram (DOT, SVG, PNG):
//
//	dot := nodelink.ToDOT(snap, nodelink.Options{ClusterRanks: true})
//	svg, err := nodelink.RenderSVG(dot)
//
// [nodelink]: github.com/incidentlab/topograph/pkg/render/nodelink
package render
