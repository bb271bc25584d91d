package pipeline

import (
	"bytes"
	"fmt"

	"github.com/incidentlab/topograph/pkg/incident"
	pkgio "github.com/incidentlab/topograph/pkg/io"
	"github.com/incidentlab/topograph/pkg/render/nodelink"
)

// RenderArtifacts generates output artifacts in the requested formats.
// The DOT source is built once and shared by the dot, svg and png outputs.
func RenderArtifacts(snap *incident.Snapshot, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))

	var dot string
	dotOnce := func() string {
		if dot == "" {
			dot = nodelink.ToDOT(snap, nodelink.Options{Detailed: opts.Detailed, ClusterRanks: opts.ClusterRanks})
		}
		return dot
	}

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatJSON:
			var buf bytes.Buffer
			err = pkgio.WriteSnapshot(snap, &buf)
			data = buf.Bytes()
		case FormatDOT:
			data = []byte(dotOnce())
		case FormatSVG:
			data, err = nodelink.RenderSVG(dotOnce())
		case FormatPNG:
			data, err = nodelink.RenderPNG(dotOnce())
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}
