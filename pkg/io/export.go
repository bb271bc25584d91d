package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/incidentlab/topograph/pkg/incident"
)

// WriteSnapshot encodes the serialized form of s as indented JSON.
// The output can be re-imported with [ReadSnapshot].
func WriteSnapshot(s *incident.Snapshot, w io.Writer) error {
	return WriteJSON(s.Content(), w)
}

// ExportSnapshot writes s to a JSON file at path.
func ExportSnapshot(s *incident.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteSnapshot(s, f)
}

// WriteRanks encodes layered rank rows as indented JSON.
func WriteRanks(rows []incident.RankRow, w io.Writer) error {
	if rows == nil {
		rows = []incident.RankRow{}
	}
	return WriteJSON(rows, w)
}

// WriteJSON encodes v as indented JSON followed by a newline.
func WriteJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
