package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
)

// ReadContent decodes snapshot content from r without building a snapshot.
// Malformed JSON is reported as INVALID_FORMAT.
func ReadContent(r io.Reader) (*incident.Content, error) {
	var c incident.Content
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot")
	}
	return &c, nil
}

// ReadSnapshot decodes snapshot content from r and loads it.
//
// ReadSnapshot returns the errors of [incident.Load] unchanged, so reference
// and validation failures keep their codes. ReadSnapshot does not close r.
func ReadSnapshot(r io.Reader) (*incident.Snapshot, error) {
	c, err := ReadContent(r)
	if err != nil {
		return nil, err
	}
	return incident.Load(c)
}

// ImportContent reads the snapshot content file at path without loading it.
func ImportContent(path string) (*incident.Content, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ReadContent(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ImportSnapshot reads the snapshot file at path.
func ImportSnapshot(path string) (*incident.Snapshot, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadAggregateConfig decodes an aggregation config. format is "toml" or
// "json".
//
// TOML configs hold one table per entity type:
//
//	[BcsPod]
//	aggregate_keys = ["BcsNode"]
//	aggregate_anomaly = false
func ReadAggregateConfig(r io.Reader, format string) (incident.AggregateConfig, error) {
	cfg := make(incident.AggregateConfig)
	switch format {
	case "toml":
		md, err := toml.NewDecoder(r).Decode(&cfg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode aggregate config")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown aggregate config key %s", undecoded[0])
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode aggregate config")
		}
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "aggregate config format %q", format)
	}
	return cfg, nil
}

// ImportAggregateConfig reads an aggregation config file, choosing the
// format from its extension. Files without a .json extension are read as
// TOML.
func ImportAggregateConfig(path string) (incident.AggregateConfig, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	format := "toml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	cfg, err := ReadAggregateConfig(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
