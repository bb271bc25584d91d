// Package pipeline runs incident snapshot operations end to end.
//
// This package implements the load → closure → aggregate → ranks → render
// pipeline used by the CLI. By centralizing this logic, every entry point
// logs, times and reports hooks for the operations the same way.
//
// # Architecture
//
// The pipeline consists of five stages, all but the first optional:
//
//  1. Load: read snapshot content from a [store.Source] and build the snapshot
//  2. Closure: reduce the snapshot to the dependency closure of one entity,
//     locally or through the topology service
//  3. Aggregate: merge indistinguishable entities
//  4. Ranks: compute rank rows for display
//  5. Render: produce JSON, DOT, SVG or PNG artifacts
//
// # Usage
//
//	runner := pipeline.NewRunner(source, topologyClient, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Ref:       "mongo://snapshot-42",
//	    EntityID:  "pod-1",
//	    Aggregate: true,
//	    Formats:   []string{"svg"},
//	})
//	svg := result.Artifacts["svg"]
//
// [store.Source]: github.com/incidentlab/topograph/pkg/store.Source
package pipeline

import (
	"fmt"
	"time"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
}

// Depth policy names accepted by [ParseDepthPolicy].
const (
	DepthPolicyLastWrite = "last-write"
	DepthPolicyMax       = "max"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
type Options struct {
	// Ref names the snapshot: a file path or mongo://<snapshot-id>.
	Ref string `json:"ref"`

	// Closure options. The closure stage runs when EntityID is set.
	EntityID   string `json:"entity_id,omitempty"`
	ViaService bool   `json:"via_service,omitempty"`
	IncidentID int64  `json:"incident_id,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`

	// Aggregate options.
	Aggregate       bool                     `json:"aggregate,omitempty"`
	AggregateConfig incident.AggregateConfig `json:"aggregate_config,omitempty"`
	FeedbackRoot    string                   `json:"feedback_root,omitempty"`

	// Rank options.
	DepthPolicy incident.DepthPolicy `json:"depth_policy,omitempty"`

	// Render options.
	Formats      []string `json:"formats,omitempty"`
	Detailed     bool     `json:"detailed,omitempty"`
	ClusterRanks bool     `json:"cluster_ranks,omitempty"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Snapshot is the final snapshot after closure and aggregation.
	Snapshot *incident.Snapshot

	// Before summarises the snapshot as loaded.
	Before incident.Stats

	// Ranks are the rank rows of the final snapshot.
	Ranks []incident.RankRow

	// Aggregate reports what aggregation merged. Zero when not requested.
	Aggregate incident.AggregateStats

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Timing contains per-stage durations.
	Timing Timing
}

// Timing contains pipeline stage durations.
type Timing struct {
	Load      time.Duration
	Closure   time.Duration
	Aggregate time.Duration
	Ranks     time.Duration
	Render    time.Duration
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: json, dot, svg, png)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseDepthPolicy maps a policy name to a depth policy. The empty name
// selects last-write.
func ParseDepthPolicy(name string) (incident.DepthPolicy, error) {
	switch name {
	case "", DepthPolicyLastWrite:
		return incident.DepthLastWrite, nil
	case DepthPolicyMax:
		return incident.DepthMax, nil
	default:
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid depth policy: %q (must be one of: last-write, max)", name)
	}
}

// =============================================================================
// Options Methods
// =============================================================================

// Validate checks required fields and the closure and render options.
func (o *Options) Validate() error {
	if o.Ref == "" {
		return errors.New(errors.ErrCodeInvalidInput, "snapshot reference is required")
	}
	if err := o.ValidateForClosure(); err != nil {
		return err
	}
	return ValidateFormats(o.Formats)
}

// ValidateForClosure checks the closure options. It is a no-op when no
// entity is selected.
func (o *Options) ValidateForClosure() error {
	if o.EntityID == "" {
		if o.ViaService {
			return errors.New(errors.ErrCodeInvalidInput, "an entity id is required for a service closure")
		}
		return nil
	}
	if err := errors.ValidateEntityID(o.EntityID); err != nil {
		return err
	}
	if o.ViaService {
		if o.IncidentID <= 0 {
			return errors.New(errors.ErrCodeInvalidInput, "incident id is required for a service closure")
		}
		if err := errors.ValidateSnapshotID(o.SnapshotID); err != nil {
			return err
		}
	}
	return nil
}

// WantsClosure reports whether the closure stage runs.
func (o *Options) WantsClosure() bool {
	return o.EntityID != ""
}

// AggregateOptions returns the aggregation options of o.
func (o *Options) AggregateOptions() incident.AggregateOptions {
	return incident.AggregateOptions{Config: o.AggregateConfig, FeedbackRoot: o.FeedbackRoot}
}

// String describes the run for log lines.
func (o *Options) String() string {
	s := o.Ref
	if o.EntityID != "" {
		s += fmt.Sprintf(" entity=%s", o.EntityID)
	}
	if o.Aggregate {
		s += " aggregate"
	}
	return s
}
