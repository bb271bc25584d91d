package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/incidentlab/topograph/pkg/errors"
	"github.com/incidentlab/topograph/pkg/incident"
	"github.com/incidentlab/topograph/pkg/observability"
	"github.com/incidentlab/topograph/pkg/store"
)

// Runner encapsulates pipeline execution against a snapshot source and an
// optional topology service.
//
// The Runner is stateless except for its collaborators; it doesn't store
// pipeline results. Multiple goroutines can safely use the same Runner as
// long as they do not share a snapshot.
type Runner struct {
	Source  store.Source
	Fetcher incident.TopologyFetcher
	Logger  *log.Logger
}

// NewRunner creates a runner.
// If source is nil, snapshots are read from files.
// If fetcher is nil, service closures fail with INVALID_CONFIG.
func NewRunner(source store.Source, fetcher incident.TopologyFetcher, logger *log.Logger) *Runner {
	if source == nil {
		source = store.NewFileSource()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Source:  source,
		Fetcher: fetcher,
		Logger:  logger,
	}
}

// Execute runs load → closure → aggregate → ranks → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	start := time.Now()
	snap, err := r.Load(ctx, opts.Ref)
	if err != nil {
		return nil, err
	}
	result.Timing.Load = time.Since(start)
	result.Before = snap.Stats()

	// Stage 2: Closure
	if opts.WantsClosure() {
		start = time.Now()
		if snap, err = r.Closure(ctx, snap, opts); err != nil {
			return nil, err
		}
		result.Timing.Closure = time.Since(start)
	}

	// Stage 3: Aggregate
	if opts.Aggregate {
		start = time.Now()
		result.Aggregate = r.Aggregate(ctx, snap, opts.AggregateOptions())
		result.Timing.Aggregate = time.Since(start)
	}

	// Stage 4: Ranks
	start = time.Now()
	result.Ranks = r.Ranks(ctx, snap, opts.DepthPolicy)
	result.Timing.Ranks = time.Since(start)

	// Stage 5: Render
	if len(opts.Formats) > 0 {
		start = time.Now()
		if result.Artifacts, err = r.Render(ctx, snap, opts); err != nil {
			return nil, err
		}
		result.Timing.Render = time.Since(start)
	}

	result.Snapshot = snap
	return result, nil
}

// Load reads and loads the snapshot named by ref.
func (r *Runner) Load(ctx context.Context, ref string) (*incident.Snapshot, error) {
	var snap *incident.Snapshot
	err := r.observe(ctx, observability.OpLoad, ref, func() (observability.OperationResult, error) {
		c, err := r.Source.Open(ctx, ref)
		if err != nil {
			return observability.OperationResult{}, err
		}
		if snap, err = incident.Load(c); err != nil {
			return observability.OperationResult{}, fmt.Errorf("%s: %w", ref, err)
		}
		return snapshotResult(snap), nil
	})
	return snap, err
}

// Closure extracts the dependency closure of opts.EntityID, locally or
// through the topology service when opts.ViaService is set.
func (r *Runner) Closure(ctx context.Context, snap *incident.Snapshot, opts Options) (*incident.Snapshot, error) {
	if err := opts.ValidateForClosure(); err != nil {
		return nil, err
	}
	op := observability.OpClosure
	if opts.ViaService {
		op = observability.OpRemoteFetch
	}

	var sub *incident.Snapshot
	err := r.observe(ctx, op, opts.EntityID, func() (observability.OperationResult, error) {
		var err error
		if opts.ViaService {
			if r.Fetcher == nil {
				return observability.OperationResult{}, errors.New(errors.ErrCodeInvalidConfig, "no topology service configured")
			}
			r.Logger.Debug("fetching partial topology", "incident", opts.IncidentID, "entity", opts.EntityID, "snapshot", opts.SnapshotID)
			sub, err = snap.ExtractClosureViaService(ctx, r.Fetcher, opts.IncidentID, opts.EntityID, opts.SnapshotID)
		} else {
			sub, err = snap.ExtractClosure(opts.EntityID)
		}
		if err != nil {
			return observability.OperationResult{}, err
		}
		return snapshotResult(sub), nil
	})
	return sub, err
}

// Aggregate merges indistinguishable entities of snap in place.
func (r *Runner) Aggregate(ctx context.Context, snap *incident.Snapshot, opts incident.AggregateOptions) incident.AggregateStats {
	var st incident.AggregateStats
	_ = r.observe(ctx, observability.OpAggregate, fmt.Sprintf("%d entities", snap.EntityCount()), func() (observability.OperationResult, error) {
		st = snap.Aggregate(opts)
		res := snapshotResult(snap)
		res.Merged = st.MergedEntities
		return res, nil
	})
	r.Logger.Debug("aggregation groups", "groups", st.Groups, "merged_edges", st.MergedEdges)
	return st
}

// Ranks computes the rank rows of snap.
func (r *Runner) Ranks(ctx context.Context, snap *incident.Snapshot, policy incident.DepthPolicy) []incident.RankRow {
	var rows []incident.RankRow
	_ = r.observe(ctx, observability.OpRanks, fmt.Sprintf("policy=%d", policy), func() (observability.OperationResult, error) {
		rows = snap.RankRows(policy)
		res := snapshotResult(snap)
		res.Rows = len(rows)
		return res, nil
	})
	return rows
}

// Render produces the artifacts requested in opts.Formats.
func (r *Runner) Render(ctx context.Context, snap *incident.Snapshot, opts Options) (map[string][]byte, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, err
	}
	var artifacts map[string][]byte
	err := r.observe(ctx, observability.OpRender, fmt.Sprint(opts.Formats), func() (observability.OperationResult, error) {
		var err error
		artifacts, err = RenderArtifacts(snap, opts)
		return snapshotResult(snap), err
	})
	return artifacts, err
}

// Close releases the source.
func (r *Runner) Close() error {
	if r.Source != nil {
		return r.Source.Close()
	}
	return nil
}

// observe runs fn between the start and complete hooks of op and logs the
// outcome.
func (r *Runner) observe(ctx context.Context, op, subject string, fn func() (observability.OperationResult, error)) error {
	hooks := observability.Snapshot()
	hooks.OnOperationStart(ctx, op, subject)
	start := time.Now()

	res, err := fn()
	elapsed := time.Since(start)
	hooks.OnOperationComplete(ctx, op, subject, res, elapsed, err)

	if err != nil {
		r.Logger.Debug(op+" failed", "subject", subject, "error", err, "duration", elapsed)
		return err
	}
	r.Logger.Info(op,
		"subject", subject,
		"entities", res.Entities,
		"edges", res.Edges,
		"duration", elapsed)
	return nil
}

func snapshotResult(s *incident.Snapshot) observability.OperationResult {
	return observability.OperationResult{Entities: s.EntityCount(), Edges: s.EdgeCount()}
}
