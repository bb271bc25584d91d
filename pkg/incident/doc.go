// Package incident provides the in-memory incident topology graph and the
// algorithms that run over it.
//
// # Overview
//
// An incident snapshot records the entities involved in an incident (hosts,
// pods, services), the typed edges between them, the alerts raised on them
// and the organizational rank/category taxonomy used to lay them out. This
// package loads such a snapshot into a [Snapshot] and supports three
// operations on it:
//
//   - closure extraction: [Snapshot.ExtractClosure] returns the upstream and
//     downstream dependency subgraph around one entity, and
//     [Snapshot.ExtractClosureViaService] builds the same kind of subgraph
//     from a partial topology fetched through a [TopologyFetcher]
//   - rank grouping: [Snapshot.EntityTypeDepths] computes a topological depth
//     per entity type and [Snapshot.GroupByRank] turns rank and depth into
//     ordered layered rows
//   - aggregation: [Snapshot.Aggregate] merges structurally equivalent
//     entities into representatives and rewires their edges
//
// # Loading
//
// [Load] builds a Snapshot from a [Content] document and resolves every
// reference up front. An edge or alert naming an unknown entity fails with a
// [*ReferenceError]; nothing is deferred to traversal time.
//
//	snap, err := incident.Load(content)
//	if err != nil {
//	    return err
//	}
//	sub, err := snap.ExtractClosure("pod-1")
//
// [Snapshot.Content] serializes a snapshot back into the same document form.
//
// # Edge Types
//
// Only [EdgeTypeDependency] edges are traversed by closure extraction, depth
// propagation and aggregation fingerprints. Other edge types are carried
// along, rewired on merge and serialized.
//
// # Adjacency Index
//
// A snapshot keeps successor and predecessor sets per entity and edge type.
// The index is derived from the edge map and every mutation of the edge map
// updates it in the same step.
//
// # Concurrency
//
// A Snapshot is not safe for concurrent use. Aggregation mutates in place;
// finish it before sharing a snapshot between goroutines.
package incident
