// Package pkg provides the libraries behind topograph, the incident topology
// snapshot toolkit.
//
// # Overview
//
// An incident snapshot captures the topology around an incident: entities
// (services, pods, hosts) arranged in ranks, the dependency and call edges
// between them, and the alerts raised on them. The pkg directory is
// organized into three areas:
//
//  1. Domain: [incident] loads, queries and transforms snapshots
//  2. Infrastructure: [cache], [store], [topology], [httputil],
//     [observability], [errors]
//  3. Orchestration and output: [pipeline], [io], [render/nodelink]
//
// # Architecture
//
// The typical data flow:
//
//	JSON file / MongoDB document        topology service
//	         ↓                                 ↓
//	    [store] (Source)               [topology] (Client)
//	         ↓                                 ↓
//	    [incident] Load → ExtractClosure / ExtractClosureViaService
//	         ↓
//	    Aggregate → RankRows
//	         ↓
//	    [io] JSON, [render/nodelink] DOT/SVG/PNG
//
// [pipeline] runs these stages with logging, timing and observability hooks.
//
// # Quick Start
//
//	snap, err := io.ImportSnapshot("incident.json")
//	if err != nil {
//	    return err
//	}
//	sub, err := snap.ExtractClosure("pod-1")
//	if err != nil {
//	    return err
//	}
//	sub.Aggregate(incident.AggregateOptions{})
//	for _, row := range sub.RankRows(incident.DepthLastWrite) {
//	    fmt.Println(row.Rank.Name, row.Depth, len(row.Entities))
//	}
//
// # Concurrency
//
// A [incident.Snapshot] is not safe for concurrent mutation; Aggregate
// modifies it in place. Closures return independent snapshots. Caches, the
// topology client and observability hooks are safe for concurrent use.
//
// [incident]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/incident
// [incident.Snapshot]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/incident#Snapshot
// [cache]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/cache
// [store]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/store
// [topology]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/topology
// [httputil]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/observability
// [errors]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/errors
// [pipeline]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/pipeline
// [io]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/io
// [render/nodelink]: https://pkg.go.dev/github.com/incidentlab/topograph/pkg/render/nodelink
package pkg
