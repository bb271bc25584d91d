// Package topology is the HTTP client for the topology service, which
// computes the partial topology around one entity of an incident snapshot.
//
// [Client] implements [incident.TopologyFetcher], so it plugs directly into
// [incident.Snapshot.ExtractClosureViaService]:
//
//	client, err := topology.NewClient("https://topo.example.com",
//	    topology.WithCache(redisCache, nil),
//	)
//	sub, err := snap.ExtractClosureViaService(ctx, client, incidentID, entityID, snapshotID)
//
// Requests are POST /api/v1/incidents/{id}/topology with a JSON body naming
// the entity and snapshot. Responses use the service envelope
// {"result", "message", "data"}; the graph arrives in data.topo.
package topology
