// Package io provides JSON import and export for incident snapshots and the
// TOML/JSON loader for aggregation configs.
//
// # Snapshot Format
//
// Snapshots use the document layout stored by the incident service:
//
//	{
//	  "bk_biz_id": 2,
//	  "product_hierarchy_category": {"service": {"category_id": 1, ...}},
//	  "product_hierarchy_rank": {"k8s": {"rank_id": 1, "rank_category": "service", ...}},
//	  "incident_propagation_graph": {
//	    "entities": [{"entity_id": "pod-1", "entity_type": "BcsPod", "rank_name": "k8s", ...}],
//	    "edges": [{"source_id": "svc-a", "target_id": "pod-1", "edge_type": "dependency"}]
//	  },
//	  "incident_alerts": [{"id": "1001", "entity_id": "pod-1", ...}]
//	}
//
// Use [ImportSnapshot] to read a file or [ReadSnapshot] to read from any
// io.Reader. Both validate references while loading; see [incident.Load].
//
// [WriteSnapshot] and [ExportSnapshot] emit the serialized form, which adds
// denormalized endpoint fields and aggregated peers to every edge and can be
// read back by [ReadSnapshot]. [WriteRanks] emits layered rank rows.
//
// # Aggregation Config
//
// [ImportAggregateConfig] reads a per-entity-type aggregation config from a
// .toml or .json file:
//
//	[BcsPod]
//	aggregate_keys = ["BcsNode", "BcsWorkload"]
//	aggregate_anomaly = false
//
// Unknown keys are rejected with an INVALID_CONFIG error.
package io
