package graph

import (
	"time"
)

// Node is a deduplicated named concept in the knowledge graph.
// Name is the resolution key and unique across the graph; DocumentIDs is the
// set of documents that contributed the concept. A node whose owning set
// becomes empty is garbage-collected together with its edges.
type Node struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Digest      string    `json:"digest"`
	Weight      float64   `json:"weight"`
	DocumentIDs []string  `json:"document_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Edge is a directed, labeled connection between two concepts. At most one
// edge exists per ordered (source, target) pair; its weight grows by a fixed
// increment on each repeat observation while the relation label stays as
// first recorded.
type Edge struct {
	ID        int64     `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Relation  string    `json:"relation"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextEdge is the triple view of an edge used in subgraph context output
type ContextEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// ContextData identifies the nodes and edges behind a rendered subgraph
// context, for downstream highlighting.
type ContextData struct {
	NodeIDs []string      `json:"nodes"`
	Edges   []ContextEdge `json:"edges"`
}

// ExportNode is the visualization-ready view of a node
type ExportNode struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Val   float64  `json:"val"`
	Group string   `json:"group"`
	Desc  string   `json:"desc"`
	Docs  []string `json:"docs"`
}

// ExportLink is the visualization-ready view of an edge
type ExportLink struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// ExportData is the full graph in visualization form
type ExportData struct {
	Nodes []ExportNode `json:"nodes"`
	Links []ExportLink `json:"links"`
}

// Config holds the graph store's tunable parameters. The thresholds and the
// edge increment are empirical values, not design constants.
type Config struct {
	// EdgeIncrement is added to an edge's weight per repeat observation
	EdgeIncrement float64
	// FuzzyCutoff is the minimum similarity for fuzzy name resolution
	FuzzyCutoff float64
	// Damping is the PageRank damping factor
	Damping float64
}

// DefaultConfig returns the default graph configuration
func DefaultConfig() Config {
	return Config{
		EdgeIncrement: 0.1,
		FuzzyCutoff:   0.6,
		Damping:       0.85,
	}
}
