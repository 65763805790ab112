package graph

import (
	"database/sql"
	"fmt"
)

// UpsertEdge records a directed relationship between two concepts by name.
// Both endpoints are upserted first so an edge can never reference a missing
// node. Repeating an edge for the same pair bumps its weight by the
// configured increment inside the conflict clause, so concurrent ingestions
// accumulate correctly; the stored relation label is never overwritten.
//
// Endpoints created here carry no owning document, so document removal will
// not collect them. Callers ingesting a document must upsert each endpoint
// with its source document before (or after) adding the edge.
func (s *Store) UpsertEdge(sourceName, targetName, relation string, weight float64) (*Edge, error) {
	if sourceName == "" || targetName == "" {
		return nil, fmt.Errorf("edge endpoints are required")
	}
	if relation == "" {
		relation = "related_to"
	}
	if weight <= 0 {
		weight = 1.0
	}

	if _, err := s.UpsertNode(sourceName, "Concept", "", ""); err != nil {
		return nil, fmt.Errorf("failed to upsert source node: %w", err)
	}
	if _, err := s.UpsertNode(targetName, "Concept", "", ""); err != nil {
		return nil, fmt.Errorf("failed to upsert target node: %w", err)
	}

	srcID := nodeID(sourceName)
	tgtID := nodeID(targetName)

	_, err := s.db.Exec(`
		INSERT INTO edges (source_id, target_id, relation, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET
			weight = edges.weight + ?
	`, srcID, tgtID, relation, weight, s.cfg.EdgeIncrement)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert edge: %w", err)
	}

	return s.GetEdge(srcID, tgtID)
}

// GetEdge retrieves the edge between two node IDs. Returns (nil, nil) when
// no such edge exists.
func (s *Store) GetEdge(sourceID, targetID string) (*Edge, error) {
	var e Edge
	err := s.db.QueryRow(`
		SELECT id, source_id, target_id, relation, weight, created_at
		FROM edges WHERE source_id = ? AND target_id = ?
	`, sourceID, targetID).Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// AllEdges returns every edge in the graph
func (s *Store) AllEdges() ([]*Edge, error) {
	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, relation, weight, created_at
		FROM edges
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.CreatedAt); err != nil {
			continue
		}
		edges = append(edges, &e)
	}
	return edges, nil
}

// Successors returns the target nodes of every edge leaving nodeID.
func (s *Store) Successors(nodeID string) ([]*Node, error) {
	rows, err := s.db.Query(`
		SELECT n.id, n.name, n.category, n.digest, n.weight, n.document_ids, n.created_at, n.updated_at
		FROM edges e JOIN nodes n ON n.id = e.target_id
		WHERE e.source_id = ?
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query successors: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

// edgesAmong returns the edges whose endpoints both fall inside ids.
func (s *Store) edgesAmong(ids map[string]bool) ([]*Edge, error) {
	all, err := s.AllEdges()
	if err != nil {
		return nil, err
	}
	var within []*Edge
	for _, e := range all {
		if ids[e.SourceID] && ids[e.TargetID] {
			within = append(within, e)
		}
	}
	return within, nil
}
