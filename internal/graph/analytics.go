package graph

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
)

// ComputeCentrality runs weighted PageRank over the whole graph and persists
// each score as the node's weight. A no-op on an empty graph; self-loops are
// skipped.
func (s *Store) ComputeCentrality() error {
	nodes, err := s.AllNodes()
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil
	}
	edges, err := s.AllEdges()
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}

	g := simple.NewWeightedDirectedGraph(0, 0)
	toInt := make(map[string]int64, len(nodes))
	fromInt := make(map[int64]string, len(nodes))
	for i, n := range nodes {
		id := int64(i)
		toInt[n.ID] = id
		fromInt[id] = n.ID
		g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		src, ok := toInt[e.SourceID]
		if !ok {
			continue
		}
		tgt, ok := toInt[e.TargetID]
		if !ok || src == tgt {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(src), T: simple.Node(tgt), W: e.Weight,
		})
	}

	ranks := network.PageRank(g, s.cfg.Damping, 1e-6)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for intID, score := range ranks {
		_, err := tx.Exec(`UPDATE nodes SET weight = ? WHERE id = ?`, score, fromInt[intID])
		if err != nil {
			return fmt.Errorf("failed to persist centrality: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit centrality: %w", err)
	}

	log.Printf("[graph] recomputed centrality for %d nodes", len(nodes))
	return nil
}

// ShortestPath finds a directed path between two concepts by name and
// returns it as node names, endpoints included. Returns nil when either
// endpoint is unknown, and an empty non-nil slice when both exist but no
// path connects them.
func (s *Store) ShortestPath(startName, endName string) ([]string, error) {
	start, err := s.GetNodeByName(startName)
	if err != nil {
		return nil, err
	}
	end, err := s.GetNodeByName(endName)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}
	if start.ID == end.ID {
		return []string{start.Name}, nil
	}

	edges, err := s.AllEdges()
	if err != nil {
		return nil, err
	}
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}

	// BFS gives the fewest-hops path
	prev := map[string]string{start.ID: ""}
	queue := []string{start.ID}
	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == end.ID {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}
	if !found {
		return []string{}, nil
	}

	var ids []string
	for cur := end.ID; cur != ""; cur = prev[cur] {
		ids = append(ids, cur)
	}
	names := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		node, err := s.GetNode(ids[i])
		if err != nil || node == nil {
			return nil, fmt.Errorf("path node %s disappeared", ids[i])
		}
		names = append(names, node.Name)
	}
	return names, nil
}
