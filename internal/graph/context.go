package graph

import (
	"fmt"
	"sort"
	"strings"
)

// SubgraphContext builds a prose rendering of the neighborhood around the
// given entity names. Each name is resolved exactly first, then fuzzily; the
// resolved seeds are expanded hop by hop along outgoing edges, and pairwise
// shortest paths between seeds are spliced in so related seeds stay
// connected in the rendering. Unresolvable names are skipped.
func (s *Store) SubgraphContext(entityNames []string, hops int) (string, *ContextData, error) {
	if hops <= 0 {
		hops = 1
	}

	var seeds []*Node
	for _, name := range entityNames {
		node, err := s.ResolveName(name)
		if err != nil {
			return "", nil, err
		}
		if node != nil {
			seeds = append(seeds, node)
		}
	}
	if len(seeds) == 0 {
		return "", &ContextData{}, nil
	}

	included := make(map[string]*Node)
	for _, seed := range seeds {
		included[seed.ID] = seed
	}

	frontier := make([]*Node, len(seeds))
	copy(frontier, seeds)
	for hop := 0; hop < hops; hop++ {
		var next []*Node
		for _, node := range frontier {
			succs, err := s.Successors(node.ID)
			if err != nil {
				return "", nil, err
			}
			for _, succ := range succs {
				if _, ok := included[succ.ID]; ok {
					continue
				}
				included[succ.ID] = succ
				next = append(next, succ)
			}
		}
		frontier = next
	}

	// splice pairwise seed paths so the rendering shows how seeds connect
	for i := 0; i < len(seeds); i++ {
		for j := i + 1; j < len(seeds); j++ {
			for _, pair := range [][2]string{
				{seeds[i].Name, seeds[j].Name},
				{seeds[j].Name, seeds[i].Name},
			} {
				path, err := s.ShortestPath(pair[0], pair[1])
				if err != nil {
					return "", nil, err
				}
				for _, name := range path {
					node, err := s.GetNodeByName(name)
					if err != nil || node == nil {
						continue
					}
					if _, ok := included[node.ID]; !ok {
						included[node.ID] = node
					}
				}
			}
		}
	}

	ids := make(map[string]bool, len(included))
	for id := range included {
		ids[id] = true
	}
	edges, err := s.edgesAmong(ids)
	if err != nil {
		return "", nil, err
	}

	var nodeList []*Node
	for _, n := range included {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].Name < nodeList[j].Name })

	var b strings.Builder
	for _, n := range nodeList {
		digest := n.Digest
		if digest == "" {
			digest = "N/A"
		}
		fmt.Fprintf(&b, "Concept: %s (%s)\nSummary: %s\n", n.Name, n.Category, digest)
	}

	data := &ContextData{}
	for _, n := range nodeList {
		data.NodeIDs = append(data.NodeIDs, n.ID)
	}

	if len(edges) > 0 {
		var lines []string
		for _, e := range edges {
			src := included[e.SourceID]
			tgt := included[e.TargetID]
			if src == nil || tgt == nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s %s %s", src.Name, e.Relation, tgt.Name))
			data.Edges = append(data.Edges, ContextEdge{
				Source: src.Name, Target: tgt.Name, Relation: e.Relation,
			})
		}
		sort.Strings(lines)
		b.WriteString("\nRelationships:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	return b.String(), data, nil
}

// Export serializes the whole graph in the shape visualization frontends
// expect: nodes with val/group/desc and links with weight labels.
func (s *Store) Export() (*ExportData, error) {
	nodes, err := s.AllNodes()
	if err != nil {
		return nil, err
	}
	edges, err := s.AllEdges()
	if err != nil {
		return nil, err
	}

	out := &ExportData{
		Nodes: make([]ExportNode, 0, len(nodes)),
		Links: make([]ExportLink, 0, len(edges)),
	}
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		out.Nodes = append(out.Nodes, ExportNode{
			ID:    n.ID,
			Name:  n.Name,
			Val:   n.Weight,
			Group: n.Category,
			Desc:  n.Digest,
			Docs:  n.DocumentIDs,
		})
	}
	for _, e := range edges {
		if byID[e.SourceID] == nil || byID[e.TargetID] == nil {
			continue
		}
		out.Links = append(out.Links, ExportLink{
			Source:   e.SourceID,
			Target:   e.TargetID,
			Relation: e.Relation,
			Weight:   e.Weight,
		})
	}
	return out, nil
}
