package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
)

// UpsertNode adds or merges a concept node by name. Name matching is
// case-insensitive and the stored spelling is the first one seen. The merge
// is a single atomic SQL statement: the digest is replaced only when the new
// one is strictly longer, and sourceDoc joins the owning set if not already
// present. Two concurrent ingestions touching the same name therefore cannot
// drop each other's provenance.
func (s *Store) UpsertNode(name, category, digest, sourceDoc string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("node name is required")
	}
	if category == "" {
		category = "Concept"
	}

	initialDocs := "[]"
	if sourceDoc != "" {
		b, err := json.Marshal([]string{sourceDoc})
		if err != nil {
			return nil, fmt.Errorf("marshal document ids: %w", err)
		}
		initialDocs = string(b)
	}
	// instr membership check, same shape the owning set is stored in
	quotedDoc := `"` + sourceDoc + `"`

	_, err := s.db.Exec(`
		INSERT INTO nodes (id, name, category, digest, document_ids)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			digest = CASE
				WHEN LENGTH(excluded.digest) > LENGTH(nodes.digest) THEN excluded.digest
				ELSE nodes.digest
			END,
			document_ids = CASE
				WHEN ? = '' OR INSTR(nodes.document_ids, ?) > 0 THEN nodes.document_ids
				ELSE JSON_INSERT(nodes.document_ids, '$[#]', ?)
			END,
			updated_at = CURRENT_TIMESTAMP
	`, nodeID(name), name, category, digest, initialDocs,
		sourceDoc, quotedDoc, sourceDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert node: %w", err)
	}

	return s.GetNodeByName(name)
}

// GetNodeByName retrieves a node by name, case-insensitively. Returns
// (nil, nil) when the name is unknown.
func (s *Store) GetNodeByName(name string) (*Node, error) {
	row := s.db.QueryRow(`
		SELECT id, name, category, digest, weight, document_ids, created_at, updated_at
		FROM nodes WHERE name = ?
	`, name)
	return scanNode(row)
}

// GetNode retrieves a node by ID. Returns (nil, nil) when absent.
func (s *Store) GetNode(id string) (*Node, error) {
	row := s.db.QueryRow(`
		SELECT id, name, category, digest, weight, document_ids, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id)
	return scanNode(row)
}

// AllNodes returns every node in the graph
func (s *Store) AllNodes() ([]*Node, error) {
	rows, err := s.db.Query(`
		SELECT id, name, category, digest, weight, document_ids, created_at, updated_at
		FROM nodes ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	return scanNodeRows(rows)
}

// allNodeNames returns every concept name, for fuzzy matching
func (s *Store) allNodeNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM nodes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// SearchNodes performs a fuzzy name search, returning up to limit nodes whose
// names score at or above cutoff, best first.
func (s *Store) SearchNodes(query string, limit int, cutoff float64) ([]*Node, error) {
	if limit <= 0 {
		limit = 5
	}

	names, err := s.allNodeNames()
	if err != nil {
		return nil, err
	}

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, name := range names {
		sim := nameSimilarity(query, name)
		if sim >= cutoff {
			candidates = append(candidates, scored{name: name, score: sim})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var nodes []*Node
	for _, c := range candidates {
		node, err := s.GetNodeByName(c.name)
		if err == nil && node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// ResolveName maps an entity string to a node: exact name lookup first, then
// fuzzy matching at the configured cutoff. Returns (nil, nil) when nothing
// resolves.
func (s *Store) ResolveName(name string) (*Node, error) {
	node, err := s.GetNodeByName(name)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}

	matches, err := s.SearchNodes(name, 1, s.cfg.FuzzyCutoff)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// RemoveDocumentKnowledge removes docID from every node's owning set. Nodes
// left with no owners are deleted along with every edge touching them, all in
// one transaction. Calling it again for the same id is a no-op.
func (s *Store) RemoveDocumentKnowledge(docID string) error {
	if docID == "" {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, document_ids FROM nodes WHERE INSTR(document_ids, ?) > 0
	`, `"`+docID+`"`)
	if err != nil {
		return fmt.Errorf("failed to query affected nodes: %w", err)
	}

	type affected struct {
		id   string
		docs []string
	}
	var updates []affected
	var deletes []string
	for rows.Next() {
		var id, docsJSON string
		if err := rows.Scan(&id, &docsJSON); err != nil {
			continue
		}
		var docs []string
		if err := json.Unmarshal([]byte(docsJSON), &docs); err != nil {
			continue
		}
		remaining := docs[:0]
		removed := false
		for _, d := range docs {
			if d == docID {
				removed = true
				continue
			}
			remaining = append(remaining, d)
		}
		if !removed {
			continue
		}
		if len(remaining) == 0 {
			deletes = append(deletes, id)
		} else {
			updates = append(updates, affected{id: id, docs: remaining})
		}
	}
	rows.Close()

	for _, u := range updates {
		b, err := json.Marshal(u.docs)
		if err != nil {
			continue
		}
		if _, err := tx.Exec(`
			UPDATE nodes SET document_ids = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, string(b), u.id); err != nil {
			return fmt.Errorf("failed to update node owners: %w", err)
		}
	}

	if len(deletes) > 0 {
		placeholders := strings.Repeat("?,", len(deletes))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, len(deletes))
		for i, id := range deletes {
			args[i] = id
		}

		edgeQuery := fmt.Sprintf(`
			DELETE FROM edges WHERE source_id IN (%s) OR target_id IN (%s)
		`, placeholders, placeholders)
		if _, err := tx.Exec(edgeQuery, append(append([]interface{}{}, args...), args...)...); err != nil {
			return fmt.Errorf("failed to cascade edges: %w", err)
		}

		nodeQuery := fmt.Sprintf(`DELETE FROM nodes WHERE id IN (%s)`, placeholders)
		if _, err := tx.Exec(nodeQuery, args...); err != nil {
			return fmt.Errorf("failed to delete orphaned nodes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if len(deletes) > 0 {
		log.Printf("[graph] removed %d nodes orphaned by document %s", len(deletes), docID)
	}
	return nil
}

// scanNode scans a single row into a Node
func scanNode(row *sql.Row) (*Node, error) {
	var n Node
	var docsJSON string

	err := row.Scan(&n.ID, &n.Name, &n.Category, &n.Digest, &n.Weight,
		&docsJSON, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	json.Unmarshal([]byte(docsJSON), &n.DocumentIDs)
	return &n, nil
}

// scanNodeRows scans multiple rows into Nodes
func scanNodeRows(rows *sql.Rows) ([]*Node, error) {
	var nodes []*Node
	for rows.Next() {
		var n Node
		var docsJSON string
		err := rows.Scan(&n.ID, &n.Name, &n.Category, &n.Digest, &n.Weight,
			&docsJSON, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			continue
		}
		json.Unmarshal([]byte(docsJSON), &n.DocumentIDs)
		nodes = append(nodes, &n)
	}
	return nodes, nil
}
