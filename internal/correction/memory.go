// Package correction stores user-supplied corrections keyed by question
// embedding, merging near-duplicate questions so repeated feedback on the
// same topic accumulates into one record.
package correction

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docmind/docmind/internal/embedding"
	"github.com/docmind/docmind/internal/logging"
)

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Config holds the correction memory thresholds
type Config struct {
	// MergeThreshold is the question similarity above which a new
	// correction merges into an existing record
	MergeThreshold float64
	// RecallThreshold is the minimum similarity for a record to be recalled
	RecallThreshold float64
	// MaxRecall caps how many records contribute to one recall
	MaxRecall int
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		MergeThreshold:  0.95,
		RecallThreshold: 0.62,
		MaxRecall:       3,
	}
}

// ScopeGlobal is the scope for corrections not tied to one document
const ScopeGlobal = "global"

// Correction is one stored teaching record
type Correction struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Question  string    `json:"question"`
	Fact      string    `json:"fact"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type entry struct {
	Correction
	embedding []float64 // normalized
}

// Memory is the correction store. Records persist in SQLite, embeddings
// included, so recall survives restarts; the in-memory mirror serves
// similarity scans.
type Memory struct {
	mu       sync.Mutex
	db       *sql.DB
	embedder Embedder
	cfg      Config
	entries  []*entry
}

// Open attaches the correction memory to an existing database, creating its
// table and loading prior records.
func Open(db *sql.DB, embedder Embedder, cfg Config) (*Memory, error) {
	if cfg.MaxRecall <= 0 {
		cfg.MaxRecall = 3
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS corrections (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL DEFAULT 'global',
			question TEXT NOT NULL,
			fact TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_corrections_scope ON corrections(scope)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create corrections table: %w", err)
	}

	m := &Memory{db: db, embedder: embedder, cfg: cfg}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) load() error {
	rows, err := m.db.Query(`
		SELECT id, scope, question, fact, embedding, created_at, updated_at FROM corrections
	`)
	if err != nil {
		return fmt.Errorf("failed to load corrections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entry
		var embJSON string
		if err := rows.Scan(&e.ID, &e.Scope, &e.Question, &e.Fact, &embJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(embJSON), &e.embedding); err != nil {
			logging.Info("correction", "skipping %s: bad embedding: %v", e.ID, err)
			continue
		}
		m.entries = append(m.entries, &e)
	}
	return nil
}

// normalizeScope maps empty and "all" to the global scope
func normalizeScope(scope string) string {
	if scope == "" || scope == "all" {
		return ScopeGlobal
	}
	return scope
}

// Record stores a correction in a scope. When the question embeds within
// MergeThreshold of an existing record in the same scope, the new fact's
// lines join that record instead of creating a duplicate. Returns the record
// and whether it was merged.
func (m *Memory) Record(scope, question, fact string) (*Correction, bool, error) {
	scope = normalizeScope(scope)
	question = strings.TrimSpace(question)
	fact = strings.TrimSpace(fact)
	if question == "" || fact == "" {
		return nil, false, fmt.Errorf("question and fact are required")
	}

	vec, err := m.embedder.Embed(question)
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed question: %w", err)
	}
	vec = embedding.Normalize(vec)

	m.mu.Lock()
	defer m.mu.Unlock()

	var best *entry
	bestSim := 0.0
	for _, e := range m.entries {
		if e.Scope != scope {
			continue
		}
		sim := embedding.CosineSimilarity(vec, e.embedding)
		if sim > bestSim {
			bestSim = sim
			best = e
		}
	}

	if best != nil && bestSim >= m.cfg.MergeThreshold {
		best.Fact = mergeLines(best.Fact, fact)
		best.UpdatedAt = time.Now().UTC()
		_, err := m.db.Exec(`
			UPDATE corrections SET fact = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, best.Fact, best.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update correction: %w", err)
		}
		logging.Info("correction", "merged into %s (similarity %.3f)", best.ID, bestSim)
		c := best.Correction
		return &c, true, nil
	}

	e := &entry{
		Correction: Correction{
			ID:        uuid.NewString(),
			Scope:     scope,
			Question:  question,
			Fact:      fact,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
		embedding: vec,
	}
	embJSON, err := json.Marshal(vec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	_, err = m.db.Exec(`
		INSERT INTO corrections (id, scope, question, fact, embedding) VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Scope, e.Question, e.Fact, string(embJSON))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert correction: %w", err)
	}
	m.entries = append(m.entries, e)

	c := e.Correction
	return &c, false, nil
}

// Recall returns the scope's taught facts relevant to a question, best
// matches first with duplicate lines removed, or "" when nothing clears the
// recall threshold. Embedding failures degrade to an empty recall.
func (m *Memory) Recall(scope, question string) string {
	scope = normalizeScope(scope)

	vec, err := m.embedder.Embed(question)
	if err != nil {
		logging.Info("correction", "recall embed failed: %v", err)
		return ""
	}
	vec = embedding.Normalize(vec)

	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		e   *entry
		sim float64
	}
	var matches []scored
	for _, e := range m.entries {
		if e.Scope != scope {
			continue
		}
		sim := embedding.CosineSimilarity(vec, e.embedding)
		if sim >= m.cfg.RecallThreshold {
			matches = append(matches, scored{e: e, sim: sim})
		}
	}
	if len(matches) == 0 {
		return ""
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].sim > matches[j].sim })
	if len(matches) > m.cfg.MaxRecall {
		matches = matches[:m.cfg.MaxRecall]
	}

	seen := make(map[string]bool)
	var lines []string
	for _, mt := range matches {
		for _, line := range strings.Split(mt.e.Fact, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Delete removes a correction by ID. Unknown IDs return an error.
func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.db.Exec(`DELETE FROM corrections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete correction: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("correction %s not found", id)
	}

	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteScope removes every correction in a scope, for document removal.
// Unknown scopes are a no-op.
func (m *Memory) DeleteScope(scope string) error {
	scope = normalizeScope(scope)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(`DELETE FROM corrections WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("failed to delete scope %s: %w", scope, err)
	}

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.Scope != scope {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// All returns every stored correction, newest update first
func (m *Memory) All() []Correction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Correction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Correction)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// mergeLines appends the lines of addition that existing lacks
func mergeLines(existing, addition string) string {
	seen := make(map[string]bool)
	var lines []string
	for _, line := range strings.Split(existing, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		lines = append(lines, trimmed)
	}
	for _, line := range strings.Split(addition, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}
