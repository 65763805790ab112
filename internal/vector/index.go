// Package vector provides per-collection embedding indexes backed by
// sqlite-vec, with a brute-force cosine scan fallback when the extension is
// not compiled in.
package vector

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// Chunk is one indexed passage
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Result is a search hit with cosine similarity score
type Result struct {
	Chunk
	Score float64
}

// Index is an in-memory embedding index over the chunks of one collection.
// Vectors are unit-normalized before storage so L2 distance in vec0 is
// equivalent to cosine distance.
type Index struct {
	mu           sync.RWMutex
	db           *sql.DB
	vecAvailable bool
	dim          int // embedding dimension (0 = not yet determined)
	chunks       []Chunk
	embeddings   [][]float32 // normalized, parallel to chunks
}

// NewIndex creates an empty index
func NewIndex() (*Index, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	// In-memory databases vanish if the pool closes their sole connection
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		log.Printf("[vector] sqlite-vec not available: %v — falling back to full scan", err)
	} else {
		idx.vecAvailable = true
	}

	return idx, nil
}

// Close releases the index
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Len returns the number of indexed chunks
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Add indexes one chunk with its embedding. The first embedding fixes the
// index dimension; later mismatches are rejected.
func (idx *Index) Add(chunk Chunk, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for chunk %s", chunk.ID)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim == 0 {
		idx.dim = len(embedding)
		if idx.vecAvailable {
			if err := idx.ensureVecTable(idx.dim); err != nil {
				log.Printf("[vector] vec table init failed: %v — falling back to full scan", err)
				idx.vecAvailable = false
			}
		}
	}
	if len(embedding) != idx.dim {
		return fmt.Errorf("embedding dim %d doesn't match index dim %d", len(embedding), idx.dim)
	}

	norm := normalizeFloat32(float64ToFloat32(embedding))

	if idx.vecAvailable {
		serialized, err := sqlite_vec.SerializeFloat32(norm)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		rowid := int64(len(idx.chunks)) + 1
		if _, err := idx.db.Exec(`INSERT INTO chunk_vec(rowid, embedding) VALUES (?, ?)`, rowid, serialized); err != nil {
			return fmt.Errorf("failed to insert vector: %w", err)
		}
	}

	idx.chunks = append(idx.chunks, chunk)
	idx.embeddings = append(idx.embeddings, norm)
	return nil
}

// RemoveByDoc drops every chunk whose doc_id metadata matches docID and
// returns how many were removed. The vec0 table is rebuilt because its
// rowids track chunk positions.
// RemoveByDoc drops every chunk whose doc_id metadata matches and returns
// how many were removed. The vec0 table is rebuilt because its rowids track
// chunk positions.
func (idx *Index) RemoveByDoc(docID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keptChunks := idx.chunks[:0]
	keptEmbeddings := idx.embeddings[:0]
	removed := 0
	for i, c := range idx.chunks {
		if c.Metadata["doc_id"] == docID {
			removed++
			continue
		}
		keptChunks = append(keptChunks, c)
		keptEmbeddings = append(keptEmbeddings, idx.embeddings[i])
	}
	if removed == 0 {
		return 0
	}
	idx.chunks = keptChunks
	idx.embeddings = keptEmbeddings

	if idx.vecAvailable {
		if err := idx.rebuildVecTable(); err != nil {
			log.Printf("[vector] vec rebuild failed: %v — falling back to full scan", err)
			idx.vecAvailable = false
		}
	}
	return removed
}

// rebuildVecTable recreates the vec0 table from the surviving chunks
func (idx *Index) rebuildVecTable() error {
	if _, err := idx.db.Exec(`DROP TABLE IF EXISTS chunk_vec`); err != nil {
		return err
	}
	if err := idx.ensureVecTable(idx.dim); err != nil {
		return err
	}
	for i, emb := range idx.embeddings {
		serialized, err := sqlite_vec.SerializeFloat32(emb)
		if err != nil {
			return err
		}
		if _, err := idx.db.Exec(`INSERT INTO chunk_vec(rowid, embedding) VALUES (?, ?)`, int64(i)+1, serialized); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity, best first. An
// empty index yields an empty result, never an error.
func (idx *Index) Search(embedding []float64, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.chunks) == 0 {
		return []Result{}, nil
	}
	if len(embedding) != idx.dim {
		return []Result{}, nil
	}

	norm := normalizeFloat32(float64ToFloat32(embedding))

	if idx.vecAvailable {
		results, err := idx.searchVec(norm, k)
		if err == nil {
			return results, nil
		}
		log.Printf("[vector] vec query failed: %v — falling back to full scan", err)
	}
	return idx.searchScan(norm, k), nil
}

func (idx *Index) searchVec(query []float32, k int) ([]Result, error) {
	serialized, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}

	rows, err := idx.db.Query(`
		SELECT rowid, distance FROM chunk_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, serialized, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var rowid int64
		var dist float64
		if err := rows.Scan(&rowid, &dist); err != nil {
			continue
		}
		i := int(rowid) - 1
		if i < 0 || i >= len(idx.chunks) {
			continue
		}
		results = append(results, Result{
			Chunk: idx.chunks[i],
			Score: l2ToCosineSim(dist),
		})
	}
	return results, nil
}

func (idx *Index) searchScan(query []float32, k int) []Result {
	results := make([]Result, 0, len(idx.chunks))
	for i, emb := range idx.embeddings {
		var dot float64
		for j := range emb {
			dot += float64(emb[j]) * float64(query[j])
		}
		results = append(results, Result{Chunk: idx.chunks[i], Score: dot})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (idx *Index) ensureVecTable(dim int) error {
	_, err := idx.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vec USING vec0(
			embedding float[%d]
		)
	`, dim))
	return err
}

// float64ToFloat32 converts a float64 slice to float32
func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// normalizeFloat32 returns a unit-length copy of the vector.
// Normalizing before storing makes L2 distance equivalent to cosine distance:
//
//	cosine_dist = L2_dist² / 2   (for unit vectors)
func normalizeFloat32(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// l2ToCosineSim converts an L2 distance (on normalized vectors) to cosine
// similarity: cosine_sim = 1 - L2²/2
func l2ToCosineSim(l2dist float64) float64 {
	return 1.0 - (l2dist*l2dist)/2.0
}
