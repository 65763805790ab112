// Package ingest turns raw documents into graph knowledge and vector
// collections.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/docmind/docmind/internal/extract"
	"github.com/docmind/docmind/internal/graph"
	"github.com/docmind/docmind/internal/logging"
	"github.com/docmind/docmind/internal/vector"
)

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// maxChunkChars bounds chunk size when merging paragraphs
const maxChunkChars = 1200

// digestChars bounds the snippet stored as a concept digest
const digestChars = 200

// Service coordinates document ingestion across the graph store and the
// vector registry.
type Service struct {
	graph     *graph.Store
	registry  *vector.Registry
	embedder  Embedder
	extractor *extract.ProseExtractor
}

// New creates an ingest service
func New(g *graph.Store, reg *vector.Registry, emb Embedder) *Service {
	return &Service{
		graph:     g,
		registry:  reg,
		embedder:  emb,
		extractor: extract.NewProseExtractor(),
	}
}

// Summary reports what one ingestion produced
type Summary struct {
	DocID    string `json:"doc_id"`
	Chunks   int    `json:"chunks"`
	Entities int    `json:"entities"`
	Edges    int    `json:"edges"`
}

// stagedChunk holds an embedded chunk awaiting publication to the global
// collection
type stagedChunk struct {
	chunk vector.Chunk
	vec   []float64
}

// IngestDocument chunks the text, indexes embeddings, and records extracted
// concepts and their co-occurrence edges. Graph and vector work run
// concurrently; both the document's collection and its global-collection
// entries become visible only after the whole ingestion succeeded, so
// searches never see a partial document. An unavailable embedder degrades
// the ingestion to graph-only rather than failing it. Centrality is
// recomputed at the end.
func (s *Service) IngestDocument(ctx context.Context, docID, text string) (*Summary, error) {
	if docID == "" {
		return nil, fmt.Errorf("document id is required")
	}
	chunks := chunkText(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no content", docID)
	}

	idx, err := vector.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	summary := &Summary{DocID: docID, Chunks: len(chunks)}

	var staged []stagedChunk
	vectorOK := true

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i, chunk := range chunks {
			vec, err := s.embedder.Embed(chunk)
			if err != nil {
				logging.Info("ingest", "%s: embedding unavailable, skipping vector indexing: %v", docID, err)
				vectorOK = false
				staged = nil
				return nil
			}
			c := vector.Chunk{
				ID:       fmt.Sprintf("%s-%d", docID, i),
				Text:     chunk,
				Metadata: map[string]string{"doc_id": docID},
			}
			if err := idx.Add(c, vec); err != nil {
				return fmt.Errorf("failed to index chunk %d: %w", i, err)
			}
			staged = append(staged, stagedChunk{chunk: c, vec: vec})
		}
		return nil
	})

	g.Go(func() error {
		entities, edges, err := s.ingestGraph(docID, chunks)
		if err != nil {
			return err
		}
		summary.Entities = entities
		summary.Edges = edges
		return nil
	})

	if err := g.Wait(); err != nil {
		idx.Close()
		return nil, err
	}

	if vectorOK {
		for _, sc := range staged {
			if err := s.registry.Global().Add(sc.chunk, sc.vec); err != nil {
				logging.Info("ingest", "%s: global index add failed: %v", docID, err)
			}
		}
		s.registry.Register(docID, idx)
	} else {
		idx.Close()
	}

	if err := s.graph.ComputeCentrality(); err != nil {
		logging.Info("ingest", "centrality recompute failed: %v", err)
	}

	logging.Info("ingest", "%s: %d chunks, %d entities, %d edges",
		docID, summary.Chunks, summary.Entities, summary.Edges)
	return summary, nil
}

// ingestGraph extracts concepts per chunk and links co-occurring mentions
func (s *Service) ingestGraph(docID string, chunks []string) (int, int, error) {
	seen := make(map[string]bool)
	var entityCount, edgeCount int

	for _, chunk := range chunks {
		names := s.extractor.Names(chunk)
		logging.Debug("ingest", "chunk %q: %d entities", logging.Truncate(chunk, 60), len(names))
		for _, name := range names {
			key := strings.ToLower(name)
			digest := ""
			if !seen[key] {
				digest = snippet(chunk)
			}
			if _, err := s.graph.UpsertNode(name, "Concept", digest, docID); err != nil {
				return 0, 0, fmt.Errorf("failed to upsert %q: %w", name, err)
			}
			if !seen[key] {
				seen[key] = true
				entityCount++
			}
		}
		// chain co-occurring mentions in order of appearance
		for i := 0; i+1 < len(names); i++ {
			if _, err := s.graph.UpsertEdge(names[i], names[i+1], "related_to", 1.0); err != nil {
				return 0, 0, fmt.Errorf("failed to link %q and %q: %w", names[i], names[i+1], err)
			}
			edgeCount++
		}
	}
	return entityCount, edgeCount, nil
}

// RemoveDocument deletes all knowledge derived from a document: its vector
// collection, its chunks in the global collection, and its share of the
// graph. Concepts owned by other documents survive.
func (s *Service) RemoveDocument(docID string) error {
	s.registry.Remove(docID)
	if n := s.registry.Global().RemoveByDoc(docID); n > 0 {
		logging.Debug("ingest", "purged %d global chunks for %s", n, docID)
	}
	if err := s.graph.RemoveDocumentKnowledge(docID); err != nil {
		return err
	}
	logging.Info("ingest", "removed document %s", docID)
	return nil
}

// chunkText splits text into paragraph-aligned chunks of bounded size
func chunkText(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > maxChunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		// oversized single paragraphs become their own chunk
		if current.Len() > maxChunkChars {
			flush()
		}
	}
	flush()
	return chunks
}

// snippet truncates chunk text for use as a concept digest
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= digestChars {
		return text
	}
	return text[:digestChars] + "..."
}
