package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/docmind/docmind/internal/graph"
	"github.com/docmind/docmind/internal/vector"
)

// hashEmbedder produces deterministic vectors from text content
type hashEmbedder struct{}

func (hashEmbedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, 8)
	for i, r := range text {
		vec[i%8] += float64(r%31) / 31.0
	}
	return vec, nil
}

func setupService(t *testing.T) (*Service, *graph.Store, *vector.Registry) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "ingest-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	g, err := graph.Open(tmpDir, graph.DefaultConfig())
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open graph: %v", err)
	}
	reg, err := vector.NewRegistry()
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	t.Cleanup(func() {
		g.Close()
		reg.Close()
		os.RemoveAll(tmpDir)
	})

	return New(g, reg, hashEmbedder{}), g, reg
}

const sampleDoc = `Google released BERT in 2018. BERT builds on the Transformer architecture.

The Transformer architecture relies on attention. Researchers at OpenAI later built GPT on the same foundation.`

func TestIngestDocument(t *testing.T) {
	svc, g, reg := setupService(t)

	summary, err := svc.IngestDocument(context.Background(), "doc-1", sampleDoc)
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if summary.Chunks == 0 {
		t.Error("Expected at least one chunk")
	}
	if summary.Entities == 0 {
		t.Error("Expected extracted entities")
	}

	// Collection is visible and searchable
	idx := reg.Get("doc-1")
	if idx == nil {
		t.Fatal("Expected registered collection for doc-1")
	}
	if idx.Len() != summary.Chunks {
		t.Errorf("Expected %d indexed chunks, got %d", summary.Chunks, idx.Len())
	}
	if reg.Global().Len() != summary.Chunks {
		t.Errorf("Expected global index to mirror chunks, got %d", reg.Global().Len())
	}

	// Graph has owned nodes
	stats, err := g.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["nodes"] == 0 {
		t.Error("Expected graph nodes after ingestion")
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	svc, _, reg := setupService(t)

	if _, err := svc.IngestDocument(context.Background(), "doc-1", "   \n\n  "); err == nil {
		t.Error("Expected error for empty document")
	}
	if reg.Get("doc-1") != nil {
		t.Error("Failed ingestion must not register a collection")
	}
}

func TestRemoveDocument(t *testing.T) {
	svc, g, reg := setupService(t)

	if _, err := svc.IngestDocument(context.Background(), "doc-1", sampleDoc); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if err := svc.RemoveDocument("doc-1"); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}
	if reg.Get("doc-1") != nil {
		t.Error("Expected collection removed")
	}
	stats, err := g.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["nodes"] != 0 {
		t.Errorf("Expected all doc-1 nodes removed, got %d", stats["nodes"])
	}
}

func TestRemoveDocumentPurgesGlobal(t *testing.T) {
	svc, _, reg := setupService(t)

	if _, err := svc.IngestDocument(context.Background(), "doc-1", sampleDoc); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if reg.Global().Len() == 0 {
		t.Fatal("Expected global chunks after ingestion")
	}

	query, _ := hashEmbedder{}.Embed(sampleDoc)
	results, err := reg.Global().Search(query, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected global hits before removal")
	}

	if err := svc.RemoveDocument("doc-1"); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}

	if reg.Global().Len() != 0 {
		t.Errorf("Expected global index emptied, %d chunks remain", reg.Global().Len())
	}
	results, err = reg.Global().Search(query, 5)
	if err != nil {
		t.Fatalf("Search after removal failed: %v", err)
	}
	for _, r := range results {
		if r.Metadata["doc_id"] == "doc-1" {
			t.Errorf("Removed document still searchable in global index: %s", r.ID)
		}
	}
}

// brokenEmbedder simulates an unreachable embedding backend
type brokenEmbedder struct{}

func (brokenEmbedder) Embed(string) ([]float64, error) {
	return nil, errors.New("connection refused")
}

func TestIngestWithoutEmbedderKeepsGraph(t *testing.T) {
	svc, g, reg := setupService(t)
	svc.embedder = brokenEmbedder{}

	summary, err := svc.IngestDocument(context.Background(), "doc-1", sampleDoc)
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if summary.Entities == 0 {
		t.Error("Expected graph extraction despite embedding outage")
	}

	stats, err := g.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["nodes"] == 0 {
		t.Error("Expected graph nodes despite embedding outage")
	}

	// No vector side effects when embedding is unavailable
	if reg.Get("doc-1") != nil {
		t.Error("Expected no collection registered without embeddings")
	}
	if reg.Global().Len() != 0 {
		t.Errorf("Expected empty global index, got %d chunks", reg.Global().Len())
	}
}

func TestChunkText(t *testing.T) {
	long := strings.Repeat("word ", 400) // ~2000 chars
	chunks := chunkText("first paragraph\n\n" + long + "\n\nlast paragraph")
	if len(chunks) < 3 {
		t.Errorf("Expected oversized paragraph to split out, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			t.Error("Empty chunk produced")
		}
	}

	if got := chunkText(""); len(got) != 0 {
		t.Errorf("Expected no chunks for empty text, got %v", got)
	}
}
