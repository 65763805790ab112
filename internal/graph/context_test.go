package graph

import (
	"strings"
	"testing"
)

func TestSubgraphContext(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := s.UpsertNode("BERT", "Model", "a pretrained language model", "doc-1"); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if _, err := s.UpsertEdge("BERT", "Transformer", "is_a", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}
	if _, err := s.UpsertEdge("Transformer", "Attention", "uses", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}

	text, data, err := s.SubgraphContext([]string{"BERT"}, 1)
	if err != nil {
		t.Fatalf("SubgraphContext failed: %v", err)
	}

	if !strings.Contains(text, "Concept: BERT (Model)") {
		t.Errorf("Expected BERT concept line, got:\n%s", text)
	}
	if !strings.Contains(text, "Summary: a pretrained language model") {
		t.Errorf("Expected BERT digest in summary, got:\n%s", text)
	}
	// Transformer has no digest, so N/A
	if !strings.Contains(text, "Concept: Transformer (Concept)\nSummary: N/A") {
		t.Errorf("Expected N/A summary for Transformer, got:\n%s", text)
	}
	if !strings.Contains(text, "- BERT is_a Transformer") {
		t.Errorf("Expected relationship line, got:\n%s", text)
	}
	// One hop from BERT must not reach Attention
	if strings.Contains(text, "Attention") {
		t.Errorf("One hop should not include Attention, got:\n%s", text)
	}

	if len(data.NodeIDs) != 2 {
		t.Errorf("Expected 2 nodes in context data, got %v", data.NodeIDs)
	}
	if len(data.Edges) != 1 || data.Edges[0].Relation != "is_a" {
		t.Errorf("Expected one is_a edge in context data, got %v", data.Edges)
	}
}

func TestSubgraphContextFuzzySeed(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := s.UpsertEdge("Neural Network", "Backpropagation", "trained_by", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}

	text, _, err := s.SubgraphContext([]string{"neural networks"}, 1)
	if err != nil {
		t.Fatalf("SubgraphContext failed: %v", err)
	}
	if !strings.Contains(text, "Neural Network") {
		t.Errorf("Expected fuzzy seed resolution, got:\n%s", text)
	}
}

func TestSubgraphContextNoSeeds(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	text, data, err := s.SubgraphContext([]string{"nothing here"}, 2)
	if err != nil {
		t.Fatalf("SubgraphContext failed: %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty context, got %q", text)
	}
	if data == nil || len(data.NodeIDs) != 0 {
		t.Errorf("Expected empty context data, got %v", data)
	}
}

func TestSubgraphContextSeedPathSplice(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	// A -> bridge -> B, seeds A and B at zero extra hops would miss the
	// bridge without path splicing
	if _, err := s.UpsertEdge("Alpha", "Bridge", "leads_to", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}
	if _, err := s.UpsertEdge("Bridge", "Beta", "leads_to", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}

	text, _, err := s.SubgraphContext([]string{"Alpha", "Beta"}, 1)
	if err != nil {
		t.Fatalf("SubgraphContext failed: %v", err)
	}
	if !strings.Contains(text, "Bridge") {
		t.Errorf("Expected spliced path to include Bridge, got:\n%s", text)
	}
	if !strings.Contains(text, "- Bridge leads_to Beta") {
		t.Errorf("Expected bridge edge in relationships, got:\n%s", text)
	}
}

func TestExport(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := s.UpsertNode("BERT", "Model", "digest", "doc-1"); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}
	if _, err := s.UpsertEdge("BERT", "Transformer", "is_a", 1.0); err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}

	out, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(out.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(out.Nodes))
	}
	if len(out.Links) != 1 {
		t.Errorf("Expected 1 link, got %d", len(out.Links))
	}
	if out.Links[0].Relation != "is_a" {
		t.Errorf("Expected is_a link, got %q", out.Links[0].Relation)
	}
}
