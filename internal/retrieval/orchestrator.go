// Package retrieval assembles hybrid answer context from the knowledge
// graph, the vector collections, and the correction memory.
package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/docmind/docmind/internal/graph"
	"github.com/docmind/docmind/internal/logging"
	"github.com/docmind/docmind/internal/vector"
)

// ScopeAll searches across every document
const ScopeAll = "all"

// EntityExtractor pulls candidate entity names from a question
type EntityExtractor interface {
	Names(text string) []string
}

// Embedder turns text into an embedding vector
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Generator produces an answer from a prompt
type Generator interface {
	Generate(prompt string) (string, error)
}

// CorrectionRecaller returns taught facts relevant to a question in a scope
type CorrectionRecaller interface {
	Recall(scope, question string) string
}

// Config holds retrieval tuning
type Config struct {
	// ContextBudget caps the assembled context size in bytes
	ContextBudget int
	// TopK is how many passages each vector search returns
	TopK int
}

// DefaultConfig returns the default retrieval configuration
func DefaultConfig() Config {
	return Config{
		ContextBudget: 20000,
		TopK:          3,
	}
}

// Bundle is the evidence behind one answer
type Bundle struct {
	Entities     []string           `json:"entities"`
	GraphContext string             `json:"graph_context"`
	GraphData    *graph.ContextData `json:"graph_data,omitempty"`
	Passages     []vector.Result    `json:"passages"`
	Corrections  string             `json:"corrections"`
}

// Orchestrator coordinates the three knowledge sources
type Orchestrator struct {
	graph       *graph.Store
	registry    *vector.Registry
	extractor   EntityExtractor
	embedder    Embedder
	generator   Generator
	corrections CorrectionRecaller
	cfg         Config
}

// New creates an orchestrator
func New(g *graph.Store, reg *vector.Registry, extractor EntityExtractor,
	embedder Embedder, generator Generator, corrections CorrectionRecaller,
	cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 20000
	}
	return &Orchestrator{
		graph:       g,
		registry:    reg,
		extractor:   extractor,
		embedder:    embedder,
		generator:   generator,
		corrections: corrections,
		cfg:         cfg,
	}
}

// Retrieve gathers evidence for a question. Scope names a document
// collection, or ScopeAll (or "") for a cross-document search. Every source
// degrades independently: unresolvable entities, missing collections, and
// embedder outages each yield an empty contribution, never a failure.
func (o *Orchestrator) Retrieve(question, scope string) (*Bundle, error) {
	b := &Bundle{Passages: []vector.Result{}}

	b.Corrections = o.corrections.Recall(scope, question)

	b.Entities = o.extractor.Names(question)
	if len(b.Entities) > 0 {
		text, data, err := o.graph.SubgraphContext(b.Entities, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph context: %w", err)
		}
		b.GraphContext = text
		b.GraphData = data
	}

	vec, err := o.embedder.Embed(question)
	if err != nil {
		logging.Info("retrieval", "embed failed, skipping vector search: %v", err)
	} else {
		for _, idx := range o.scopeIndexes(scope) {
			results, err := idx.Search(vec, o.cfg.TopK)
			if err != nil {
				logging.Info("retrieval", "vector search failed: %v", err)
				continue
			}
			b.Passages = append(b.Passages, results...)
		}
	}

	o.enforceBudget(b)
	return b, nil
}

// Ask retrieves evidence and generates an answer from it
func (o *Orchestrator) Ask(question, scope string) (string, *Bundle, error) {
	b, err := o.Retrieve(question, scope)
	if err != nil {
		return "", nil, err
	}

	prompt := o.composePrompt(question, b)
	logging.Debug("retrieval", "prompt: %s", logging.Truncate(prompt, 200))

	answer, err := o.generator.Generate(prompt)
	if err != nil {
		return "", b, fmt.Errorf("failed to generate answer: %w", err)
	}
	return strings.TrimSpace(answer), b, nil
}

// scopeIndexes resolves a scope to the indexes it covers. A document scope
// searches the document's collection plus the global one; anything else
// searches global only.
func (o *Orchestrator) scopeIndexes(scope string) []*vector.Index {
	if scope == "" || scope == ScopeAll {
		return []*vector.Index{o.registry.Global()}
	}
	indexes := []*vector.Index{}
	if idx := o.registry.Get(scope); idx != nil {
		indexes = append(indexes, idx)
	}
	return append(indexes, o.registry.Global())
}

// enforceBudget trims the bundle to the context budget. Passages go first,
// then the graph context; taught corrections are never dropped.
func (o *Orchestrator) enforceBudget(b *Bundle) {
	size := func() int {
		n := len(b.GraphContext) + len(b.Corrections)
		for _, p := range b.Passages {
			n += len(p.Text)
		}
		return n
	}

	for size() > o.cfg.ContextBudget && len(b.Passages) > 0 {
		b.Passages = b.Passages[:len(b.Passages)-1]
	}
	if over := size() - o.cfg.ContextBudget; over > 0 && len(b.GraphContext) > 0 {
		keep := len(b.GraphContext) - over
		if keep < 0 {
			keep = 0
		}
		// back off to a rune boundary so the cut never splits a character
		for keep > 0 && !utf8.RuneStart(b.GraphContext[keep]) {
			keep--
		}
		b.GraphContext = b.GraphContext[:keep]
	}
}

// composePrompt renders the bundle into a grounded answering prompt
func (o *Orchestrator) composePrompt(question string, b *Bundle) string {
	var sb strings.Builder
	sb.WriteString("Answer the question using only the context below.\n\n")

	if b.Corrections != "" {
		sb.WriteString("Facts the user has taught you (authoritative, follow these over other sources):\n")
		sb.WriteString(b.Corrections)
		sb.WriteString("\n\n")
	}
	if b.GraphContext != "" {
		sb.WriteString("Knowledge graph context:\n")
		sb.WriteString(b.GraphContext)
		sb.WriteString("\n\n")
	}
	if len(b.Passages) > 0 {
		sb.WriteString("Document passages:\n")
		for _, p := range b.Passages {
			sb.WriteString("---\n")
			sb.WriteString(p.Text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}
