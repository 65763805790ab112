// docmind-mcp exposes the knowledge synthesis layer over MCP: document
// ingestion, hybrid question answering, correction teaching, and graph
// inspection tools.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docmind/docmind/internal/config"
	"github.com/docmind/docmind/internal/correction"
	"github.com/docmind/docmind/internal/embedding"
	"github.com/docmind/docmind/internal/extract"
	"github.com/docmind/docmind/internal/graph"
	"github.com/docmind/docmind/internal/ingest"
	"github.com/docmind/docmind/internal/retrieval"
	"github.com/docmind/docmind/internal/vector"
)

type app struct {
	cfg          *config.Config
	graph        *graph.Store
	registry     *vector.Registry
	corrections  *correction.Memory
	ingester     *ingest.Service
	orchestrator *retrieval.Orchestrator
}

func main() {
	// Load .env - try executable's parent dir (repo root), then exe dir, then cwd
	envPaths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		envPaths = append([]string{
			filepath.Join(filepath.Dir(exeDir), ".env"),
			filepath.Join(exeDir, ".env"),
		}, envPaths...)
	}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	cfgPath := os.Getenv("DOCMIND_CONFIG")
	if cfgPath == "" {
		cfgPath = "docmind.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	s := server.NewMCPServer(
		"docmind-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(ingestTool(), a.handleIngest)
	s.AddTool(askTool(), a.handleAsk)
	s.AddTool(recordCorrectionTool(), a.handleRecordCorrection)
	s.AddTool(listCorrectionsTool(), a.handleListCorrections)
	s.AddTool(deleteCorrectionTool(), a.handleDeleteCorrection)
	s.AddTool(deleteDocumentTool(), a.handleDeleteDocument)
	s.AddTool(graphStatsTool(), a.handleGraphStats)
	s.AddTool(exportGraphTool(), a.handleExportGraph)
	s.AddTool(recomputeCentralityTool(), a.handleRecomputeCentrality)
	s.AddTool(shortestPathTool(), a.handleShortestPath)
	s.AddTool(searchNodesTool(), a.handleSearchNodes)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	g, err := graph.Open(cfg.StatePath, graph.Config{
		EdgeIncrement: cfg.Graph.EdgeIncrement,
		FuzzyCutoff:   cfg.Graph.FuzzyCutoff,
		Damping:       cfg.Graph.Damping,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}

	reg, err := vector.NewRegistry()
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("failed to create vector registry: %w", err)
	}

	client := embedding.NewClient(cfg.Ollama.URL, cfg.Ollama.EmbedModel)
	client.SetGenerateModel(cfg.Ollama.GenerateModel)

	mem, err := correction.Open(g.DB(), client, correction.Config{
		MergeThreshold:  cfg.Correction.MergeThreshold,
		RecallThreshold: cfg.Correction.RecallThreshold,
		MaxRecall:       cfg.Correction.MaxRecall,
	})
	if err != nil {
		g.Close()
		reg.Close()
		return nil, fmt.Errorf("failed to open correction memory: %w", err)
	}

	orch := retrieval.New(g, reg, extract.NewProseExtractor(), client, client, mem,
		retrieval.Config{
			ContextBudget: cfg.Retrieval.ContextBudget,
			TopK:          cfg.Retrieval.TopK,
		})

	return &app{
		cfg:          cfg,
		graph:        g,
		registry:     reg,
		corrections:  mem,
		ingester:     ingest.New(g, reg, client),
		orchestrator: orch,
	}, nil
}

func (a *app) close() {
	a.registry.Close()
	a.graph.Close()
}

func ingestTool() mcp.Tool {
	return mcp.NewTool("ingest_document",
		mcp.WithDescription("Ingest a document: chunk and embed its text, extract concepts into the knowledge graph, and register a searchable collection under the document ID."),
		mcp.WithString("doc_id",
			mcp.Required(),
			mcp.Description("Stable identifier for the document"),
		),
		mcp.WithString("text",
			mcp.Description("Document text. Either text or path is required."),
		),
		mcp.WithString("path",
			mcp.Description("Filesystem path to read the document from"),
		),
	)
}

func (a *app) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	docID, _ := args["doc_id"].(string)
	text, _ := args["text"].(string)
	path, _ := args["path"].(string)

	if docID == "" {
		return mcp.NewToolResultError("doc_id is required"), nil
	}
	if text == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
		}
		text = string(data)
	}
	if text == "" {
		return mcp.NewToolResultError("either text or path is required"), nil
	}

	summary, err := a.ingester.IngestDocument(ctx, docID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func askTool() mcp.Tool {
	return mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using hybrid retrieval: knowledge graph context, vector search, and previously taught corrections."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("scope",
			mcp.Description("Document ID to focus on, or 'all' for every document. Default: all"),
		),
	)
}

func (a *app) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	question, _ := args["question"].(string)
	scope, _ := args["scope"].(string)

	if strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}

	answer, bundle, err := a.orchestrator.Ask(question, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(answer)
	if len(bundle.Entities) > 0 {
		sb.WriteString("\n\nEntities: ")
		sb.WriteString(strings.Join(bundle.Entities, ", "))
	}
	graphNodes := 0
	if bundle.GraphData != nil {
		graphNodes = len(bundle.GraphData.NodeIDs)
	}
	sb.WriteString(fmt.Sprintf("\nSources: %d passages, %d graph nodes",
		len(bundle.Passages), graphNodes))
	return mcp.NewToolResultText(sb.String()), nil
}

func recordCorrectionTool() mcp.Tool {
	return mcp.NewTool("record_correction",
		mcp.WithDescription("Teach a correction: store a fact keyed by the question it answers. Near-duplicate questions merge into one record."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question this fact answers"),
		),
		mcp.WithString("fact",
			mcp.Required(),
			mcp.Description("The corrected fact, one statement per line"),
		),
		mcp.WithString("scope",
			mcp.Description("Document ID this correction applies to, or 'global'. Default: global"),
		),
	)
}

func (a *app) handleRecordCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	question, _ := args["question"].(string)
	fact, _ := args["fact"].(string)
	scope, _ := args["scope"].(string)

	c, merged, err := a.corrections.Record(scope, question, fact)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record failed: %v", err)), nil
	}

	verb := "Recorded"
	if merged {
		verb = "Merged into existing"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s correction %s", verb, c.ID)), nil
}

func listCorrectionsTool() mcp.Tool {
	return mcp.NewTool("list_corrections",
		mcp.WithDescription("List all taught corrections with their IDs."),
	)
}

func (a *app) handleListCorrections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(a.corrections.All(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func deleteCorrectionTool() mcp.Tool {
	return mcp.NewTool("delete_correction",
		mcp.WithDescription("Delete a taught correction by ID."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Correction ID"),
		),
	)
}

func (a *app) handleDeleteCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["id"].(string)

	if err := a.corrections.Delete(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted correction %s", id)), nil
}

func deleteDocumentTool() mcp.Tool {
	return mcp.NewTool("delete_document",
		mcp.WithDescription("Remove all knowledge derived from a document: its vector collection and its concepts. Concepts shared with other documents survive."),
		mcp.WithString("doc_id",
			mcp.Required(),
			mcp.Description("Document ID to remove"),
		),
	)
}

func (a *app) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	docID, _ := args["doc_id"].(string)

	if docID == "" {
		return mcp.NewToolResultError("doc_id is required"), nil
	}
	if err := a.ingester.RemoveDocument(docID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("remove failed: %v", err)), nil
	}
	if err := a.corrections.DeleteScope(docID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("correction cleanup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed document %s", docID)), nil
}

func graphStatsTool() mcp.Tool {
	return mcp.NewTool("graph_stats",
		mcp.WithDescription("Report knowledge graph size and registered collections."),
	)
}

func (a *app) handleGraphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := a.graph.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	collections := a.registry.Collections()
	out := map[string]any{
		"nodes":       stats["nodes"],
		"edges":       stats["edges"],
		"corrections": len(a.corrections.All()),
		"collections": collections,
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func exportGraphTool() mcp.Tool {
	return mcp.NewTool("export_graph",
		mcp.WithDescription("Export the full knowledge graph as JSON nodes and links for visualization."),
	)
}

func (a *app) handleExportGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := a.graph.Export()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	b, _ := json.MarshalIndent(data, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func recomputeCentralityTool() mcp.Tool {
	return mcp.NewTool("recompute_centrality",
		mcp.WithDescription("Recompute PageRank centrality for every concept and persist the scores as node weights."),
	)
}

func (a *app) handleRecomputeCentrality(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := a.graph.ComputeCentrality(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("centrality failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Centrality recomputed"), nil
}

func shortestPathTool() mcp.Tool {
	return mcp.NewTool("shortest_path",
		mcp.WithDescription("Find the shortest directed path between two concepts by name."),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start concept name"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End concept name"),
		),
	)
}

func (a *app) handleShortestPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	start, _ := args["start"].(string)
	end, _ := args["end"].(string)

	path, err := a.graph.ShortestPath(start, end)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("path search failed: %v", err)), nil
	}
	if path == nil {
		return mcp.NewToolResultText("One or both concepts are unknown"), nil
	}
	if len(path) == 0 {
		return mcp.NewToolResultText("No path connects these concepts"), nil
	}
	return mcp.NewToolResultText(strings.Join(path, " -> ")), nil
}

func searchNodesTool() mcp.Tool {
	return mcp.NewTool("search_nodes",
		mcp.WithDescription("Fuzzy-search concepts by name."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results. Default: 5"),
		),
	)
}

func (a *app) handleSearchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	query, _ := args["query"].(string)
	limit := 5
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	nodes, err := a.graph.SearchNodes(query, limit, a.cfg.Graph.FuzzyCutoff)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(nodes) == 0 {
		return mcp.NewToolResultText("No matching concepts"), nil
	}

	var sb strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s (%s) weight=%.4f docs=%d\n", n.Name, n.Category, n.Weight, len(n.DocumentIDs))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
