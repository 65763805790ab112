package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable parameters for the knowledge core.
// Thresholds are empirical, domain-specific values; keep them in the
// config file rather than hard-coding them at call sites.
type Config struct {
	// StatePath is the directory holding the sqlite database
	StatePath string `yaml:"state_path"`

	Ollama     OllamaConfig     `yaml:"ollama"`
	Graph      GraphConfig      `yaml:"graph"`
	Correction CorrectionConfig `yaml:"correction"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// OllamaConfig configures the local embedding/generation endpoint
type OllamaConfig struct {
	URL           string `yaml:"url"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
}

// GraphConfig configures the knowledge graph store
type GraphConfig struct {
	// EdgeIncrement is added to an edge's weight on each repeat observation
	EdgeIncrement float64 `yaml:"edge_increment"`
	// FuzzyCutoff is the minimum name similarity for fuzzy entity resolution
	FuzzyCutoff float64 `yaml:"fuzzy_cutoff"`
	// Damping is the PageRank damping factor
	Damping float64 `yaml:"damping"`
}

// CorrectionConfig configures the user correction memory
type CorrectionConfig struct {
	// MergeThreshold: corrections whose trigger questions are at least this
	// similar are merged into one record
	MergeThreshold float64 `yaml:"merge_threshold"`
	// RecallThreshold: minimum similarity for a correction to be recalled
	RecallThreshold float64 `yaml:"recall_threshold"`
	// MaxRecall caps how many records contribute to one recall result
	MaxRecall int `yaml:"max_recall"`
}

// RetrievalConfig configures the hybrid retrieval orchestrator
type RetrievalConfig struct {
	// ContextBudget is the maximum size in bytes of the assembled context
	ContextBudget int `yaml:"context_budget"`
	// TopK chunks are retrieved per vector collection
	TopK int `yaml:"top_k"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		StatePath: "state",
		Ollama: OllamaConfig{
			URL:           "http://localhost:11434",
			EmbedModel:    "nomic-embed-text",
			GenerateModel: "llama3.2",
		},
		Graph: GraphConfig{
			EdgeIncrement: 0.1,
			FuzzyCutoff:   0.6,
			Damping:       0.85,
		},
		Correction: CorrectionConfig{
			MergeThreshold:  0.95,
			RecallThreshold: 0.62,
			MaxRecall:       3,
		},
		Retrieval: RetrievalConfig{
			ContextBudget: 20000,
			TopK:          3,
		},
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Re-apply defaults for zero values so a partial file stays usable
	def := Default()
	if cfg.StatePath == "" {
		cfg.StatePath = def.StatePath
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = def.Ollama.URL
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = def.Ollama.EmbedModel
	}
	if cfg.Ollama.GenerateModel == "" {
		cfg.Ollama.GenerateModel = def.Ollama.GenerateModel
	}
	if cfg.Graph.EdgeIncrement == 0 {
		cfg.Graph.EdgeIncrement = def.Graph.EdgeIncrement
	}
	if cfg.Graph.FuzzyCutoff == 0 {
		cfg.Graph.FuzzyCutoff = def.Graph.FuzzyCutoff
	}
	if cfg.Graph.Damping == 0 {
		cfg.Graph.Damping = def.Graph.Damping
	}
	if cfg.Correction.MergeThreshold == 0 {
		cfg.Correction.MergeThreshold = def.Correction.MergeThreshold
	}
	if cfg.Correction.RecallThreshold == 0 {
		cfg.Correction.RecallThreshold = def.Correction.RecallThreshold
	}
	if cfg.Correction.MaxRecall == 0 {
		cfg.Correction.MaxRecall = def.Correction.MaxRecall
	}
	if cfg.Retrieval.ContextBudget == 0 {
		cfg.Retrieval.ContextBudget = def.Retrieval.ContextBudget
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}

	return cfg, nil
}
