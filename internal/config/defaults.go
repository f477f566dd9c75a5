package config

import "time"

// DefaultModels maps each provider to its default chat and embedding models.
var DefaultModels = map[ProviderType]struct {
	Model          string
	EmbeddingModel string
}{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama: {Model: "llama3.1", EmbeddingModel: "nomic-embed-text"},
}

// DefaultSkipSources are sources treated as pipeline-originated. Entries are
// doublestar patterns.
var DefaultSkipSources = []string{"orchestrator", "pipeline", "pipeline/**"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             DefaultModels[ProviderOpenAI].Model,
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    DefaultModels[ProviderOpenAI].EmbeddingModel,
		DatabasePath:      ".eventmind/eventmind.db",
		LogLevel:          "info",
		LLM: LLMConfig{
			RequestTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			TopK:                  10,
			DaysBack:              365,
			MinSimilarity:         0.5,
			CandidateLimit:        2000,
			LinkThreshold:         0.75,
			SimilarWindowDays:     30,
			SimilarCandidateLimit: 1000,
		},
		Clustering: ClusteringConfig{
			DaysBack:       30,
			CandidateLimit: 1000,
			MinCandidates:  20,
			Seed:           42,
			MaxIterations:  100,
			SampleSize:     10,
			LabelSamples:   5,
			UseLLM:         true,
			Interval:       24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			SkipSources:    DefaultSkipSources,
			SkipEventTypes: []string{"action_taken"},
			AnalysisTypes: map[string]string{
				"gmail":    "triage",
				"mail":     "triage",
				"calendar": "summarize",
				"drive":    "classify",
				"file":     "classify",
				"image":    "extract",
			},
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}
