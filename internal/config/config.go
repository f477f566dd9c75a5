package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".eventmind.yml"

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: EVENTMIND_SEARCH__TOP_K -> search.top_k.
const EnvPrefix = "EVENTMIND_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (EVENTMIND_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validAnalysisTypes = map[string]bool{
	"triage": true, "summarize": true, "classify": true, "extract": true, "decide": true,
}

// Validate checks that the configuration contains valid values. Any error
// here is fatal: nothing has been written yet.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	s := c.Search
	if s.TopK <= 0 || s.DaysBack <= 0 || s.CandidateLimit <= 0 ||
		s.SimilarWindowDays <= 0 || s.SimilarCandidateLimit <= 0 {
		return fmt.Errorf("search limits must be positive")
	}
	if s.MinSimilarity < -1 || s.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be within [-1, 1]")
	}
	if s.LinkThreshold < -1 || s.LinkThreshold > 1 {
		return fmt.Errorf("search.link_threshold must be within [-1, 1]")
	}

	cl := c.Clustering
	if cl.DaysBack <= 0 || cl.CandidateLimit <= 0 || cl.MaxIterations <= 0 ||
		cl.SampleSize <= 0 || cl.LabelSamples <= 0 {
		return fmt.Errorf("clustering limits must be positive")
	}
	if cl.MinCandidates < 1 {
		return fmt.Errorf("clustering.min_candidates must be at least 1")
	}

	for source, typ := range c.Pipeline.AnalysisTypes {
		if !validAnalysisTypes[typ] {
			return fmt.Errorf("pipeline.analysis_types[%s]: unknown analysis type %q", source, typ)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.LLM.RequestTimeout < 0 {
		return fmt.Errorf("llm.request_timeout must be non-negative")
	}

	return nil
}

// ParseLevel maps a log_level value to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}
