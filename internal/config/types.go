package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level eventmind configuration, corresponding to .eventmind.yml.
type Config struct {
	Provider          ProviderType        `yaml:"provider" koanf:"provider"`
	Model             string              `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType        `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string              `yaml:"embedding_model" koanf:"embedding_model"`
	DatabasePath      string              `yaml:"database_path" koanf:"database_path"`
	LogFile           string              `yaml:"log_file" koanf:"log_file"`
	LogLevel          string              `yaml:"log_level" koanf:"log_level"`
	LLM               LLMConfig           `yaml:"llm" koanf:"llm"`
	Search            SearchConfig        `yaml:"search" koanf:"search"`
	Clustering        ClusteringConfig    `yaml:"clustering" koanf:"clustering"`
	Pipeline          PipelineConfig      `yaml:"pipeline" koanf:"pipeline"`
	Server            ServerConfig        `yaml:"server" koanf:"server"`
	Notifications     NotificationsConfig `yaml:"notifications" koanf:"notifications"`
}

// LLMConfig bounds calls to the generative-language capability.
type LLMConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
}

// SearchConfig holds similarity search defaults.
type SearchConfig struct {
	TopK                  int     `yaml:"top_k" koanf:"top_k"`
	DaysBack              int     `yaml:"days_back" koanf:"days_back"`
	MinSimilarity         float64 `yaml:"min_similarity" koanf:"min_similarity"`
	CandidateLimit        int     `yaml:"candidate_limit" koanf:"candidate_limit"`
	LinkThreshold         float64 `yaml:"link_threshold" koanf:"link_threshold"`
	SimilarWindowDays     int     `yaml:"similar_window_days" koanf:"similar_window_days"`
	SimilarCandidateLimit int     `yaml:"similar_candidate_limit" koanf:"similar_candidate_limit"`
}

// ClusteringConfig controls the batch clustering job.
type ClusteringConfig struct {
	DaysBack       int           `yaml:"days_back" koanf:"days_back"`
	CandidateLimit int           `yaml:"candidate_limit" koanf:"candidate_limit"`
	MinCandidates  int           `yaml:"min_candidates" koanf:"min_candidates"`
	Seed           int64         `yaml:"seed" koanf:"seed"`
	MaxIterations  int           `yaml:"max_iterations" koanf:"max_iterations"`
	SampleSize     int           `yaml:"sample_size" koanf:"sample_size"`
	LabelSamples   int           `yaml:"label_samples" koanf:"label_samples"`
	UseLLM         bool          `yaml:"use_llm" koanf:"use_llm"`
	Interval       time.Duration `yaml:"interval" koanf:"interval"`
}

// PipelineConfig controls cycle prevention and analysis routing.
type PipelineConfig struct {
	SkipSources    []string          `yaml:"skip_sources" koanf:"skip_sources"`
	SkipEventTypes []string          `yaml:"skip_event_types" koanf:"skip_event_types"`
	AnalysisTypes  map[string]string `yaml:"analysis_types" koanf:"analysis_types"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// NotificationsConfig configures human-review notifications.
type NotificationsConfig struct {
	WebhookURL string `yaml:"webhook_url" koanf:"webhook_url"`
}
