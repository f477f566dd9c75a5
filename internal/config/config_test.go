package config

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Search.TopK != 10 || cfg.Search.MinSimilarity != 0.5 || cfg.Search.LinkThreshold != 0.75 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Clustering.Seed != 42 || cfg.Clustering.MinCandidates != 20 || cfg.Clustering.DaysBack != 30 {
		t.Errorf("unexpected clustering defaults: %+v", cfg.Clustering)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.eventmind.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.Model = "llama3.1"
	original.Search.TopK = 25
	original.Clustering.Interval = 6 * time.Hour
	original.Pipeline.SkipSources = []string{"orchestrator", "bots/**"}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Search.TopK != 25 {
		t.Errorf("search.top_k: got %d, want 25", loaded.Search.TopK)
	}
	if loaded.Clustering.Interval != 6*time.Hour {
		t.Errorf("clustering.interval: got %v", loaded.Clustering.Interval)
	}
	if len(loaded.Pipeline.SkipSources) != 2 || loaded.Pipeline.SkipSources[1] != "bots/**" {
		t.Errorf("skip_sources: got %v", loaded.Pipeline.SkipSources)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != DefaultConfig().Model {
		t.Errorf("expected default model, got %q", cfg.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EVENTMIND_MODEL", "gpt-4o")
	t.Setenv("EVENTMIND_SEARCH__TOP_K", "7")
	t.Setenv("EVENTMIND_SERVER__PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("model: got %q", cfg.Model)
	}
	if cfg.Search.TopK != 7 {
		t.Errorf("search.top_k: got %d", cfg.Search.TopK)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port: got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing provider", func(c *Config) { c.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "acme" }},
		{"missing model", func(c *Config) { c.Model = "" }},
		{"missing database", func(c *Config) { c.DatabasePath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"similarity out of range", func(c *Config) { c.Search.MinSimilarity = 1.5 }},
		{"no clustering floor", func(c *Config) { c.Clustering.MinCandidates = 0 }},
		{"unknown analysis type", func(c *Config) { c.Pipeline.AnalysisTypes["mail"] = "poetry" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("pipeline finished", "outcome", "task_created")

	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug line should be filtered")
	}
	if !strings.Contains(stderr.String(), "outcome=task_created") {
		t.Errorf("text output missing attribute: %q", stderr.String())
	}
	if !strings.Contains(file.String(), `"outcome":"task_created"`) {
		t.Errorf("json output missing attribute: %q", file.String())
	}
}

func TestSetupLoggerWithoutFile(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected logger")
	}
	if err := cleanup(); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}
