package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestMissing(t *testing.T) {
	cfg := &Config{}
	missing := cfg.Missing()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing settings, got %v", missing)
	}

	cfg.LLM.Endpoint = "https://example.openai.azure.com"
	cfg.LLM.Deployment = "gpt-4o"
	if got := cfg.Missing(); len(got) != 0 {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		want bool // true = should warn
	}{
		{"zero", 0, false},
		{"normal", 0.7, false},
		{"max", 2.0, false},
		{"negative", -1, true},
		{"too_high", 3.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLM: LLMConfig{Temperature: tt.temp}}
			warnings := cfg.Validate()
			if got := hasWarning(warnings, "temperature"); got != tt.want {
				t.Errorf("temperature=%.1f: hasWarn=%v, want=%v", tt.temp, got, tt.want)
			}
		})
	}
}

func TestValidate_NegativeMaxTokens(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{MaxTokens: -100}}
	if !hasWarning(cfg.Validate(), "max_tokens") {
		t.Error("expected warning about negative max_tokens")
	}
}

func TestValidate_RetrievalBackend(t *testing.T) {
	cfg := &Config{Retrieval: RetrievalConfig{Backend: "elasticsearch"}}
	if !hasWarning(cfg.Validate(), "retrieval backend") {
		t.Error("expected warning about unknown backend")
	}

	cfg = &Config{Retrieval: RetrievalConfig{Backend: "azure_search"}}
	if !hasWarning(cfg.Validate(), "search.endpoint") {
		t.Error("expected warning about missing search endpoint")
	}

	cfg = &Config{Retrieval: RetrievalConfig{Backend: "qdrant"}}
	if !hasWarning(cfg.Validate(), "vector.host") {
		t.Error("expected warning about missing vector host")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("listen_addr default = %q", cfg.Server.ListenAddr)
	}
	if cfg.LLM.APIVersion != "2024-10-21" {
		t.Errorf("llm api_version default = %q", cfg.LLM.APIVersion)
	}
	if cfg.Search.VectorField != "embedding" {
		t.Errorf("search vector_field default = %q", cfg.Search.VectorField)
	}
	if !cfg.Search.UseSemanticRanker {
		t.Error("semantic ranker should default on")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("retrieval top_k default = %d", cfg.Retrieval.TopK)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragrelay.yaml")
	content := `
server:
  listen_addr: ":9000"
llm:
  endpoint: "https://example.openai.azure.com"
  deployment: "gpt-4o"
retrieval:
  backend: "qdrant"
vector:
  host: "localhost"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.LLM.Deployment != "gpt-4o" {
		t.Errorf("deployment = %q", cfg.LLM.Deployment)
	}
	if cfg.Retrieval.Backend != "qdrant" {
		t.Errorf("backend = %q", cfg.Retrieval.Backend)
	}
	// Defaults still apply for unset keys.
	if cfg.Vector.Port != 6334 {
		t.Errorf("vector port = %d", cfg.Vector.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/ragrelay.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RAGRELAY_LLM_DEPLOYMENT", "gpt-4o-mini")
	t.Setenv("RAGRELAY_LLM_ENDPOINT", "https://env.openai.azure.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Deployment != "gpt-4o-mini" {
		t.Errorf("env override not applied, deployment = %q", cfg.LLM.Deployment)
	}
	if len(cfg.Missing()) != 0 {
		t.Errorf("expected nothing missing, got %v", cfg.Missing())
	}
}
