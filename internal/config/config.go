package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	HealthAddr string `mapstructure:"health_addr"`
}

// LLMConfig configures the Azure OpenAI chat backend. When APIKey is
// empty the service authenticates with the ambient Azure credential.
type LLMConfig struct {
	Endpoint        string  `mapstructure:"endpoint"`
	Deployment      string  `mapstructure:"deployment"`
	EmbedDeployment string  `mapstructure:"embed_deployment"`
	APIVersion      string  `mapstructure:"api_version"`
	APIKey          string  `mapstructure:"api_key"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`

	// RequestsPerMinute throttles outbound completion calls. Zero
	// disables client-side rate limiting.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// SearchConfig configures the Azure AI Search retrieval backend.
type SearchConfig struct {
	Endpoint              string `mapstructure:"endpoint"`
	Index                 string `mapstructure:"index"`
	APIVersion            string `mapstructure:"api_version"`
	APIKey                string `mapstructure:"api_key"`
	UseSemanticRanker     bool   `mapstructure:"use_semantic_ranker"`
	SemanticConfiguration string `mapstructure:"semantic_configuration"`
	VectorField           string `mapstructure:"vector_field"`
}

// VectorConfig configures the Qdrant retrieval backend.
type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

// RetrievalConfig selects and tunes the retrieval backend.
type RetrievalConfig struct {
	// Backend is "azure_search", "qdrant" or "none".
	Backend string `mapstructure:"backend"`
	TopK    int    `mapstructure:"top_k"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Missing returns the names of required settings that are absent. The
// service cannot answer chat requests without them.
func (c *Config) Missing() []string {
	var missing []string
	if c.LLM.Endpoint == "" {
		missing = append(missing, "llm.endpoint")
	}
	if c.LLM.Deployment == "" {
		missing = append(missing, "llm.deployment")
	}
	return missing
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	for _, name := range c.Missing() {
		warnings = append(warnings, fmt.Sprintf("required setting %s is empty", name))
	}

	// Check temperature range [0, 2.0]
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	// Check for negative max_tokens
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	switch c.Retrieval.Backend {
	case "", "none", "azure_search", "qdrant":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown retrieval backend %q", c.Retrieval.Backend))
	}
	if c.Retrieval.Backend == "azure_search" && c.Search.Endpoint == "" {
		warnings = append(warnings, "retrieval backend is azure_search but search.endpoint is empty")
	}
	if c.Retrieval.Backend == "qdrant" && c.Vector.Host == "" {
		warnings = append(warnings, "retrieval backend is qdrant but vector.host is empty")
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.health_addr", ":8080")
	v.SetDefault("llm.api_version", "2024-10-21")
	v.SetDefault("llm.timeout_seconds", 300)
	v.SetDefault("search.api_version", "2024-07-01")
	v.SetDefault("search.vector_field", "embedding")
	v.SetDefault("search.use_semantic_ranker", true)
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "documents")
	v.SetDefault("retrieval.backend", "azure_search")
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and environment. An empty path
// loads from environment variables alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RAGRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
