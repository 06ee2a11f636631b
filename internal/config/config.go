// Package config provides configuration management for the intentgap pipeline.
// It loads settings from environment variables with the INTENTGAP_ prefix and
// provides sensible defaults for all configuration options.
//
// The loaded Config is immutable by convention: it is threaded explicitly
// through every component so runs stay reproducible, and the validation
// harness can run with overridden thresholds without mutating anything global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Clustering strategy names recognized by ClusteringConfig.Strategy.
const (
	StrategyAgglomerative = "agglomerative"
	StrategyDensity       = "density"
)

// Config holds all configuration settings for the intentgap application.
type Config struct {
	LLM        LLMConfig
	Clustering ClusteringConfig
	Guardrails GuardrailConfig
	Validation ValidationConfig
	Storage    StorageConfig
}

// LLMConfig contains reasoning-oracle and embedding provider configuration.
type LLMConfig struct {
	Provider             string        // LLM provider: ollama, openai, anthropic (default: ollama)
	OllamaURL            string        // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string        // Ollama model for proposal synthesis (default: qwen2.5:7b)
	OllamaEmbeddingModel string        // Ollama model for embeddings (default: nomic-embed-text)
	OpenAIAPIKey         string        // OpenAI API key
	OpenAIModel          string        // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey      string        // Anthropic API key
	AnthropicModel       string        // Anthropic model name (default: claude-3-5-sonnet-20241022)
	EmbeddingModel       string        // embedding model identifier (provider-specific default)
	OracleTimeout        time.Duration // per-oracle-call timeout (default: 60s)
	OracleRetries        int           // retry budget for transient oracle failures (default: 2)
	OracleRatePerSec     float64       // sustained oracle call rate shared across workers (default: 1)
	SynthesisWorkers     int           // bounded concurrency for oracle calls (default: 4)
	EmbeddingWorkers     int           // bounded concurrency for embedding calls (default: 8)
}

// ClusteringConfig contains cluster-engine strategy parameters.
type ClusteringConfig struct {
	Strategy        string  // agglomerative or density (default: agglomerative)
	TargetK         int     // fixed-k target for agglomerative (default: 12)
	MinClusterSize  int     // minimum size for density clusters and eligibility (default: 5)
	MinSamples      int     // density core-point neighbor count (default: 3)
	Epsilon         float64 // density neighborhood radius, cosine distance (default: 0.35)
	Representatives int     // representative samples per cluster (default: 5)
}

// GuardrailConfig contains the thresholds gating proposal acceptance.
type GuardrailConfig struct {
	CohesionThreshold    float64 // per-cluster cohesion floor for eligibility (default: 0.3)
	ConfidenceThreshold  float64 // oracle self-reported confidence floor (default: 0.6)
	DistinctivenessFloor float64 // minimum separation from nearest intent (default: 0.15)
	DuplicateSimilarity  float64 // embedding similarity above which NEW becomes MERGE (default: 0.85)
}

// ValidationConfig contains sensitivity-test harness parameters.
type ValidationConfig struct {
	MajorityFraction float64 // fraction of injected messages required in one cluster (default: 0.8)
	PassCohesion     float64 // cohesion floor for the injected cluster (default: 0.4)
	InjectionFile    string  // optional YAML injection-set file; built-in set when empty
}

// StorageConfig contains run-store configuration.
type StorageConfig struct {
	Engine      string // storage engine: sqlite, postgres, none (default: sqlite)
	DataPath    string // path to data directory for sqlite (default: ./data)
	PostgresDSN string // postgres connection string (used when Engine is postgres)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the INTENTGAP_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:             getEnv("INTENTGAP_LLM_PROVIDER", "ollama"),
			OllamaURL:            getEnv("INTENTGAP_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("INTENTGAP_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("INTENTGAP_OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("INTENTGAP_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("INTENTGAP_OPENAI_MODEL", "gpt-4o-mini"),
			AnthropicAPIKey:      getEnv("INTENTGAP_ANTHROPIC_API_KEY", ""),
			AnthropicModel:       getEnv("INTENTGAP_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			EmbeddingModel:       getEnv("INTENTGAP_EMBEDDING_MODEL", ""),
			OracleTimeout:        getEnvDuration("INTENTGAP_ORACLE_TIMEOUT", 60*time.Second),
			OracleRetries:        getEnvInt("INTENTGAP_ORACLE_RETRIES", 2),
			OracleRatePerSec:     getEnvFloat("INTENTGAP_ORACLE_RATE_PER_SEC", 1.0),
			SynthesisWorkers:     getEnvInt("INTENTGAP_SYNTHESIS_WORKERS", 4),
			EmbeddingWorkers:     getEnvInt("INTENTGAP_EMBEDDING_WORKERS", 8),
		},
		Clustering: ClusteringConfig{
			Strategy:        getEnv("INTENTGAP_CLUSTER_STRATEGY", StrategyAgglomerative),
			TargetK:         getEnvInt("INTENTGAP_CLUSTER_K", 12),
			MinClusterSize:  getEnvInt("INTENTGAP_MIN_CLUSTER_SIZE", 5),
			MinSamples:      getEnvInt("INTENTGAP_MIN_SAMPLES", 3),
			Epsilon:         getEnvFloat("INTENTGAP_EPSILON", 0.35),
			Representatives: getEnvInt("INTENTGAP_REPRESENTATIVES", 5),
		},
		Guardrails: GuardrailConfig{
			CohesionThreshold:    getEnvFloat("INTENTGAP_COHESION_THRESHOLD", 0.3),
			ConfidenceThreshold:  getEnvFloat("INTENTGAP_CONFIDENCE_THRESHOLD", 0.6),
			DistinctivenessFloor: getEnvFloat("INTENTGAP_DISTINCTIVENESS_FLOOR", 0.15),
			DuplicateSimilarity:  getEnvFloat("INTENTGAP_DUPLICATE_SIMILARITY", 0.85),
		},
		Validation: ValidationConfig{
			MajorityFraction: getEnvFloat("INTENTGAP_MAJORITY_FRACTION", 0.8),
			PassCohesion:     getEnvFloat("INTENTGAP_PASS_COHESION", 0.4),
			InjectionFile:    getEnv("INTENTGAP_INJECTION_FILE", ""),
		},
		Storage: StorageConfig{
			Engine:      getEnv("INTENTGAP_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("INTENTGAP_DATA_PATH", "./data"),
			PostgresDSN: getEnv("INTENTGAP_POSTGRES_DSN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency of the configuration.
func (c *Config) Validate() error {
	switch c.Clustering.Strategy {
	case StrategyAgglomerative, StrategyDensity:
	default:
		return fmt.Errorf("config: unknown clustering strategy %q (must be %s or %s)",
			c.Clustering.Strategy, StrategyAgglomerative, StrategyDensity)
	}
	if c.Clustering.TargetK < 1 {
		return fmt.Errorf("config: cluster k must be >= 1, got %d", c.Clustering.TargetK)
	}
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("config: min cluster size must be >= 1, got %d", c.Clustering.MinClusterSize)
	}
	if c.Guardrails.ConfidenceThreshold < 0 || c.Guardrails.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence threshold must be in [0,1], got %f", c.Guardrails.ConfidenceThreshold)
	}
	if c.Validation.MajorityFraction <= 0 || c.Validation.MajorityFraction > 1 {
		return fmt.Errorf("config: majority fraction must be in (0,1], got %f", c.Validation.MajorityFraction)
	}
	if c.LLM.OracleRetries < 0 {
		return fmt.Errorf("config: oracle retry budget must be >= 0, got %d", c.LLM.OracleRetries)
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "30s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
