package reword

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	defaults "github.com/Paranoid-AF/reword/default"
)

// Config represents the user's reword configuration.
type Config struct {
	Version    int              `json:"version"`
	Generation GenerationConfig `json:"generation"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Cache      CacheConfig      `json:"cache"`
	Output     OutputConfig     `json:"output"`
}

// GenerationConfig holds settings for the paraphrase model endpoint.
type GenerationConfig struct {
	BaseURL        string  `json:"base_url"`
	APIKey         string  `json:"api_key"`
	APIType        string  `json:"api_type"` // "text2text" or "chat_completions"
	Model          string  `json:"model"`
	MaxLength      int     `json:"max_length,omitempty"`
	NumBeams       int     `json:"num_beams,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
	MaxConcurrency int     `json:"max_concurrency,omitempty"`
}

// EmbeddingConfig holds settings for the embedding API used by key lookups.
type EmbeddingConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	TopK    int    `json:"top_k,omitempty"`
}

// CacheConfig holds settings for the generation cache.
// A negative TTLMinutes disables caching.
type CacheConfig struct {
	TTLMinutes int `json:"ttl_minutes,omitempty"`
	Capacity   int `json:"capacity,omitempty"`
}

// OutputConfig holds settings for persisted artifacts.
type OutputConfig struct {
	Path string `json:"path"`
}

// ConfigDir returns the config directory path.
// Resolution order: $REWORD_CONFIG_DIR > $XDG_CONFIG_HOME/reword > ~/.config/reword
func ConfigDir() string {
	if dir := os.Getenv("REWORD_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "reword")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "reword-config")
	}
	return filepath.Join(home, ".config", "reword")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// PromptPath returns the prompt file path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// CacheDir returns the directory for derived data such as key embeddings.
// Resolution order: $REWORD_CACHE_DIR > $XDG_CACHE_HOME/reword > ~/.cache/reword
func CacheDir() string {
	if dir := os.Getenv("REWORD_CACHE_DIR"); dir != "" {
		return dir
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "reword")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "reword-cache")
	}
	return filepath.Join(home, ".cache", "reword")
}

// IndexCachePath returns the embedding cache file path.
func IndexCachePath() string {
	return filepath.Join(CacheDir(), "index.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("reword: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Generation.APIType == "" {
		cfg.Generation.APIType = defaults.Generation.APIType
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = defaults.Generation.Model
	}
	if cfg.Generation.MaxLength == 0 {
		cfg.Generation.MaxLength = defaults.Generation.MaxLength
	}
	if cfg.Generation.NumBeams == 0 {
		cfg.Generation.NumBeams = defaults.Generation.NumBeams
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = defaults.Generation.Temperature
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = defaults.Generation.TimeoutSeconds
	}
	if cfg.Generation.MaxConcurrency == 0 {
		cfg.Generation.MaxConcurrency = defaults.Generation.MaxConcurrency
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.TopK == 0 {
		cfg.Embedding.TopK = defaults.Embedding.TopK
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = defaults.Cache.TTLMinutes
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = defaults.Cache.Capacity
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = defaults.Output.Path
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if ResolveGenerationBaseURL(cfg) == "" {
		warnings = append(warnings, "generation base_url is not configured; paraphrasing is unavailable")
	}
	switch cfg.Generation.APIType {
	case "text2text", "chat_completions":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown generation api_type %q; text2text is used", cfg.Generation.APIType))
	}
	if cfg.Generation.APIType == "chat_completions" && ResolveGenerationAPIKey(cfg) == "" {
		warnings = append(warnings, "chat_completions is selected but no generation API key is configured")
	}
	if cfg.Generation.MaxConcurrency < 0 {
		warnings = append(warnings, "max_concurrency is negative; 1 is used")
	}
	if _, err := ExpandPath(cfg.Output.Path); err != nil {
		warnings = append(warnings, "output path cannot be expanded: "+err.Error())
	}
	return warnings
}

// ExpandPath expands a leading ~ and then expands the rest of path the way a
// shell expands a double-quoted word: $VAR and ${VAR:-default} are replaced,
// and command substitution such as $(cmd) or backticks is an error. A file
// name containing a literal $ must escape it as \$.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}
	return shell.Expand(path, nil)
}

// ResolveGenerationBaseURL returns the generation API base URL.
// Priority: $REWORD_GENERATION_API_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	if url := os.Getenv("REWORD_GENERATION_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.BaseURL
	}
	return ""
}

// ResolveGenerationAPIKey returns the generation API key.
// Priority: $REWORD_GENERATION_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	if key := os.Getenv("REWORD_GENERATION_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveGenerationModel returns the paraphrase model identifier.
// Priority: $REWORD_GENERATION_MODEL env > config value.
func ResolveGenerationModel(cfg *Config) string {
	if model := os.Getenv("REWORD_GENERATION_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $REWORD_EMBEDDING_API_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("REWORD_EMBEDDING_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $REWORD_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("REWORD_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $REWORD_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	if model := os.Getenv("REWORD_EMBEDDING_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Embedding.Model
	}
	return ""
}

// ResolveOutputPath returns the expanded default artifact path.
// Priority: $REWORD_OUTPUT env > config value.
func ResolveOutputPath(cfg *Config) (string, error) {
	path := os.Getenv("REWORD_OUTPUT")
	if path == "" && cfg != nil {
		path = cfg.Output.Path
	}
	return ExpandPath(path)
}

// GenerationEnabled returns true when a generation base_url is configured.
func GenerationEnabled(cfg *Config) bool {
	return ResolveGenerationBaseURL(cfg) != ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}
