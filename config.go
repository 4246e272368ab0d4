package qoyllur

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/brunobiangulo/qoyllur/graph"
	"github.com/brunobiangulo/qoyllur/intent"
	"github.com/brunobiangulo/qoyllur/llm"
	"github.com/brunobiangulo/qoyllur/retrieval"
	"github.com/brunobiangulo/qoyllur/synthesis"
)

// envPrefix namespaces environment overrides: QOYLLUR_SEARCH_TOP_K etc.
const envPrefix = "QOYLLUR"

// Config holds all configuration for the engine.
type Config struct {
	// GraphPath is the knowledge-graph file (.ttl, .nt or .xlsx).
	GraphPath string `json:"graph_path" yaml:"graph_path" mapstructure:"graph_path"`

	// Language overrides Vocabulary.Language when set.
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Search    SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`

	// Vocabulary names the predicates the engine understands.
	Vocabulary graph.Vocabulary `json:"vocabulary" yaml:"vocabulary" mapstructure:"vocabulary"`

	// Days maps festival days to their entities. Empty uses the built-in
	// five-day table.
	Days []intent.Day `json:"days,omitempty" yaml:"days,omitempty" mapstructure:"days"`

	// Intents holds the classifier keyword lists.
	Intents intent.Rules `json:"intents" yaml:"intents" mapstructure:"intents"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// EmbeddingConfig selects the embedding provider and how entity texts are
// batched at startup.
type EmbeddingConfig struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // ollama, lmstudio, openrouter, openai, gemini, custom, hashing, none
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	Dim      int    `json:"dim" yaml:"dim" mapstructure:"dim"` // hashing provider only

	BatchSize   int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

func (c EmbeddingConfig) llmConfig() llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		Dim:      c.Dim,
	}
}

// SearchConfig holds ranking defaults. Each can be overridden per query.
type SearchConfig struct {
	Mode  string  `json:"mode" yaml:"mode" mapstructure:"mode"`
	TopK  int     `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
	Alpha float64 `json:"alpha" yaml:"alpha" mapstructure:"alpha"`

	RerankWindow    int     `json:"rerank_window" yaml:"rerank_window" mapstructure:"rerank_window"`
	RelatedMinScore float64 `json:"related_min_score" yaml:"related_min_score" mapstructure:"related_min_score"`
	PrimaryMinScore float64 `json:"primary_min_score" yaml:"primary_min_score" mapstructure:"primary_min_score"`
}

func (c SearchConfig) synthesisOptions() synthesis.Options {
	return synthesis.Options{
		RerankWindow:    c.RerankWindow,
		RelatedMinScore: c.RelatedMinScore,
		PrimaryMinScore: c.PrimaryMinScore,
	}
}

// CacheConfig controls the SQLite embedding cache. With Path set the
// engine loads a matching snapshot instead of embedding; with Write also
// set it stores a fresh snapshot after a miss.
type CacheConfig struct {
	Path  string `json:"path" yaml:"path" mapstructure:"path"`
	Write bool   `json:"write" yaml:"write" mapstructure:"write"`
}

// DefaultConfig returns a Config that runs fully offline: the local
// hashing embedder, hybrid search and no cache.
func DefaultConfig() Config {
	syn := synthesis.DefaultOptions()
	return Config{
		GraphPath: "qoyllur.ttl",
		Language:  "es",
		Embedding: EmbeddingConfig{
			Provider:    "hashing",
			BatchSize:   32,
			Concurrency: 4,
		},
		Search: SearchConfig{
			Mode:            string(retrieval.ModeHybrid),
			TopK:            10,
			Alpha:           retrieval.DefaultAlpha,
			RerankWindow:    syn.RerankWindow,
			RelatedMinScore: syn.RelatedMinScore,
			PrimaryMinScore: syn.PrimaryMinScore,
		},
		Vocabulary: graph.DefaultVocabulary(),
		Intents:    intent.DefaultRules(),
		LogLevel:   "info",
	}
}

// Validate reports every invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GraphPath) == "" {
		errs = append(errs, errors.New("graph_path is required"))
	}
	if c.Embedding.Provider == "" {
		errs = append(errs, errors.New("embedding.provider is required (use \"none\" to disable semantic search)"))
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.Concurrency < 0 {
		errs = append(errs, errors.New("embedding.batch_size and embedding.concurrency must not be negative"))
	}
	if _, err := retrieval.ParseMode(c.Search.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Search.TopK <= 0 {
		errs = append(errs, fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK))
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		errs = append(errs, fmt.Errorf("search.alpha must be within [0, 1], got %g", c.Search.Alpha))
	}
	if c.Search.RerankWindow < 0 {
		errs = append(errs, fmt.Errorf("search.rerank_window must not be negative, got %d", c.Search.RerankWindow))
	}
	for _, d := range c.Days {
		if d.Number <= 0 || d.EntityID == "" {
			errs = append(errs, fmt.Errorf("days: entry %+v needs a positive number and an entity_id", d))
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// vocabulary returns the configured vocabulary with the language override
// applied.
func (c *Config) vocabulary() graph.Vocabulary {
	v := c.Vocabulary
	if v.Label == "" {
		v = graph.DefaultVocabulary()
	}
	if c.Language != "" {
		v.Language = c.Language
	}
	return v
}

// ParseLogLevel maps a config level name to a slog.Level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// envKeys are the settings that can be overridden from the environment.
var envKeys = []string{
	"graph_path", "language", "log_level",
	"embedding.provider", "embedding.model", "embedding.base_url", "embedding.api_key",
	"embedding.dim", "embedding.batch_size", "embedding.concurrency",
	"search.mode", "search.top_k", "search.alpha", "search.rerank_window",
	"search.related_min_score", "search.primary_min_score",
	"cache.path", "cache.write",
}

// LoadConfig reads a YAML or JSON config file on top of DefaultConfig and
// applies QOYLLUR_* environment overrides (QOYLLUR_EMBEDDING_API_KEY and
// so on). An empty path reads the environment only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return cfg, fmt.Errorf("binding env for %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("%w: reading %s: %w", ErrInvalidConfig, path, err)
		}
	}

	// Decoding into a populated slice overwrites it element by element, so
	// a shorter list from the file would keep the tail of the default.
	if v.IsSet("intents") {
		cfg.Intents = intent.Rules{}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: decoding config: %w", ErrInvalidConfig, err)
	}
	cfg.Intents = withDefaultRules(cfg.Intents)
	return cfg, cfg.Validate()
}

// withDefaultRules fills every empty keyword list from DefaultRules.
func withDefaultRules(r intent.Rules) intent.Rules {
	def := intent.DefaultRules()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&r.DayListing, def.DayListing)
	fill(&r.Location, def.Location)
	fill(&r.Time, def.Time)
	fill(&r.Agent, def.Agent)
	fill(&r.What, def.What)
	fill(&r.Event, def.Event)
	fill(&r.Dance, def.Dance)
	fill(&r.Count, def.Count)
	return r
}
