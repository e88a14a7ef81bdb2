package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Strategy names accepted in force_strategy and produced by the analyzer.
const (
	StrategyDirect        = "direct"
	StrategyLightPlanning = "light_planning"
	StrategyDeepReasoning = "deep_reasoning"
)

// ModelConfig selects a model per pipeline stage.
type ModelConfig struct {
	Analyzer    string `mapstructure:"analyzer"`
	Planner     string `mapstructure:"planner"`
	Evaluator   string `mapstructure:"evaluator"`
	Synthesizer string `mapstructure:"synthesizer"`
	Executor    string `mapstructure:"executor"`
}

// LLMConfig configures the model service transport.
type LLMConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables limiting
}

// CacheConfig configures the optional Redis response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ReasoningConfig is resolved once at startup and shared read-only across
// concurrent queries.
type ReasoningConfig struct {
	MaxIterations    int     `mapstructure:"max_iterations"`
	MinConfidence    float64 `mapstructure:"min_confidence"`
	SimpleThreshold  float64 `mapstructure:"simple_threshold"`
	ComplexThreshold float64 `mapstructure:"complex_threshold"`

	MinQualityDirect float64 `mapstructure:"min_quality_direct"`
	MinQualityLight  float64 `mapstructure:"min_quality_light"`
	MinQualityDeep   float64 `mapstructure:"min_quality_deep"`

	MaxSubtasksLight int `mapstructure:"max_subtasks_light"`
	MaxSubtasksDeep  int `mapstructure:"max_subtasks_deep"`
	MaxFanout        int `mapstructure:"max_fanout"`

	// ForceStrategy bypasses the analyzer when set. Used for deterministic runs.
	ForceStrategy string `mapstructure:"force_strategy"`
	Debug         bool   `mapstructure:"debug"`

	PromptsDir string `mapstructure:"prompts_dir"`

	Models ModelConfig `mapstructure:"models"`
	LLM    LLMConfig   `mapstructure:"llm"`
	Cache  CacheConfig `mapstructure:"cache"`
}

// Default returns the built-in configuration used when no file or env
// overrides are present.
func Default() *ReasoningConfig {
	return &ReasoningConfig{
		MaxIterations:    3,
		MinConfidence:    0.7,
		SimpleThreshold:  0.3,
		ComplexThreshold: 0.7,
		MinQualityDirect: 0.6,
		MinQualityLight:  0.7,
		MinQualityDeep:   0.7,
		MaxSubtasksLight: 2,
		MaxSubtasksDeep:  5,
		MaxFanout:        4,
		Models: ModelConfig{
			Analyzer:    "small",
			Planner:     "small",
			Evaluator:   "small",
			Synthesizer: "large",
			Executor:    "large",
		},
		LLM: LLMConfig{
			BaseURL: "http://llm-service:8000",
			Timeout: 120 * time.Second,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  time.Hour,
		},
	}
}

// Load reads the optional YAML config file from REASONLOOP_CONFIG (or the
// given path when non-empty), merges env overrides on top of defaults, and
// validates the result. Any failure here is a configuration error and fatal
// to the caller; reasoning never starts with a bad config.
func Load(path string) (*ReasoningConfig, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("REASONLOOP_CONFIG")
	}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *ReasoningConfig) {
	if v := os.Getenv("LLM_SERVICE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("REASONLOOP_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("REASONLOOP_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.MinConfidence = f
		}
	}
	if v := os.Getenv("REASONLOOP_FORCE_STRATEGY"); v != "" {
		cfg.ForceStrategy = v
	}
	if v := os.Getenv("REASONLOOP_PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("REASONLOOP_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("REASONLOOP_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate rejects configurations that could stall or misroute the pipeline.
func (c *ReasoningConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.SimpleThreshold < 0 || c.SimpleThreshold > 1 {
		return fmt.Errorf("simple_threshold must be in [0,1], got %v", c.SimpleThreshold)
	}
	if c.ComplexThreshold < c.SimpleThreshold || c.ComplexThreshold > 1 {
		return fmt.Errorf("complex_threshold must be in [simple_threshold,1], got %v", c.ComplexThreshold)
	}
	for name, q := range map[string]float64{
		"min_quality_direct": c.MinQualityDirect,
		"min_quality_light":  c.MinQualityLight,
		"min_quality_deep":   c.MinQualityDeep,
	} {
		if q < 0 || q > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, q)
		}
	}
	if c.MaxSubtasksLight < 1 {
		return fmt.Errorf("max_subtasks_light must be >= 1, got %d", c.MaxSubtasksLight)
	}
	if c.MaxSubtasksDeep < 1 {
		return fmt.Errorf("max_subtasks_deep must be >= 1, got %d", c.MaxSubtasksDeep)
	}
	if c.MaxFanout < 1 {
		return fmt.Errorf("max_fanout must be >= 1, got %d", c.MaxFanout)
	}
	switch c.ForceStrategy {
	case "", StrategyDirect, StrategyLightPlanning, StrategyDeepReasoning:
	default:
		return fmt.Errorf("force_strategy %q is not a known strategy", c.ForceStrategy)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url must not be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %v", c.LLM.Timeout)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr must be set when cache is enabled")
	}
	return nil
}
