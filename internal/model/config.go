package model

import "time"

// Config is the complete geotrail configuration
type Config struct {
	Extract     ExtractConfig     `yaml:"extract" json:"extract"`
	Thresholds  Thresholds        `yaml:"thresholds" json:"thresholds"`
	Diagnose    DiagnoseConfig    `yaml:"diagnose" json:"diagnose"`
	Privacy     PrivacyConfig     `yaml:"privacy" json:"privacy"`
	Load        LoadConfig        `yaml:"load" json:"load"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" json:"concurrency"`
	Output      OutputConfig      `yaml:"output" json:"output"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
}

// ExtractConfig bounds the extraction walker
type ExtractConfig struct {
	MaxNodes       int    `yaml:"max_nodes" json:"max_nodes"`             // Hard node-visit ceiling
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`           // Nodes between progress reports / yields
	EstimatedTotal int    `yaml:"estimated_total" json:"estimated_total"` // Denominator for the progress estimate
	Timezone       string `yaml:"timezone" json:"timezone"`               // IANA zone used to derive Point.Year
}

// Thresholds are the numeric and string heuristics used by the classifiers.
// They were inferred from observed exports and may need revisiting when
// export schemas change their value ranges.
type Thresholds struct {
	ScaledCoordMin   float64 `yaml:"scaled_coord_min" json:"scaled_coord_min"`     // exclusive, absolute value
	ScaledCoordMax   float64 `yaml:"scaled_coord_max" json:"scaled_coord_max"`     // exclusive, absolute value
	TimestampMin     float64 `yaml:"timestamp_min" json:"timestamp_min"`           // exclusive, epoch ms
	TimestampMax     float64 `yaml:"timestamp_max" json:"timestamp_max"`           // exclusive, epoch ms
	SmallMax         float64 `yaml:"small_max" json:"small_max"`                   // exclusive, absolute value
	Base64MinLength  int     `yaml:"base64_min_length" json:"base64_min_length"`   // exclusive
	LongStringLength int     `yaml:"long_string_length" json:"long_string_length"` // exclusive
}

// DiagnoseConfig caps the diagnostic report
type DiagnoseConfig struct {
	MaxNodes               int `yaml:"max_nodes" json:"max_nodes"`
	MaxRejections          int `yaml:"max_rejections" json:"max_rejections"`
	MaxSuccessSamples      int `yaml:"max_success_samples" json:"max_success_samples"`
	ShapeDepth             int `yaml:"shape_depth" json:"shape_depth"`
	ShapeListedKeys        int `yaml:"shape_listed_keys" json:"shape_listed_keys"`
	ShapeExpandedKeys      int `yaml:"shape_expanded_keys" json:"shape_expanded_keys"`
	DepthProbeLimit        int `yaml:"depth_probe_limit" json:"depth_probe_limit"`
	NoTimestampThreshold   int `yaml:"no_timestamp_threshold" json:"no_timestamp_threshold"`     // Recommend when exceeded
	InvalidCoordsThreshold int `yaml:"invalid_coords_threshold" json:"invalid_coords_threshold"` // Recommend when exceeded
	InvalidTimeThreshold   int `yaml:"invalid_time_threshold" json:"invalid_time_threshold"`     // Recommend when exceeded
}

// PrivacyConfig selects the grid-snapping level applied after extraction
type PrivacyConfig struct {
	Level string `yaml:"level" json:"level"` // none, low, medium, high, max
}

// LoadConfig controls reading export files
type LoadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`
}

// CacheConfig controls caching of extraction results
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Dir       string        `yaml:"dir" json:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" json:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" json:"disk_ttl"`
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers" json:"workers"`
	ProgressPerSecond float64 `yaml:"progress_per_second" json:"progress_per_second"`
	ProgressBurst     int     `yaml:"progress_burst" json:"progress_burst"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" json:"verbose"`
	IncludeFooter bool `yaml:"include_footer" json:"include_footer"`
}

// LLMConfig configures the optional report explanation
type LLMConfig struct {
	Provider  string `yaml:"provider" json:"provider"` // openai, ollama, "" (disabled)
	Model     string `yaml:"model" json:"model"`
	APIKey    string `yaml:"-" json:"-"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	Timeout   int    `yaml:"timeout" json:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`

	HTTPProxy  string `yaml:"http_proxy" json:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" json:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" json:"no_proxy"`
}

// DefaultThresholds returns the classifier thresholds observed in real exports
func DefaultThresholds() Thresholds {
	return Thresholds{
		ScaledCoordMin:   1_000_000,
		ScaledCoordMax:   2_000_000_000,
		TimestampMin:     1_000_000_000_000,
		TimestampMax:     2_000_000_000_000,
		SmallMax:         1000,
		Base64MinLength:  20,
		LongStringLength: 100,
	}
}

// DefaultExtractConfig returns the extraction walker defaults
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		MaxNodes:       2_000_000,
		ChunkSize:      30_000,
		EstimatedTotal: 800_000,
		Timezone:       "UTC",
	}
}

// DefaultDiagnoseConfig returns the diagnostic walker defaults
func DefaultDiagnoseConfig() DiagnoseConfig {
	return DiagnoseConfig{
		MaxNodes:               2_000_000,
		MaxRejections:          20,
		MaxSuccessSamples:      5,
		ShapeDepth:             8,
		ShapeListedKeys:        50,
		ShapeExpandedKeys:      20,
		DepthProbeLimit:        15,
		NoTimestampThreshold:   0,
		InvalidCoordsThreshold: 0,
		InvalidTimeThreshold:   3,
	}
}

// DefaultConfig returns the full default configuration
func DefaultConfig() *Config {
	return &Config{
		Extract:    DefaultExtractConfig(),
		Thresholds: DefaultThresholds(),
		Diagnose:   DefaultDiagnoseConfig(),
		Privacy: PrivacyConfig{
			Level: "none",
		},
		Load: LoadConfig{
			MaxBytes: 1 << 30,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".geotrail-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			ProgressPerSecond: 2,
			ProgressBurst:     1,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 600,
		},
	}
}
