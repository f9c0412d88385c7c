package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	PPI        PPIConfig        `mapstructure:"ppi"`
	Network    NetworkConfig    `mapstructure:"network"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// PostgresConfig holds settings for the evidence database connection.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// WorkerConfig holds settings for the shared CPU-bound worker pool. The pool
// is a process-scoped resource; it is created once at startup and shut down
// at exit.
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// ScoringConfig holds settings for evidence score aggregation.
type ScoringConfig struct {
	// DefaultClassificationWeight is applied when a classification string is
	// unrecognized or missing.
	DefaultClassificationWeight float64 `mapstructure:"default_classification_weight"`
}

// PPIConfig holds settings for STRING interaction scoring.
type PPIConfig struct {
	ProteinInfoPath   string        `mapstructure:"protein_info_path"`
	PhysicalLinksPath string        `mapstructure:"physical_links_path"`
	MinConfidence     int           `mapstructure:"min_confidence"`
	StrongConfidence  int           `mapstructure:"strong_confidence"`
	TopPartners       int           `mapstructure:"top_partners"`
	PercentileMinGap  time.Duration `mapstructure:"percentile_min_gap"`
	PercentileTTL     time.Duration `mapstructure:"percentile_ttl"`
}

// NetworkConfig holds settings for network construction and clustering.
type NetworkConfig struct {
	MaxGenes         int           `mapstructure:"max_genes"`
	MinStringScore   int           `mapstructure:"min_string_score"`
	GraphCacheSize   int           `mapstructure:"graph_cache_size"`
	GraphCacheTTL    time.Duration `mapstructure:"graph_cache_ttl"`
	LeidenResolution float64       `mapstructure:"leiden_resolution"`
	LeidenIterations int           `mapstructure:"leiden_iterations"`
	// LouvainResolution tunes community granularity for the Louvain
	// algorithm; values above 1 favor smaller communities.
	LouvainResolution float64 `mapstructure:"louvain_resolution"`
	WalktrapSteps     int     `mapstructure:"walktrap_steps"`
	MinClusterSize    int     `mapstructure:"min_cluster_size"`
}

// EnrichmentConfig holds settings for statistical and external enrichment.
type EnrichmentConfig struct {
	FDRThreshold    float64       `mapstructure:"fdr_threshold"`
	EnrichrURL      string        `mapstructure:"enrichr_url"`
	EnrichrTimeout  time.Duration `mapstructure:"enrichr_timeout"`
	EnrichrInterval time.Duration `mapstructure:"enrichr_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	// HPOTermsPath points at a tab-separated id-to-name table for HPO
	// display names. Empty leaves term ids as the names.
	HPOTermsPath string `mapstructure:"hpo_terms_path"`
}

// SetDefaults registers default values so the app can run with a minimal
// config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "genevidence")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("worker.queue_size", 64)

	v.SetDefault("scoring.default_classification_weight", 0.3)

	v.SetDefault("ppi.min_confidence", 400)
	v.SetDefault("ppi.strong_confidence", 800)
	v.SetDefault("ppi.top_partners", 25)
	v.SetDefault("ppi.percentile_min_gap", time.Hour)
	v.SetDefault("ppi.percentile_ttl", 24*time.Hour)

	v.SetDefault("network.max_genes", 2000)
	v.SetDefault("network.min_string_score", 400)
	v.SetDefault("network.graph_cache_size", 50)
	v.SetDefault("network.graph_cache_ttl", time.Hour)
	v.SetDefault("network.leiden_resolution", 1.0)
	v.SetDefault("network.leiden_iterations", 10)
	v.SetDefault("network.louvain_resolution", 1.0)
	v.SetDefault("network.walktrap_steps", 4)
	v.SetDefault("network.min_cluster_size", 3)

	v.SetDefault("enrichment.fdr_threshold", 0.05)
	v.SetDefault("enrichment.enrichr_url", "https://maayanlab.cloud/Enrichr")
	v.SetDefault("enrichment.enrichr_timeout", 120*time.Second)
	v.SetDefault("enrichment.enrichr_interval", 2*time.Second)
	v.SetDefault("enrichment.retry_attempts", 3)
	v.SetDefault("enrichment.retry_base_delay", time.Second)
	v.SetDefault("enrichment.breaker_failures", 5)
	v.SetDefault("enrichment.breaker_cooldown", time.Minute)
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Network.MaxGenes <= 0 {
		return fmt.Errorf("network.max_genes must be positive, got %d", c.Network.MaxGenes)
	}
	if c.Network.MinStringScore < 0 || c.Network.MinStringScore > 1000 {
		return fmt.Errorf("network.min_string_score must be in [0,1000], got %d", c.Network.MinStringScore)
	}
	if c.PPI.MinConfidence < 0 || c.PPI.MinConfidence > 1000 {
		return fmt.Errorf("ppi.min_confidence must be in [0,1000], got %d", c.PPI.MinConfidence)
	}
	if c.Enrichment.FDRThreshold <= 0 || c.Enrichment.FDRThreshold > 1 {
		return fmt.Errorf("enrichment.fdr_threshold must be in (0,1], got %g", c.Enrichment.FDRThreshold)
	}
	if c.Network.LouvainResolution < 0 {
		return fmt.Errorf("network.louvain_resolution must not be negative, got %g", c.Network.LouvainResolution)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive, got %d", c.Worker.PoolSize)
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			loadErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
