package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrConfiguration marks a bad or missing configuration. Fatal before any
// verification work starts.
var ErrConfiguration = eris.New("configuration error")

var supportedExtensions = map[string]string{
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
}

// Config holds the full application configuration.
type Config struct {
	Scrapers     []ScraperConfig    `yaml:"scrapers" mapstructure:"scrapers"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Ingest       IngestConfig       `yaml:"ingest" mapstructure:"ingest"`
	Export       ExportConfig       `yaml:"export" mapstructure:"export"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ScraperConfig declares one data source. Entries run in list order.
type ScraperConfig struct {
	Name               string         `yaml:"name,omitempty" mapstructure:"name"`
	Class              string         `yaml:"class" mapstructure:"class"`
	Enabled            *bool          `yaml:"enabled,omitempty" mapstructure:"enabled"`
	DelaySeconds       float64        `yaml:"delay_seconds,omitempty" mapstructure:"delay_seconds"`
	RateLimitPerMinute float64        `yaml:"rate_limit_per_minute,omitempty" mapstructure:"rate_limit_per_minute"`
	Retry              RetryConfig    `yaml:"retry,omitempty" mapstructure:"retry"`
	Circuit            CircuitConfig  `yaml:"circuit,omitempty" mapstructure:"circuit"`
	CacheSize          int            `yaml:"cache_size,omitempty" mapstructure:"cache_size"`
	Options            map[string]any `yaml:"options,omitempty" mapstructure:"options"`
}

// IsEnabled reports the enabled flag. Absent means enabled.
func (s ScraperConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DisplayName returns the configured name, falling back to the class key.
func (s ScraperConfig) DisplayName() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return s.Class
}

// RetryConfig controls retries of transient scraper failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts,omitempty" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms,omitempty" mapstructure:"initial_backoff_ms"`
}

// CircuitConfig controls the per-scraper circuit breaker. A zero threshold
// disables it.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold,omitempty" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs,omitempty" mapstructure:"reset_timeout_secs"`
}

// OrchestratorConfig configures lead fan-out.
type OrchestratorConfig struct {
	Mode               string `yaml:"mode" mapstructure:"mode"`
	MaxWorkers         int    `yaml:"max_workers" mapstructure:"max_workers"`
	RaiseOnError       bool   `yaml:"raise_on_error" mapstructure:"raise_on_error"`
	ScraperTimeoutSecs int    `yaml:"scraper_timeout_secs" mapstructure:"scraper_timeout_secs"`
}

// IngestConfig configures lead file reading.
type IngestConfig struct {
	SheetIndex    int                 `yaml:"sheet_index" mapstructure:"sheet_index"`
	ColumnMapping map[string][]string `yaml:"column_mapping,omitempty" mapstructure:"column_mapping"`
}

// ExportConfig configures result file writing.
type ExportConfig struct {
	SheetName          string `yaml:"sheet_name" mapstructure:"sheet_name"`
	IncludeDiagnostics bool   `yaml:"include_diagnostics" mapstructure:"include_diagnostics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxLeads       int      `yaml:"max_leads" mapstructure:"max_leads"`
	// JobRetention is how many finished jobs the API keeps for polling.
	JobRetention int `yaml:"job_retention" mapstructure:"job_retention"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from path and the environment. The file is
// required and must be JSON or YAML.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.Wrap(ErrConfiguration, "config: no configuration file given")
	}
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := supportedExtensions[ext]
	if !ok {
		return nil, eris.Wrapf(ErrConfiguration,
			"config: unsupported configuration format %q (supported: .json, .yaml, .yml)", ext)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(format)

	v.SetEnvPrefix("LEADVERIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("orchestrator.mode", "sequential")
	v.SetDefault("orchestrator.max_workers", 0)
	v.SetDefault("orchestrator.raise_on_error", false)
	v.SetDefault("orchestrator.scraper_timeout_secs", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_leads", 1000)
	v.SetDefault("server.job_retention", 100)
	v.SetDefault("export.sheet_name", "Results")
	v.SetDefault("export.include_diagnostics", false)
	v.SetDefault("ingest.sheet_index", 0)

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "config: read %s: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "config: unmarshal %s: %v", path, err)
	}

	for i, s := range cfg.Scrapers {
		if s.IsEnabled() && strings.TrimSpace(s.Class) == "" {
			return nil, eris.Wrapf(ErrConfiguration,
				"config: scraper %d (%q) is missing required 'class' field", i, s.Name)
		}
	}

	return &cfg, nil
}

// EnabledScrapers returns the enabled declarations in configured order.
func (c *Config) EnabledScrapers() []ScraperConfig {
	out := make([]ScraperConfig, 0, len(c.Scrapers))
	for _, s := range c.Scrapers {
		if !s.IsEnabled() {
			zap.L().Debug("config: skipping disabled scraper", zap.String("scraper", s.DisplayName()))
			continue
		}
		out = append(out, s)
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
