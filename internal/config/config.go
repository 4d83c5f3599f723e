// Package config loads archscan's per-repository configuration.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"archscan/internal/graph"
	"archscan/internal/paths"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// Config represents the complete archscan configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Engine     EngineConfig     `json:"engine" mapstructure:"engine"`
	Discovery  DiscoveryConfig  `json:"discovery" mapstructure:"discovery"`
	Inspectors InspectorsConfig `json:"inspectors" mapstructure:"inspectors"`
	Storage    StorageConfig    `json:"storage" mapstructure:"storage"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// EngineConfig controls pass scheduling
type EngineConfig struct {
	TypeOrder           []string `json:"typeOrder" mapstructure:"typeOrder"`
	MaxPasses           int      `json:"maxPasses" mapstructure:"maxPasses"`
	Workers             int      `json:"workers" mapstructure:"workers"`
	InvocationTimeoutMs int      `json:"invocationTimeoutMs" mapstructure:"invocationTimeoutMs"`
}

// DiscoveryConfig controls which files become nodes
type DiscoveryConfig struct {
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	ScipIndexPath    string   `json:"scipIndexPath" mapstructure:"scipIndexPath"`
}

// InspectorsConfig tunes the built-in inspectors
type InspectorsConfig struct {
	Disabled            []string `json:"disabled" mapstructure:"disabled"`
	RulesFile           string   `json:"rulesFile" mapstructure:"rulesFile"`
	ComplexityThreshold int      `json:"complexityThreshold" mapstructure:"complexityThreshold"`
	HubFanIn            int      `json:"hubFanIn" mapstructure:"hubFanIn"`
	CentralityTopK      int      `json:"centralityTopK" mapstructure:"centralityTopK"`
}

// StorageConfig controls run persistence
type StorageConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Path     string `json:"path" mapstructure:"path"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Engine: EngineConfig{
			TypeOrder: []string{"file", "class", "package"},
			MaxPasses: 32,
			Workers:   1,
		},
		Discovery: DiscoveryConfig{
			Ignore:           []string{".git", ".archscan", "node_modules", "vendor", "build", "target", "dist"},
			MaxFileSizeBytes: 1000000,
			ScipIndexPath:    ".scip/index.scip",
		},
		Inspectors: InspectorsConfig{
			Disabled:            []string{},
			RulesFile:           filepath.Join(paths.DataDirName, paths.RulesFileName),
			ComplexityThreshold: 10,
			HubFanIn:            5,
			CentralityTopK:      10,
		},
		Storage: StorageConfig{
			Enabled:  true,
			Path:     filepath.Join(paths.DataDirName, paths.StoreFileName),
			Compress: true,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			File:       filepath.Join(paths.DataDirName, paths.LogsSubdir, paths.AnalyzeLogName),
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// setDefaults registers every key so ARCHSCAN_* environment variables can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)

	v.SetDefault("engine.typeOrder", d.Engine.TypeOrder)
	v.SetDefault("engine.maxPasses", d.Engine.MaxPasses)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.invocationTimeoutMs", d.Engine.InvocationTimeoutMs)

	v.SetDefault("discovery.ignore", d.Discovery.Ignore)
	v.SetDefault("discovery.maxFileSizeBytes", d.Discovery.MaxFileSizeBytes)
	v.SetDefault("discovery.scipIndexPath", d.Discovery.ScipIndexPath)

	v.SetDefault("inspectors.disabled", d.Inspectors.Disabled)
	v.SetDefault("inspectors.rulesFile", d.Inspectors.RulesFile)
	v.SetDefault("inspectors.complexityThreshold", d.Inspectors.ComplexityThreshold)
	v.SetDefault("inspectors.hubFanIn", d.Inspectors.HubFanIn)
	v.SetDefault("inspectors.centralityTopK", d.Inspectors.CentralityTopK)

	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.compress", d.Storage.Compress)

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// LoadConfig loads configuration from .archscan/config.json, applying ARCHSCAN_*
// environment overrides (for example ARCHSCAN_ENGINE_MAXPASSES).
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(repoRoot))

	v.SetEnvPrefix("ARCHSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .archscan/config.json
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureDataDir(repoRoot); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.ConfigPath(repoRoot), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if _, err := c.Engine.NodeTypes(); err != nil {
		return &ConfigError{Field: "engine.typeOrder", Message: err.Error()}
	}
	if c.Engine.MaxPasses < 1 {
		return &ConfigError{Field: "engine.maxPasses", Message: "must be at least 1"}
	}
	if c.Engine.Workers < 1 {
		return &ConfigError{Field: "engine.workers", Message: "must be at least 1"}
	}
	if c.Engine.InvocationTimeoutMs < 0 {
		return &ConfigError{Field: "engine.invocationTimeoutMs", Message: "must not be negative"}
	}
	if c.Discovery.MaxFileSizeBytes < 0 {
		return &ConfigError{Field: "discovery.maxFileSizeBytes", Message: "must not be negative"}
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return &ConfigError{Field: "storage.path", Message: "required when storage is enabled"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "must be debug, info, warn or error"}
	}
	return nil
}

// NodeTypes parses the configured type order.
func (e EngineConfig) NodeTypes() ([]graph.NodeType, error) {
	if len(e.TypeOrder) == 0 {
		return graph.AllNodeTypes(), nil
	}
	return graph.ParseNodeTypes(e.TypeOrder)
}

// InvocationTimeout returns the per-invocation timeout as a duration.
func (e EngineConfig) InvocationTimeout() time.Duration {
	return time.Duration(e.InvocationTimeoutMs) * time.Millisecond
}

// IsDisabled reports whether the inspector with the given identity is switched off.
func (i InspectorsConfig) IsDisabled(id string) bool {
	for _, d := range i.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
