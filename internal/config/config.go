package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

const (
	// DefaultSimilarityThreshold is the ratio above which two names are confusable.
	DefaultSimilarityThreshold = 0.8

	// DefaultSaveInterval is how often the registry document is flushed.
	DefaultSaveInterval = 300 * time.Second

	// DefaultCacheTTL is the lifetime of cached anchors and resolutions.
	DefaultCacheTTL = time.Hour
)

// Config holds all configuration for the registry.
type Config struct {
	Registry   RegistryConfig   `mapstructure:"registry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Conflict   ConflictConfig   `mapstructure:"conflict"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Claude     ClaudeConfig     `mapstructure:"claude"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	API        APIConfig        `mapstructure:"api"`
}

// RegistryConfig holds the document location and background cadence.
type RegistryConfig struct {
	Path               string        `mapstructure:"path"`
	SaveInterval       time.Duration `mapstructure:"save_interval"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	DocumentAuditLimit int           `mapstructure:"document_audit_limit"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend      string        `mapstructure:"backend"` // memory, redis or none
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	DB           int           `mapstructure:"db"`
	Password     string        `mapstructure:"password"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Addr returns host:port of the Redis server.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuditConfig holds the audit database settings.
type AuditConfig struct {
	Path      string `mapstructure:"path"`
	ReportDir string `mapstructure:"report_dir"`
	// Retention maps log level to days kept.
	Retention map[string]int `mapstructure:"retention"`
}

// GovernanceConfig locates the rules file. An empty path uses built-in rules.
type GovernanceConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// ConflictConfig tunes detection and auto-resolution.
type ConflictConfig struct {
	SimilarityThreshold float64         `mapstructure:"similarity_threshold"`
	ScanInterval        time.Duration   `mapstructure:"scan_interval"`
	DeepCycles          bool            `mapstructure:"deep_cycles"`
	AutoResolve         map[string]bool `mapstructure:"auto_resolve"`
}

// GraphConfig holds the optional Neo4j projection settings.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Enabled reports whether a graph database is configured.
func (g GraphConfig) Enabled() bool { return g.URI != "" }

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	masked := maskAPIKey(c.APIKey)
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", masked, c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// Load reads configuration from file and environment variables. An empty
// path searches ~/.ssot-registry and the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".ssot-registry"))
		v.AddConfigPath(".")
	}

	// Environment variables: SSOT_REGISTRY_CACHE_HOST etc.
	v.SetEnvPrefix("SSOT_REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY", "SSOT_REGISTRY_CLAUDE_API_KEY")
	_ = v.BindEnv("cache.password", "SSOT_REGISTRY_CACHE_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("graph.password", "SSOT_REGISTRY_GRAPH_PASSWORD", "NEO4J_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	base := filepath.Join(homeDir(), ".ssot-registry")

	v.SetDefault("registry.path", filepath.Join(base, "registry.json"))
	v.SetDefault("registry.save_interval", DefaultSaveInterval)
	v.SetDefault("registry.sweep_interval", time.Hour)
	v.SetDefault("registry.cache_ttl", DefaultCacheTTL)
	v.SetDefault("registry.document_audit_limit", 10000)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.dial_timeout", 5*time.Second)
	v.SetDefault("cache.read_timeout", 3*time.Second)
	v.SetDefault("cache.write_timeout", 3*time.Second)

	v.SetDefault("audit.path", filepath.Join(base, "audit.db"))
	v.SetDefault("audit.report_dir", filepath.Join(base, "reports"))
	v.SetDefault("audit.retention", map[string]int{
		"debug": 7, "info": 90, "warning": 365, "error": 730, "critical": 2555,
	})

	v.SetDefault("governance.path", "")
	v.SetDefault("governance.watch", true)

	v.SetDefault("conflict.similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("conflict.scan_interval", 30*time.Minute)
	v.SetDefault("conflict.deep_cycles", true)
	v.SetDefault("conflict.auto_resolve", map[string]bool{string(models.ConflictNaming): false})

	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.user", "neo4j")
	v.SetDefault("graph.database", "neo4j")

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path must not be empty")
	}
	if c.Registry.SaveInterval <= 0 {
		return fmt.Errorf("registry.save_interval must be greater than 0")
	}
	if c.Registry.SweepInterval <= 0 {
		return fmt.Errorf("registry.sweep_interval must be greater than 0")
	}
	if c.Registry.CacheTTL <= 0 {
		return fmt.Errorf("registry.cache_ttl must be greater than 0")
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.Host == "" {
			return fmt.Errorf("cache.host must not be empty for the redis backend")
		}
		if c.Cache.Port <= 0 || c.Cache.Port > 65535 {
			return fmt.Errorf("cache.port %d is out of range", c.Cache.Port)
		}
		if c.Cache.DB < 0 {
			return fmt.Errorf("cache.db must be >= 0")
		}
	default:
		return fmt.Errorf("cache.backend %q must be one of memory, redis, none", c.Cache.Backend)
	}
	if c.Audit.Path == "" {
		return fmt.Errorf("audit.path must not be empty")
	}
	for level, days := range c.Audit.Retention {
		if !models.LogLevel(level).IsValid() {
			return fmt.Errorf("audit.retention: unknown log level %q", level)
		}
		if days < 0 {
			return fmt.Errorf("audit.retention.%s must be >= 0", level)
		}
	}
	if c.Conflict.SimilarityThreshold < 0 || c.Conflict.SimilarityThreshold > 1 {
		return fmt.Errorf("conflict.similarity_threshold must be between 0 and 1")
	}
	if c.Conflict.ScanInterval <= 0 {
		return fmt.Errorf("conflict.scan_interval must be greater than 0")
	}
	for typ := range c.Conflict.AutoResolve {
		if !models.ConflictType(typ).IsValid() {
			return fmt.Errorf("conflict.auto_resolve: unknown conflict type %q", typ)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

// AutoResolveTypes converts the auto_resolve map to conflict types.
func (c ConflictConfig) AutoResolveTypes() map[models.ConflictType]bool {
	out := make(map[models.ConflictType]bool, len(c.AutoResolve))
	for k, v := range c.AutoResolve {
		out[models.ConflictType(k)] = v
	}
	return out
}

// RetentionDays converts the retention map to log levels.
func (a AuditConfig) RetentionDays() map[models.LogLevel]int {
	out := make(map[models.LogLevel]int, len(a.Retention))
	for k, v := range a.Retention {
		out[models.LogLevel(k)] = v
	}
	return out
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
