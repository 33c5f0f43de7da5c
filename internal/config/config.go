// Package config loads the vecshop YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecshop/internal/domain"
	"github.com/kailas-cloud/vecshop/internal/domain/search/request"
	"github.com/kailas-cloud/vecshop/internal/domain/search/weights"
)

// Database drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// PathEnv names an explicit config file, bypassing the per-environment lookup.
const PathEnv = "VECSHOP_CONFIG"

// Config holds the vecshop configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects and connects the vector store.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DSN              string   `yaml:"dsn"` // postgres only
	MaxOpenConns     int      `yaml:"max_open_conns"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig says where products live. Name is the FT index for valkey/redis
// and the table for postgres.
type IndexConfig struct {
	Name            string   `yaml:"name"`
	KeyPrefix       string   `yaml:"key_prefix"`
	ReturnFields    []string `yaml:"return_fields"`
	NumericFields   []string `yaml:"numeric_fields"`
	IDColumn        string   `yaml:"id_column"`
	EmbeddingColumn string   `yaml:"embedding_column"`
}

// EmbeddingConfig holds the query text embedding provider settings.
// An empty Model disables text embedding; searches then need a vector.
type EmbeddingConfig struct {
	Provider       string  `yaml:"provider"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Dimensions     int     `yaml:"dimensions"`
	TextPrompt     string  `yaml:"text_prompt"`
	MaxRetries     int     `yaml:"max_retries"`
	CacheTTLSec    int     `yaml:"cache_ttl_sec"` // 0 = default, <0 = cache disabled
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// SearchConfig holds pipeline defaults.
type SearchConfig struct {
	DefaultTopK        int             `yaml:"default_top_k"`
	MaxTopK            int             `yaml:"max_top_k"`
	OverfetchFactor    int             `yaml:"overfetch_factor"`
	MaxOverfetchFactor int             `yaml:"max_overfetch_factor"`
	RetrievalTimeoutMs int             `yaml:"retrieval_timeout_ms"`
	Weights            weights.Weights `yaml:"weights"`
	ImageWeight        float64         `yaml:"image_weight"`
	TextWeight         float64         `yaml:"text_weight"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment references in data, then decodes, defaults and validates it.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Index.Name == "" {
		if c.Database.Driver == DriverPostgres {
			c.Index.Name = "products"
		} else {
			c.Index.Name = domain.KeyPrefix + "products:idx"
		}
	}
	if c.Index.KeyPrefix == "" && c.Database.Driver != DriverPostgres {
		c.Index.KeyPrefix = domain.KeyPrefix + "product:"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = domain.DefaultVectorConfig().Dimensions
	}

	c.Search.applyDefaults()
}

func (s *SearchConfig) applyDefaults() {
	if s.DefaultTopK <= 0 {
		s.DefaultTopK = request.DefaultTopK
	}
	if s.MaxTopK <= 0 {
		s.MaxTopK = request.MaxTopK
	}
	if s.OverfetchFactor == 0 {
		s.OverfetchFactor = request.DefaultOverfetchFactor
	}
	if s.MaxOverfetchFactor <= 0 {
		s.MaxOverfetchFactor = request.MaxOverfetchFactor
	}
	if s.RetrievalTimeoutMs <= 0 {
		s.RetrievalTimeoutMs = 2000
	}
	if s.Weights == (weights.Weights{}) {
		s.Weights = weights.Default()
	}
	if s.ImageWeight == 0 && s.TextWeight == 0 {
		s.ImageWeight = request.DefaultModalityWeight
		s.TextWeight = request.DefaultModalityWeight
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidatePipeline()
}

// ValidatePipeline checks everything but the HTTP section; library callers have no server.
func (c *Config) ValidatePipeline() error {
	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for driver \"postgres\"")
		}
	default:
		return fmt.Errorf("database.driver must be valkey, redis or postgres, got %q", c.Database.Driver)
	}

	return c.ValidateSearch()
}

// ValidateSearch checks the embedding and search sections.
func (c *Config) ValidateSearch() error {
	if c.Embedding.RateLimitRPS < 0 {
		return fmt.Errorf("embedding.rate_limit_rps must not be negative, got %v", c.Embedding.RateLimitRPS)
	}

	s := c.Search
	if s.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be positive, got %d", s.OverfetchFactor)
	}
	if s.OverfetchFactor > s.MaxOverfetchFactor {
		return fmt.Errorf("search.overfetch_factor %d exceeds max_overfetch_factor %d",
			s.OverfetchFactor, s.MaxOverfetchFactor)
	}
	if s.DefaultTopK > s.MaxTopK {
		return fmt.Errorf("search.default_top_k %d exceeds max_top_k %d", s.DefaultTopK, s.MaxTopK)
	}
	if err := s.Weights.Validate(); err != nil {
		return fmt.Errorf("search.weights: %w", err)
	}
	if s.ImageWeight < 0 || s.TextWeight < 0 {
		return fmt.Errorf("search.image_weight and search.text_weight must not be negative, got %v/%v",
			s.ImageWeight, s.TextWeight)
	}
	return nil
}

// Limits converts the search section into per-request limits.
func (c *Config) Limits() request.Limits {
	return request.Limits{
		DefaultTopK:        c.Search.DefaultTopK,
		MaxTopK:            c.Search.MaxTopK,
		DefaultOverfetch:   c.Search.OverfetchFactor,
		MaxOverfetch:       c.Search.MaxOverfetchFactor,
		Dimensions:         c.Embedding.Dimensions,
		DefaultWeights:     c.Search.Weights,
		DefaultImageWeight: c.Search.ImageWeight,
		DefaultTextWeight:  c.Search.TextWeight,
	}
}

// RetrievalTimeout bounds a single vector store call.
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.Search.RetrievalTimeoutMs) * time.Millisecond
}

// EmbeddingEnabled reports whether query text can be embedded.
func (c *Config) EmbeddingEnabled() bool {
	return c.Embedding.Model != ""
}

// findConfigPath locates the config file: $VECSHOP_CONFIG, ./config/<env>.yaml,
// then config/<env>.yaml next to the module root.
func findConfigPath(env string) string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}

	filename := env + ".yaml"
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		name, def, hasDefault := strings.Cut(string(match[2:len(match)-1]), ":-")
		if val := os.Getenv(name); val != "" || !hasDefault {
			return []byte(val)
		}
		return []byte(def)
	})
}
