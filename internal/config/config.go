// Package config loads the guematrix configuration.
//
// Values come, in increasing priority, from built-in defaults, a YAML file
// (guematrix.yaml in the working directory or $HOME/.config/guematrix, or an
// explicit path) and GUEMATRIX_* environment variables such as
// GUEMATRIX_STORE_DRIVER or GUEMATRIX_SERVER_PORT. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	gerrors "github.com/FocuswithJustin/guematrix/core/errors"
	"github.com/FocuswithJustin/guematrix/core/matrix"
	"github.com/FocuswithJustin/guematrix/core/search"
)

const (
	// FileName is the configuration file name without extension.
	FileName = "guematrix"
	// FileType is the configuration file format.
	FileType = "yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "GUEMATRIX"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
	DriverSnapshot = "snapshot"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn"    yaml:"dsn"    json:"dsn"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"     yaml:"url"     json:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key" json:"-"`
}

type ServerConfig struct {
	Port              int      `mapstructure:"port"                yaml:"port"                json:"port"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"     yaml:"allowed_origins"     json:"allowed_origins"`
	APIKey            string   `mapstructure:"api_key"             yaml:"api_key"             json:"-"`
	RateLimitRequests int      `mapstructure:"rate_limit_requests" yaml:"rate_limit_requests" json:"rate_limit_requests"`
	RateLimitBurst    int      `mapstructure:"rate_limit_burst"    yaml:"rate_limit_burst"    json:"rate_limit_burst"`
}

type SearchConfig struct {
	MaxResults  int `mapstructure:"max_results"   yaml:"max_results"   json:"max_results"`
	AutoMaxSkip int `mapstructure:"auto_max_skip" yaml:"auto_max_skip" json:"auto_max_skip"`
}

type MatrixConfig struct {
	Cols int `mapstructure:"cols" yaml:"cols" json:"cols"`
	Rows int `mapstructure:"rows" yaml:"rows" json:"rows"`
}

type RefsConfig struct {
	MaxBatch int `mapstructure:"max_batch" yaml:"max_batch" json:"max_batch"`
}

type CacheConfig struct {
	VerseTextSize int           `mapstructure:"verse_text_size" yaml:"verse_text_size" json:"verse_text_size"`
	StatsTTL      time.Duration `mapstructure:"stats_ttl"       yaml:"stats_ttl"       json:"stats_ttl"`
}

type SessionsConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

type SnapshotConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Config is the complete configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"    json:"store"`
	Remote   RemoteConfig   `mapstructure:"remote"   yaml:"remote"   json:"remote"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"   json:"server"`
	Search   SearchConfig   `mapstructure:"search"   yaml:"search"   json:"search"`
	Matrix   MatrixConfig   `mapstructure:"matrix"   yaml:"matrix"   json:"matrix"`
	Refs     RefsConfig     `mapstructure:"refs"     yaml:"refs"     json:"refs"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"    json:"cache"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions" json:"sessions"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot" json:"snapshot"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"      json:"log"`

	file string
}

// File returns the configuration file that was read, or "".
func (c *Config) File() string { return c.file }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store:    StoreConfig{Driver: DriverSQLite, DSN: "guematrix.db"},
		Remote:   RemoteConfig{Timeout: 30 * time.Second},
		Server:   ServerConfig{Port: 8081, RateLimitBurst: 20},
		Search:   SearchConfig{MaxResults: search.DefaultMaxResults, AutoMaxSkip: search.DefaultMaxSkip},
		Matrix:   MatrixConfig{Cols: matrix.DefaultCols, Rows: matrix.DefaultRows},
		Refs:     RefsConfig{MaxBatch: 300},
		Cache:    CacheConfig{VerseTextSize: 4096, StatsTTL: 5 * time.Minute},
		Sessions: SessionsConfig{Path: ""},
		Snapshot: SnapshotConfig{Path: ""},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.api_key", "")
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.rate_limit_requests", d.Server.RateLimitRequests)
	v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.auto_max_skip", d.Search.AutoMaxSkip)
	v.SetDefault("matrix.cols", d.Matrix.Cols)
	v.SetDefault("matrix.rows", d.Matrix.Rows)
	v.SetDefault("refs.max_batch", d.Refs.MaxBatch)
	v.SetDefault("cache.verse_text_size", d.Cache.VerseTextSize)
	v.SetDefault("cache.stats_ttl", d.Cache.StatsTTL)
	v.SetDefault("sessions.path", d.Sessions.Path)
	v.SetDefault("snapshot.path", d.Snapshot.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration. An empty path searches the default
// locations and tolerates a missing file; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, gerrors.NewIO("read", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &gerrors.ParseError{Format: "config", Path: v.ConfigFileUsed(), Message: err.Error(), Err: err}
	}
	cfg.file = v.ConfigFileUsed()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize clamps matrix dimensions and fills unset limits.
func (c *Config) Normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Matrix.Cols = matrix.ClampCols(c.Matrix.Cols)
	c.Matrix.Rows = matrix.ClampRows(c.Matrix.Rows)
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = search.DefaultMaxResults
	}
	if c.Search.AutoMaxSkip <= 0 {
		c.Search.AutoMaxSkip = search.DefaultMaxSkip
	}
	if c.Refs.MaxBatch <= 0 {
		c.Refs.MaxBatch = 300
	}
}

// Validate checks values that cannot be corrected.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return gerrors.NewValidation("store.dsn", "required for driver "+c.Store.Driver)
		}
	case DriverRemote:
		if c.Remote.URL == "" {
			return gerrors.NewValidation("remote.url", "required for the remote driver")
		}
	case DriverSnapshot:
		if c.Snapshot.Path == "" {
			return gerrors.NewValidation("snapshot.path", "required for the snapshot driver")
		}
	default:
		return gerrors.NewValidation("store.driver", fmt.Sprintf("unknown driver %q", c.Store.Driver))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return gerrors.NewValidation("server.port", fmt.Sprintf("%d is not a valid port", c.Server.Port))
	}
	if c.Server.APIKey != "" && len(c.Server.APIKey) < 16 {
		return gerrors.NewValidation("server.api_key", "must be at least 16 characters")
	}
	return nil
}

// DefaultPath returns $HOME/.config/guematrix/guematrix.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", FileName, FileName+"."+FileType), nil
}

// Write saves cfg as YAML. An existing file is kept unless force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return gerrors.NewValidation("path", path+" already exists")
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return gerrors.Wrap(err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return gerrors.NewIO("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return gerrors.NewIO("write", path, err)
	}
	return nil
}
