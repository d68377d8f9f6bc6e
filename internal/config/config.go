package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/cart"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "marketplace.json"

	// DefaultPort is the default HTTP port.
	DefaultPort = 8080

	// DefaultHost is the default HTTP host.
	DefaultHost = "localhost"

	// DefaultBackend is the default storage backend.
	DefaultBackend = BackendFile

	// DefaultDir is the default directory of the file backend.
	DefaultDir = ".marketplace"
)

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
	BackendS3     = "s3"
)

// Config represents the complete marketplace.json configuration.
type Config struct {
	// Storage selects and configures the cart storage backend.
	Storage StorageConfig `json:"storage"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig contains storage backend settings.
// Only the fields of the selected backend are used.
type StorageConfig struct {
	// Backend is one of memory, file, redis, sql, s3.
	Backend string `json:"backend,omitempty"`

	// Key is the key the cart is stored under.
	Key string `json:"key,omitempty"`

	// WriteTimeout bounds each storage write (e.g., "5s").
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// Dir is the directory of the file backend.
	Dir string `json:"dir,omitempty"`

	// RedisURL is a redis:// URL for the redis backend.
	RedisURL string `json:"redisUrl,omitempty"`

	// RedisPrefix is prepended to every redis key.
	RedisPrefix string `json:"redisPrefix,omitempty"`

	// RedisTTL expires the stored cart (e.g., "720h"). Empty means no expiry.
	RedisTTL string `json:"redisTtl,omitempty"`

	// DSN is the database connection string for the sql backend.
	DSN string `json:"dsn,omitempty"`

	// Driver is the database/sql driver name (default "pgx").
	Driver string `json:"driver,omitempty"`

	// Dialect is postgres, mysql, or sqlite.
	Dialect string `json:"dialect,omitempty"`

	// Table is the sql table name.
	Table string `json:"table,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 object key prefix.
	Prefix string `json:"prefix,omitempty"`

	// Region is the S3 region.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack).
	Endpoint string `json:"endpoint,omitempty"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for marketplace.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOptional reads path like LoadFile but returns defaults when the file
// does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.HasCode(err, "E141") {
		cfg = New()
		cfg.configPath = path
		return cfg, nil
	}
	return cfg, err
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	s := &c.Storage
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = DefaultBackend
	}
	if s.Key == "" {
		s.Key = cart.DefaultKey
	}
	if s.WriteTimeout == "" {
		s.WriteTimeout = "5s"
	}
	if s.Dir == "" {
		s.Dir = DefaultDir
	}
	if s.RedisPrefix == "" {
		s.RedisPrefix = "gomarketplace:"
	}
	if s.Driver == "" {
		s.Driver = "pgx"
	}
	if s.Dialect == "" {
		s.Dialect = "postgres"
	}
	if s.Table == "" {
		s.Table = "marketplace_kv"
	}
	if s.Prefix == "" {
		s.Prefix = "carts/"
	}
	if s.Region == "" {
		s.Region = "us-east-1"
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Server.Port))
	}

	s := c.Storage
	var missing string
	switch s.Backend {
	case BackendMemory:
	case BackendFile:
		if s.Dir == "" {
			missing = "dir"
		}
	case BackendRedis:
		if s.RedisURL == "" {
			missing = "redisUrl"
		}
	case BackendSQL:
		if s.DSN == "" {
			missing = "dsn"
		}
		if _, err := storage.ParseDialect(s.Dialect); err != nil {
			return errors.New("E120").
				WithDetail("storage.dialect: " + err.Error())
		}
	case BackendS3:
		if s.Bucket == "" {
			missing = "bucket"
		}
	default:
		return errors.New("E121").
			WithDetail("storage.backend is " + strconv.Quote(s.Backend))
	}
	if missing != "" {
		return errors.New("E123").
			WithDetail("The " + s.Backend + " backend requires storage." + missing)
	}

	if _, err := time.ParseDuration(s.WriteTimeout); err != nil {
		return errors.New("E120").
			WithDetail("storage.writeTimeout: " + err.Error())
	}
	if s.RedisTTL != "" {
		if _, err := time.ParseDuration(s.RedisTTL); err != nil {
			return errors.New("E120").
				WithDetail("storage.redisTtl: " + err.Error())
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("E120").
			WithDetail("log.level must be debug, info, warn, or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E120").
			WithDetail("log.format must be text or json")
	}
	return nil
}

// Address returns the listen address of the HTTP server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// WriteTimeout returns the parsed storage write timeout.
// Invalid values fall back to five seconds; Validate reports them.
func (c *Config) WriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Storage.WriteTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// RedisTTL returns the parsed redis expiry, or zero for none.
func (c *Config) RedisTTL() time.Duration {
	d, _ := time.ParseDuration(c.Storage.RedisTTL)
	return d
}

// StorageDir returns the file backend directory, resolved against the
// config file's directory when relative.
func (c *Config) StorageDir() string {
	if filepath.IsAbs(c.Storage.Dir) || c.Dir() == "" {
		return c.Storage.Dir
	}
	return filepath.Join(c.Dir(), c.Storage.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}
