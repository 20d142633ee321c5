// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends.
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// DefaultConfigPath is read when -config and SHELF_CONFIG are unset. A
// missing file at the default path is not an error.
const DefaultConfigPath = "config/shelf.toml"

// Config holds all configuration settings for the shelf server.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// StorageConfig holds storage-related settings.
type StorageConfig struct {
	Type       string `toml:"type"`        // "json", "sqlite", "memory"
	DataDir    string `toml:"data_dir"`    // directory of the JSON collection files
	SQLitePath string `toml:"sqlite_path"` // SQLite database file
	Seed       bool   `toml:"seed"`        // load the sample films into an empty store
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `toml:"level"` // "debug", "info", "warn", "error"
	Development bool   `toml:"development"`
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            3000,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Type:       StorageJSON,
			DataDir:    "data",
			SQLitePath: "data/shelf.db",
			Seed:       true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("shelf", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path of the TOML configuration file")

	// Server flags
	host := fs.String("host", "", "Listen address")
	port := fs.Int("port", 0, "Listen port")

	// Storage flags
	storage := fs.String("storage", "", "Storage type: json, sqlite, memory")
	dataDir := fs.String("data-dir", "", "Directory of the JSON collection files")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database path")
	seed := fs.Bool("seed", true, "Seed an empty films collection with sample data")

	// Logging flags
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	dev := fs.Bool("dev", false, "Use the human-readable development logger")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("SHELF_CONFIG")
	}
	if path == "" {
		if err := cfg.loadTOML(DefaultConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := cfg.loadTOML(path); err != nil {
		return nil, err
	}

	// Apply environment variables
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Apply CLI flags (highest priority)
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *storage != "" {
		cfg.Storage.Type = *storage
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *sqlitePath != "" {
		cfg.Storage.SQLitePath = *sqlitePath
	}
	if set["seed"] {
		cfg.Storage.Seed = *seed
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if set["dev"] {
		cfg.Logging.Development = *dev
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown configuration key '%s' in %s", undecoded[0], path)
	}
	return nil
}

// applyEnv applies SHELF_* environment variable overrides.
func (c *Config) applyEnv() error {
	if v := os.Getenv("SHELF_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SHELF_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHELF_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SHELF_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SHELF_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SHELF_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("SHELF_SEED"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHELF_SEED: %w", err)
		}
		c.Storage.Seed = seed
	}
	if v := os.Getenv("SHELF_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Storage.Type {
	case StorageJSON:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage type '%s' requires a data directory", c.Storage.Type)
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage type '%s' requires a database path", c.Storage.Type)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage type '%s'", c.Storage.Type)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
