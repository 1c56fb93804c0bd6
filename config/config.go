// Package config resolves innoldb settings from defaults, an optional YAML
// file, .env files and the process environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nickyhof/innoldb/partiql"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Backend string

const (
	// BackendQLDB talks to Amazon QLDB.
	BackendQLDB Backend = "qldb"
	// BackendLocal journals to a git repository under DataDir.
	BackendLocal Backend = "local"
	// BackendMemory keeps the journal in memory; the mock mode.
	BackendMemory Backend = "memory"
)

const (
	DefaultLedger   = "laboratory"
	DefaultIndex    = "id"
	DefaultLogLevel = "warn"
	DefaultDataDir  = ".innoldb"
)

// DefaultEnvFiles are read, when present, before the process environment.
var DefaultEnvFiles = []string{"env/.env", ".env"}

type Config struct {
	Ledger         string  `yaml:"ledger"`
	DefaultIndex   string  `yaml:"default_index"`
	LogLevel       string  `yaml:"log_level"`
	Backend        Backend `yaml:"backend"`
	DataDir        string  `yaml:"data_dir"`
	LikeIgnoreCase bool    `yaml:"like_ignore_case"`
	AWS            AWS     `yaml:"aws"`
}

type AWS struct {
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	QLDBEndpoint string `yaml:"qldb_endpoint"`
	S3Endpoint   string `yaml:"s3_endpoint"`
	// MaxConcurrentTransactions caps the QLDB session pool; zero keeps the
	// driver default.
	MaxConcurrentTransactions int `yaml:"max_concurrent_transactions"`

	// Static credentials are read from the environment and .env files only.
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
	SessionToken    string `yaml:"-"`
}

func Default() Config {
	return Config{
		Ledger:       DefaultLedger,
		DefaultIndex: DefaultIndex,
		LogLevel:     DefaultLogLevel,
		Backend:      BackendQLDB,
		DataDir:      DefaultDataDir,
	}
}

// LoadOptions says where Load looks for settings. Zero values fall back to
// DefaultEnvFiles and os.LookupEnv.
type LoadOptions struct {
	File     string
	EnvFiles []string
	Lookup   func(key string) (string, bool)
}

func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.readFile(opts.File); err != nil {
			return Config{}, err
		}
	}

	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	dotenv := make(map[string]string)
	for _, path := range envFiles {
		values, err := LoadDotEnv(path)
		if err != nil {
			return Config{}, err
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(env); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"LEDGER":        &c.Ledger,
		"DEFAULT_INDEX": &c.DefaultIndex,
		"LOG_LEVEL":     &c.LogLevel,
		"DATA_DIR":      &c.DataDir,
		"AWS_REGION":    &c.AWS.Region,
		"AWS_PROFILE":   &c.AWS.Profile,
		"QLDB_ENDPOINT": &c.AWS.QLDBEndpoint,
		"S3_ENDPOINT":   &c.AWS.S3Endpoint,

		"AWS_ACCESS_KEY_ID":     &c.AWS.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": &c.AWS.SecretAccessKey,
		"AWS_SESSION_TOKEN":     &c.AWS.SessionToken,
	}
	for key, field := range strs {
		if v, ok := env(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := env("BACKEND"); ok && v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	if v, ok := env("LIKE_IGNORE_CASE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: LIKE_IGNORE_CASE=%q", ErrInvalidConfig, v)
		}
		c.LikeIgnoreCase = b
	}
	if v, ok := env("MAX_CONCURRENT_TRANSACTIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MAX_CONCURRENT_TRANSACTIONS=%q", ErrInvalidConfig, v)
		}
		c.AWS.MaxConcurrentTransactions = n
	}
	return nil
}

func (c Config) Validate() error {
	if c.Ledger == "" {
		return fmt.Errorf("%w: ledger name is required", ErrInvalidConfig)
	}
	if c.DefaultIndex == "" {
		return fmt.Errorf("%w: default index is required", ErrInvalidConfig)
	}
	// QLDB indexes top-level fields only.
	if err := partiql.ValidateIdentifier(c.DefaultIndex); err != nil {
		return fmt.Errorf("%w: default index: %v", ErrInvalidConfig, err)
	}
	switch c.Backend {
	case BackendQLDB, BackendMemory:
	case BackendLocal:
		if c.DataDir == "" {
			return fmt.Errorf("%w: the local backend needs a data directory", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.AWS.MaxConcurrentTransactions < 0 {
		return fmt.Errorf("%w: max concurrent transactions must not be negative", ErrInvalidConfig)
	}
	return nil
}
