// Package config loads the service configuration from a YAML file, an
// optional .env file and HARVEST_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither an explicit path nor HARVEST_CONFIG is set.
const DefaultPath = "internal/marketplace/config/config.yaml"

const envPrefix = "HARVEST_"

type Config struct {
	Environment string `yaml:"ENVIRONMENT"`
	GRPCPort    int    `yaml:"GRPC_PORT"`
	HTTPPort    int    `yaml:"HTTP_PORT"`

	DBDriver     string        `yaml:"DB_DRIVER"`
	DBHost       string        `yaml:"DB_HOST"`
	DBPort       int           `yaml:"DB_PORT"`
	DBUser       string        `yaml:"DB_USER"`
	DBPassword   string        `yaml:"DB_PASSWORD"`
	DBName       string        `yaml:"DB_NAME"`
	DBSSLMode    string        `yaml:"DB_SSLMODE"`
	SQLitePath   string        `yaml:"SQLITE_PATH"`
	StoreTimeout time.Duration `yaml:"STORE_TIMEOUT"`

	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC"`
	GroupID      string   `yaml:"GROUP_ID"`

	JWTSecret string        `yaml:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"TOKEN_TTL"`

	ReconcileInterval time.Duration `yaml:"RECONCILE_INTERVAL"`
	SweepInterval     time.Duration `yaml:"SWEEP_INTERVAL"`
	SweepBatchSize    int           `yaml:"SWEEP_BATCH_SIZE"`
}

// Load reads the YAML file at path, falling back to $HARVEST_CONFIG and
// then DefaultPath, and applies environment overrides. A missing .env file
// is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, cfg.Validate()
}

// Parse decodes YAML without consulting the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.GRPCPort == 0 {
		c.GRPCPort = 50051
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.DBDriver == "" {
		c.DBDriver = "postgres"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = db.DefaultTimeout
	}
	if c.Topic == "" {
		c.Topic = "marketplace-events"
	}
	if c.GroupID == "" {
		host, _ := os.Hostname()
		c.GroupID = "marketplace-index-" + host
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
}

// applyEnv overrides every field that has a HARVEST_<YAML_KEY> variable.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("ENVIRONMENT", &c.Environment)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_HOST", &c.DBHost)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)
	str("DB_SSLMODE", &c.DBSSLMode)
	str("SQLITE_PATH", &c.SQLitePath)
	str("TOPIC", &c.Topic)
	str("GROUP_ID", &c.GroupID)
	str("JWT_SECRET", &c.JWTSecret)
	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}

	return errors.Join(
		num("GRPC_PORT", &c.GRPCPort),
		num("HTTP_PORT", &c.HTTPPort),
		num("DB_PORT", &c.DBPort),
		num("SWEEP_BATCH_SIZE", &c.SweepBatchSize),
		dur("STORE_TIMEOUT", &c.StoreTimeout),
		dur("TOKEN_TTL", &c.TokenTTL),
		dur("RECONCILE_INTERVAL", &c.ReconcileInterval),
		dur("SWEEP_INTERVAL", &c.SweepInterval),
	)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.GRPCPort == c.HTTPPort {
		errs = append(errs, errors.New("GRPC_PORT and HTTP_PORT must differ"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for postgres"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.KafkaBrokers != nil && c.Topic == "" {
		errs = append(errs, errors.New("TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// Development reports whether the service runs with development logging.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

func (c *Config) Database() *db.Config {
	return &db.Config{
		Driver:     c.DBDriver,
		Host:       c.DBHost,
		Port:       c.DBPort,
		User:       c.DBUser,
		Password:   c.DBPassword,
		DBName:     c.DBName,
		SSLMode:    c.DBSSLMode,
		SQLitePath: c.SQLitePath,
		Timeout:    c.StoreTimeout,
	}
}

func (c *Config) Reconciler() index.ReconcilerConfig {
	return index.ReconcilerConfig{
		Interval:      c.ReconcileInterval,
		SweepInterval: c.SweepInterval,
		BatchSize:     c.SweepBatchSize,
	}
}
