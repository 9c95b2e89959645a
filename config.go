package rca

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// environment variables read by LoadConfig
const (
	EnvDialect  = "RCA_DB_DIALECT"
	EnvHost     = "RCA_DB_HOST"
	EnvPort     = "RCA_DB_PORT"
	EnvUser     = "RCA_DB_USER"
	EnvPassword = "RCA_DB_PASSWORD"
	EnvDBName   = "RCA_DB_NAME"
	EnvSSLMode  = "RCA_DB_SSLMODE"
)

const (
	DefaultLookbackYears = 3
	DefaultWorkers       = 4
	DefaultQueryTimeout  = defaultQueryTimeout
)

// DBConfig locates the database holding the PPL and MNS tables.
type DBConfig struct {
	Dialect  string `yaml:"dialect"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"` // postgres only
}

// Config holds everything a run needs. Zero values are replaced by defaults in Validate, except
// for the pointer fields where zero is a usable setting and only a missing key gets the default.
type Config struct {
	DB DBConfig `yaml:"db"`

	MaxLag              int     `yaml:"max_lag"`
	Alpha               float64 `yaml:"alpha"`
	MinExplainedEntropy *float64 `yaml:"min_explained_entropy"`
	Bins                int     `yaml:"bins"`

	MinTeamHeadcount int `yaml:"min_team_headcount"`
	LookbackYears    int `yaml:"lookback_years"` // negative: all history

	Workers      int           `yaml:"workers"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Retries      *int          `yaml:"retries"`

	MappingRules MappingRules `yaml:"mapping_rules"`
}

// LoadConfig reads the optional YAML file at path, then .env (if present), then the RCA_DB_*
// environment variables, which override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		var (
			b []byte
			e error
		)
		if b, e = os.ReadFile(path); e != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, e)
		}

		if e = yaml.Unmarshal(b, cfg); e != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, e)
		}
	}

	if e := godotenv.Load(); e != nil && !errors.Is(e, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", e)
	}

	if e := cfg.applyEnv(); e != nil {
		return nil, e
	}

	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setIf := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setIf(&c.DB.Dialect, EnvDialect)
	setIf(&c.DB.Host, EnvHost)
	setIf(&c.DB.User, EnvUser)
	setIf(&c.DB.Password, EnvPassword)
	setIf(&c.DB.Name, EnvDBName)
	setIf(&c.DB.SSLMode, EnvSSLMode)

	if v := os.Getenv(EnvPort); v != "" {
		port, e := strconv.Atoi(v)
		if e != nil {
			return fmt.Errorf("bad %s %q: %w", EnvPort, v, e)
		}

		c.DB.Port = port
	}

	return nil
}

// Validate fills defaults and rejects values no run could use.
func (c *Config) Validate() error {
	if c.DB.Dialect == "" {
		c.DB.Dialect = pg
	}

	switch c.DB.Dialect {
	case pg:
		if c.DB.Port == 0 {
			c.DB.Port = 5432
		}
	case ch:
		if c.DB.Port == 0 {
			c.DB.Port = 9000
		}
	default:
		return fmt.Errorf("unsupported dialect %q", c.DB.Dialect)
	}

	if c.MaxLag == 0 {
		c.MaxLag = 6
	}
	if c.Alpha == 0 {
		c.Alpha = 0.05
	}
	if c.MinExplainedEntropy == nil {
		c.MinExplainedEntropy = ptr(0.1)
	}
	if c.Bins == 0 {
		c.Bins = 3
	}
	if c.MinTeamHeadcount == 0 {
		c.MinTeamHeadcount = DefaultMinTeamHeadcount
	}
	if c.LookbackYears == 0 {
		c.LookbackYears = DefaultLookbackYears
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.Retries == nil {
		c.Retries = ptr(defaultRetries)
	}
	if len(c.MappingRules) == 0 {
		c.MappingRules = DefaultMappingRules
	}

	switch {
	case c.MaxLag < 1:
		return fmt.Errorf("max_lag must be at least 1, got %d", c.MaxLag)
	case c.Alpha <= 0 || c.Alpha >= 1:
		return fmt.Errorf("alpha must be in (0,1), got %v", c.Alpha)
	case *c.MinExplainedEntropy < 0 || *c.MinExplainedEntropy > 1:
		return fmt.Errorf("min_explained_entropy must be in [0,1], got %v", *c.MinExplainedEntropy)
	case c.Bins < 2:
		return fmt.Errorf("bins must be at least 2, got %d", c.Bins)
	case c.MinTeamHeadcount < 0:
		return fmt.Errorf("min_team_headcount must be >= 0, got %d", c.MinTeamHeadcount)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.QueryTimeout < 0:
		return fmt.Errorf("query_timeout must be positive, got %v", c.QueryTimeout)
	case *c.Retries < 0:
		return fmt.Errorf("retries must be >= 0, got %d", *c.Retries)
	}

	return nil
}

func ptr[T any](v T) *T {
	return &v
}
