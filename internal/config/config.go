// Package config loads the Starlane configuration file and overlays it with
// environment variables, mirroring the env+dotenv+yaml loading shape the rest
// of the codebase uses for service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/R3E-Network/starlane/infrastructure/utils"
	slruntime "github.com/R3E-Network/starlane/internal/runtime"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AuthMethod is the postgres client-auth method used by an embedded registry.
type AuthMethod string

const (
	AuthPlain      AuthMethod = "plain"
	AuthMD5        AuthMethod = "md5"
	AuthScramSha256 AuthMethod = "scram-sha-256"
)

// PgEmbedSettings configures an embedded (self-managed) postgres instance
// backing the registry.
type PgEmbedSettings struct {
	Port         int           `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	AuthMethod   AuthMethod    `yaml:"auth_method"`
	Persistent   bool          `yaml:"persistent"`
	DatabaseDir  string        `yaml:"database_dir,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// PostgresConnectInfo points at an externally-managed postgres instance.
type PostgresConnectInfo struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// DSN renders a lib/pq-compatible connection string.
func (p PostgresConnectInfo) DSN() string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.Username, p.Password, p.Database, sslmode)
}

// RegistryConfig is a tagged union: exactly one of Embedded/External is set.
type RegistryConfig struct {
	Embedded *PgEmbedSettings     `yaml:"embedded,omitempty"`
	External *PostgresConnectInfo `yaml:"external,omitempty"`
}

// IsEmbedded reports whether the registry backend is a self-managed postgres.
func (r RegistryConfig) IsEmbedded() bool { return r.Embedded != nil }

// Validate checks that exactly one registry backend variant is configured.
func (r RegistryConfig) Validate() error {
	if r.Embedded == nil && r.External == nil {
		return fmt.Errorf("registry: exactly one of embedded or external must be set")
	}
	if r.Embedded != nil && r.External != nil {
		return fmt.Errorf("registry: embedded and external are mutually exclusive")
	}
	return nil
}

// FoundationKind names a built-in Foundation implementation.
type FoundationKind string

const (
	FoundationDockerDaemon FoundationKind = "DockerDaemon"
	FoundationKubernetes   FoundationKind = "Kubernetes"
	FoundationPosix        FoundationKind = "Posix"
)

// DependencyConfig describes one Dependency and the Providers it backs.
type DependencyConfig struct {
	Kind      string                      `yaml:"kind"`
	Requires  []string                    `yaml:"requires,omitempty"`
	Providers map[string]ProviderConfig   `yaml:"providers,omitempty"`
}

// ProviderConfig carries mode-specific provider fields. Create-mode is a
// superset of Utilize-mode: whatever credentials/ports were provisioned are
// also used to connect.
type ProviderConfig struct {
	Mode       string            `yaml:"mode"` // "create" | "utilize" | "external"
	Image      string            `yaml:"image,omitempty"`
	Port       int               `yaml:"port,omitempty"`
	Username   string            `yaml:"username,omitempty"`
	Password   string            `yaml:"password,omitempty"`
	DataDir    string            `yaml:"data_dir,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// FoundationConfig is the top-level configuration for a Foundation.
type FoundationConfig struct {
	Kind         FoundationKind              `yaml:"kind"`
	Required     []string                    `yaml:"required,omitempty"`
	Dependencies map[string]DependencyConfig `yaml:"dependencies,omitempty"`
}

// Config is the top-level Starlane configuration file.
type Config struct {
	Context     string           `yaml:"context"`
	Home        string           `yaml:"home"`
	CanNuke     bool             `yaml:"can_nuke"`
	CanScorch   bool             `yaml:"can_scorch"`
	ControlPort int              `yaml:"control_port"`
	Registry    RegistryConfig   `yaml:"registry"`
	Foundation  FoundationConfig `yaml:"foundation"`

	// Env is the deployment environment this process believes it is running
	// in; it is not part of the YAML file, only derived from STARLANE_ENV.
	Env slruntime.Environment `yaml:"-"`
}

// Load reads the YAML config file at path, overlays STARLANE_* environment
// variables, and validates the result. An empty path skips the file, but no
// STARLANE_* variable sets the registry backend or foundation.kind, so
// Validate then fails; a non-empty path whose file is missing is an error.
func Load(path string) (*Config, error) {
	envStr := os.Getenv("STARLANE_ENV")
	if envStr == "" {
		envStr = string(slruntime.Development)
	}
	env, ok := slruntime.ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid STARLANE_ENV: %s", envStr)
	}

	// Optional .env overlay, same shape as the rest of the codebase: silently
	// skipped when absent, reported otherwise.
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envFile, err)
	}

	cfg := &Config{Env: env}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.overlayEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() {
	c.Home = utils.Coalesce(utils.GetEnvOptional("STARLANE_DATA_DIR"), c.Home)
	if pw := os.Getenv("STARLANE_PASSWORD"); pw != "" {
		if c.Registry.Embedded != nil {
			c.Registry.Embedded.Password = pw
		}
		if c.Registry.External != nil {
			c.Registry.External.Password = pw
		}
	}
	c.ControlPort = utils.GetEnvInt("STARLANE_CONTROL_PORT", c.ControlPort)
	c.CanNuke = utils.GetEnvBool("STARLANE_CAN_NUKE", c.CanNuke)
	c.CanScorch = utils.GetEnvBool("STARLANE_CAN_SCORCH", c.CanScorch)
}

// Validate enforces the top-level invariants: exactly one registry backend,
// a home directory, and a usable control port.
func (c *Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("config: home is required")
	}
	if c.ControlPort < 1 || c.ControlPort > 65535 {
		return fmt.Errorf("config: invalid control_port %d", c.ControlPort)
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if c.Foundation.Kind == "" {
		return fmt.Errorf("config: foundation.kind is required")
	}
	return nil
}

// RegistryDataDir is the directory the embedded postgres backend installs
// into: <home>/data/postgres/registry.
func (c *Config) RegistryDataDir() string {
	if c.Registry.Embedded != nil && c.Registry.Embedded.DatabaseDir != "" {
		return c.Registry.Embedded.DatabaseDir
	}
	return filepath.Join(c.Home, "data", "postgres", "registry")
}

func (c *Config) IsDevelopment() bool { return c.Env == slruntime.Development }
func (c *Config) IsProduction() bool  { return c.Env == slruntime.Production }
