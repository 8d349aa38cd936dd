// Package config loads, validates, and overrides the typed configuration
// tree every other package in this repository is built from. The loader
// reads the file, expands `${VAR}` references against the process
// environment, then unmarshals into a defaulted struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/cachebench/internal/workload"
	"github.com/jihwankim/cachebench/internal/workload/validate"
)

// Protocol is the wire protocol a run targets.
type Protocol string

const (
	ProtocolPing          Protocol = "ping"
	ProtocolRedis         Protocol = "redis"
	ProtocolHTTP1         Protocol = "http1"
	ProtocolHTTP2         Protocol = "http2"
	ProtocolMomento       Protocol = "momento"
	ProtocolPubSubMomento Protocol = "pubsubmomento"
)

// RateLimitModel selects how a rate limiter's single token refills.
type RateLimitModel string

const (
	RateLimitSmooth RateLimitModel = "smooth"
	RateLimitBurst  RateLimitModel = "burst"
)

// General holds process-wide run parameters.
type General struct {
	Threads  int           `yaml:"threads"`
	Interval time.Duration `yaml:"interval"`
	Windows  int           `yaml:"windows,omitempty"`
	Protocol Protocol      `yaml:"protocol"`
}

// Connection holds per-endpoint connection policy.
type Connection struct {
	PoolSize       int            `yaml:"poolsize"`
	Timeout        time.Duration  `yaml:"timeout"`
	RateLimit      int            `yaml:"ratelimit,omitempty"`
	Reconnect      int            `yaml:"reconnect,omitempty"`
	RateLimitModel RateLimitModel `yaml:"ratelimit_model,omitempty"`
}

// Request holds per-request policy.
type Request struct {
	Timeout        time.Duration  `yaml:"timeout"`
	RateLimit      int            `yaml:"ratelimit,omitempty"`
	RateLimitModel RateLimitModel `yaml:"ratelimit_model,omitempty"`
}

// TLS holds optional transport security material.
type TLS struct {
	CA     string `yaml:"ca,omitempty"`
	Cert   string `yaml:"cert,omitempty"`
	Key    string `yaml:"key,omitempty"`
	Verify bool   `yaml:"verify"`
}

// Debug holds logging knobs.
type Debug struct {
	LogLevel             string `yaml:"log_level,omitempty"`
	LogFile              string `yaml:"log_file,omitempty"`
	LogBackup            string `yaml:"log_backup,omitempty"`
	LogMaxSize           int64  `yaml:"log_max_size,omitempty"`
	LogQueueDepth        int    `yaml:"log_queue_depth,omitempty"`
	LogSingleMessageSize int    `yaml:"log_single_message_size,omitempty"`
}

// Waterfall holds the optional long-horizon heatmap dump configuration.
type Waterfall struct {
	File       string `yaml:"file,omitempty"`
	Resolution int    `yaml:"resolution,omitempty"` // milliseconds
}

// Target holds the endpoint list a run connects to.
type Target struct {
	Endpoints []string `yaml:"endpoints"`
}

// Config is the fully typed, immutable-after-construction configuration
// tree. The run command applies flag overrides between Load and Validate;
// nothing mutates a Config after Validate accepts it.
type Config struct {
	General    General             `yaml:"general"`
	Connection Connection          `yaml:"connection"`
	Request    Request             `yaml:"request"`
	Target     Target              `yaml:"target"`
	TLS        *TLS                `yaml:"tls,omitempty"`
	Debug      Debug               `yaml:"debug,omitempty"`
	Waterfall  *Waterfall          `yaml:"waterfall,omitempty"`
	Keyspaces  []workload.Keyspace `yaml:"keyspaces"`
}

// Default returns a Config with every non-zero-valid field populated, the
// way a fresh run can be sanity-checked or dry-run-dumped without a file.
func Default() *Config {
	return &Config{
		General: General{
			Threads:  1,
			Interval: 10 * time.Second,
			Protocol: ProtocolPing,
		},
		Connection: Connection{
			PoolSize:       1,
			Timeout:        5 * time.Second,
			RateLimitModel: RateLimitSmooth,
		},
		Request: Request{
			Timeout:        1 * time.Second,
			RateLimitModel: RateLimitSmooth,
		},
	}
}

// Load reads path, expands environment variables, and unmarshals into a
// defaulted Config. It does not validate; call Validate separately so
// callers can choose to report warnings without aborting (e.g. --dry-run).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg back out as YAML, used by --dry-run to show the fully
// resolved configuration (defaults, env expansion, and --set overrides
// applied) without starting a run.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks every configuration invariant: non-empty endpoints,
// sane thread/pool counts, well-formed keyspaces, and the Momento
// authentication precondition. It returns the accumulated error list
// joined into one error; callers treat any error as ConfigInvalid.
func (c *Config) Validate() error {
	var errs []string

	if c.General.Threads < 1 {
		errs = append(errs, "general.threads must be >= 1")
	}
	if c.General.Interval <= 0 {
		errs = append(errs, "general.interval must be > 0")
	}
	switch c.General.Protocol {
	case ProtocolPing, ProtocolRedis, ProtocolHTTP1, ProtocolHTTP2, ProtocolMomento, ProtocolPubSubMomento:
	default:
		errs = append(errs, fmt.Sprintf("general.protocol: unrecognized protocol %q", c.General.Protocol))
	}

	if c.Connection.PoolSize < 1 {
		errs = append(errs, "connection.poolsize must be >= 1")
	}
	if c.Connection.Timeout <= 0 {
		errs = append(errs, "connection.timeout must be > 0")
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, "request.timeout must be > 0")
	}

	if len(c.Target.Endpoints) == 0 {
		errs = append(errs, "target.endpoints must be non-empty")
	}

	if (c.General.Protocol == ProtocolMomento || c.General.Protocol == ProtocolPubSubMomento) &&
		os.Getenv("MOMENTO_AUTHENTICATION") == "" {
		errs = append(errs, "MOMENTO_AUTHENTICATION is required for the momento/pubsubmomento protocols")
	}

	v := validate.New()
	if err := v.ValidateAll(c.Keyspaces); err != nil {
		errs = append(errs, v.Errors...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ApplyOverrides applies a set of "dot.path=value" strings over cfg,
// the CLI's --set flag. Keys address the same fields Load's YAML schema
// does, typed by destination field.
func (c *Config) ApplyOverrides(sets []string) error {
	for _, kv := range sets {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("config: --set %q is not in key=value form", kv)
		}
		if err := c.applyOverride(strings.TrimSpace(key), strings.TrimSpace(val)); err != nil {
			return fmt.Errorf("config: --set %q: %w", kv, err)
		}
	}
	return nil
}

func (c *Config) applyOverride(key, val string) error {
	switch key {
	case "general.threads":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.General.Threads = n
	case "general.interval":
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		c.General.Interval = d
	case "general.protocol":
		c.General.Protocol = Protocol(val)
	case "connection.poolsize":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.Connection.PoolSize = n
	case "connection.timeout":
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		c.Connection.Timeout = d
	case "connection.ratelimit":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.Connection.RateLimit = n
	case "request.timeout":
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		c.Request.Timeout = d
	case "request.ratelimit":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.Request.RateLimit = n
	default:
		return fmt.Errorf("unrecognized override key")
	}
	return nil
}
