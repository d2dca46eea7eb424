// Package config loads dialogd's process configuration from a YAML file,
// the same way cmd/warren's apply.go decodes resource manifests: a plain
// struct with yaml tags, unmarshaled with gopkg.in/yaml.v3. Unset fields
// fall back to the defaults below rather than zero values, since a zero
// branch factor or retry count would silently disable the feature it
// configures.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/dialog/pkg/dialoglog"
)

// Backend selects the storage.Backend implementation the server opens.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendS3     Backend = "s3"
)

// Config is dialogd's full process configuration.
type Config struct {
	// Listen is the address the gRPC remote-branch server binds, e.g.
	// ":7420".
	Listen string `yaml:"listen"`

	// MetricsListen is the address the Prometheus /metrics endpoint
	// binds, e.g. ":7421".
	MetricsListen string `yaml:"metricsListen"`

	// Backend selects the storage implementation.
	Backend Backend `yaml:"backend"`

	// DataDir is the root directory for BackendFile.
	DataDir string `yaml:"dataDir"`

	// S3 holds BackendS3's bucket and endpoint configuration.
	S3 S3Config `yaml:"s3"`

	// BranchFactor tunes the prolly tree's rank function: a node
	// boundary falls, on average, every BranchFactor entries. Must be a
	// power of two; see pkg/prolly's Design Note. No package reads it;
	// artifacts.New uses artifacts.DefaultBranchFactor.
	BranchFactor uint32 `yaml:"branchFactor"`

	// MaxTreeDepth is a configured soft cap on root-to-leaf depth. No
	// package reads it; the prolly tree enforces its own fixed
	// prolly.MaxLevels cap instead.
	MaxTreeDepth int `yaml:"maxTreeDepth"`

	// MaxCommitRetries is a configured bound on artifacts.Commit's CAS
	// retries. No package reads it; Commit uses the maxRetries count
	// passed to artifacts.New.
	MaxCommitRetries int `yaml:"maxCommitRetries"`

	// MaxRuleIterations is a configured bound on a rule's fixpoint
	// evaluation. No package reads it; query.Program.Evaluate uses its
	// maxIterations argument.
	MaxRuleIterations int `yaml:"maxRuleIterations"`

	// MaxBranchPublishRetries is a configured bound on remote Publish's
	// CAS retries. No package reads it; Publish uses
	// remote.Reference.MaxPublishRetries.
	MaxBranchPublishRetries int `yaml:"maxBranchPublishRetries"`

	// QueryTimeout is a configured limit on a single query evaluation's
	// run time. No package reads it or applies it to a context.
	QueryTimeout time.Duration `yaml:"queryTimeout"`

	// LogLevel and LogJSON configure pkg/dialoglog.
	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`
}

// S3Config configures the S3-backed storage.Backend.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Default returns the configuration dialogd runs with when no config file
// is supplied.
func Default() Config {
	return Config{
		Listen:                  ":7420",
		MetricsListen:           ":7421",
		Backend:                 BackendMemory,
		DataDir:                 "./data",
		BranchFactor:            64,
		MaxTreeDepth:            32,
		MaxCommitRetries:        8,
		MaxRuleIterations:       1000,
		MaxBranchPublishRetries: 8,
		QueryTimeout:            30 * time.Second,
		LogLevel:                "info",
	}
}

// Load reads and parses a YAML config file, applying Default() for any
// field the file leaves at its zero value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("dialog: read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dialog: parse config %q: %w", path, err)
	}
	if err := cfg.applyDefaults().Validate(); err != nil {
		return Config{}, err
	}
	return cfg.applyDefaults(), nil
}

func (c Config) applyDefaults() Config {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.MetricsListen == "" {
		c.MetricsListen = d.MetricsListen
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.BranchFactor == 0 {
		c.BranchFactor = d.BranchFactor
	}
	if c.MaxTreeDepth == 0 {
		c.MaxTreeDepth = d.MaxTreeDepth
	}
	if c.MaxCommitRetries == 0 {
		c.MaxCommitRetries = d.MaxCommitRetries
	}
	if c.MaxRuleIterations == 0 {
		c.MaxRuleIterations = d.MaxRuleIterations
	}
	if c.MaxBranchPublishRetries == 0 {
		c.MaxBranchPublishRetries = d.MaxBranchPublishRetries
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

// Validate rejects configurations that would compromise the store's
// invariants, e.g. a non-power-of-two branch factor breaking the rank
// function's expected chunk size distribution.
func (c Config) Validate() error {
	if c.BranchFactor == 0 || c.BranchFactor&(c.BranchFactor-1) != 0 {
		return fmt.Errorf("dialog: config: branchFactor must be a power of two, got %d", c.BranchFactor)
	}
	switch c.Backend {
	case BackendMemory, BackendFile, BackendS3:
	default:
		return fmt.Errorf("dialog: config: unknown backend %q", c.Backend)
	}
	if c.Backend == BackendS3 && c.S3.Bucket == "" {
		return fmt.Errorf("dialog: config: s3 backend requires s3.bucket")
	}
	if c.MaxCommitRetries < 1 {
		return fmt.Errorf("dialog: config: maxCommitRetries must be at least 1")
	}
	return nil
}

// LoggerConfig adapts Config's logging fields to dialoglog.Config.
func (c Config) LoggerConfig() dialoglog.Config {
	return dialoglog.Config{
		Level:      dialoglog.Level(c.LogLevel),
		JSONOutput: c.LogJSON,
	}
}
