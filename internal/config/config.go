// Package config defines service configuration structures and loading hooks.
//
// Configuration is layered: defaults from New, then an optional YAML file,
// then INNERSCORE_* environment variables (a .env file is read first).
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address for serve mode, e.g. ":9080".
	Addr string `koanf:"addr"`

	// HostingEndpoint is the base URL of the hosting service API.
	HostingEndpoint string `koanf:"hosting_endpoint"`

	// HostingToken is sent as a bearer token when non-empty.
	HostingToken string `koanf:"hosting_token"`

	// HostingTimeoutMS bounds a single hosting API request.
	HostingTimeoutMS int `koanf:"hosting_timeout_ms"`

	// MaxRetries caps retries of rate-limited or failed hosting requests.
	MaxRetries int `koanf:"max_retries"`

	// WorkerCount sets the number of repository workers per pass.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the job queue of a pass.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the per-pass set of seen repository names.
	DedupeSize int `koanf:"dedupe_size"`

	// ManifestPath is the manifest file looked up in every repository.
	ManifestPath string `koanf:"manifest_path"`

	// ManifestCacheSize is the number of decoded manifests kept between passes.
	ManifestCacheSize int `koanf:"manifest_cache_size"`

	// TagKey and TagValue select which repositories are harvested.
	TagKey   string `koanf:"tag_key"`
	TagValue string `koanf:"tag_value"`

	// OutputPath is where the collection is written; empty disables the file sink.
	OutputPath string `koanf:"output_path"`

	// OwnerLogin and OwnerAvatarURL fill the owner block the portal requires.
	OwnerLogin     string `koanf:"owner_login"`
	OwnerAvatarURL string `koanf:"owner_avatar_url"`

	// HarvestIntervalS is the pause between passes in serve mode.
	HarvestIntervalS int `koanf:"harvest_interval_s"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// S3 settings enable the object store sink when S3Endpoint is set.
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3Region    string `koanf:"s3_region"`
	S3Bucket    string `koanf:"s3_bucket"`
	S3Key       string `koanf:"s3_key"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
	S3UseSSL    bool   `koanf:"s3_use_ssl"`

	// S3Archive keeps a copy of every pass under runs/<run id>/.
	S3Archive bool `koanf:"s3_archive"`

	// Metrics naming. Labels are attached to every series.
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsPrefix    string            `koanf:"metrics_prefix"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
}

var metricNamePart = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		HostingEndpoint:     "http://localhost:8081",
		HostingTimeoutMS:    30_000,
		MaxRetries:          3,
		WorkerCount:         runtime.NumCPU() * 4,
		QueueSize:           10_000,
		DedupeSize:          50_000,
		ManifestPath:        "innersource.json",
		ManifestCacheSize:   1024,
		TagKey:              "type",
		TagValue:            "innersource",
		OutputPath:          "repos.json",
		OwnerLogin:          "Noble",
		OwnerAvatarURL:      "./images/demo/Sol.png",
		HarvestIntervalS:    3600,
		MaxLeaderboardLimit: 100,
		S3Region:            "us-east-1",
		S3Key:               "repos.json",
		MetricsNamespace:    "innerscore",
		MetricsSubsystem:    "harvester",
	}
}

// HostingTimeout returns HostingTimeoutMS as a duration.
func (c *Config) HostingTimeout() time.Duration {
	return time.Duration(c.HostingTimeoutMS) * time.Millisecond
}

// HarvestInterval returns HarvestIntervalS as a duration.
func (c *Config) HarvestInterval() time.Duration {
	return time.Duration(c.HarvestIntervalS) * time.Second
}

// S3Enabled reports whether the object store sink is configured.
func (c *Config) S3Enabled() bool {
	return strings.TrimSpace(c.S3Endpoint) != ""
}

// Validate checks the fields every mode depends on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case strings.TrimSpace(c.HostingEndpoint) == "":
		return fmt.Errorf("hosting_endpoint must not be empty: %w", ErrInvalidConfig)
	case strings.TrimSpace(c.TagKey) == "":
		return fmt.Errorf("tag_key must not be empty: %w", ErrInvalidConfig)
	case strings.TrimSpace(c.ManifestPath) == "":
		return fmt.Errorf("manifest_path must not be empty: %w", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("worker_count must be positive: %w", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative: %w", ErrInvalidConfig)
	case c.HarvestIntervalS < 1:
		return fmt.Errorf("harvest_interval_s must be positive: %w", ErrInvalidConfig)
	case c.S3Enabled() && strings.TrimSpace(c.S3Bucket) == "":
		return fmt.Errorf("s3_bucket is required when s3_endpoint is set: %w", ErrInvalidConfig)
	}
	for key, v := range map[string]string{
		"metrics_namespace": c.MetricsNamespace,
		"metrics_subsystem": c.MetricsSubsystem,
		"metrics_prefix":    c.MetricsPrefix,
	} {
		if v != "" && !metricNamePart.MatchString(v) {
			return fmt.Errorf("%s %q is not a valid metric name part: %w", key, v, ErrInvalidConfig)
		}
	}
	for name := range c.MetricsLabels {
		if !metricNamePart.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("metrics_labels key %q is not a valid label name: %w", name, ErrInvalidConfig)
		}
	}
	return nil
}
