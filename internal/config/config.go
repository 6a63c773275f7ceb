// Package config loads replica and rollout configuration. Files are decoded
// by extension (.yaml/.yml, .json, .toml); environment variables are laid
// over the file values; Defaults fills whatever is still unset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelswap/internal/desired"
)

// Replica configures the modelswapd daemon.
// Zero values mean "unspecified" and are replaced by Defaults.
type Replica struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	InitialArtifact string   `json:"initial_artifact" yaml:"initial_artifact" toml:"initial_artifact"`
	SyncInitialLoad bool     `json:"sync_initial_load" yaml:"sync_initial_load" toml:"sync_initial_load"`
	ReleaseGrace    Duration `json:"release_grace" yaml:"release_grace" toml:"release_grace"`

	Engine  Engine  `json:"engine" yaml:"engine" toml:"engine"`
	HTTP    HTTP    `json:"http" yaml:"http" toml:"http"`
	Desired Desired `json:"desired" yaml:"desired" toml:"desired"`
	Events  Events  `json:"events" yaml:"events" toml:"events"`
}

// Engine selects the inference engine.
type Engine struct {
	// Kind is sim, llama or remote.
	Kind         string   `json:"kind" yaml:"kind" toml:"kind"`
	ArtifactsDir string   `json:"artifacts_dir" yaml:"artifacts_dir" toml:"artifacts_dir"`
	LoadDelay    Duration `json:"load_delay" yaml:"load_delay" toml:"load_delay"`
	FailPrefix   string   `json:"fail_prefix" yaml:"fail_prefix" toml:"fail_prefix"`
	ContextSize  int      `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads      int      `json:"threads" yaml:"threads" toml:"threads"`
	RemoteURL    string   `json:"remote_url" yaml:"remote_url" toml:"remote_url"`
	RemoteAPIKey string   `json:"remote_api_key" yaml:"remote_api_key" toml:"remote_api_key"`
	RemoteStream bool     `json:"remote_stream" yaml:"remote_stream" toml:"remote_stream"`
	// RemoteTimeout bounds one completion call.
	RemoteTimeout Duration `json:"remote_timeout" yaml:"remote_timeout" toml:"remote_timeout"`
}

// HTTP configures the replica API.
type HTTP struct {
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeout Duration `json:"generate_timeout" yaml:"generate_timeout" toml:"generate_timeout"`
	AdminToken      string   `json:"admin_token" yaml:"admin_token" toml:"admin_token"`
	AccessLog       string   `json:"access_log" yaml:"access_log" toml:"access_log"`
	CORSEnabled     bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods     []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders     []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Desired configures the desired-state store and, on replicas, its watcher.
type Desired struct {
	Backend       string   `json:"backend" yaml:"backend" toml:"backend"`
	Codec         string   `json:"codec" yaml:"codec" toml:"codec"`
	Key           string   `json:"key" yaml:"key" toml:"key"`
	Timeout       Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	Path          string   `json:"path" yaml:"path" toml:"path"`
	RedisURL      string   `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	EtcdEndpoints []string `json:"etcd_endpoints" yaml:"etcd_endpoints" toml:"etcd_endpoints"`
	S3Bucket      string   `json:"s3_bucket" yaml:"s3_bucket" toml:"s3_bucket"`
	S3Region      string   `json:"s3_region" yaml:"s3_region" toml:"s3_region"`
	S3Endpoint    string   `json:"s3_endpoint" yaml:"s3_endpoint" toml:"s3_endpoint"`
	S3PathStyle   bool     `json:"s3_path_style" yaml:"s3_path_style" toml:"s3_path_style"`
	// WatchInterval is the replica's poll interval.
	WatchInterval Duration `json:"watch_interval" yaml:"watch_interval" toml:"watch_interval"`
}

// StoreConfig converts to the desired package's configuration.
func (d Desired) StoreConfig() desired.Config {
	return desired.Config{
		Backend:        d.Backend,
		Codec:          d.Codec,
		Key:            d.Key,
		Timeout:        d.Timeout.Std(),
		Path:           d.Path,
		RedisURL:       d.RedisURL,
		EtcdEndpoints:  d.EtcdEndpoints,
		S3Bucket:       d.S3Bucket,
		S3Region:       d.S3Region,
		S3Endpoint:     d.S3Endpoint,
		S3UsePathStyle: d.S3PathStyle,
	}
}

// Events configures the Kafka event publisher. Empty Brokers disables it.
type Events struct {
	Brokers []string `json:"brokers" yaml:"brokers" toml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic" toml:"topic"`
	// ReplicaID keys published events; defaults to the hostname.
	ReplicaID string `json:"replica_id" yaml:"replica_id" toml:"replica_id"`
}

// Rollout configures rolloutctl.
type Rollout struct {
	Replicas        []string `json:"replicas" yaml:"replicas" toml:"replicas"`
	PollInterval    Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	SettleDelay     Duration `json:"settle_delay" yaml:"settle_delay" toml:"settle_delay"`
	Timeout         Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	RetryAttempts   uint     `json:"retry_attempts" yaml:"retry_attempts" toml:"retry_attempts"`
	RetryMinBackoff Duration `json:"retry_min_backoff" yaml:"retry_min_backoff" toml:"retry_min_backoff"`
	RetryMaxBackoff Duration `json:"retry_max_backoff" yaml:"retry_max_backoff" toml:"retry_max_backoff"`
	StatusQPS       float64  `json:"status_qps" yaml:"status_qps" toml:"status_qps"`
	HistoryDB       string   `json:"history_db" yaml:"history_db" toml:"history_db"`
	AdminToken      string   `json:"admin_token" yaml:"admin_token" toml:"admin_token"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	Desired         Desired  `json:"desired" yaml:"desired" toml:"desired"`
}

// decodeFile reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func decodeFile(path string, v any) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, v)
	case ".json":
		err = json.Unmarshal(b, v)
	case ".toml":
		err = toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadReplica reads a replica configuration file.
func LoadReplica(path string) (Replica, error) {
	var cfg Replica
	err := decodeFile(path, &cfg)
	return cfg, err
}

// LoadRollout reads a rollout configuration file.
func LoadRollout(path string) (Rollout, error) {
	var cfg Rollout
	err := decodeFile(path, &cfg)
	return cfg, err
}

// Defaults fills unset replica values.
func (c *Replica) Defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Engine.Kind == "" {
		c.Engine.Kind = "sim"
	}
	if c.Engine.ContextSize <= 0 {
		c.Engine.ContextSize = 2048
	}
	if c.Engine.RemoteTimeout <= 0 {
		c.Engine.RemoteTimeout = Duration(2 * time.Minute)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	if c.HTTP.AccessLog == "" {
		c.HTTP.AccessLog = "info"
	}
	if c.Desired.WatchInterval <= 0 {
		c.Desired.WatchInterval = Duration(desired.DefaultInterval)
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "modelswap.events"
	}
}

// Defaults fills unset rollout values. Timings match the orchestrator's
// own defaults so a config file only needs the replica list.
func (c *Rollout) Defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(5 * time.Second)
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = Duration(2 * time.Second)
	}
	if c.Timeout <= 0 {
		c.Timeout = Duration(10 * time.Minute)
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(30 * time.Second)
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryMinBackoff <= 0 {
		c.RetryMinBackoff = Duration(2 * time.Second)
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = Duration(10 * time.Second)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports configuration a rollout cannot run with.
func (c Rollout) Validate() error {
	if len(c.Replicas) == 0 {
		return fmt.Errorf("no replicas configured")
	}
	if c.RetryMaxBackoff < c.RetryMinBackoff {
		return fmt.Errorf("retry_max_backoff (%s) is below retry_min_backoff (%s)", c.RetryMaxBackoff, c.RetryMinBackoff)
	}
	return nil
}
