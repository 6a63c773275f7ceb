// Package desired propagates the fleet-wide desired artifact between
// replicas. A Store holds one last-write-wins record; a Watcher polls it and
// asks the local coordinator to swap when the record changes.
//
// Backends: a shared file (e.g. on a volume mounted by every replica), a
// Redis key, an etcd key, or an S3 object. All of them replace the record
// atomically, so readers see either the old or the new record, never a
// partial write.
package desired

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"modelswap/pkg/types"
)

// Backend names accepted by Open.
const (
	BackendNone  = ""
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendEtcd  = "etcd"
	BackendS3    = "s3"
)

// DefaultKey names the record in key-value and object backends.
const DefaultKey = "modelswap/desired-state"

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 5 * time.Second

// Store is a durable desired-state record.
type Store interface {
	// Publish overwrites the record with artifactID stamped with the current time.
	Publish(ctx context.Context, artifactID string) error
	// Read returns the record. Any read or decode failure is reported as absent.
	Read(ctx context.Context) (types.DesiredState, bool)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Codec is json (default) or msgpack. The file backend is always JSON.
	Codec string
	// Key is the Redis key, etcd key or S3 object key.
	Key     string
	Timeout time.Duration

	// file
	Path string
	// redis, format: redis://[:password@]host:port[/db]
	RedisURL string
	// etcd
	EtcdEndpoints   []string
	EtcdDialTimeout time.Duration
	// s3
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3UsePathStyle bool

	Logger *zerolog.Logger
}

func (c *Config) defaults() {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.EtcdDialTimeout <= 0 {
		c.EtcdDialTimeout = DefaultTimeout
	}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return c.Logger.With().Str("component", "desired").Str("backend", c.Backend).Logger()
}

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("desired-state sync disabled")

// Open builds the configured backend. It returns ErrDisabled when
// cfg.Backend is empty.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.defaults()
	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendNone:
		return nil, ErrDisabled
	case BackendFile:
		if cfg.Path == "" {
			return nil, errors.New("file backend requires a path")
		}
		return NewFileStore(cfg.Path, cfg.logger()), nil
	case BackendRedis:
		s, err := NewRedisStore(cfg.RedisURL, cfg.Key, codec, cfg.Timeout, cfg.logger())
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendEtcd:
		s, err := NewEtcdStore(cfg.EtcdEndpoints, cfg.EtcdDialTimeout, cfg.Key, codec, cfg.Timeout, cfg.logger())
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendS3:
		s, err := NewS3Store(ctx, S3Config{
			Bucket:       cfg.S3Bucket,
			Key:          cfg.Key,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		}, codec, cfg.Timeout, cfg.logger())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown desired-state backend %q", cfg.Backend)
	}
}

// now is replaced in tests.
var now = time.Now

func record(artifactID string) (types.DesiredState, error) {
	id := strings.TrimSpace(artifactID)
	if id == "" {
		return types.DesiredState{}, errors.New("artifact id is empty")
	}
	return types.NewDesiredState(id, now()), nil
}

// decode applies the shared absent rules: undecodable or empty records do
// not count.
func decode(c Codec, b []byte, lg zerolog.Logger) (types.DesiredState, bool) {
	ds, err := c.Unmarshal(b)
	if err != nil {
		lg.Debug().Err(err).Msg("desired state undecodable; treating as absent")
		return types.DesiredState{}, false
	}
	if strings.TrimSpace(ds.DesiredArtifactID) == "" {
		return types.DesiredState{}, false
	}
	return ds, true
}
