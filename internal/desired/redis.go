package desired

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"modelswap/pkg/types"
)

// RedisStore keeps the record under a single Redis key. SET replaces the
// value atomically.
type RedisStore struct {
	client  *goredis.Client
	key     string
	codec   Codec
	timeout time.Duration
	log     zerolog.Logger
}

// NewRedisStore connects to url. Format: redis://[:password@]host:port[/db]
func NewRedisStore(url, key string, codec Codec, timeout time.Duration, lg zerolog.Logger) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("redis backend requires a URL")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis backend: invalid URL: %w", err)
	}
	if key == "" {
		key = DefaultKey
	}
	if codec == nil {
		codec = JSON
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisStore{client: goredis.NewClient(opts), key: key, codec: codec, timeout: timeout, log: lg}, nil
}

func (s *RedisStore) Publish(ctx context.Context, artifactID string) error {
	ds, err := record(artifactID)
	if err != nil {
		return err
	}
	b, err := s.codec.Marshal(ds)
	if err != nil {
		return fmt.Errorf("redis: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context) (types.DesiredState, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.log.Debug().Err(err).Str("key", s.key).Msg("redis get failed")
		}
		return types.DesiredState{}, false
	}
	return decode(s.codec, b, s.log)
}

func (s *RedisStore) Close() error { return s.client.Close() }
