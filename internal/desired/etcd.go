package desired

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"modelswap/pkg/types"
)

// EtcdStore keeps the record under a single etcd key.
type EtcdStore struct {
	client  *clientv3.Client
	kv      clientv3.KV
	key     string
	codec   Codec
	timeout time.Duration
	log     zerolog.Logger
}

func NewEtcdStore(endpoints []string, dialTimeout time.Duration, key string, codec Codec, timeout time.Duration, lg zerolog.Logger) (*EtcdStore, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("etcd backend requires at least one endpoint")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	s := newEtcdStoreKV(cli.KV, key, codec, timeout, lg)
	s.client = cli
	return s, nil
}

func newEtcdStoreKV(kv clientv3.KV, key string, codec Codec, timeout time.Duration, lg zerolog.Logger) *EtcdStore {
	if key == "" {
		key = DefaultKey
	}
	if codec == nil {
		codec = JSON
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &EtcdStore{kv: kv, key: key, codec: codec, timeout: timeout, log: lg}
}

func (s *EtcdStore) Publish(ctx context.Context, artifactID string) error {
	ds, err := record(artifactID)
	if err != nil {
		return err
	}
	b, err := s.codec.Marshal(ds)
	if err != nil {
		return fmt.Errorf("etcd: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.kv.Put(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("failed to put desired state: %w", err)
	}
	return nil
}

func (s *EtcdStore) Read(ctx context.Context) (types.DesiredState, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Debug().Err(err).Str("key", s.key).Msg("etcd get failed")
		return types.DesiredState{}, false
	}
	if len(resp.Kvs) == 0 {
		return types.DesiredState{}, false
	}
	return decode(s.codec, resp.Kvs[0].Value, s.log)
}

func (s *EtcdStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
