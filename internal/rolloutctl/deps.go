package rolloutctl

import (
	"context"
	"database/sql"

	"github.com/zalando/go-keyring"

	"modelswap/internal/config"
	"modelswap/internal/desired"
	"modelswap/internal/history"
	"modelswap/internal/rollout"
)

// Seams swapped out by tests.
var (
	fnClients = func(cfg config.Rollout) []rollout.ReplicaClient {
		return rollout.NewHTTPClients(cfg.Replicas, rollout.ClientOptions{
			Timeout:    cfg.RequestTimeout.Std(),
			AdminToken: cfg.AdminToken,
			StatusQPS:  cfg.StatusQPS,
		})
	}
	fnOpenStore = func(ctx context.Context, c config.Desired) (desired.Store, error) {
		return desired.Open(ctx, c.StoreConfig())
	}
	fnOpenHistory = func(path string) (*sql.DB, error) { return history.Open(path) }
	fnLoadToken   = func() (string, error) { return keyring.Get(keyringService, keyringUser) }
)

const (
	keyringService = "modelswap-rolloutctl"
	keyringUser    = "admin-token"
)

func newOrchestrator(e *env, rec rollout.Recorder) *rollout.Orchestrator {
	cfg := e.cfg
	return rollout.New(fnClients(cfg), rollout.Config{
		PollInterval: cfg.PollInterval.Std(),
		SettleDelay:  cfg.SettleDelay.Std(),
		Timeout:      cfg.Timeout.Std(),
		Retry: rollout.RetryPolicy{
			Attempts:   cfg.RetryAttempts,
			MinBackoff: cfg.RetryMinBackoff.Std(),
			MaxBackoff: cfg.RetryMaxBackoff.Std(),
		},
		Recorder: rec,
		Logger:   &e.log,
	})
}
