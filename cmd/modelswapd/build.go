package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"modelswap/internal/config"
	"modelswap/internal/engine"
	"modelswap/internal/eventpub"
	"modelswap/internal/manager"
	"modelswap/internal/registry"
)

// buildLoader constructs the configured engine. With an artifacts directory
// the sim and llama engines only load ids found there.
func buildLoader(c config.Engine, lg zerolog.Logger) (engine.Loader, error) {
	var resolver engine.Resolver
	if c.ArtifactsDir != "" {
		arts, err := registry.LoadDir(c.ArtifactsDir)
		if err != nil {
			return nil, fmt.Errorf("scan artifacts: %w", err)
		}
		idx := registry.NewIndex(arts)
		lg.Info().Str("dir", c.ArtifactsDir).Strs("artifacts", idx.IDs()).Msg("artifacts scanned")
		resolver = idx
	}
	switch c.Kind {
	case "sim":
		return engine.NewSim(engine.SimConfig{
			LoadDelay:  c.LoadDelay.Std(),
			Resolver:   resolver,
			FailPrefix: c.FailPrefix,
		}), nil
	case "llama":
		if resolver == nil {
			return nil, fmt.Errorf("engine llama requires an artifacts directory")
		}
		if !engine.LlamaBuilt {
			lg.Warn().Msg("binary built without -tags=llama; every load will fail")
		}
		return engine.NewLlama(resolver, c.ContextSize, c.Threads), nil
	case "remote":
		if c.RemoteURL == "" {
			return nil, fmt.Errorf("engine remote requires remote_url")
		}
		return engine.NewRemote(engine.RemoteConfig{
			BaseURL:        c.RemoteURL,
			APIKey:         c.RemoteAPIKey,
			RequestTimeout: c.RemoteTimeout.Std(),
			Stream:         c.RemoteStream,
			Logger:         &lg,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want sim|llama|remote)", c.Kind)
	}
}

// buildPublisher always logs events at debug level and also ships them to
// Kafka when brokers are configured. The returned func flushes and closes.
func buildPublisher(c config.Events, lg zerolog.Logger) (manager.EventPublisher, func(), error) {
	logPub := eventpub.LogPublisher{Logger: lg.With().Str("component", "events").Logger()}
	if len(c.Brokers) == 0 {
		return logPub, func() {}, nil
	}
	replica := c.ReplicaID
	if replica == "" {
		replica, _ = os.Hostname()
	}
	kp, err := eventpub.NewKafkaPublisher(eventpub.KafkaConfig{
		Brokers: c.Brokers,
		Topic:   c.Topic,
		Replica: replica,
		Logger:  &lg,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := kp.Close(); err != nil {
			lg.Warn().Err(err).Msg("close event publisher")
		}
	}
	return eventpub.Multi{logPub, kp}, closeFn, nil
}
