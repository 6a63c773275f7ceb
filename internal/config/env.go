package config

import (
	"time"

	"github.com/vrischmann/envconfig"
)

// replicaEnv lists the MODELSWAP_* overrides. Unset variables leave the
// file value untouched.
type replicaEnv struct {
	Addr            string        `envconfig:"MODELSWAP_ADDR"`
	LogLevel        string        `envconfig:"MODELSWAP_LOG_LEVEL"`
	LogFormat       string        `envconfig:"MODELSWAP_LOG_FORMAT"`
	InitialArtifact string        `envconfig:"MODELSWAP_INITIAL_ARTIFACT"`
	ReleaseGrace    time.Duration `envconfig:"MODELSWAP_RELEASE_GRACE"`
	Engine          string        `envconfig:"MODELSWAP_ENGINE"`
	ArtifactsDir    string        `envconfig:"MODELSWAP_ARTIFACTS_DIR"`
	RemoteURL       string        `envconfig:"MODELSWAP_REMOTE_URL"`
	RemoteAPIKey    string        `envconfig:"MODELSWAP_REMOTE_API_KEY"`
	AdminToken      string        `envconfig:"MODELSWAP_ADMIN_TOKEN"`
	DesiredBackend  string        `envconfig:"MODELSWAP_DESIRED_BACKEND"`
	DesiredPath     string        `envconfig:"MODELSWAP_DESIRED_PATH"`
	RedisURL        string        `envconfig:"MODELSWAP_REDIS_URL"`
	EtcdEndpoints   []string      `envconfig:"MODELSWAP_ETCD_ENDPOINTS"`
	S3Bucket        string        `envconfig:"MODELSWAP_S3_BUCKET"`
	KafkaBrokers    []string      `envconfig:"MODELSWAP_KAFKA_BROKERS"`
	KafkaTopic      string        `envconfig:"MODELSWAP_KAFKA_TOPIC"`
	ReplicaID       string        `envconfig:"MODELSWAP_REPLICA_ID"`
}

// rolloutEnv lists the ROLLOUT_* overrides.
type rolloutEnv struct {
	Replicas     []string      `envconfig:"ROLLOUT_REPLICAS"`
	PollInterval time.Duration `envconfig:"ROLLOUT_POLL_INTERVAL"`
	SettleDelay  time.Duration `envconfig:"ROLLOUT_SETTLE_DELAY"`
	Timeout      time.Duration `envconfig:"ROLLOUT_TIMEOUT"`
	StatusQPS    float64       `envconfig:"ROLLOUT_STATUS_QPS"`
	HistoryDB    string        `envconfig:"ROLLOUT_HISTORY_DB"`
	AdminToken   string        `envconfig:"ROLLOUT_ADMIN_TOKEN"`
	LogLevel     string        `envconfig:"ROLLOUT_LOG_LEVEL"`
}

var envOptions = envconfig.Options{AllOptional: true}

// ApplyReplicaEnv overlays MODELSWAP_* environment variables onto c.
func ApplyReplicaEnv(c *Replica) error {
	var e replicaEnv
	if err := envconfig.InitWithOptions(&e, envOptions); err != nil {
		return err
	}
	setString(&c.Addr, e.Addr)
	setString(&c.LogLevel, e.LogLevel)
	setString(&c.LogFormat, e.LogFormat)
	setString(&c.InitialArtifact, e.InitialArtifact)
	setDuration(&c.ReleaseGrace, e.ReleaseGrace)
	setString(&c.Engine.Kind, e.Engine)
	setString(&c.Engine.ArtifactsDir, e.ArtifactsDir)
	setString(&c.Engine.RemoteURL, e.RemoteURL)
	setString(&c.Engine.RemoteAPIKey, e.RemoteAPIKey)
	setString(&c.HTTP.AdminToken, e.AdminToken)
	setString(&c.Desired.Backend, e.DesiredBackend)
	setString(&c.Desired.Path, e.DesiredPath)
	setString(&c.Desired.RedisURL, e.RedisURL)
	setStrings(&c.Desired.EtcdEndpoints, e.EtcdEndpoints)
	setString(&c.Desired.S3Bucket, e.S3Bucket)
	setStrings(&c.Events.Brokers, e.KafkaBrokers)
	setString(&c.Events.Topic, e.KafkaTopic)
	setString(&c.Events.ReplicaID, e.ReplicaID)
	return nil
}

// ApplyRolloutEnv overlays ROLLOUT_* environment variables onto c.
func ApplyRolloutEnv(c *Rollout) error {
	var e rolloutEnv
	if err := envconfig.InitWithOptions(&e, envOptions); err != nil {
		return err
	}
	setStrings(&c.Replicas, e.Replicas)
	setDuration(&c.PollInterval, e.PollInterval)
	setDuration(&c.SettleDelay, e.SettleDelay)
	setDuration(&c.Timeout, e.Timeout)
	if e.StatusQPS > 0 {
		c.StatusQPS = e.StatusQPS
	}
	setString(&c.HistoryDB, e.HistoryDB)
	setString(&c.AdminToken, e.AdminToken)
	setString(&c.LogLevel, e.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setStrings(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func setDuration(dst *Duration, v time.Duration) {
	if v != 0 {
		*dst = Duration(v)
	}
}
