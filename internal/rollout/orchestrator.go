// Package rollout pushes an artifact to every replica of a fleet and waits
// until all of them serve it.
//
// A rollout dispatches the update to all replicas concurrently, waits a
// settle delay so the background loads begin, then polls every replica's
// status each interval. It converges when every replica reports the desired
// artifact with no update in flight, and fails fast when every replica has
// finished but some report a different artifact. One overall timeout bounds
// the whole run. Loads accepted by replicas are never aborted.
package rollout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"modelswap/pkg/types"
)

// Defaults applied when Config fields are unset.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultSettleDelay  = 2 * time.Second
	DefaultTimeout      = 10 * time.Minute
)

// Recorder persists outcomes (e.g. the history database).
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Config tunes an Orchestrator.
type Config struct {
	PollInterval time.Duration
	// SettleDelay is waited after dispatch before the first poll. Negative
	// disables it.
	SettleDelay time.Duration
	// Timeout is used when Rollout is called with a zero timeout.
	Timeout  time.Duration
	Retry    RetryPolicy
	Recorder Recorder
	Logger   *zerolog.Logger
}

// Orchestrator drives rollouts across a fixed set of replicas.
type Orchestrator struct {
	replicas []ReplicaClient
	cfg      Config
	log      zerolog.Logger
	newID    func() string
	now      func() time.Time
}

func New(replicas []ReplicaClient, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	switch {
	case cfg.SettleDelay == 0:
		cfg.SettleDelay = DefaultSettleDelay
	case cfg.SettleDelay < 0:
		cfg.SettleDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = DefaultRetryPolicy.Attempts
	}
	if cfg.Retry.MinBackoff <= 0 {
		cfg.Retry.MinBackoff = DefaultRetryPolicy.MinBackoff
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = DefaultRetryPolicy.MaxBackoff
	}
	o := &Orchestrator{
		replicas: replicas,
		cfg:      cfg,
		log:      zerolog.Nop(),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "rollout").Logger()
	}
	return o
}

// Replicas returns the replica names in configuration order.
func (o *Orchestrator) Replicas() []string {
	out := make([]string, len(o.replicas))
	for i, r := range o.replicas {
		out[i] = r.Name()
	}
	return out
}

// Rollout brings every replica to artifactID or reports why it could not.
// It always returns, at the latest one poll interval after timeout.
func (o *Orchestrator) Rollout(ctx context.Context, artifactID string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = o.cfg.Timeout
	}
	out := Outcome{
		ID:         o.newID(),
		ArtifactID: strings.TrimSpace(artifactID),
		StartedAt:  o.now(),
		Replicas:   make([]ReplicaResult, len(o.replicas)),
	}
	for i, r := range o.replicas {
		out.Replicas[i] = ReplicaResult{Replica: r.Name(), State: StatePending}
	}
	lg := o.log.With().Str("rollout", out.ID).Str("artifact", out.ArtifactID).Logger()
	lg.Info().Int("replicas", len(o.replicas)).Dur("timeout", timeout).Msg("rollout start")

	// Work after the deadline (final snapshot, recording) shares one budget
	// ending one poll interval past the timeout.
	post, cancelPost := context.WithDeadline(context.WithoutCancel(ctx), time.Now().Add(timeout+o.cfg.PollInterval))
	defer cancelPost()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case out.ArtifactID == "":
		o.finish(post, &out, ReasonDispatchFailed, []string{"artifact id is empty"}, lg)
	case len(o.replicas) == 0:
		o.finish(post, &out, ReasonDispatchFailed, []string{errNoReplicas.Error()}, lg)
	default:
		o.run(ctx, post, &out, timeout, lg)
	}
	return out
}

func (o *Orchestrator) run(ctx, post context.Context, out *Outcome, timeout time.Duration, lg zerolog.Logger) {
	// 1. dispatch
	o.dispatchAll(ctx, out, lg)
	var rejected, failed []string
	for _, r := range out.Replicas {
		switch r.State {
		case StateRejected:
			rejected = append(rejected, r.Replica+": "+r.DispatchError)
		case StateDispatchFailed:
			failed = append(failed, r.Replica+": "+r.DispatchError)
		}
	}
	if len(rejected) > 0 {
		o.finish(post, out, ReasonRejected, append(rejected, failed...), lg)
		return
	}
	if len(failed) > 0 {
		if ctx.Err() != nil {
			o.finish(post, out, ReasonTimeout, append(failed, timeoutMessage(timeout)), lg)
			return
		}
		o.finish(post, out, ReasonDispatchFailed, failed, lg)
		return
	}

	// 2. settle
	if o.cfg.SettleDelay > 0 {
		select {
		case <-time.After(o.cfg.SettleDelay):
		case <-ctx.Done():
			o.finalSnapshot(post, out)
			o.finish(post, out, ReasonTimeout, o.pendingErrors(out, timeout), lg)
			return
		}
	}

	// 3. converge-poll
	for round := 1; ; round++ {
		o.pollAll(ctx, out)
		allDone, mismatched := evaluate(out.Replicas)
		if allDone && len(mismatched) == 0 {
			o.finish(post, out, ReasonConverged, nil, lg)
			return
		}
		if allDone {
			errs := make([]string, 0, len(mismatched))
			for _, r := range mismatched {
				errs = append(errs, mismatchMessage(r, out.ArtifactID))
			}
			o.finish(post, out, ReasonMismatch, errs, lg)
			return
		}
		if ctx.Err() != nil {
			break
		}
		lg.Debug().Int("round", round).Strs("pending", out.NotConverged()).Msg("waiting for replicas")
		select {
		case <-time.After(o.cfg.PollInterval):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	o.finalSnapshot(post, out)
	o.finish(post, out, ReasonTimeout, o.pendingErrors(out, timeout), lg)
}

func (o *Orchestrator) dispatchAll(ctx context.Context, out *Outcome, lg zerolog.Logger) {
	var g errgroup.Group
	for i, r := range o.replicas {
		i, r := i, r
		g.Go(func() error {
			res := &out.Replicas[i]
			err := o.cfg.Retry.Do(ctx, func() error {
				_, err := r.RequestUpdate(ctx, out.ArtifactID)
				return err
			}, func(attempt uint, err error) {
				dispatchTransportFailures.Inc()
				lg.Warn().Err(err).Str("replica", r.Name()).Uint("attempt", attempt+1).Msg("update dispatch failed")
			})
			switch {
			case err == nil:
				res.Accepted = true
				res.State = StateUpdating
			case IsRejected(err):
				res.State = StateRejected
				res.DispatchError = err.Error()
			default:
				res.State = StateDispatchFailed
				res.DispatchError = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pollAll refreshes every replica's status concurrently. Unreachable
// replicas keep their last known status.
func (o *Orchestrator) pollAll(ctx context.Context, out *Outcome) {
	var g errgroup.Group
	for i, r := range o.replicas {
		i, r := i, r
		g.Go(func() error {
			st, err := r.Status(ctx)
			applyStatus(&out.Replicas[i], st, err, out.ArtifactID)
			return nil
		})
	}
	_ = g.Wait()
}

// finalSnapshot makes one last bounded status sweep after the deadline so
// the outcome carries the freshest view available.
func (o *Orchestrator) finalSnapshot(ctx context.Context, out *Outcome) {
	var g errgroup.Group
	for i, r := range o.replicas {
		i, r := i, r
		g.Go(func() error {
			if st, err := r.Status(ctx); err == nil {
				applyStatus(&out.Replicas[i], st, nil, out.ArtifactID)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func applyStatus(res *ReplicaResult, st types.StatusResponse, err error, desired string) {
	if err != nil {
		res.State = StateUnreachable
		res.LastError = err.Error()
		return
	}
	s := st
	res.LastStatus = &s
	res.LastError = st.LastError
	switch {
	case st.Updating:
		res.State = StateUpdating
	case st.ArtifactID == desired:
		res.State = StateConverged
	default:
		res.State = StateMismatch
	}
}

// evaluate reports whether every replica is reachable and idle, and which of
// them serve the wrong artifact.
func evaluate(rs []ReplicaResult) (allDone bool, mismatched []ReplicaResult) {
	allDone = true
	for _, r := range rs {
		switch r.State {
		case StateConverged:
		case StateMismatch:
			mismatched = append(mismatched, r)
		default:
			allDone = false
		}
	}
	return allDone, mismatched
}

func mismatchMessage(r ReplicaResult, desired string) string {
	if r.LastError != "" {
		return r.Replica + ": " + r.LastError
	}
	current := ""
	if r.LastStatus != nil {
		current = r.LastStatus.ArtifactID
	}
	return fmt.Sprintf("%s: update completed but artifact is %q, expected %q", r.Replica, current, desired)
}

func timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("timeout: replicas did not converge within %s", timeout)
}

func (o *Orchestrator) pendingErrors(out *Outcome, timeout time.Duration) []string {
	errs := []string{timeoutMessage(timeout)}
	for _, r := range out.Replicas {
		current := "unknown"
		if r.LastStatus != nil {
			current = r.LastStatus.ArtifactID
		}
		switch r.State {
		case StateConverged:
		case StateUpdating, StatePending:
			errs = append(errs, fmt.Sprintf("%s: still updating (current: %s)", r.Replica, current))
		case StateUnreachable:
			errs = append(errs, fmt.Sprintf("%s: could not get status: %s", r.Replica, r.LastError))
		default:
			errs = append(errs, mismatchMessage(r, out.ArtifactID))
		}
	}
	return errs
}

func (o *Orchestrator) finish(ctx context.Context, out *Outcome, reason Reason, errs []string, lg zerolog.Logger) {
	out.Reason = reason
	out.Success = reason == ReasonConverged
	out.Errors = errs
	if out.Errors == nil {
		out.Errors = []string{}
	}
	out.FinishedAt = o.now()
	rolloutsTotal.WithLabelValues(string(reason)).Inc()
	rolloutDuration.Observe(out.Duration().Seconds())

	ev := lg.Info()
	if !out.Success {
		ev = lg.Warn().Strs("errors", out.Errors)
	}
	ev.Str("reason", string(reason)).Dur("took", out.Duration()).Msg("rollout finished")

	if o.cfg.Recorder != nil {
		if err := o.cfg.Recorder.Record(ctx, *out); err != nil {
			lg.Error().Err(err).Msg("record rollout outcome failed")
		}
	}
}
