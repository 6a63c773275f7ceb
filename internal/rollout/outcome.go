package rollout

import (
	"time"

	"modelswap/pkg/types"
)

// Reason explains how a rollout ended.
type Reason string

const (
	ReasonConverged      Reason = "converged"
	ReasonRejected       Reason = "rejected"
	ReasonDispatchFailed Reason = "dispatch_failed"
	ReasonMismatch       Reason = "mismatch"
	ReasonTimeout        Reason = "timeout"
)

// ReplicaState is the orchestrator's last verdict on one replica.
type ReplicaState string

const (
	StatePending        ReplicaState = "pending"
	StateConverged      ReplicaState = "converged"
	StateUpdating       ReplicaState = "updating"
	StateMismatch       ReplicaState = "mismatch"
	StateUnreachable    ReplicaState = "unreachable"
	StateRejected       ReplicaState = "rejected"
	StateDispatchFailed ReplicaState = "dispatch_failed"
)

// ReplicaResult is the per-replica detail of a rollout.
type ReplicaResult struct {
	Replica       string                `json:"replica"`
	Accepted      bool                  `json:"accepted"`
	DispatchError string                `json:"dispatch_error,omitempty"`
	State         ReplicaState          `json:"state"`
	LastStatus    *types.StatusResponse `json:"last_status,omitempty"`
	// LastError is the replica's last_error or the last poll failure.
	LastError string `json:"last_error,omitempty"`
}

// Outcome is the result of one rollout. It is never mutated after Rollout returns.
type Outcome struct {
	ID         string          `json:"id"`
	ArtifactID string          `json:"artifact_id"`
	Success    bool            `json:"success"`
	Reason     Reason          `json:"reason"`
	Replicas   []ReplicaResult `json:"replicas"`
	Errors     []string        `json:"errors"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Duration is the wall time of the rollout.
func (o Outcome) Duration() time.Duration { return o.FinishedAt.Sub(o.StartedAt) }

// NotConverged lists replicas that did not reach the desired artifact.
func (o Outcome) NotConverged() []string {
	var out []string
	for _, r := range o.Replicas {
		if r.State != StateConverged {
			out = append(out, r.Replica)
		}
	}
	return out
}

// ReplicasIn lists replicas whose final state is s.
func (o Outcome) ReplicasIn(s ReplicaState) []string {
	var out []string
	for _, r := range o.Replicas {
		if r.State == s {
			out = append(out, r.Replica)
		}
	}
	return out
}

// Err converts a failed outcome into a typed error, nil on success.
func (o Outcome) Err() error {
	switch o.Reason {
	case ReasonConverged:
		return nil
	case ReasonTimeout:
		return timeoutError{pending: o.NotConverged()}
	case ReasonMismatch:
		return mismatchError{replicas: o.ReplicasIn(StateMismatch)}
	case ReasonRejected:
		return dispatchError{reason: o.Reason, replicas: o.ReplicasIn(StateRejected)}
	default:
		return dispatchError{reason: o.Reason, replicas: o.NotConverged()}
	}
}
