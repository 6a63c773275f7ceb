package rollout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"modelswap/pkg/types"
)

// ReplicaReport is one replica's answer to a fleet-wide status query.
type ReplicaReport struct {
	Replica string                `json:"replica"`
	Status  *types.StatusResponse `json:"status,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// ProbeResult is one replica's answer to a probe request.
type ProbeResult struct {
	Replica    string `json:"replica"`
	Output     string `json:"output,omitempty"`
	Version    int64  `json:"version,omitempty"`
	ArtifactID string `json:"artifact_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusAll queries every replica concurrently. Results follow replica order.
func (o *Orchestrator) StatusAll(ctx context.Context) []ReplicaReport {
	out := make([]ReplicaReport, len(o.replicas))
	var g errgroup.Group
	for i, r := range o.replicas {
		i, r := i, r
		g.Go(func() error {
			out[i].Replica = r.Name()
			st, err := r.Status(ctx)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			out[i].Status = &st
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Verify reports whether every replica is reachable, idle and serving
// artifactID.
func (o *Orchestrator) Verify(ctx context.Context, artifactID string) (bool, []ReplicaReport) {
	reports := o.StatusAll(ctx)
	if len(reports) == 0 {
		return false, reports
	}
	for _, r := range reports {
		if r.Status == nil || r.Status.Updating || r.Status.ArtifactID != artifactID {
			return false, reports
		}
	}
	return true, reports
}

// ProbeAll sends the same generate request to every replica and reports
// which version served it.
func (o *Orchestrator) ProbeAll(ctx context.Context, req types.GenerateRequest) []ProbeResult {
	out := make([]ProbeResult, len(o.replicas))
	var g errgroup.Group
	for i, r := range o.replicas {
		i, r := i, r
		g.Go(func() error {
			out[i].Replica = r.Name()
			res, err := r.Generate(ctx, req)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			out[i].Output = res.Output
			out[i].Version = res.Version
			out[i].ArtifactID = res.ArtifactID
			return nil
		})
	}
	_ = g.Wait()
	return out
}
