package types

import "time"

// Artifact is a loadable unit discovered on disk.
type Artifact struct {
	// Stable identifier, the file name including extension.
	// example: tinyllama-q4.gguf
	ID string `json:"id"`
	// Absolute path to the artifact file.
	Path string `json:"path"`
	// Size in bytes at scan time.
	SizeBytes int64 `json:"size_bytes"`
}

// DesiredState is the fleet-wide desired artifact record shared between
// replicas. Last write wins.
type DesiredState struct {
	DesiredArtifactID string `json:"desired_artifact_id" msgpack:"desired_artifact_id"`
	// Seconds since the unix epoch with sub-second precision.
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
}

// NewDesiredState stamps a record with t.
func NewDesiredState(artifactID string, t time.Time) DesiredState {
	return DesiredState{
		DesiredArtifactID: artifactID,
		Timestamp:         float64(t.UnixNano()) / float64(time.Second),
	}
}

// Time converts the record timestamp back to a time.Time.
func (d DesiredState) Time() time.Time {
	sec := int64(d.Timestamp)
	nsec := int64((d.Timestamp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
