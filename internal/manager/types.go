package manager

import "modelswap/internal/engine"

// State represents the lifecycle state of the manager.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateUpdating State = "updating"
	StateError    State = "error"
)

// VersionState identifies the artifact being served. Values are immutable.
type VersionState struct {
	Version    int64
	ArtifactID string
}

// Result is the outcome of one Serve call. Version and ArtifactID describe
// the handle that produced Output.
type Result struct {
	Output     string
	Version    int64
	ArtifactID string
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State     State
	Current   VersionState
	Ready     bool
	Updating  bool
	LastError string
}

// slot pairs a loaded handle with the version describing it. A slot is never
// mutated once published.
type slot struct {
	handle engine.Handle
	state  VersionState
}
