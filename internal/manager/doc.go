// Package manager coordinates hot swaps of the artifact a replica serves.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, Start/Close, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: VersionState, Result and Snapshot.
//   - version.go: VersionTracker, the monotonically increasing swap counter.
//   - errors.go: error types and helpers (IsNotReady, IsAlreadyUpdating, IsLoadFailed).
//   - ops.go: RequestUpdate and the background load-and-swap.
//   - serve.go: request serving against the active slot.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//
// Serving never takes a lock: the loaded handle and the version that
// describes it live together in one slot behind an atomic pointer, so a
// result always reports the version that actually produced it. The mutex
// only guards the updating flag and the last error. At most one update is in
// flight; a second request is rejected, never queued.
package manager
