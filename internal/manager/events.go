package manager

// Event names published by the manager.
const (
	EventUpdateAccepted    = "update_accepted"
	EventUpdateRejected    = "update_rejected"
	EventLoadStart         = "load_start"
	EventSwapDone          = "swap_done"
	EventLoadFailed        = "load_failed"
	EventReleaseFailed     = "release_failed"
	EventInitialLoadDone   = "initial_load_done"
	EventInitialLoadFailed = "initial_load_failed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + artifact id and optional fields via key/values.
type Event struct {
	Name       string
	ArtifactID string
	Version    int64
	Fields     map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
