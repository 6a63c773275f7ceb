package manager

import (
	"errors"
	"fmt"
)

// notReadyError signals that nothing has been loaded yet (return 503).
type notReadyError struct{}

func (notReadyError) Error() string {
	return "model is not loaded yet; wait for the initial load to complete"
}

// ErrNotReady returns the error served before the first successful load.
func ErrNotReady() error { return notReadyError{} }

// IsNotReady reports whether err indicates no artifact is loaded.
func IsNotReady(err error) bool {
	var target notReadyError
	return errors.As(err, &target)
}

// alreadyUpdatingError rejects a second concurrent update (return 409).
type alreadyUpdatingError struct{ artifactID string }

func (e alreadyUpdatingError) Error() string {
	return "update already in progress (requested " + e.artifactID + ")"
}

// ErrAlreadyUpdating returns the rejection for a request made while another
// update is in flight.
func ErrAlreadyUpdating(artifactID string) error { return alreadyUpdatingError{artifactID: artifactID} }

// IsAlreadyUpdating reports whether err is a rejection of a concurrent update.
func IsAlreadyUpdating(err error) bool {
	var target alreadyUpdatingError
	return errors.As(err, &target)
}

// invalidArtifactError rejects requests that name no artifact (return 400).
type invalidArtifactError struct{ msg string }

func (e invalidArtifactError) Error() string { return e.msg }

// IsInvalidArtifact reports whether err indicates a malformed artifact id.
func IsInvalidArtifact(err error) bool {
	var target invalidArtifactError
	return errors.As(err, &target)
}

// loadFailedError records why a background load failed. It is never returned
// to serving callers; its text lands in Snapshot.LastError.
type loadFailedError struct {
	artifactID string
	err        error
}

func (e loadFailedError) Error() string {
	return fmt.Sprintf("load %s failed: %v", e.artifactID, e.err)
}

func (e loadFailedError) Unwrap() error { return e.err }

// ErrLoadFailed wraps a loader error for artifactID.
func ErrLoadFailed(artifactID string, err error) error {
	return loadFailedError{artifactID: artifactID, err: err}
}

// IsLoadFailed reports whether err is a wrapped load failure.
func IsLoadFailed(err error) bool {
	var target loadFailedError
	return errors.As(err, &target)
}

// closedError rejects work submitted after Close. It carries its own HTTP
// status so transports can report it as unavailable.
type closedError struct{}

func (closedError) Error() string { return "manager: closed" }

// StatusCode is 503 Service Unavailable.
func (closedError) StatusCode() int { return 503 }

// ErrClosed returns the rejection for operations on a closed manager.
func ErrClosed() error { return closedError{} }

// IsClosed reports whether err comes from a closed manager.
func IsClosed(err error) bool {
	var target closedError
	return errors.As(err, &target)
}
