package engine

import "errors"

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama support).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var target dependencyUnavailableError
	return errors.As(err, &target)
}

type artifactNotFoundError struct{ id string }

func (e artifactNotFoundError) Error() string { return "artifact not found: " + e.id }

// ErrArtifactNotFound returns an error for an id unknown to the engine.
func ErrArtifactNotFound(id string) error { return artifactNotFoundError{id: id} }

// IsArtifactNotFound reports whether err indicates an unknown artifact id.
func IsArtifactNotFound(err error) bool {
	var target artifactNotFoundError
	return errors.As(err, &target)
}
