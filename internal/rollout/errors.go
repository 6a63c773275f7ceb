package rollout

import (
	"errors"
	"fmt"
	"strings"
)

// transportError is a network-level failure talking to a replica. These are
// the only errors the retry policy retries.
type transportError struct {
	replica string
	err     error
}

func (e transportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.replica, e.err)
}

func (e transportError) Unwrap() error { return e.err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var target transportError
	return errors.As(err, &target)
}

// rejectedError is a replica refusing an update (HTTP 409).
type rejectedError struct {
	replica string
	reason  string
}

func (e rejectedError) Error() string {
	return fmt.Sprintf("%s: rejected: %s", e.replica, e.reason)
}

// IsRejected reports whether err is an application-level rejection.
func IsRejected(err error) bool {
	var target rejectedError
	return errors.As(err, &target)
}

// statusError is any other non-2xx reply.
type statusError struct {
	replica string
	code    int
	body    string
}

func (e statusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.replica, e.code, e.body)
}

// StatusCode extracts the HTTP status of a non-2xx reply, or 0.
func StatusCode(err error) int {
	var target statusError
	if errors.As(err, &target) {
		return target.code
	}
	return 0
}

type timeoutError struct {
	pending []string
}

func (e timeoutError) Error() string {
	return "rollout timed out; not converged: " + strings.Join(e.pending, ", ")
}

// IsTimeout reports whether err is a rollout that did not converge in time.
func IsTimeout(err error) bool {
	var target timeoutError
	return errors.As(err, &target)
}

type mismatchError struct {
	replicas []string
}

func (e mismatchError) Error() string {
	return "rollout mismatch on: " + strings.Join(e.replicas, ", ")
}

// IsMismatch reports whether err is a rollout where replicas finished on the
// wrong artifact.
func IsMismatch(err error) bool {
	var target mismatchError
	return errors.As(err, &target)
}

type dispatchError struct {
	reason   Reason
	replicas []string
}

func (e dispatchError) Error() string {
	return fmt.Sprintf("rollout %s on: %s", e.reason, strings.Join(e.replicas, ", "))
}
