// Package procerr holds proctap's typed error taxonomy (ErrorKind, Error).
// It is split from the root proctap package so backend implementations can
// construct and return these errors without importing the root package
// (which in turn imports backend) — see pcm's doc comment for the same
// reasoning.
package procerr

import (
	"errors"
	"fmt"
)

// ErrorKind is the typed failure surface for the whole package. Callers
// match on Kind rather than string-sniffing error text.
type ErrorKind int

const (
	// KindInternal marks an invariant violation; diagnostic only.
	KindInternal ErrorKind = iota
	// KindInvalidTarget means the capture target identifier was malformed
	// or pid was zero.
	KindInvalidTarget
	// KindTargetNotFound means no such process (or, on macOS, no bundle
	// owning it) existed at activation time.
	KindTargetNotFound
	// KindUnsupportedOS means the host is below the required OS version
	// or lacks the required audio subsystem.
	KindUnsupportedOS
	// KindPermissionDenied means the OS refused the capture (TCC, sandbox,
	// ACL).
	KindPermissionDenied
	// KindBackendUnavailable means no backend strategy succeeded.
	KindBackendUnavailable
	// KindBackendTimeout means asynchronous activation did not complete
	// within its deadline.
	KindBackendTimeout
	// KindBackendLost means a previously healthy capture failed mid-stream.
	KindBackendLost
	// KindFormatUnsupported means a requested conversion has no
	// implemented path.
	KindFormatUnsupported
	// KindSessionStopped means the operation targets a session that is no
	// longer running.
	KindSessionStopped
	// KindSessionClosed means the operation targets a closed session.
	KindSessionClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTarget:
		return "InvalidTarget"
	case KindTargetNotFound:
		return "TargetNotFound"
	case KindUnsupportedOS:
		return "UnsupportedOS"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindBackendTimeout:
		return "BackendTimeout"
	case KindBackendLost:
		return "BackendLost"
	case KindFormatUnsupported:
		return "FormatUnsupported"
	case KindSessionStopped:
		return "SessionStopped"
	case KindSessionClosed:
		return "SessionClosed"
	default:
		return "Internal"
	}
}

// Error is the concrete error type returned across the public surface. It
// carries a typed Kind plus an optional human-readable detail and, for
// aggregated failures (BackendUnavailable folding several strategies'
// reasons), a list of underlying causes.
type Error struct {
	Kind    ErrorKind
	Detail  string
	Causes  []error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	if len(e.Causes) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s (%d underlying reasons)", e.Kind, e.Detail, len(e.Causes))
}

// Unwrap exposes the aggregated causes so errors.Is/As can walk into them.
func (e *Error) Unwrap() []error { return e.Causes }

// NewError builds a plain typed error.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// NewAggregateError builds a BackendUnavailable-style error folding several
// per-strategy failures into one, per spec §4.4 / §7.
func NewAggregateError(kind ErrorKind, detail string, causes ...error) *Error {
	return &Error{Kind: kind, Detail: detail, Causes: causes}
}

// KindOf extracts the ErrorKind from err, returning KindInternal if err is
// nil or not a *Error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
