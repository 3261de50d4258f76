// Package backend defines the capture backend trait (spec §4.2) and
// platform registry. Each OS ships exactly one concrete backend
// (backend_windows.go, backend_linux.go, backend_darwin.go); a stub
// satisfies the build on any other GOOS so the façade always has something
// to construct against, reporting itself unsupported.
package backend

import (
	"proctap/pcm"
	"proctap/procerr"
	"proctap/ring"
)

// Backend is the concrete contract a platform audio subsystem implements.
// Construction (New) is cheap and must not touch OS audio APIs; Activate
// acquires them and starts pushing frames into the ring passed to New.
type Backend interface {
	// Activate acquires OS resources and starts the capture/bridge thread.
	// It returns the native format actually negotiated, or a *procerr.Error
	// from spec §7's taxonomy.
	Activate() (pcm.Format, error)

	// Deactivate tears down OS resources. Idempotent. Must not panic.
	Deactivate()

	// Supported reports a static capability check (OS version, presence of
	// the required subsystem) without acquiring any resource.
	Supported() bool

	// Diagnostics returns backend-specific, non-contractual debugging
	// information (spec §12's strategy field on Linux; empty elsewhere).
	Diagnostics() map[string]string
}

// Constructor builds a Backend for one target, given the ring it must push
// captured frames into and the caller's requested format (nil if the
// caller wants the native format).
type Constructor func(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend

// Logger is the minimal structured-logging surface backends need; the
// façade satisfies it with an adapter around the session's
// *log.Logger (github.com/charmbracelet/log), which carries the session
// and target fields but no backend-specific scope.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// New constructs the platform's backend. There is exactly one per GOOS;
// unsupported platforms get a stub that always fails Supported().
func New(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return newPlatformBackend(target, requested, buf, log)
}

var errUnsupportedOS = procerr.NewError(procerr.KindUnsupportedOS, "no capture backend for this platform")
