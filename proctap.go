// Package proctap provides per-process audio capture: given an identifier
// for a running process, it delivers a live stream of that process's
// audio output, isolated from system sounds and other applications, via
// one native backend per host operating system (WASAPI process loopback
// on Windows, a PipeWire/PulseAudio strategy chain on Linux,
// ScreenCaptureKit via a helper subprocess on macOS).
package proctap

import (
	"proctap/pcm"
	"proctap/procerr"
)

// Format, Chunk, SampleFormat, ResampleQuality and Target are defined in
// the pcm package (kept separate to avoid an import cycle: backend and
// the conversion packages need these types, and this package imports
// them). They are re-exported here under the public proctap.* names
// callers use.
type (
	Format          = pcm.Format
	SampleFormat    = pcm.SampleFormat
	Chunk           = pcm.Chunk
	ResampleQuality = pcm.ResampleQuality
	Target          = pcm.Target
)

const (
	SampleFormatInt16   = pcm.SampleFormatInt16
	SampleFormatInt24   = pcm.SampleFormatInt24
	SampleFormatInt32   = pcm.SampleFormatInt32
	SampleFormatFloat32 = pcm.SampleFormatFloat32

	ResampleBest   = pcm.ResampleBest
	ResampleMedium = pcm.ResampleMedium
	ResampleFast   = pcm.ResampleFast
)

// ProcessTarget identifies a capture target by process id.
func ProcessTarget(pid uint32) Target { return pcm.ProcessTarget(pid) }

// BundleTarget identifies a capture target by macOS bundle identifier.
func BundleTarget(bundleID string) Target { return pcm.BundleTarget(bundleID) }

// ErrorKind and Error are defined in procerr for the same import-cycle
// reason as pcm.
type (
	ErrorKind = procerr.ErrorKind
	Error     = procerr.Error
)

const (
	KindInternal           = procerr.KindInternal
	KindInvalidTarget      = procerr.KindInvalidTarget
	KindTargetNotFound     = procerr.KindTargetNotFound
	KindUnsupportedOS      = procerr.KindUnsupportedOS
	KindPermissionDenied   = procerr.KindPermissionDenied
	KindBackendUnavailable = procerr.KindBackendUnavailable
	KindBackendTimeout     = procerr.KindBackendTimeout
	KindBackendLost        = procerr.KindBackendLost
	KindFormatUnsupported  = procerr.KindFormatUnsupported
	KindSessionStopped     = procerr.KindSessionStopped
	KindSessionClosed      = procerr.KindSessionClosed
)

// KindOf extracts the ErrorKind from err, or KindInternal if err is not a
// *proctap.Error (or does not wrap one).
func KindOf(err error) ErrorKind { return procerr.KindOf(err) }
