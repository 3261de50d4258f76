// Package pcm holds the value types shared by proctap's public API and its
// internal backend/conversion packages: Format, Chunk, Target, and
// ResampleQuality. It is split out from the root proctap package purely to
// avoid an import cycle (backend and convert/resample need these types;
// proctap imports backend and convert/resample). The root package
// re-exports Format, SampleFormat, Chunk, ResampleQuality and Target (and
// their constants and constructors) under its own names via type aliases;
// TargetKind and its constants are not re-exported.
package pcm

import "fmt"

// SampleFormat is the set of PCM sample encodings the pipeline understands.
type SampleFormat int

const (
	SampleFormatInt16 SampleFormat = iota
	SampleFormatInt24
	SampleFormatInt32
	SampleFormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatInt16:
		return "int16"
	case SampleFormatInt24:
		return "int24"
	case SampleFormatInt32:
		return "int32"
	case SampleFormatFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the packed size, in bytes, of one sample in this
// format. int24 is packed 3-byte little-endian per spec §4.7.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatInt16:
		return 2
	case SampleFormatInt24:
		return 3
	case SampleFormatInt32, SampleFormatFloat32:
		return 4
	default:
		return 0
	}
}

// Format describes a PCM stream: sample rate, channel count, and sample
// encoding. It is immutable for the lifetime of a capture session (spec §3).
type Format struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// FrameSize is the byte size of one frame (one sample per channel) in this
// format.
func (f Format) FrameSize() int {
	return f.Channels * f.SampleFormat.BytesPerSample()
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.SampleFormat)
}

// Equal reports whether two formats are identical in all three fields —
// used throughout the conversion pipeline to decide whether a stage (or the
// whole pipeline) can be bypassed.
func (f Format) Equal(o Format) bool {
	return f.SampleRate == o.SampleRate && f.Channels == o.Channels && f.SampleFormat == o.SampleFormat
}

// Chunk is a variable-size sequence of frames delivered as an opaque byte
// buffer plus a declared frame count. Invariant (spec §3): len(Bytes) ==
// FrameCount * Format.FrameSize().
type Chunk struct {
	Bytes      []byte
	FrameCount int
	Format     Format
}

// ResampleQuality selects among resampler backends/modes (spec §4.7).
type ResampleQuality int

const (
	ResampleBest ResampleQuality = iota
	ResampleMedium
	ResampleFast
)

func (q ResampleQuality) String() string {
	switch q {
	case ResampleBest:
		return "best"
	case ResampleMedium:
		return "medium"
	case ResampleFast:
		return "fast"
	default:
		return "unknown"
	}
}

// TargetKind distinguishes the two ways a capture target can be addressed.
type TargetKind int

const (
	// TargetProcessID addresses a target by OS process id, valid on all
	// platforms. On macOS it is resolved to a bundle id during Start.
	TargetProcessID TargetKind = iota
	// TargetBundleID addresses a target directly by macOS bundle
	// identifier (e.g. "com.apple.Music"), bypassing pid resolution.
	TargetBundleID
)

// Target identifies the process whose audio output should be captured.
type Target struct {
	Kind      TargetKind
	ProcessID uint32
	BundleID  string
}

// ProcessTarget builds a Target addressed by process id.
func ProcessTarget(pid uint32) Target {
	return Target{Kind: TargetProcessID, ProcessID: pid}
}

// BundleTarget builds a Target addressed by macOS bundle id.
func BundleTarget(bundleID string) Target {
	return Target{Kind: TargetBundleID, BundleID: bundleID}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetBundleID:
		return t.BundleID
	default:
		return fmt.Sprintf("pid:%d", t.ProcessID)
	}
}

// Valid reports whether t is well-formed per spec §4.1's Open-time target
// validation (pid must be non-zero, bundle id must be non-empty). It
// returns a plain bool rather than an *procerr.Error so this leaf package
// need not import procerr; the façade wraps the false case in InvalidTarget.
func (t Target) Valid() bool {
	switch t.Kind {
	case TargetProcessID:
		return t.ProcessID != 0
	case TargetBundleID:
		return t.BundleID != ""
	default:
		return false
	}
}
