// Package resample implements the third (and most expensive) stage of the
// format conversion pipeline: sample-rate conversion (spec §4.7). Backend
// selection follows the priority order in spec §4.7: a dynamically loaded
// high-quality SINC library first, a built-in polyphase FIR otherwise, and
// a SIMD-friendly linear interpolator for the "fast" quality tier.
//
// Every call to Resample is a complete, non-streaming chunk: the resampler
// carries no state between calls (spec §4.7, "end-of-input semantics").
// This keeps a resampler instance safe to reuse across unrelated chunks
// without the caller tracking continuity.
package resample

import (
	"math"

	"proctap/pcm"
)

// Backend converts src (interleaved float32, "channels" channels, srcRate
// Hz) into the equivalent audio at dstRate Hz. The returned slice is sized
// per spec §8: round(len(src)/channels * dstRate/srcRate) frames, within
// ±1 frame.
type Backend interface {
	Name() string
	Resample(src []float32, channels, srcRate, dstRate int) []float32
}

// ExpectedFrames computes the output frame count for resampling srcFrames
// frames from srcRate to dstRate, per spec §8's ratio law.
func ExpectedFrames(srcFrames, srcRate, dstRate int) int {
	return int(math.Round(float64(srcFrames) * float64(dstRate) / float64(srcRate)))
}

// Select returns the best available backend for the requested quality,
// following spec §4.7's priority order. The dynamically loaded SINC library
// is tried first regardless of quality (it simply maps the quality hint to
// one of its three converter modes); if it cannot be loaded, Select falls
// back to the built-in backends and never retries loading it for the
// lifetime of the process (spec §4.7 / §9: one-shot, permanently
// unavailable on failure).
func Select(quality pcm.ResampleQuality) Backend {
	if b, ok := sincBackendFor(quality); ok {
		return b
	}
	switch quality {
	case pcm.ResampleFast:
		return &linearBackend{}
	case pcm.ResampleMedium:
		return newPolyphaseBackend(32)
	default: // pcm.ResampleBest
		return newPolyphaseBackend(64)
	}
}

// deinterleave splits an interleaved multi-channel buffer into one slice
// per channel.
func deinterleave(src []float32, channels int) [][]float32 {
	frames := len(src) / channels
	out := make([][]float32, channels)
	for c := 0; c < channels; c++ {
		out[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[c][i] = src[i*channels+c]
		}
	}
	return out
}

// interleave is the inverse of deinterleave; all channels must have equal
// length.
func interleave(channelsData [][]float32) []float32 {
	if len(channelsData) == 0 {
		return nil
	}
	frames := len(channelsData[0])
	channels := len(channelsData)
	out := make([]float32, frames*channels)
	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			out[i*channels+c] = channelsData[c][i]
		}
	}
	return out
}
