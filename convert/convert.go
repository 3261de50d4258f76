// Package convert implements the sample-format and channel-remap stages of
// the format conversion pipeline (spec §4.7): integer<->float PCM, and
// stereo<->mono remapping. Resampling lives in the sibling "resample"
// package.
package convert

import (
	"encoding/binary"
	"math"

	"proctap/pcm"
)

// Sample converts src (packed samples in fromFmt) to dst (packed samples in
// toFmt), both frame-interleaved with the same channel count. It returns
// the number of bytes written to dst. If fromFmt == toFmt this is a bypass:
// no conversion work happens, though bytes are still copied so callers can
// treat Sample uniformly (the façade itself special-cases the true
// zero-copy bypass before calling in, per spec §4.7).
func Sample(dst, src []byte, fromFmt, toFmt pcm.SampleFormat) int {
	if fromFmt == toFmt {
		n := copy(dst, src)
		return n
	}

	srcSize := fromFmt.BytesPerSample()
	dstSize := toFmt.BytesPerSample()
	n := len(src) / srcSize
	if n*dstSize > len(dst) {
		n = len(dst) / dstSize
	}

	dispatchConvert(dst, src, fromFmt, toFmt, n)
	return n * dstSize
}

// dispatchConvert is overridden per-architecture (see simd_*.go) to choose
// a widened loop when the runtime CPU supports it; the portable fallback
// below always works.
var dispatchConvert = convertScalar

func convertScalar(dst, src []byte, fromFmt, toFmt pcm.SampleFormat, n int) {
	for i := 0; i < n; i++ {
		f := decodeSample(src, i, fromFmt)
		encodeSample(dst, i, toFmt, f)
	}
}

// convertWide8 processes 8 samples per iteration before falling back to the
// scalar path for the remainder. It is numerically identical to
// convertScalar; the only difference is loop structure, so the runtime CPU
// can pipeline/auto-vectorize the unrolled body. This stands in for the
// dedicated 256-bit/128-bit vector kernels spec §4.7 describes — see
// simd_amd64.go / simd_arm64.go for the feature-detection gate that selects
// it over convertScalar.
func convertWide8(dst, src []byte, fromFmt, toFmt pcm.SampleFormat, n int) {
	i := 0
	for ; i+8 <= n; i += 8 {
		var batch [8]float64
		for j := 0; j < 8; j++ {
			batch[j] = decodeSample(src, i+j, fromFmt)
		}
		for j := 0; j < 8; j++ {
			encodeSample(dst, i+j, toFmt, batch[j])
		}
	}
	for ; i < n; i++ {
		f := decodeSample(src, i, fromFmt)
		encodeSample(dst, i, toFmt, f)
	}
}

// decodeSample reads sample i from buf (in fmt) as a float64 in [-1, 1]
// (for integer formats) or passed through (for float32).
func decodeSample(buf []byte, i int, fmt pcm.SampleFormat) float64 {
	switch fmt {
	case pcm.SampleFormatInt16:
		off := i * 2
		s := int16(binary.LittleEndian.Uint16(buf[off : off+2]))
		return float64(s) / 32768.0
	case pcm.SampleFormatInt24:
		off := i * 3
		s := int32(buf[off]) | int32(buf[off+1])<<8 | int32(buf[off+2])<<16
		if s&0x800000 != 0 {
			s |= ^0xFFFFFF // sign-extend
		}
		return float64(s) / 8388608.0
	case pcm.SampleFormatInt32:
		off := i * 4
		s := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		return float64(s) / 2147483648.0
	case pcm.SampleFormatFloat32:
		off := i * 4
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])))
	default:
		return 0
	}
}

// encodeSample writes f (in [-1, 1] for integer targets) as sample i of
// buf in the given format, clamping before quantizing.
func encodeSample(buf []byte, i int, fmt pcm.SampleFormat, f float64) {
	switch fmt {
	case pcm.SampleFormatInt16:
		v := clampRound(f*32768.0, 32767.0)
		off := i * 2
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(int16(v)))
	case pcm.SampleFormatInt24:
		v := int32(clampRound(f*8388608.0, 8388607.0))
		off := i * 3
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
	case pcm.SampleFormatInt32:
		v := clampRound(f*2147483648.0, 2147483647.0)
		off := i * 4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(int32(v)))
	case pcm.SampleFormatFloat32:
		off := i * 4
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(float32(f)))
	}
}

func clampRound(f, limit float64) float64 {
	if f > limit {
		f = limit
	} else if f < -limit {
		f = -limit
	}
	if f >= 0 {
		return math.Floor(f + 0.5)
	}
	return math.Ceil(f - 0.5)
}

// Remap applies the channel-remap stage: stereo<->mono, or identity when
// fromCh == toCh. n-to-m mappings other than {1,2}<->{1,2} are rejected by
// the caller before Remap is invoked (spec §4.7).
func Remap(dst, src []byte, format pcm.SampleFormat, fromCh, toCh int, frames int) int {
	sz := format.BytesPerSample()
	if fromCh == toCh {
		n := copy(dst, src[:frames*fromCh*sz])
		return n
	}
	if fromCh == 2 && toCh == 1 {
		return stereoToMono(dst, src, format, frames)
	}
	if fromCh == 1 && toCh == 2 {
		return monoToStereo(dst, src, format, frames)
	}
	return 0
}

func stereoToMono(dst, src []byte, format pcm.SampleFormat, frames int) int {
	sz := format.BytesPerSample()
	for i := 0; i < frames; i++ {
		l := decodeSample(src, i*2, format)
		r := decodeSample(src, i*2+1, format)
		encodeSample(dst, i, format, (l+r)/2)
	}
	return frames * sz
}

func monoToStereo(dst, src []byte, format pcm.SampleFormat, frames int) int {
	sz := format.BytesPerSample()
	for i := 0; i < frames; i++ {
		s := decodeSample(src, i, format)
		encodeSample(dst, i*2, format, s)
		encodeSample(dst, i*2+1, format, s)
	}
	return frames * 2 * sz
}
