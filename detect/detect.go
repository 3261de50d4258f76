// Package detect implements the advisory format-sniffing helper from
// spec §4.7: given a buffer of unknown PCM encoding, guess whether it looks
// like int16 or float32 samples. It is never used on the data path — only
// to annotate a diagnostic when a backend's negotiated format disagrees
// with what a caller expected.
package detect

import (
	"encoding/binary"
	"math"

	"proctap/pcm"
)

// Guess is the outcome of sniffing a buffer: the best-guess sample format,
// or Unknown if neither interpretation looks plausible.
type Guess int

const (
	Unknown Guess = iota
	Int16
	Float32
)

func (g Guess) String() string {
	switch g {
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

const (
	floatPlausibleMax = 10.0
	intPlausibleMin   = 100
)

// Classify inspects buf, interpreted first as little-endian float32 and
// then as little-endian int16, and returns which interpretation looks
// plausible as real audio. A float32 interpretation is accepted when none
// of the samples are NaN/Inf and the maximum absolute value is at most 10
// (real audio rarely exceeds [-1, 1] by more than a small headroom
// margin). An int16 interpretation is accepted when the maximum absolute
// value is at least 100 (silence or near-silence would read as plausible
// float32 too, so this guards against classifying quiet int16 noise as
// float32). If both or neither look plausible, Classify prefers float32
// over int16 and falls back to Unknown only when neither does.
func Classify(buf []byte) Guess {
	if len(buf) >= 4 {
		if looksLikeFloat32(buf) {
			return Float32
		}
	}
	if len(buf) >= 2 {
		if looksLikeInt16(buf) {
			return Int16
		}
	}
	return Unknown
}

func looksLikeFloat32(buf []byte) bool {
	n := len(buf) / 4
	if n == 0 {
		return false
	}
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		v := math.Float32frombits(bits)
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		if a := math.Abs(f); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs <= floatPlausibleMax
}

func looksLikeInt16(buf []byte) bool {
	n := len(buf) / 2
	if n == 0 {
		return false
	}
	maxAbs := 0
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		a := int(v)
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs >= intPlausibleMin
}

// SampleFormat maps a Guess to the corresponding pcm.SampleFormat, with ok
// false for Unknown.
func (g Guess) SampleFormat() (pcm.SampleFormat, bool) {
	switch g {
	case Int16:
		return pcm.SampleFormatInt16, true
	case Float32:
		return pcm.SampleFormatFloat32, true
	default:
		return 0, false
	}
}
