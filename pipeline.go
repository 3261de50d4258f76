package proctap

import (
	"encoding/binary"
	"math"

	"proctap/convert"
	"proctap/pcm"
	"proctap/resample"
)

// pipeline implements spec §4.7's three-stage conversion: sample-format
// convert → channel remap → resample. The remap and resample stages are
// skipped when their input and output match; the sample-format stage always
// goes through a float32 intermediate. If the whole pipeline would be the
// identity, convert returns the input slice unchanged (zero copies).
type pipeline struct {
	from pcm.Format
	to   pcm.Format
	rs   resample.Backend
}

func newPipeline(from, to pcm.Format, quality pcm.ResampleQuality) *pipeline {
	p := &pipeline{from: from, to: to}
	if from.SampleRate != to.SampleRate {
		p.rs = resample.Select(quality)
	}
	return p
}

func (p *pipeline) isIdentity() bool { return p.from.Equal(p.to) }

// convert runs src (frameCount frames in p.from's format) through the
// pipeline and returns the resulting bytes and frame count in p.to's
// format.
func (p *pipeline) convert(src []byte, frameCount int) ([]byte, int) {
	if p.isIdentity() {
		return src, frameCount
	}

	// Stage 1: sample-format convert to float32, still at native channels.
	floatBytes := make([]byte, frameCount*p.from.Channels*4)
	convert.Sample(floatBytes, src, p.from.SampleFormat, pcm.SampleFormatFloat32)

	// Stage 2: channel remap, still at native rate.
	remapped := floatBytes
	if p.from.Channels != p.to.Channels {
		remapped = make([]byte, frameCount*p.to.Channels*4)
		convert.Remap(remapped, floatBytes, pcm.SampleFormatFloat32, p.from.Channels, p.to.Channels, frameCount)
	}

	// Stage 3: resample, operating on []float32.
	outFrames := frameCount
	outFloats := bytesToFloat32(remapped)
	if p.rs != nil {
		outFloats = p.rs.Resample(outFloats, p.to.Channels, p.from.SampleRate, p.to.SampleRate)
		outFrames = len(outFloats) / p.to.Channels
	}

	// Stage 1 again, float32 -> target sample format.
	out := make([]byte, outFrames*p.to.Channels*p.to.SampleFormat.BytesPerSample())
	convert.Sample(out, float32ToBytes(outFloats), pcm.SampleFormatFloat32, p.to.SampleFormat)
	return out, outFrames
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func float32ToBytes(f []float32) []byte {
	out := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
