package resample

import "math"

// polyphaseBackend is a windowed-sinc FIR resampler with a Hamming window,
// used for the "best"/"medium" quality tiers when no dynamically loaded
// SINC library is available. Unlike a streaming resampler, it carries no
// history between calls: each Resample call is a single complete chunk
// (spec §4.7's end-of-input semantics), so the filter's edges are handled
// by zero-padding the chunk instead of stitching in samples from the
// previous call.
type polyphaseBackend struct {
	taps int
}

func newPolyphaseBackend(taps int) *polyphaseBackend {
	return &polyphaseBackend{taps: taps}
}

func (p *polyphaseBackend) Name() string { return "polyphase" }

func (p *polyphaseBackend) Resample(src []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 0 || len(src) == 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	ratio := float64(dstRate) / float64(srcRate)
	filter := designLowpass(p.taps, ratio)

	chans := deinterleave(src, channels)
	outChans := make([][]float32, channels)
	for c := range chans {
		outChans[c] = filterAndResample(chans[c], filter, ratio)
	}
	return interleave(outChans)
}

// designLowpass builds a normalized low-pass FIR filter of length taps,
// cutoff at the output Nyquist frequency when downsampling, or at the
// input Nyquist (no-op cutoff) when upsampling.
func designLowpass(taps int, ratio float64) []float64 {
	cutoff := 0.5
	if ratio < 1.0 {
		cutoff = ratio * 0.5
	}
	filter := make([]float64, taps)
	for i := 0; i < taps; i++ {
		n := float64(i) - float64(taps-1)/2.0
		if n == 0 {
			filter[i] = 2.0 * cutoff
		} else {
			sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
			window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(taps-1))
			filter[i] = sinc * window
		}
	}
	sum := 0.0
	for _, f := range filter {
		sum += f
	}
	if sum != 0 {
		for i := range filter {
			filter[i] /= sum
		}
	}
	return filter
}

// filterAndResample applies filter as a FIR low-pass at the source rate,
// then resamples the filtered signal to the target ratio via polyphase
// interpolation (one filtered sample computed per output frame, centered
// on the source sample at or before the corresponding fractional source
// position; there is no sub-sample interpolation). Samples outside
// [0, len(in)) read as zero, i.e. the chunk is implicitly zero-padded at
// both edges rather than stitched to neighboring chunks.
func filterAndResample(in []float32, filter []float64, ratio float64) []float32 {
	inputLen := len(in)
	outputLen := int(math.Round(float64(inputLen) * ratio))
	out := make([]float32, outputLen)
	half := len(filter) / 2
	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		sample := 0.0
		for j := 0; j < len(filter); j++ {
			idx := srcIdx - half + j
			if idx >= 0 && idx < inputLen {
				sample += float64(in[idx]) * filter[j]
			}
		}
		out[i] = float32(sample)
	}
	return out
}
