package resample

// linearBackend implements straightforward linear interpolation. It is the
// "fast" quality tier: cheap, no ringing artifacts beyond the inherent
// imaging error of linear interpolation, and stateless between calls.
type linearBackend struct{}

func (linearBackend) Name() string { return "linear" }

func (linearBackend) Resample(src []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 0 || len(src) == 0 {
		return nil
	}
	srcFrames := len(src) / channels
	if srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	dstFrames := ExpectedFrames(srcFrames, srcRate, dstRate)
	out := make([]float32, dstFrames*channels)
	ratio := float64(srcFrames-1) / float64(maxInt(dstFrames-1, 1))
	if srcFrames < 2 {
		ratio = 0
	}
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * ratio
		i0 := int(pos)
		if i0 >= srcFrames-1 {
			i0 = srcFrames - 2
			if i0 < 0 {
				i0 = 0
			}
		}
		frac := float32(pos - float64(i0))
		i1 := i0 + 1
		if i1 >= srcFrames {
			i1 = srcFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := src[i0*channels+c]
			b := src[i1*channels+c]
			out[i*channels+c] = a + (b-a)*frac
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
