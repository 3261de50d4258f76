package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"proctap/pcm"
)

func sine(frames, channels, rate int, freq float64) []float32 {
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(rate)))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

func TestExpectedFrames_IdentityRatio(t *testing.T) {
	assert.Equal(t, 1000, ExpectedFrames(1000, 48000, 48000))
}

func TestExpectedFrames_Downsample(t *testing.T) {
	assert.Equal(t, 160, ExpectedFrames(480, 48000, 16000))
}

// TestLinear_IdentityRatioIsNoop is spec §8's resample identity law.
func TestLinear_IdentityRatioIsNoop(t *testing.T) {
	in := sine(100, 2, 48000, 440)
	b := linearBackend{}
	out := b.Resample(in, 2, 48000, 48000)
	require.Equal(t, len(in), len(out))
	assert.Equal(t, in, out)
}

// TestLinear_FrameCountWithinRatioLaw is spec §8's ±1 frame law.
func TestLinear_FrameCountWithinRatioLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		srcRate := rapid.SampledFrom([]int{8000, 16000, 44100, 48000}).Draw(rt, "srcRate")
		dstRate := rapid.SampledFrom([]int{8000, 16000, 22050, 48000}).Draw(rt, "dstRate")
		frames := rapid.IntRange(1, 2000).Draw(rt, "frames")
		in := sine(frames, 1, srcRate, 220)
		b := linearBackend{}
		out := b.Resample(in, 1, srcRate, dstRate)
		want := ExpectedFrames(frames, srcRate, dstRate)
		assert.InDelta(rt, want, len(out), 1)
	})
}

func TestPolyphase_IdentityRatioIsNoop(t *testing.T) {
	in := sine(100, 1, 48000, 440)
	b := newPolyphaseBackend(64)
	out := b.Resample(in, 1, 48000, 48000)
	require.Equal(t, len(in), len(out))
	assert.Equal(t, in, out)
}

func TestPolyphase_FrameCountWithinRatioLaw(t *testing.T) {
	b := newPolyphaseBackend(64)
	frames := 480
	out := b.Resample(sine(frames, 2, 48000, 440), 2, 48000, 16000)
	want := ExpectedFrames(frames, 48000, 16000) * 2
	assert.InDelta(t, want, len(out), 2)
}

func TestSelect_FastIsLinearWhenNoSincLibrary(t *testing.T) {
	if _, ok := sincBackendFor(pcm.ResampleFast); ok {
		t.Skip("libsamplerate is loadable in this environment")
	}
	b := Select(pcm.ResampleFast)
	assert.Equal(t, "linear", b.Name())
}

func TestSelect_BestIsPolyphaseWhenNoSincLibrary(t *testing.T) {
	if _, ok := sincBackendFor(pcm.ResampleBest); ok {
		t.Skip("libsamplerate is loadable in this environment")
	}
	b := Select(pcm.ResampleBest)
	assert.Equal(t, "polyphase", b.Name())
}

func TestDeinterleaveInterleave_RoundTrips(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	chans := deinterleave(src, 2)
	require.Len(t, chans, 2)
	assert.Equal(t, []float32{1, 3, 5}, chans[0])
	assert.Equal(t, []float32{2, 4, 6}, chans[1])
	assert.Equal(t, src, interleave(chans))
}
