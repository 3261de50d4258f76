package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"proctap/pcm"
)

func int16Bytes(vals ...int16) []byte {
	b := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func float32Bytes(vals ...float32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestSample_BypassWhenFormatsMatch(t *testing.T) {
	src := int16Bytes(1, 2, 3)
	dst := make([]byte, len(src))
	n := Sample(dst, src, pcm.SampleFormatInt16, pcm.SampleFormatInt16)
	require.Equal(t, len(src), n)
	assert.Equal(t, src, dst[:n])
}

func TestSample_Int16ToFloat32_MidScale(t *testing.T) {
	src := int16Bytes(16384, -16384, 0)
	dst := make([]byte, 3*4)
	n := Sample(dst, src, pcm.SampleFormatInt16, pcm.SampleFormatFloat32)
	require.Equal(t, 12, n)

	got := math.Float32frombits(binary.LittleEndian.Uint32(dst[0:4]))
	assert.InDelta(t, 0.5, got, 0.001)
	got = math.Float32frombits(binary.LittleEndian.Uint32(dst[4:8]))
	assert.InDelta(t, -0.5, got, 0.001)
}

// TestRoundTrip_Int16ToFloat32ToInt16 is spec §8's round-trip identity law
// over [-32767, 32767].
func TestRoundTrip_Int16ToFloat32ToInt16(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := int16(rapid.IntRange(-32767, 32767).Draw(rt, "v"))
		src := int16Bytes(v)
		mid := make([]byte, 4)
		Sample(mid, src, pcm.SampleFormatInt16, pcm.SampleFormatFloat32)
		back := make([]byte, 2)
		Sample(back, mid, pcm.SampleFormatFloat32, pcm.SampleFormatInt16)
		got := int16(binary.LittleEndian.Uint16(back))
		assert.Equal(rt, v, got)
	})
}

// TestRoundTrip_Float32ToInt16ToFloat32 is spec §8's companion law: error
// bounded by 1/32768 in amplitude over [-1, 1].
func TestRoundTrip_Float32ToInt16ToFloat32(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := float32(rapid.Float64Range(-1, 1).Draw(rt, "v"))
		src := float32Bytes(v)
		mid := make([]byte, 2)
		Sample(mid, src, pcm.SampleFormatFloat32, pcm.SampleFormatInt16)
		back := make([]byte, 4)
		Sample(back, mid, pcm.SampleFormatInt16, pcm.SampleFormatFloat32)
		got := math.Float32frombits(binary.LittleEndian.Uint32(back))
		assert.LessOrEqual(rt, math.Abs(float64(got-v)), 1.0/32768.0+1e-9)
	})
}

func TestSample_Float32ToInt16_ClampsOutOfRange(t *testing.T) {
	src := float32Bytes(2.0, -2.0)
	dst := make([]byte, 4)
	Sample(dst, src, pcm.SampleFormatFloat32, pcm.SampleFormatInt16)
	v0 := int16(binary.LittleEndian.Uint16(dst[0:2]))
	v1 := int16(binary.LittleEndian.Uint16(dst[2:4]))
	assert.Equal(t, int16(32767), v0)
	assert.Equal(t, int16(-32767), v1)
}

func TestRemap_StereoToMono_Averages(t *testing.T) {
	src := int16Bytes(100, 300, -100, 100)
	dst := make([]byte, 4)
	n := Remap(dst, src, pcm.SampleFormatInt16, 2, 1, 2)
	require.Equal(t, 4, n)
	assert.Equal(t, int16(200), int16(binary.LittleEndian.Uint16(dst[0:2])))
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(dst[2:4])))
}

func TestRemap_MonoToStereo_Duplicates(t *testing.T) {
	src := int16Bytes(500, -500)
	dst := make([]byte, 8)
	n := Remap(dst, src, pcm.SampleFormatInt16, 1, 2, 2)
	require.Equal(t, 8, n)
	assert.Equal(t, src[0:2], dst[0:2])
	assert.Equal(t, src[0:2], dst[2:4])
	assert.Equal(t, src[2:4], dst[4:6])
	assert.Equal(t, src[2:4], dst[6:8])
}

func TestRemap_Identity(t *testing.T) {
	src := int16Bytes(1, 2, 3, 4)
	dst := make([]byte, len(src))
	n := Remap(dst, src, pcm.SampleFormatInt16, 2, 2, 2)
	require.Equal(t, len(src), n)
	assert.Equal(t, src, dst)
}
