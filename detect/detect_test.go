package detect_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"proctap/detect"
)

func encodeFloat32(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func encodeInt16(vals []int16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestClassify_Float32Buffer(t *testing.T) {
	buf := encodeFloat32([]float32{0.1, -0.5, 0.9, -0.2})
	assert.Equal(t, detect.Float32, detect.Classify(buf))
}

func TestClassify_Int16Buffer(t *testing.T) {
	buf := encodeInt16([]int16{12000, -16000, 8000, -500})
	assert.Equal(t, detect.Int16, detect.Classify(buf))
}

func TestClassify_QuietBufferIsUnknown(t *testing.T) {
	buf := encodeInt16([]int16{1, -2, 3, -1})
	assert.Equal(t, detect.Unknown, detect.Classify(buf))
}

func TestClassify_TooShortIsUnknown(t *testing.T) {
	assert.Equal(t, detect.Unknown, detect.Classify([]byte{1}))
}

func TestGuess_SampleFormat(t *testing.T) {
	f, ok := detect.Float32.SampleFormat()
	assert.True(t, ok)
	assert.Equal(t, "float32", f.String())

	_, ok = detect.Unknown.SampleFormat()
	assert.False(t, ok)
}
