package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const frameSize = 4 // e.g. int16 stereo

func frame(n byte) []byte {
	return []byte{n, n, n, n}
}

func TestReadAvailable_EmptyReturnsZero(t *testing.T) {
	b := New(64, frameSize)
	dst := make([]byte, 16)
	assert.Equal(t, 0, b.ReadAvailable(dst))
}

func TestWriteThenRead_RoundTrips(t *testing.T) {
	b := New(64, frameSize)
	b.Write(frame(1))
	b.Write(frame(2))

	dst := make([]byte, 64)
	n := b.ReadAvailable(dst)
	require.Equal(t, 8, n)
	assert.Equal(t, append(frame(1), frame(2)...), dst[:n])
	assert.Zero(t, b.Dropped())
}

func TestReadAvailable_NeverSplitsAFrame(t *testing.T) {
	b := New(16, frameSize) // capacity = 4 frames
	for i := byte(0); i < 4; i++ {
		b.Write(frame(i))
	}
	dst := make([]byte, 6) // not a multiple of frameSize
	n := b.ReadAvailable(dst)
	assert.Equal(t, frameSize, n, "a 6-byte destination receives one whole frame, never a partial one")
}

func TestOverflow_DropsWholeFramesAndIncrementsCounter(t *testing.T) {
	b := New(16, frameSize) // capacity = 4 frames
	for i := byte(0); i < 4; i++ {
		b.Write(frame(i))
	}
	assert.Zero(t, b.Dropped())

	// Fifth frame must evict exactly one whole frame (the oldest).
	b.Write(frame(9))
	assert.Equal(t, uint64(1), b.Dropped())

	dst := make([]byte, 16)
	n := b.ReadAvailable(dst)
	require.Equal(t, 16, n)
	// The oldest surviving frame is "1", not "0".
	assert.Equal(t, frame(1), dst[0:4])
	assert.Equal(t, frame(9), dst[12:16])
}

func TestWrite_SingleWriteLargerThanCapacity(t *testing.T) {
	b := New(8, frameSize) // capacity = 2 frames
	big := append(append(append(frame(1), frame(2)...), frame(3)...), frame(4)...)
	b.Write(big)
	assert.Equal(t, uint64(2), b.Dropped())

	dst := make([]byte, 8)
	n := b.ReadAvailable(dst)
	require.Equal(t, 8, n)
	assert.Equal(t, frame(3), dst[0:4])
	assert.Equal(t, frame(4), dst[4:8])
}

func TestWait_ReturnsTrueOnData(t *testing.T) {
	b := New(64, frameSize)
	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Write(frame(7))
	}()
	assert.True(t, b.Wait(500*time.Millisecond))
}

func TestWait_TimesOutWhenEmpty(t *testing.T) {
	b := New(64, frameSize)
	start := time.Now()
	ok := b.Wait(20 * time.Millisecond)
	assert.False(t, ok)
	assert.WithinDuration(t, start.Add(20*time.Millisecond), time.Now(), 200*time.Millisecond)
}

func TestWait_ZeroTimeoutReturnsImmediately(t *testing.T) {
	b := New(64, frameSize)
	start := time.Now()
	ok := b.Wait(0)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestStop_WakesWaiters(t *testing.T) {
	b := New(64, frameSize)
	done := make(chan bool, 1)
	go func() { done <- b.Wait(2 * time.Second) }()
	time.Sleep(5 * time.Millisecond)
	b.Stop()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Stop did not wake waiter")
	}
}

// TestConservation is the property from spec §8: bytes written == bytes
// delivered + dropped*frameSize + residual still queued, for an arbitrary
// sequence of writes and partial reads.
func TestConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fsz := rapid.SampledFrom([]int{2, 4, 8}).Draw(rt, "frameSize")
		capFrames := rapid.IntRange(1, 32).Draw(rt, "capFrames")
		b := New(capFrames*fsz, fsz)

		var written, delivered uint64
		ops := rapid.IntRange(1, 40).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(rt, "doWrite") {
				frames := rapid.IntRange(1, 6).Draw(rt, "writeFrames")
				p := make([]byte, frames*fsz)
				for j := range p {
					p[j] = byte(i)
				}
				b.Write(p)
				written += uint64(len(p))
			} else {
				maxFrames := rapid.IntRange(1, 6).Draw(rt, "readFrames")
				dst := make([]byte, maxFrames*fsz)
				delivered += uint64(b.ReadAvailable(dst))
			}
		}

		residual := uint64(b.Available())
		droppedBytes := b.Dropped() * uint64(fsz)
		assert.Equal(rt, written, delivered+droppedBytes+residual)
	})
}
