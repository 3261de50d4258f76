package resample

import (
	"os"
	"sync"

	"proctap/pcm"
)

// sincOnce gates the single attempt to dynamically load libsamplerate for
// the lifetime of the process (spec §9): if it fails, every subsequent
// Select call falls back to the built-in backends without retrying.
var (
	sincOnce      sync.Once
	sincCall      sincSimpleFunc
	sincAvailable bool
)

// sincBackendFor returns a Backend backed by the dynamically loaded
// libsamplerate, or ok=false if the library could not be loaded.
func sincBackendFor(quality pcm.ResampleQuality) (Backend, bool) {
	sincOnce.Do(func() {
		sincCall, sincAvailable = loadSincLibrary()
	})
	if !sincAvailable {
		return nil, false
	}
	return &sincBackend{quality: quality, call: sincCall}, true
}

// libsamplerate converter types (src_simple's SRC_TYPE enum), used as the
// mode argument to the C src_simple call. Values match libsamplerate's
// public header.
const (
	srcSincBestQuality   = 0
	srcSincMediumQuality = 1
	srcSincFastest       = 2
	srcLinear            = 4
)

// candidateLibraryNames lists conventional install locations/names for
// libsamplerate, tried in order when LIBSAMPLERATE_PATH is unset.
var candidateLibraryNames = []string{
	"libsamplerate.so.0",
	"libsamplerate.so",
	"libsamplerate.0.dylib",
	"libsamplerate.dylib",
	"libsamplerate-0.dll",
	"samplerate.dll",
}

// libraryPath returns the path to try loading first: the LIBSAMPLERATE_PATH
// override if set, else the platform's conventional names are tried by the
// loader in order (see loadSincLibrary in sinc_cgo.go / sinc_windows.go).
func libraryPath() (string, bool) {
	if p := os.Getenv("LIBSAMPLERATE_PATH"); p != "" {
		return p, true
	}
	return "", false
}

// converterTypeFor maps a resample quality hint to a libsamplerate
// converter mode per spec §4.7.
func converterTypeFor(quality pcm.ResampleQuality) int {
	switch quality {
	case pcm.ResampleFast:
		return srcSincFastest
	case pcm.ResampleMedium:
		return srcSincMediumQuality
	default:
		return srcSincBestQuality
	}
}

// sincBackend wraps the dynamically loaded src_simple entry point.
type sincBackend struct {
	quality pcm.ResampleQuality
	call    sincSimpleFunc
}

// sincSimpleFunc matches libsamplerate's src_simple(SRC_DATA*, int type,
// int channels) int ABI, adapted to Go slices by the platform-specific
// loader.
type sincSimpleFunc func(data *srcData, converterType, channels int) int

// srcData mirrors libsamplerate's SRC_DATA struct layout for the cgo/
// syscall marshaling in sinc_cgo.go and sinc_windows.go.
type srcData struct {
	dataIn          []float32
	dataOut         []float32
	inputFrames     int
	outputFrames    int
	inputFramesUsed int
	outputFramesGen int
	endOfInput      int
	srcRatio        float64
}

func (b *sincBackend) Name() string { return "sinc:" + b.quality.String() }

func (b *sincBackend) Resample(src []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 0 || len(src) == 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}
	ratio := float64(dstRate) / float64(srcRate)
	srcFrames := len(src) / channels
	dstFrames := ExpectedFrames(srcFrames, srcRate, dstRate)
	out := make([]float32, dstFrames*channels)

	data := &srcData{
		dataIn:       src,
		dataOut:      out,
		inputFrames:  srcFrames,
		outputFrames: dstFrames,
		endOfInput:   1,
		srcRatio:     ratio,
	}
	if b.call(data, converterTypeFor(b.quality), channels) != 0 {
		// Library reported an error converting this chunk; the caller
		// degrades by falling back to a built-in backend up front
		// (sincBackendFor only returns ok=true once loading succeeds),
		// so a runtime failure here yields silence rather than a panic.
		return make([]float32, dstFrames*channels)
	}
	if data.outputFramesGen < dstFrames {
		out = out[:data.outputFramesGen*channels]
	}
	return out
}
