//go:build (linux || darwin) && cgo

package resample

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>

typedef struct {
	float  *data_in;
	float  *data_out;
	long   input_frames;
	long   output_frames;
	long   input_frames_used;
	long   output_frames_gen;
	int    end_of_input;
	double src_ratio;
} proctap_src_data;

typedef int (*proctap_src_simple_fn)(proctap_src_data *, int, int);

static void *proctap_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static void *proctap_dlsym_src_simple(void *handle) {
	return dlsym(handle, "src_simple");
}

static int proctap_call_src_simple(void *fn, proctap_src_data *data, int type, int channels) {
	proctap_src_simple_fn f = (proctap_src_simple_fn)fn;
	return f(data, type, channels);
}
*/
import "C"

import "unsafe"

// loadSincLibrary attempts to dlopen libsamplerate and resolve src_simple.
// It tries LIBSAMPLERATE_PATH first, then the conventional names in
// candidateLibraryNames.
func loadSincLibrary() (sincSimpleFunc, bool) {
	var handle unsafe.Pointer

	if override, ok := libraryPath(); ok {
		handle = tryDlopen(override)
	}
	for i := 0; handle == nil && i < len(candidateLibraryNames); i++ {
		handle = tryDlopen(candidateLibraryNames[i])
	}
	if handle == nil {
		return nil, false
	}

	sym := C.proctap_dlsym_src_simple(handle)
	if sym == nil {
		return nil, false
	}

	return func(data *srcData, converterType, channels int) int {
		cData := C.proctap_src_data{
			data_in:       (*C.float)(unsafe.Pointer(&data.dataIn[0])),
			data_out:      (*C.float)(unsafe.Pointer(&data.dataOut[0])),
			input_frames:  C.long(data.inputFrames),
			output_frames: C.long(data.outputFrames),
			end_of_input:  C.int(data.endOfInput),
			src_ratio:     C.double(data.srcRatio),
		}
		rc := int(C.proctap_call_src_simple(sym, &cData, C.int(converterType), C.int(channels)))
		data.inputFramesUsed = int(cData.input_frames_used)
		data.outputFramesGen = int(cData.output_frames_gen)
		return rc
	}, true
}

func tryDlopen(path string) unsafe.Pointer {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	return C.proctap_dlopen(cPath)
}
