//go:build linux && cgo

package backend

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>

static void *proctap_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}
static void *proctap_dlsym(void *handle, const char *name) {
	return dlsym(handle, name);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"proctap/pcm"
)

var (
	pwOnce      sync.Once
	pwHandle    unsafe.Pointer
	pwAvailable bool
)

// pipewireCandidateNames lists conventional libpipewire install names,
// tried in order (no environment-variable override exists for this one;
// unlike the resampler, PipeWire's soname is effectively ABI-stable).
var pipewireCandidateNames = []string{
	"libpipewire-0.3.so.0",
	"libpipewire-0.3.so",
}

func loadPipewire() {
	for _, name := range pipewireCandidateNames {
		cName := C.CString(name)
		h := C.proctap_dlopen(cName)
		C.free(unsafe.Pointer(cName))
		if h != nil {
			pwHandle = h
			pwAvailable = true
			return
		}
	}
}

func pipewireLoadable() bool {
	pwOnce.Do(loadPipewire)
	return pwAvailable
}

// tryPipewireNative implements spec §4.4 strategy 1: a PipeWire thread
// loop with an input-direction stream connected to the node whose
// application.process.id matches the target, consuming buffers in the
// stream's on_process callback (spec §4.2's real-time, non-allocating
// contract — the callback only copies into the backend's ring, which is
// pre-sized at Construct time).
func tryPipewireNative(b *linuxBackend) (pcm.Format, func(), error) {
	if !pipewireLoadable() {
		return pcm.Format{}, nil, fmt.Errorf("libpipewire-0.3 not loadable")
	}

	nodeID, err := findPipewireNodeForPID(b.target.ProcessID)
	if err != nil {
		return pcm.Format{}, nil, err
	}

	pump := newPwStreamPump(nodeID, b.buf)
	format, err := pump.start()
	if err != nil {
		return pcm.Format{}, nil, err
	}
	return format, pump.stop, nil
}
