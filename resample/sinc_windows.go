//go:build windows

package resample

import (
	"syscall"
	"unsafe"
)

// loadSincLibrary attempts to LoadLibrary libsamplerate and resolve
// src_simple via GetProcAddress, mirroring sinc_cgo.go's dlopen/dlsym
// approach for the unix builds.
func loadSincLibrary() (sincSimpleFunc, bool) {
	var handle syscall.Handle
	var err error

	if override, ok := libraryPath(); ok {
		handle, err = syscall.LoadLibrary(override)
	}
	for i := 0; handle == 0 && i < len(candidateLibraryNames); i++ {
		handle, err = syscall.LoadLibrary(candidateLibraryNames[i])
	}
	if handle == 0 || err != nil {
		return nil, false
	}

	proc, err := syscall.GetProcAddress(handle, "src_simple")
	if err != nil || proc == 0 {
		return nil, false
	}

	return func(data *srcData, converterType, channels int) int {
		cData := winSrcData{
			dataIn:          uintptr(unsafe.Pointer(&data.dataIn[0])),
			dataOut:         uintptr(unsafe.Pointer(&data.dataOut[0])),
			inputFrames:     int32(data.inputFrames),
			outputFrames:    int32(data.outputFrames),
			inputFramesUsed: 0,
			outputFramesGen: 0,
			endOfInput:      int32(data.endOfInput),
			srcRatio:        data.srcRatio,
		}
		r0, _, _ := syscall.SyscallN(proc,
			uintptr(unsafe.Pointer(&cData)),
			uintptr(converterType),
			uintptr(channels),
		)
		data.inputFramesUsed = int(cData.inputFramesUsed)
		data.outputFramesGen = int(cData.outputFramesGen)
		return int(r0)
	}, true
}

// winSrcData mirrors libsamplerate's SRC_DATA layout for the raw syscall
// marshaling above; field order and widths must match the C struct (C long
// is 32 bits on Windows).
type winSrcData struct {
	dataIn          uintptr
	dataOut         uintptr
	inputFrames     int32
	outputFrames    int32
	inputFramesUsed int32
	outputFramesGen int32
	endOfInput      int32
	_               int32 // padding to align the following float64
	srcRatio        float64
}
