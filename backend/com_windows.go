//go:build windows

package backend

import (
	"fmt"
	"syscall"
	"unsafe"
)

// comGUID mirrors a Win32 GUID for passing interface/class identifiers by
// pointer in raw syscalls (no cgo, following the donor pack's
// syscall-only COM style for WASAPI access).
type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

var (
	modole32     = syscall.NewLazyDLL("ole32.dll")
	modmmdevapi  = syscall.NewLazyDLL("mmdevapi.dll")
	modkernel32  = syscall.NewLazyDLL("kernel32.dll")

	procCoInitializeEx        = modole32.NewProc("CoInitializeEx")
	procCoCreateInstance      = modole32.NewProc("CoCreateInstance")
	procCoTaskMemFree         = modole32.NewProc("CoTaskMemFree")
	procActivateAudioAsync    = modmmdevapi.NewProc("ActivateAudioInterfaceAsync")
	procCreateEventW          = modkernel32.NewProc("CreateEventW")
	procWaitForSingleObject   = modkernel32.NewProc("WaitForSingleObject")
	procCloseHandle           = modkernel32.NewProc("CloseHandle")
	procSetEvent              = modkernel32.NewProc("SetEvent")
)

// comCall invokes the method at vtable slot idx on a COM object whose
// pointer is obj, passing args after the implicit this pointer. It matches
// the calling convention Windows COM uses for all the interfaces this
// backend touches (IAudioClient, IAudioCaptureClient, ...).
func comCall(obj uintptr, idx int, args ...uintptr) (uintptr, error) {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(vtbl)))
	all := append([]uintptr{obj}, args...)
	r0, _, _ := syscall.SyscallN(fn, all...)
	if int32(r0) < 0 {
		return r0, fmt.Errorf("HRESULT 0x%08X", uint32(r0))
	}
	return r0, nil
}

func createEvent() (syscall.Handle, error) {
	r0, _, err := procCreateEventW.Call(0, 0, 0, 0)
	if r0 == 0 {
		return 0, err
	}
	return syscall.Handle(r0), nil
}

// waitForSingleObject returns true if the object was signaled before
// timeoutMs elapsed (0xFFFFFFFF for infinite).
func waitForSingleObject(h syscall.Handle, timeoutMs uint32) bool {
	r0, _, _ := procWaitForSingleObject.Call(uintptr(h), uintptr(timeoutMs))
	return r0 == 0 // WAIT_OBJECT_0
}
