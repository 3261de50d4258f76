//go:build windows

package backend

import (
	"sync"
	"syscall"
	"unsafe"

	"proctap/procerr"
)

// activationCompletionHandler is a minimal IActivateAudioInterfaceCompletionHandler
// implementation: a 4-slot vtable (IUnknown's three plus ActivateCompleted)
// backed by Go callbacks via syscall.NewCallback, matching how the donor
// pack's Windows examples bridge COM callbacks without cgo.
type activationCompletionHandler struct {
	vtbl       *activationHandlerVtbl
	audioClock *uintptr
	signal     syscall.Handle
	lastHR     int32

	// box is the boxed COM "this" object whose address is the map key
	// below. mmdevapi only ever sees that raw address, so nothing keeps
	// the allocation reachable to the Go GC except this field.
	box *comThis
}

type activationHandlerVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	activateCompleted uintptr
}

// comThis is the COM "this" pointer shape: its first word must be the
// vtable pointer.
type comThis struct {
	vtbl *activationHandlerVtbl
}

var (
	handlersMu sync.Mutex
	handlers   = map[uintptr]*activationCompletionHandler{}

	activationVtblOnce sync.Once
	sharedVtbl         activationHandlerVtbl
)

func newActivationCompletionHandler(audioClientOut *uintptr, signal syscall.Handle) uintptr {
	activationVtblOnce.Do(func() {
		sharedVtbl = activationHandlerVtbl{
			queryInterface:    syscall.NewCallback(handlerQueryInterface),
			addRef:            syscall.NewCallback(handlerAddRef),
			release:           syscall.NewCallback(handlerRelease),
			activateCompleted: syscall.NewCallback(handlerActivateCompleted),
		}
	})

	box := &comThis{vtbl: &sharedVtbl}
	h := &activationCompletionHandler{vtbl: &sharedVtbl, audioClock: audioClientOut, signal: signal, box: box}
	ptr := uintptr(unsafe.Pointer(box))

	handlersMu.Lock()
	handlers[ptr] = h
	handlersMu.Unlock()
	return ptr
}

func lookupHandler(this uintptr) *activationCompletionHandler {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	return handlers[this]
}

func handlerQueryInterface(this, riid, ppv uintptr) uintptr {
	*(*uintptr)(unsafe.Pointer(ppv)) = this
	return 0
}

func handlerAddRef(this uintptr) uintptr  { return 1 }
func handlerRelease(this uintptr) uintptr { return 1 }

// handlerActivateCompleted is invoked by mmdevapi on its own worker thread
// once ActivateAudioInterfaceAsync resolves. It fetches the activation
// result and IAudioClient pointer via IActivateAudioInterfaceAsyncOperation
// (vtable slots 3=GetActivateResult) and signals the waiting Activate call.
func handlerActivateCompleted(this, asyncOp uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	const getActivateResult = 3
	var hr int32
	var iface uintptr
	comCall(asyncOp, getActivateResult, uintptr(unsafe.Pointer(&hr)), uintptr(unsafe.Pointer(&iface)))
	h.lastHR = hr
	if hr >= 0 {
		*h.audioClock = iface
	}
	procSetEvent.Call(uintptr(h.signal))
	return 0
}

// classifyActivationFailure maps the completion handler's last HRESULT to
// spec §4.3's error taxonomy: access-denied to PermissionDenied, invalid
// process to TargetNotFound, anything else to BackendUnavailable.
func classifyActivationFailure(this uintptr) error {
	h := lookupHandler(this)
	if h == nil {
		return procerr.NewError(procerr.KindBackendUnavailable, "process-loopback activation failed")
	}
	switch uint32(h.lastHR) {
	case 0x80070005: // E_ACCESSDENIED
		return procerr.NewError(procerr.KindPermissionDenied, "access denied activating process-loopback capture")
	case 0x80070057: // E_INVALIDARG, commonly returned for a dead/invalid pid
		return procerr.NewError(procerr.KindTargetNotFound, "target process is not a valid loopback source")
	default:
		return procerr.NewError(procerr.KindBackendUnavailable, "process-loopback activation failed")
	}
}
