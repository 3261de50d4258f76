//go:build windows

package backend

import (
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"proctap/pcm"
	"proctap/procerr"
	"proctap/ring"
)

// WASAPI constants used by the process-loopback path (spec §4.3).
const (
	audclntShareModeShared = 0
	audclntStreamflagsEventCallback   = 0x00040000
	audclntStreamflagsLoopback        = 0x00020000
	audclntStreamflagsSrcDefaultQuality = 0x08000000

	// AUDIOCLIENT_ACTIVATION_TYPE_PROCESS_LOOPBACK
	activationTypeProcessLoopback = 1
	// PROCESS_LOOPBACK_MODE_INCLUDE_TARGET_PROCESS_TREE
	loopbackModeIncludeTree = 0

	waveFormatIEEEFloat  = 0x0003
	waveFormatPCM        = 0x0001
	waveFormatExtensible = 0xFFFE

	// IAudioClient vtable indices (after IUnknown's 3 slots).
	audioClientInitialize    = 3
	audioClientGetBufferSize = 4
	audioClientGetMixFormat  = 8
	audioClientSetEventHandle = 13
	audioClientGetService    = 14
	audioClientStart         = 10
	audioClientStop          = 11

	// IAudioCaptureClient vtable indices.
	captureClientGetBuffer     = 3
	captureClientReleaseBuffer = 4
	captureClientGetNextPacketSize = 5

	bufferFlagsSilent = 0x2
)

var iidIAudioClient = comGUID{0x1CB9AD4C, 0xDBFA, 0x4c32, [8]byte{0xB1, 0x78, 0xC2, 0xF5, 0x68, 0xA7, 0x03, 0xB2}}
var iidIAudioCaptureClient = comGUID{0xC8ADBD64, 0xE71E, 0x48a0, [8]byte{0xA4, 0xDE, 0x18, 0x5C, 0x39, 0x5C, 0xD3, 0x17}}

// waveFormatExtensibleStruct is the WAVEFORMATEXTENSIBLE layout: the plain
// WAVEFORMATEX header plus the extension fields mmdevapi always returns
// for GetMixFormat on modern drivers.
type waveFormatExtensibleStruct struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
	ValidBitsPerSample uint16
	ChannelMask    uint32
	SubFormat      comGUID
}

// audioClientActivationParams mirrors AUDIOCLIENT_PROCESS_LOOPBACK_PARAMS
// wrapped in AUDIOCLIENT_ACTIVATION_PARAMS, as required by
// ActivateAudioInterfaceAsync's pActivationParams argument for process
// loopback (spec §4.3 step 2).
type audioClientActivationParams struct {
	ActivationType uint32
	TargetPID      uint32
	LoopbackMode   uint32
}

type wasapiBackend struct {
	target    pcm.Target
	requested *pcm.Format
	buf       *ring.Buffer
	log       Logger

	mu            sync.Mutex
	audioClient   uintptr
	captureClient uintptr
	captureEvent  syscall.Handle
	stopRequested atomic.Bool
	done          chan struct{}
	native        pcm.Format
	lastErr       error
}

func newWasapiBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return &wasapiBackend{target: target, requested: requested, buf: buf, log: log, done: make(chan struct{})}
}

func (w *wasapiBackend) Supported() bool {
	// Process-loopback activation requires Windows 10 build 19041+; the
	// presence of ActivateAudioInterfaceAsync in mmdevapi.dll is a
	// reasonable proxy since it shipped alongside process-loopback support.
	return procActivateAudioAsync.Find() == nil
}

func (w *wasapiBackend) Diagnostics() map[string]string { return nil }

// Activate implements spec §4.3's algorithm: MTA init, activation
// descriptor for process-loopback, async activation with a 5s timeout,
// format negotiation, and spawning the bridge/pump goroutine.
func (w *wasapiBackend) Activate() (pcm.Format, error) {
	runtime.LockOSThread()
	// COINIT_MULTITHREADED: WASAPI loopback activation is documented to
	// require an MTA, unlike most COM UI-thread usage.
	procCoInitializeEx.Call(0, 0x0)

	if w.target.Kind != pcm.TargetProcessID {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewError(procerr.KindInvalidTarget, "windows backend requires a process id target")
	}

	params := audioClientActivationParams{
		ActivationType: activationTypeProcessLoopback,
		TargetPID:      w.target.ProcessID,
		LoopbackMode:   loopbackModeIncludeTree,
	}

	completion, err := createEvent()
	if err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "create completion event", err)
	}
	defer procCloseHandle.Call(uintptr(completion))

	var audioClient uintptr
	handler := newActivationCompletionHandler(&audioClient, completion)

	// ActivateAudioInterfaceAsync(deviceInterfacePath, riid, activationParams, completionHandler, **activationOperation)
	virtualLoopbackDevice, _ := syscall.UTF16PtrFromString("VAD\\Process_Loopback")
	var activationOp uintptr
	r0, _, _ := procActivateAudioAsync.Call(
		uintptr(unsafe.Pointer(virtualLoopbackDevice)),
		uintptr(unsafe.Pointer(&iidIAudioClient)),
		uintptr(unsafe.Pointer(&params)),
		uintptr(handler),
		uintptr(unsafe.Pointer(&activationOp)),
	)
	if int32(r0) < 0 {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewError(procerr.KindBackendUnavailable, "ActivateAudioInterfaceAsync failed")
	}

	if !waitForSingleObject(completion, 5000) {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewError(procerr.KindBackendTimeout, "process-loopback activation did not complete within 5s")
	}
	if audioClient == 0 {
		runtime.UnlockOSThread()
		return pcm.Format{}, classifyActivationFailure(handler)
	}
	w.audioClient = audioClient

	// Preferred format: 48kHz/2ch/float32. WASAPI loopback may substitute;
	// GetMixFormat after Initialize is authoritative (spec §9's open
	// question on the substituted format).
	preferred := &waveFormatExtensibleStruct{
		FormatTag:      waveFormatIEEEFloat,
		Channels:       2,
		SamplesPerSec:  48000,
		BitsPerSample:  32,
		BlockAlign:     8,
		AvgBytesPerSec: 48000 * 8,
	}

	// Cross-process selection already happened above: the IAudioClient we
	// hold was activated against the VAD\Process_Loopback virtual device
	// with AUDIOCLIENT_ACTIVATION_PARAMS targeting w.target.ProcessID, so
	// there is no separate "cross-process" Initialize flag to pass here —
	// EventCallback|Loopback is the complete flag set for this client.
	bufferDuration := int64(20 * 10000) // 20ms in 100ns units
	_, err = comCall(audioClient, audioClientInitialize,
		uintptr(audclntShareModeShared),
		uintptr(audclntStreamflagsEventCallback|audclntStreamflagsLoopback),
		uintptr(bufferDuration),
		0,
		uintptr(unsafe.Pointer(preferred)),
		0,
	)
	if err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "IAudioClient::Initialize", err)
	}

	var mixFormatPtr uintptr
	if _, err := comCall(audioClient, audioClientGetMixFormat, uintptr(unsafe.Pointer(&mixFormatPtr))); err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "GetMixFormat", err)
	}
	mix := *(*waveFormatExtensibleStruct)(unsafe.Pointer(mixFormatPtr))
	procCoTaskMemFree.Call(mixFormatPtr)

	native := pcm.Format{
		SampleRate: int(mix.SamplesPerSec),
		Channels:   int(mix.Channels),
	}
	switch {
	case mix.FormatTag == waveFormatIEEEFloat, mix.BitsPerSample == 32 && mix.FormatTag == waveFormatExtensible:
		native.SampleFormat = pcm.SampleFormatFloat32
	case mix.BitsPerSample == 16:
		native.SampleFormat = pcm.SampleFormatInt16
	default:
		native.SampleFormat = pcm.SampleFormatInt16
	}
	w.native = native

	captureEvent, err := createEvent()
	if err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "create capture event", err)
	}
	w.captureEvent = captureEvent
	if _, err := comCall(audioClient, audioClientSetEventHandle, uintptr(captureEvent)); err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "SetEventHandle", err)
	}

	var captureClient uintptr
	if _, err := comCall(audioClient, audioClientGetService, uintptr(unsafe.Pointer(&iidIAudioCaptureClient)), uintptr(unsafe.Pointer(&captureClient))); err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "GetService IAudioCaptureClient", err)
	}
	w.captureClient = captureClient

	if _, err := comCall(audioClient, audioClientStart); err != nil {
		runtime.UnlockOSThread()
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "IAudioClient::Start", err)
	}

	go w.pump()
	// The pump goroutine owns the COM apartment for this thread from here;
	// the caller's thread releases its lock once Activate returns.
	runtime.UnlockOSThread()
	return native, nil
}

// pump implements spec §4.3 step 7: wait on the capture event (100ms
// timeout), drain available packets into the ring, silencing buffers
// flagged AUDCLNT_BUFFERFLAGS_SILENT, until stop is requested.
func (w *wasapiBackend) pump() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	procCoInitializeEx.Call(0, 0x0)

	frameSize := uint32(w.native.FrameSize())
	for !w.stopRequested.Load() {
		if !waitForSingleObject(w.captureEvent, 100) {
			continue
		}
		for {
			var packetFrames uint32
			if _, err := comCall(w.captureClient, captureClientGetNextPacketSize, uintptr(unsafe.Pointer(&packetFrames))); err != nil {
				w.lastErr = procerr.NewAggregateError(procerr.KindBackendLost, "GetNextPacketSize", err)
				close(w.done)
				return
			}
			if packetFrames == 0 {
				break
			}
			var dataPtr uintptr
			var numFrames uint32
			var flags uint32
			if _, err := comCall(w.captureClient, captureClientGetBuffer,
				uintptr(unsafe.Pointer(&dataPtr)),
				uintptr(unsafe.Pointer(&numFrames)),
				uintptr(unsafe.Pointer(&flags)),
				0, 0,
			); err != nil {
				w.lastErr = procerr.NewAggregateError(procerr.KindBackendLost, "GetBuffer", err)
				close(w.done)
				return
			}

			n := int(numFrames * frameSize)
			if flags&bufferFlagsSilent != 0 || dataPtr == 0 {
				zeros := make([]byte, n)
				w.buf.Write(zeros)
			} else {
				bytes := unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), n)
				w.buf.Write(bytes)
			}

			comCall(w.captureClient, captureClientReleaseBuffer, uintptr(numFrames))
		}
	}
	close(w.done)
}

func (w *wasapiBackend) Deactivate() {
	if w.stopRequested.Swap(true) {
		return
	}
	if w.audioClient != 0 {
		comCall(w.audioClient, audioClientStop)
	}
	select {
	case <-w.done:
	case <-time.After(500 * time.Millisecond):
		if w.log != nil {
			w.log.Warnf("wasapi: pump thread did not join within teardown deadline")
		}
	}
}
