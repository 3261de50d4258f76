package proctap

import (
	"fmt"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"proctap/backend"
	"proctap/detect"
	"proctap/pcm"
	"proctap/procerr"
	"proctap/ring"
)

// State is a position in the capture façade's lifecycle (spec §4.1).
type State int

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback receives frames pushed by the dispatcher, already converted to
// the session's requested format. bytes is only valid for the duration of
// the call; it is not enqueued for Read/Stream (spec §4.1's dual-delivery
// contract).
type Callback func(bytes []byte, frameCount int)

// Config holds the knobs a caller may set at Open time. A zero Config
// requests the backend's native format and a 4 MiB ring.
type Config struct {
	// Requested, if non-nil, asks the façade to deliver chunks in this
	// format instead of the backend's native one; the façade resamples and
	// converts on the fly. Nil (the zero value) takes the native format.
	Requested *Format

	// ResampleQuality selects the resampler tier used when Requested's rate
	// differs from the native rate.
	ResampleQuality ResampleQuality

	// CapacityHint overrides the ring buffer's byte capacity (default 4 MiB).
	CapacityHint int

	// Callback, if non-nil, is installed at Open time (equivalent to an
	// immediate SetCallback).
	Callback Callback
}

const defaultCapacityHint = 4 << 20

// teardownDeadline bounds Stop/Close per spec §4.1/§5.
const teardownDeadline = 500 * time.Millisecond

// Session is a single per-process capture session (spec §4.1). The zero
// value is not usable; construct with Open.
type Session struct {
	id     string
	target pcm.Target
	cfg    Config
	log    *charmlog.Logger

	mu       sync.Mutex
	state    State
	lastErr  error
	backend  backend.Backend
	buf      *ring.Buffer
	native   pcm.Format
	pipeline *pipeline

	callbackMu sync.Mutex
	callback   Callback

	dispatcherDone  chan struct{}
	stopOnce        sync.Once
	formatCheckOnce sync.Once
	closed          bool
}

// checkFormat runs once per session: it classifies the first chunk of raw
// native bytes and logs at debug level if the guess disagrees with the
// format the backend announced at Activate (spec §4.7's format-detection
// helper, used only for this diagnostic, never on the data path).
func (s *Session) checkFormat(raw []byte, native pcm.Format) {
	s.formatCheckOnce.Do(func() {
		guess := detect.Classify(raw)
		want, ok := guess.SampleFormat()
		if ok && want != native.SampleFormat {
			s.log.Debugf("format mismatch: backend announced %s, first chunk looks like %s", native.SampleFormat, guess)
		}
	})
}

// Open validates target and constructs a Session in the Created state. No
// audio activity occurs until Start. On macOS, process-id targets are
// resolved to a bundle id lazily, inside Start's call to backend.Activate,
// per spec §4.5 (the façade itself only validates shape, not existence).
func Open(target Target, cfg Config) (*Session, error) {
	if !target.Valid() {
		return nil, procerr.NewError(procerr.KindInvalidTarget, fmt.Sprintf("target %s is not valid", target))
	}

	id := uuid.NewString()
	s := &Session{
		id:             id,
		target:         target,
		cfg:            cfg,
		log:            charmlog.Default().With("session", id, "target", target.String()),
		state:          StateCreated,
		dispatcherDone: make(chan struct{}),
	}
	if cfg.Callback != nil {
		s.callback = cfg.Callback
	}
	return s, nil
}

// ID returns the session's unique identifier, assigned at Open.
func (s *Session) ID() string { return s.id }

// requestedOrNative resolves the caller's Config into a concrete pcm.Format
// once the native format is known.
func (s *Session) requestedOrNative(native pcm.Format) pcm.Format {
	if s.cfg.Requested == nil {
		return native
	}
	req := *s.cfg.Requested
	if req.SampleRate == 0 {
		req.SampleRate = native.SampleRate
	}
	if req.Channels == 0 {
		req.Channels = native.Channels
	}
	return req
}

// Start initializes the backend, acquires OS resources, and spawns the
// dispatcher. Transitions Created → Starting → Running, or → Failed on any
// error in this path (the error is also returned synchronously).
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return procerr.NewError(procerr.KindSessionClosed, "session is closed")
	}
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return procerr.NewError(procerr.KindInternal, fmt.Sprintf("start called from state %s", state))
	}
	s.state = StateStarting
	s.mu.Unlock()

	// The ring is byte-granular (frameSize 1): the native frame size isn't
	// known until Activate returns it, and backends are required to push
	// only whole native frames per write, so alignment holds in practice
	// without the ring enforcing it itself.
	buf := ring.New(s.capacityHint(), 1)
	be := backend.New(s.target, s.requestedBackendFormat(), buf, backendLogger{s.log})

	native, err := be.Activate()
	if err != nil {
		s.mu.Lock()
		s.backend = be
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	requested := s.requestedOrNative(native)
	if native.Channels != requested.Channels &&
		(native.Channels < 1 || native.Channels > 2 || requested.Channels < 1 || requested.Channels > 2) {
		be.Deactivate()
		err := procerr.NewError(procerr.KindFormatUnsupported,
			fmt.Sprintf("no channel remap from %d to %d channels", native.Channels, requested.Channels))
		s.mu.Lock()
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.backend = be
	s.buf = buf
	s.native = native
	s.pipeline = newPipeline(native, requested, s.cfg.ResampleQuality)
	s.state = StateRunning
	s.mu.Unlock()

	s.log.Infof("session started: native=%s requested=%s", native, requested)

	go s.dispatch()
	return nil
}

func (s *Session) capacityHint() int {
	if s.cfg.CapacityHint > 0 {
		return s.cfg.CapacityHint
	}
	return defaultCapacityHint
}

func (s *Session) requestedBackendFormat() *pcm.Format {
	return s.cfg.Requested
}

// dispatch is the one-per-session worker described in spec §4.6. When a
// callback is registered it pulls target-size chunks, converts, and invokes
// the callback; otherwise it idles, leaving raw bytes in the ring for Read.
func (s *Session) dispatch() {
	defer close(s.dispatcherDone)

	const targetChunkMillis = 10
	for {
		s.mu.Lock()
		stopping := s.state == StateStopping || s.state == StateStopped || s.state == StateFailed
		native := s.native
		s.mu.Unlock()
		if stopping {
			s.drainOnce()
			return
		}

		cb := s.currentCallback()
		if cb == nil {
			// No one to push to; avoid busy-looping while still noticing
			// stop promptly. A ring Wait would return at once whenever
			// unread data is queued, so poll on a short sleep instead.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		chunkBytes := native.FrameSize() * native.SampleRate * targetChunkMillis / 1000
		if chunkBytes <= 0 {
			chunkBytes = native.FrameSize()
		}
		if !s.buf.Wait(100 * time.Millisecond) {
			continue
		}
		dest := make([]byte, chunkBytes)
		n := s.buf.ReadAvailable(dest)
		if n == 0 {
			continue
		}
		dest = dest[:n]
		frames := n / native.FrameSize()
		s.checkFormat(dest, native)
		s.invokeCallback(cb, dest, frames)
	}
}

func (s *Session) drainOnce() {
	dest := make([]byte, 64<<10)
	for {
		n := s.buf.ReadAvailable(dest)
		if n == 0 {
			return
		}
		if cb := s.currentCallback(); cb != nil {
			s.invokeCallback(cb, dest[:n], n/s.native.FrameSize())
		}
	}
}

func (s *Session) invokeCallback(cb Callback, raw []byte, frames int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("callback panicked: %v", r)
		}
	}()
	converted, convFrames := s.pipeline.convert(raw, frames)
	cb(converted, convFrames)
}

func (s *Session) currentCallback() Callback {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	return s.callback
}

// SetCallback atomically replaces the push callback (nil clears it). If the
// session is Running, the new callback takes effect at the next chunk
// boundary (spec §4.1).
func (s *Session) SetCallback(cb Callback) {
	s.callbackMu.Lock()
	s.callback = cb
	s.callbackMu.Unlock()
}

// IsRunning reports whether the session is in the Running state.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NativeFormat returns the format observed from the backend. Valid only
// while Running.
func (s *Session) NativeFormat() (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return Format{}, procerr.NewError(procerr.KindSessionStopped, fmt.Sprintf("native format unavailable in state %s", s.state))
	}
	return s.native, nil
}

// Read blocks up to timeout for at least one frame's worth of bytes.
// Returns (nil, nil) on timeout, a chunk otherwise. Returns SessionStopped
// if the session is no longer Running/Starting, and always returns (nil,
// nil) if a callback is currently registered (spec §4.1's dual-delivery
// contract: callback wins exclusively).
func (s *Session) Read(timeout time.Duration) (*Chunk, error) {
	s.mu.Lock()
	state := s.state
	closed := s.closed
	buf := s.buf
	native := s.native
	pl := s.pipeline
	s.mu.Unlock()

	if closed {
		return nil, procerr.NewError(procerr.KindSessionClosed, "session is closed")
	}
	if state != StateRunning && state != StateStarting {
		return nil, procerr.NewError(procerr.KindSessionStopped, fmt.Sprintf("session is %s", state))
	}
	if s.currentCallback() != nil {
		return nil, nil
	}

	if !buf.Wait(timeout) {
		return nil, nil
	}

	chunkBytes := native.FrameSize() * 4096
	dest := make([]byte, chunkBytes)
	n := buf.ReadAvailable(dest)
	if n == 0 {
		return nil, nil
	}
	frames := n / native.FrameSize()
	s.checkFormat(dest[:n], native)
	converted, convFrames := pl.convert(dest[:n], frames)
	return &Chunk{Bytes: converted, FrameCount: convFrames, Format: pl.to}, nil
}

// Stream returns a channel of Chunks that closes cleanly when the session
// stops. It is a lazy, finite, non-restartable sequence (spec §4.1, §9);
// cancelling the consumer (abandoning the channel) does not stop capture.
func (s *Session) Stream() <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for {
			chunk, err := s.Read(100 * time.Millisecond)
			if err != nil {
				return
			}
			if chunk == nil {
				s.mu.Lock()
				done := s.state != StateRunning && s.state != StateStarting
				s.mu.Unlock()
				if done {
					return
				}
				continue
			}
			out <- *chunk
		}
	}()
	return out
}

// Stop is idempotent. Transitions Running → Stopping → Stopped, signaling
// the worker to drain and exit and tearing down OS resources. Completes
// within teardownDeadline regardless of OS-side state.
func (s *Session) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.stopOnceImpl()
	})
	return err
}

func (s *Session) stopOnceImpl() error {
	s.mu.Lock()
	if s.state == StateCreated || s.state == StateStopped || s.state == StateFailed {
		prior := s.state
		if prior == StateCreated {
			s.state = StateStopped
		}
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	buf := s.buf
	be := s.backend
	s.mu.Unlock()

	if buf != nil {
		buf.Stop()
	}

	done := make(chan struct{})
	go func() {
		if be != nil {
			be.Deactivate()
		}
		<-s.dispatcherDone
		close(done)
	}()

	timedOut := false
	select {
	case <-done:
	case <-time.After(teardownDeadline):
		timedOut = true
		s.log.Warnf("teardown exceeded %s, forcing failed state", teardownDeadline)
	}

	s.mu.Lock()
	if timedOut {
		s.state = StateFailed
		s.lastErr = procerr.NewError(procerr.KindBackendLost, "teardown did not complete within deadline")
	} else {
		s.state = StateStopped
	}
	s.mu.Unlock()
	return nil
}

// Close calls Stop if necessary and releases all remaining resources.
// After Close, the session is unusable; further operations return
// SessionClosed. Idempotent.
func (s *Session) Close() error {
	_ = s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Diagnostics surfaces backend-specific debugging information (e.g. the
// Linux strategy chosen) without being part of the public contract.
func (s *Session) Diagnostics() map[string]string {
	s.mu.Lock()
	be := s.backend
	s.mu.Unlock()
	if be == nil {
		return nil
	}
	return be.Diagnostics()
}

// backendLogger adapts a *charmlog.Logger to backend.Logger.
type backendLogger struct{ l *charmlog.Logger }

func (b backendLogger) Debugf(format string, args ...any) { b.l.Debugf(format, args...) }
func (b backendLogger) Infof(format string, args ...any)  { b.l.Infof(format, args...) }
func (b backendLogger) Warnf(format string, args ...any)  { b.l.Warnf(format, args...) }
func (b backendLogger) Errorf(format string, args ...any) { b.l.Errorf(format, args...) }
