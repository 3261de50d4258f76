//go:build darwin

package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"proctap/pcm"
	"proctap/procerr"
	"proctap/ring"
)

// screenCaptureKitBackend implements spec §4.5: it does not call
// ScreenCaptureKit in-process (that API needs an Objective-C delegate and
// a privacy-prompt-owning bundle), so it spawns a helper subprocess that
// does, and reads the helper's raw PCM stdout into the ring.
type screenCaptureKitBackend struct {
	target    pcm.Target
	requested *pcm.Format
	buf       *ring.Buffer
	log       Logger

	cmd       *exec.Cmd
	stderrBuf bytes.Buffer
	stopped   atomic.Bool
	done      chan struct{}
	lastErr   error
}

func newScreenCaptureKitBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return &screenCaptureKitBackend{target: target, requested: requested, buf: buf, log: log, done: make(chan struct{})}
}

func (b *screenCaptureKitBackend) Supported() bool {
	major, _, _ := darwinVersion()
	return major >= 13
}

func (b *screenCaptureKitBackend) Diagnostics() map[string]string { return nil }

// Activate implements spec §4.5's algorithm end to end.
func (b *screenCaptureKitBackend) Activate() (pcm.Format, error) {
	major, _, _ := darwinVersion()
	if major < 13 {
		return pcm.Format{}, procerr.NewError(procerr.KindUnsupportedOS, "ScreenCaptureKit requires macOS 13+")
	}

	helperPath, err := locateHelper()
	if err != nil {
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "locate proctap helper", err)
	}

	bundleID := b.target.BundleID
	if b.target.Kind == pcm.TargetProcessID {
		bundleID, err = resolveBundleID(b.target.ProcessID)
		if err != nil {
			return pcm.Format{}, procerr.NewError(procerr.KindTargetNotFound, err.Error())
		}
	}
	if bundleID == "" {
		return pcm.Format{}, procerr.NewError(procerr.KindInvalidTarget, "no bundle id resolved for target")
	}

	format := pcm.Format{SampleRate: 48000, Channels: 2, SampleFormat: pcm.SampleFormatFloat32}
	if b.requested != nil {
		if b.requested.SampleRate != 0 {
			format.SampleRate = b.requested.SampleRate
		}
		if b.requested.Channels != 0 {
			format.Channels = b.requested.Channels
		}
		format.SampleFormat = b.requested.SampleFormat
	}

	args := []string{
		"--bundle-id", bundleID,
		"--sample-rate", strconv.Itoa(format.SampleRate),
		"--channels", strconv.Itoa(format.Channels),
		"--sample-format", sampleFormatFlag(format.SampleFormat),
	}
	cmd := exec.Command(helperPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "helper stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "helper stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "start helper", err)
	}
	b.cmd = cmd

	go b.drainStderr(stderr)
	go b.readLoop(stdout, format)

	return format, nil
}

func (b *screenCaptureKitBackend) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.stderrBuf.WriteString(scanner.Text())
		b.stderrBuf.WriteByte('\n')
		if b.log != nil {
			b.log.Debugf("macos helper: %s", scanner.Text())
		}
	}
}

// readLoop implements spec §4.5 step 5-6: frame-aligned reads from the
// helper's stdout into the ring. An unexpected exit stores a BackendLost
// error carrying the captured stderr in b.lastErr; nothing outside this
// backend reads that field, so the session's state does not change.
func (b *screenCaptureKitBackend) readLoop(stdout io.Reader, format pcm.Format) {
	defer close(b.done)
	frameSize := format.FrameSize()
	chunk := make([]byte, 4096*frameSize)
	r := bufio.NewReaderSize(stdout, 64*1024)
	var remainder []byte
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			data := chunk[:n]
			if len(remainder) > 0 {
				data = append(remainder, data...)
				remainder = nil
			}
			aligned := len(data) - len(data)%frameSize
			if aligned > 0 {
				b.buf.Write(data[:aligned])
			}
			if aligned < len(data) {
				remainder = append(remainder[:0], data[aligned:]...)
			}
		}
		if err != nil {
			if !b.stopped.Load() {
				b.lastErr = procerr.NewError(procerr.KindBackendLost, "helper exited: "+b.stderrBuf.String())
			}
			return
		}
	}
}

func (b *screenCaptureKitBackend) Deactivate() {
	if b.stopped.Swap(true) {
		return
	}
	if b.cmd != nil && b.cmd.Process != nil {
		b.cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-b.done:
	case <-time.After(500 * time.Millisecond):
		if b.cmd != nil && b.cmd.Process != nil {
			b.cmd.Process.Kill()
		}
	}
	if b.cmd != nil {
		b.cmd.Wait()
	}
}

// locateHelper resolves the bundled helper binary's path: the
// PROCTAP_MACOS_HELPER override first, otherwise a well-known path
// relative to the running executable.
func locateHelper() (string, error) {
	if p := os.Getenv("PROCTAP_MACOS_HELPER"); p != "" {
		return p, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	candidate := filepath.Join(filepath.Dir(exe), "proctap-helper")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("proctap-helper not found next to %s; set PROCTAP_MACOS_HELPER", exe)
}

func sampleFormatFlag(f pcm.SampleFormat) string {
	if f == pcm.SampleFormatFloat32 {
		return "float32"
	}
	return "int16"
}
