//go:build linux

package backend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"proctap/pcm"
	"proctap/procerr"
	"proctap/ring"
)

// linuxBackend implements spec §4.4's strategy chain: native PipeWire
// stream, then the pw-record subprocess, then PulseAudio null-sink +
// parec. The first strategy to activate wins; its name is exposed via
// Diagnostics for callers that care (spec §12), and the public contract
// never depends on which one ran.
type linuxBackend struct {
	target    pcm.Target
	requested *pcm.Format
	buf       *ring.Buffer
	log       Logger

	mu       sync.Mutex
	strategy string
	reasons  []string
	teardown func()
	stopped  atomic.Bool
}

func newLinuxBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return &linuxBackend{target: target, requested: requested, buf: buf, log: log}
}

func (b *linuxBackend) Supported() bool {
	return pipewireLoadable() || hasExecutable("pw-record") || hasExecutable("parec")
}

func (b *linuxBackend) Diagnostics() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := map[string]string{"strategy": b.strategy}
	for i, r := range b.reasons {
		d[fmt.Sprintf("failure.%d", i)] = r
	}
	return d
}

type linuxStrategy struct {
	name string
	try  func(b *linuxBackend) (pcm.Format, func(), error)
}

func (b *linuxBackend) Activate() (pcm.Format, error) {
	if b.target.Kind != pcm.TargetProcessID {
		return pcm.Format{}, procerr.NewError(procerr.KindInvalidTarget, "linux backend requires a process id target")
	}

	strategies := []linuxStrategy{
		{"pipewire-native", tryPipewireNative},
		{"pw-record", tryPwRecord},
		{"pulseaudio", tryPulseAudio},
	}

	var causes []error
	for _, s := range strategies {
		format, teardown, err := s.try(b)
		if err != nil {
			if b.log != nil {
				b.log.Debugf("linux backend: strategy %s failed: %v", s.name, err)
			}
			causes = append(causes, fmt.Errorf("%s: %w", s.name, err))
			b.mu.Lock()
			b.reasons = append(b.reasons, fmt.Sprintf("%s: %v", s.name, err))
			b.mu.Unlock()
			continue
		}
		b.mu.Lock()
		b.strategy = s.name
		b.teardown = teardown
		b.mu.Unlock()
		if b.log != nil {
			b.log.Infof("linux backend: activated via %s", s.name)
		}
		return format, nil
	}

	return pcm.Format{}, procerr.NewAggregateError(procerr.KindBackendUnavailable, "no linux capture strategy succeeded", causes...)
}

func (b *linuxBackend) Deactivate() {
	if b.stopped.Swap(true) {
		return
	}
	b.mu.Lock()
	teardown := b.teardown
	b.mu.Unlock()
	if teardown != nil {
		teardown()
	}
}
