//go:build !windows && !linux && !darwin

package backend

import (
	"proctap/pcm"
	"proctap/ring"
)

func newPlatformBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return &unsupportedBackend{}
}

// unsupportedBackend satisfies the Backend interface on platforms with no
// native audio subsystem wired in. Activate always returns UnsupportedOS.
type unsupportedBackend struct{}

func (unsupportedBackend) Activate() (pcm.Format, error)   { return pcm.Format{}, errUnsupportedOS }
func (unsupportedBackend) Deactivate()                     {}
func (unsupportedBackend) Supported() bool                 { return false }
func (unsupportedBackend) Diagnostics() map[string]string  { return nil }
