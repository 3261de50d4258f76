//go:build windows

package backend

import (
	"proctap/pcm"
	"proctap/ring"
)

func newPlatformBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return newWasapiBackend(target, requested, buf, log)
}
