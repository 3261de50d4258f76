//go:build linux

package backend

import (
	"proctap/pcm"
	"proctap/ring"
)

func newPlatformBackend(target pcm.Target, requested *pcm.Format, buf *ring.Buffer, log Logger) Backend {
	return newLinuxBackend(target, requested, buf, log)
}
