//go:build linux

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"proctap/pcm"
	"proctap/ring"
)

func TestLinuxBackend_ActivateWithNonProcessTargetIsInvalid(t *testing.T) {
	buf := ring.New(4096, 8)
	b := newLinuxBackend(pcm.BundleTarget("com.example.app"), nil, buf, nopLogger{})
	_, err := b.Activate()
	assert.Error(t, err)
}

func TestLinuxBackend_DiagnosticsEmptyBeforeActivate(t *testing.T) {
	buf := ring.New(4096, 8)
	b := newLinuxBackend(pcm.ProcessTarget(99999999), nil, buf, nopLogger{})
	d := b.Diagnostics()
	assert.Equal(t, "", d["strategy"])
}
