package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"proctap/pcm"
	"proctap/ring"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestNew_ReturnsABackendForTheCurrentPlatform(t *testing.T) {
	buf := ring.New(4096, 8)
	b := New(pcm.ProcessTarget(1234), nil, buf, nopLogger{})
	assert.NotNil(t, b)
}
