package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"proctap"
)

func TestParseQuality(t *testing.T) {
	cases := map[string]proctap.ResampleQuality{
		"best":   proctap.ResampleBest,
		"medium": proctap.ResampleMedium,
		"fast":   proctap.ResampleFast,
	}
	for in, want := range cases {
		got, ok := parseQuality(in)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := parseQuality("lossless")
	assert.False(t, ok)
}

func TestReportAndExit_MapsKindsToExitCodes(t *testing.T) {
	cases := []struct {
		kind proctap.ErrorKind
		want int
	}{
		{proctap.KindInvalidTarget, exitInvalidArgs},
		{proctap.KindUnsupportedOS, exitUnsupportedOS},
		{proctap.KindTargetNotFound, exitTargetNotFound},
		{proctap.KindPermissionDenied, exitPermissionDenied},
		{proctap.KindBackendUnavailable, exitBackendUnavailable},
		{proctap.KindInternal, exitCaptureError},
	}
	for _, c := range cases {
		err := &proctap.Error{Kind: c.kind, Detail: "boom"}
		assert.Equal(t, c.want, reportAndExit(err))
	}
}
