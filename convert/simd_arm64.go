package convert

import (
	"sync"

	"golang.org/x/sys/cpu"
)

var simdInit sync.Once

// init mirrors simd_amd64.go: NEON/ASIMD is mandatory on arm64, so this
// always selects the widened kernel, but it still routes through the same
// sync.Once-guarded gate so the dispatch mechanism is uniform across
// architectures.
func init() {
	simdInit.Do(func() {
		if cpu.ARM64.HasASIMD {
			dispatchConvert = convertWide8
		} else {
			dispatchConvert = convertScalar
		}
	})
}
