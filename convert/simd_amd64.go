package convert

import (
	"sync"

	"golang.org/x/sys/cpu"
)

var simdInit sync.Once

// init selects the widened conversion kernel once, at package
// initialization, per spec §9's "process-wide, initialized once" guidance
// for CPU-feature-detection state. AVX2 and SSE4.1 machines both get
// convertWide8 (the same 8-sample unrolled loop; there is no separate
// 128-bit path); anything else uses the portable scalar loop.
func init() {
	simdInit.Do(func() {
		switch {
		case cpu.X86.HasAVX2:
			dispatchConvert = convertWide8
		case cpu.X86.HasSSE41:
			dispatchConvert = convertWide8
		default:
			dispatchConvert = convertScalar
		}
	})
}
