//go:build !((linux || darwin) && cgo) && !windows

package resample

// loadSincLibrary is unavailable on this build (no cgo, not Windows); the
// priority chain in Select falls back to the built-in polyphase/linear
// backends.
func loadSincLibrary() (sincSimpleFunc, bool) {
	return nil, false
}
