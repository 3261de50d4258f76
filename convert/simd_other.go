//go:build !amd64 && !arm64

package convert

// On architectures without a feature-detected wide kernel, dispatchConvert
// keeps its convertScalar default from convert.go.
