//go:build darwin

package backend

/*
#cgo CFLAGS: -fobjc-arc
#cgo LDFLAGS: -framework Cocoa -framework Foundation

#include <stdlib.h>

char *proctap_bundle_id_for_pid(int pid);
int   proctap_darwin_major_version(void);
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// resolveBundleID resolves pid to its owning application's bundle
// identifier via NSRunningApplication (spec §4.5 step 3). The Objective-C
// side (bundle_darwin.m, shipped alongside this file) returns NULL when
// no running application owns the pid.
func resolveBundleID(pid uint32) (string, error) {
	cStr := C.proctap_bundle_id_for_pid(C.int(pid))
	if cStr == nil {
		return "", fmt.Errorf("no application found for pid %d", pid)
	}
	defer C.free(unsafe.Pointer(cStr))
	return C.GoString(cStr), nil
}

// darwinVersion returns the host's major OS version via NSProcessInfo's
// operatingSystemVersion; minor and patch are always reported as 0.
func darwinVersion() (major, minor, patch int) {
	return int(C.proctap_darwin_major_version()), 0, 0
}
