//go:build linux

package backend

import "os/exec"

func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
