//go:build !linux && !darwin

package gatewayhttp

import (
	"fmt"
	"runtime"
)

// terminatePortHolder is unsupported on this platform; recovery degrades
// to plain bind retries.
func terminatePortHolder(port string) error {
	return fmt.Errorf("port recovery not supported on %s", runtime.GOOS)
}
