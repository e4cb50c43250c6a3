//go:build !windows

package releases

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Rename is atomic on the same filesystem, and the staged file always sits
// next to the target.
func atomicReplace(src, dst string) error {
	return os.Rename(src, dst)
}

// restartProcess replaces the process image with path. It only returns on failure.
func restartProcess(path string) error {
	err := unix.Exec(path, os.Args, os.Environ())
	return fmt.Errorf("%w: exec %s: %v", ErrRestartFailed, path, err)
}

// CleanupPrevious is a no-op on unix; replaced binaries are renamed away.
func CleanupPrevious() {}
