//go:build windows

package releases

import (
	"fmt"
	"os"
	"os/exec"
)

// A running executable cannot be overwritten on Windows, but it can be
// renamed. The old binary is moved to .old and removed by CleanupPrevious.
func atomicReplace(src, dst string) error {
	oldPath := dst + ".old"
	os.Remove(oldPath)

	if err := os.Rename(dst, oldPath); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		os.Rename(oldPath, dst)
		return err
	}
	return nil
}

// restartProcess starts path with the current arguments and exits.
func restartProcess(path string) error {
	cmd := exec.Command(path, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrRestartFailed, path, err)
	}
	os.Exit(0)
	return nil
}

// CleanupPrevious removes the .old binary left by the last update.
func CleanupPrevious() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	os.Remove(exe + ".old")
}
