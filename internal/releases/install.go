package releases

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractBinary copies the file named binary out of a .tar.gz or .zip archive
// into destPath.
func extractBinary(archivePath, binary, destPath string) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(archivePath, binary, destPath)
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, binary, destPath)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Ext(archivePath))
	}
}

func extractTarGz(archivePath, binary, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag == tar.TypeReg && filepath.Base(header.Name) == binary {
			return writeFile(destPath, tr)
		}
	}
	return fmt.Errorf("binary %s not found in archive", binary)
}

func extractZip(archivePath, binary, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || filepath.Base(f.Name) != binary {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open file in zip: %w", err)
		}
		defer src.Close()
		return writeFile(destPath, src)
	}
	return fmt.Errorf("binary %s not found in archive", binary)
}

func writeFile(path string, r io.Reader) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// backupFile copies path to path+".bak", preserving its mode.
func backupFile(path string) (string, error) {
	backupPath := path + ".bak"
	os.Remove(backupPath)

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open current binary: %w", err)
	}
	defer src.Close()

	if err := writeFile(backupPath, src); err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err == nil {
		os.Chmod(backupPath, info.Mode())
	}
	return backupPath, nil
}

// install moves staged over target, restoring target from backup on failure.
func install(staged, target string) error {
	backupPath, err := backupFile(target)
	if err != nil {
		return fmt.Errorf("%w: backup: %v", ErrInstallFailed, err)
	}

	if err := atomicReplace(staged, target); err != nil {
		if restoreErr := os.Rename(backupPath, target); restoreErr != nil {
			return fmt.Errorf("%w: %v (restore failed: %v)", ErrInstallFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	return nil
}

// currentExecutable returns the resolved path of the running binary.
func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return exe, nil
}
