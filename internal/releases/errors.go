// Package releases implements the update service on top of GitHub releases:
// it finds the newest platform build, stages it next to the running binary
// and restarts the process into it.
package releases

import "errors"

var (
	// ErrNoRelease indicates the repository has no published release.
	ErrNoRelease = errors.New("no release published")

	// ErrInvalidVersion indicates a release tag is not a semantic version.
	ErrInvalidVersion = errors.New("invalid version format")

	// ErrAssetNotFound indicates no release asset matches the current platform.
	ErrAssetNotFound = errors.New("release asset not found for platform")

	// ErrChecksumMismatch indicates the downloaded file failed verification.
	ErrChecksumMismatch = errors.New("checksum verification failed")

	// ErrDownloadFailed indicates the download could not be completed.
	ErrDownloadFailed = errors.New("download failed")

	// ErrNetworkError indicates a network-related failure.
	ErrNetworkError = errors.New("network error")

	// ErrRateLimited indicates the GitHub API rate limit was exceeded.
	ErrRateLimited = errors.New("GitHub API rate limited")

	// ErrNoCandidate indicates FetchUpdate ran without a prior successful check.
	ErrNoCandidate = errors.New("no release selected")

	// ErrNothingStaged indicates ApplyUpdateAndRestart ran before FetchUpdate.
	ErrNothingStaged = errors.New("no update staged")

	// ErrInstallFailed indicates the staged binary could not replace the current one.
	ErrInstallFailed = errors.New("installation failed")

	// ErrRestartFailed indicates the process could not be replaced.
	ErrRestartFailed = errors.New("restart failed")
)
