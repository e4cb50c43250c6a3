package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/updater"
	"github.com/rennerdo30/relaunch/internal/version"
)

// Release represents a GitHub release.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Assets      []Asset   `json:"assets"`
}

// Asset represents a release asset.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// candidate is the release build chosen by the last check.
type candidate struct {
	release  Release
	asset    Asset
	checksum string
}

// Client is an updater.Service backed by GitHub releases.
type Client struct {
	cfg            Config
	currentVersion string
	api            *http.Client
	downloads      *http.Client
	executable     func() (string, error)
	restart        func(path string) error

	mu      sync.Mutex
	pending *candidate
	staged  string
}

var _ updater.Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client for both API calls and downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.api = c
		cl.downloads = c
	}
}

// WithCurrentVersion overrides the running version used for comparison.
func WithCurrentVersion(v string) Option {
	return func(cl *Client) {
		cl.currentVersion = v
	}
}

// WithExecutable overrides how the running binary is located.
func WithExecutable(fn func() (string, error)) Option {
	return func(cl *Client) {
		cl.executable = fn
	}
}

// WithRestarter overrides how the process restarts into the new binary.
func WithRestarter(fn func(path string) error) Option {
	return func(cl *Client) {
		cl.restart = fn
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(cfg.ProxyURL)

	c := &Client{
		cfg:            cfg,
		currentVersion: version.Version,
		api:            &http.Client{Transport: transport, Timeout: cfg.Timeout},
		downloads:      &http.Client{Transport: transport, Timeout: cfg.DownloadTimeout},
		executable:     currentExecutable,
		restart:        restartProcess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// proxyFunc resolves proxies from override when set, else from the environment.
func proxyFunc(override string) func(*http.Request) (*url.URL, error) {
	pc := httpproxy.FromEnvironment()
	if override != "" {
		pc = &httpproxy.Config{
			HTTPProxy:  override,
			HTTPSProxy: override,
			NoProxy:    pc.NoProxy,
		}
	}
	resolve := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return resolve(req.URL)
	}
}

// CheckForUpdate fetches the latest release and reports whether it is newer
// than the running version. The release is remembered for FetchUpdate even
// when it is not newer, so a forced cycle can reinstall it.
func (c *Client) CheckForUpdate(ctx context.Context) (updater.Availability, error) {
	release, err := c.latestRelease(ctx)
	if err != nil {
		return updater.Availability{}, err
	}

	newer, err := isNewer(c.currentVersion, release.TagName)
	if err != nil {
		return updater.Availability{}, err
	}
	avail := updater.Availability{IsAvailable: newer, Version: release.TagName}

	cand, err := c.resolveCandidate(ctx, release)
	if err != nil {
		if !newer {
			c.setPending(nil)
			return avail, nil
		}
		return updater.Availability{}, err
	}
	c.setPending(cand)

	return avail, nil
}

// FetchUpdate downloads the checked release, verifies it and stages the
// binary next to the running executable.
func (c *Client) FetchUpdate(ctx context.Context) error {
	c.mu.Lock()
	cand := c.pending
	c.mu.Unlock()
	if cand == nil {
		return ErrNoCandidate
	}

	exe, err := c.executable()
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "relaunch-update-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	log := logging.WithComponent("releases").With("version", cand.release.TagName)
	archive := filepath.Join(tempDir, cand.asset.Name)
	if err := download(ctx, c.downloads, cand.asset.BrowserDownloadURL, archive, log); err != nil {
		return err
	}
	if err := VerifyChecksum(archive, cand.checksum); err != nil {
		return err
	}

	staged := exe + ".new"
	if err := extractBinary(archive, binaryName(c.cfg.Binary), staged); err != nil {
		return fmt.Errorf("extract binary: %w", err)
	}

	c.mu.Lock()
	c.staged = staged
	c.mu.Unlock()

	log.Info("Update staged", "path", staged)
	return nil
}

// ApplyUpdateAndRestart swaps the staged binary in and restarts into it.
func (c *Client) ApplyUpdateAndRestart(ctx context.Context) error {
	c.mu.Lock()
	staged := c.staged
	c.staged = ""
	c.mu.Unlock()
	if staged == "" {
		return ErrNothingStaged
	}

	exe, err := c.executable()
	if err != nil {
		return err
	}
	if err := install(staged, exe); err != nil {
		os.Remove(staged)
		return err
	}

	logging.Info("Binary replaced, restarting", "path", exe)
	return c.restart(exe)
}

func (c *Client) setPending(cand *candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = cand
}

func (c *Client) resolveCandidate(ctx context.Context, release *Release) (*candidate, error) {
	asset, err := findAsset(release, c.cfg.Binary)
	if err != nil {
		return nil, err
	}

	sums, err := c.checksums(ctx, release)
	if err != nil {
		return nil, err
	}
	sum, ok := sums[asset.Name]
	if !ok {
		return nil, fmt.Errorf("%w: no checksum for %s", ErrAssetNotFound, asset.Name)
	}

	return &candidate{release: *release, asset: *asset, checksum: sum}, nil
}

func (c *Client) latestRelease(ctx context.Context) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimSuffix(c.cfg.APIURL, "/"), c.cfg.Owner, c.cfg.Repo)

	resp, err := c.get(ctx, c.api, endpoint, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if release.TagName == "" || release.Draft {
		return nil, ErrNoRelease
	}
	return &release, nil
}

func (c *Client) checksums(ctx context.Context, release *Release) (map[string]string, error) {
	var asset *Asset
	for i := range release.Assets {
		if release.Assets[i].Name == "checksums.txt" {
			asset = &release.Assets[i]
			break
		}
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: checksums.txt not found in release", ErrAssetNotFound)
	}

	resp, err := c.get(ctx, c.api, asset.BrowserDownloadURL, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: checksums status %d", ErrDownloadFailed, resp.StatusCode)
	}
	return ParseChecksums(resp.Body)
}

func (c *Client) get(ctx context.Context, client *http.Client, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return resp, nil
}

func checkResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNoRelease
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: forbidden", ErrNetworkError)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrNetworkError, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// AssetName returns the goreleaser archive name for binary at tag on the
// current platform: <binary>_<version>_<os>_<arch>.<ext>.
func AssetName(binary, tag string) string {
	ext := ".tar.gz"
	if runtime.GOOS == "windows" {
		ext = ".zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s%s", binary, strings.TrimPrefix(tag, "v"), runtime.GOOS, runtime.GOARCH, ext)
}

func findAsset(release *Release, binary string) (*Asset, error) {
	expected := AssetName(binary, release.TagName)
	for i := range release.Assets {
		if release.Assets[i].Name == expected {
			return &release.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: looking for %s", ErrAssetNotFound, expected)
}

func binaryName(binary string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(binary, ".exe") {
		return binary + ".exe"
	}
	return binary
}
