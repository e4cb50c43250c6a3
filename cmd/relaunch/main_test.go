package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/relaunch/internal/config"
	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/updater"
	"github.com/rennerdo30/relaunch/internal/version"
)

type stubService struct {
	mu        sync.Mutex
	available bool
	checkErr  error
	checks    int
}

func (s *stubService) CheckForUpdate(context.Context) (updater.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	return updater.Availability{IsAvailable: s.available, Version: "v9.9.9"}, s.checkErr
}

func (s *stubService) FetchUpdate(context.Context) error { return nil }

func (s *stubService) ApplyUpdateAndRestart(context.Context) error { return nil }

func (s *stubService) checkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// withRelease pins the build version so dev mode stays off.
func withRelease(t *testing.T) {
	t.Helper()
	old := version.Version
	version.Version = "1.0.0"
	t.Setenv(version.DevModeEnv, "false")
	t.Cleanup(func() { version.Version = old })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "relaunch")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaunch.yaml")

	out, err := execute(t, "config", "init", "-o", path, "--owner", "acme", "--repo", "widget")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated configuration")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Release.Owner)
	assert.Equal(t, "widget", cfg.Release.Repo)

	out, err = execute(t, "-c", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigInit_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  enabled: false\n"), 0600))

	_, err := execute(t, "config", "init", "-o", path)
	assert.ErrorContains(t, err, "already exists")

	out, err := execute(t, "config", "init", "-o", path, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up existing configuration")

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("updates:\n  min_refresh_seconds: -5\n"), 0600))

	_, err := execute(t, "-c", path, "validate")
	assert.ErrorContains(t, err, "configuration invalid")
}

func TestLoadConfig_MissingUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), *cfg)
}

func TestCheckOnce(t *testing.T) {
	withRelease(t)

	var out bytes.Buffer
	svc := &stubService{available: false}
	require.NoError(t, checkOnce(context.Background(), &out, svc, false))
	assert.Contains(t, out.String(), "no update available")
	assert.Contains(t, out.String(), "No update applied")

	svc.checkErr = errors.New("rate limited")
	err := checkOnce(context.Background(), &out, svc, false)
	assert.ErrorContains(t, err, "rate limited")
}

func newTestApp(t *testing.T, svc updater.Service, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Lifecycle.Signals = false
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := newApp(&cfg, svc)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestApp_StartupAndForeground(t *testing.T) {
	withRelease(t)
	svc := &stubService{}
	a := newTestApp(t, svc, func(c *config.Config) { c.Updates.MinRefreshSeconds = 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.start(ctx))

	_, err := a.session.WaitStartup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.checkCount())

	host := a.host.(emitterHost)
	host.Emit(lifecycle.Background)
	// The refresh window is strict, so wait for the clock to pass it.
	time.Sleep(1100 * time.Millisecond)
	host.Emit(lifecycle.Active)
	assert.Equal(t, 2, svc.checkCount())
}

func TestApp_Handler(t *testing.T) {
	withRelease(t)
	svc := &stubService{}
	a := newTestApp(t, svc, func(c *config.Config) {
		c.Updates.UpdateOnStartup = false
		c.Lifecycle.Initial = "inactive"
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.start(ctx))

	srv := httptest.NewServer(a.handler(ctx))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Session struct {
			AppState string `json:"app_state"`
		} `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "inactive", status.Session.AppState)

	check, err := http.Post(srv.URL+"/api/v1/check", "", nil)
	require.NoError(t, err)
	check.Body.Close()
	assert.Equal(t, http.StatusAccepted, check.StatusCode)
	require.Eventually(t, func() bool { return svc.checkCount() == 1 }, time.Second, 10*time.Millisecond)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relaunch_app_state{state="inactive"} 1`)
}

func TestNewApp_InvalidLifecycle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lifecycle.Initial = "asleep"
	_, err := newApp(&cfg, &stubService{})
	assert.Error(t, err)
}

func writeDaemonConfig(t *testing.T, level string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Updates.UpdateOnStartup = false
	cfg.API.Listen = "127.0.0.1:0"
	cfg.Lifecycle.Signals = false
	cfg.Lifecycle.Initial = "inactive"
	cfg.Logging.Output = "stderr"
	cfg.Logging.Level = level

	path := filepath.Join(t.TempDir(), "relaunch.yaml")
	require.NoError(t, config.Save(path, &cfg))
	return path
}

func TestDaemon_StartReloadStop(t *testing.T) {
	withRelease(t)
	path := writeDaemonConfig(t, "info")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	d := newDaemon(path, cfg)
	require.NoError(t, d.Start(context.Background()))

	resp, err := http.Get("http://" + d.Addr() + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	updated := writeDaemonConfig(t, "debug")
	data, err := os.ReadFile(updated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	require.NoError(t, d.ReloadConfig())
	assert.Equal(t, "debug", d.cfg.Logging.Level)

	require.NoError(t, d.Stop(context.Background()))
	_, err = http.Get("http://" + d.Addr() + "/api/v1/health")
	assert.Error(t, err)
}

func TestDaemon_ReloadInvalidKeepsConfig(t *testing.T) {
	path := writeDaemonConfig(t, "info")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	d := newDaemon(path, cfg)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0600))
	assert.Error(t, d.ReloadConfig())
	assert.Equal(t, "info", d.cfg.Logging.Level)
}

func TestDaemon_StartListenFailure(t *testing.T) {
	withRelease(t)
	path := writeDaemonConfig(t, "info")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	cfg.API.Listen = "256.0.0.1:bad"

	d := newDaemon(path, cfg)
	assert.ErrorContains(t, d.Start(context.Background()), "listen on")
	assert.NoError(t, d.Stop(context.Background()))
}

func TestServiceStatusCommand(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("Linux-only test")
	}
	out, err := execute(t, "service", "status", "--name", "relaunch-nonexistent-service-test")
	require.NoError(t, err)
	assert.Contains(t, out, "relaunch-nonexistent-service-test: not installed")
}
