package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rennerdo30/relaunch/internal/api"
	"github.com/rennerdo30/relaunch/internal/config"
	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/metrics"
	"github.com/rennerdo30/relaunch/internal/releases"
	"github.com/rennerdo30/relaunch/internal/session"
	"github.com/rennerdo30/relaunch/internal/updatelog"
	"github.com/rennerdo30/relaunch/internal/updater"
)

// app holds the wired components of a running instance.
type app struct {
	cfg       *config.Config
	logs      *updatelog.Sink
	host      lifecycle.Host
	collector *metrics.Collector
	metrics   *metrics.Metrics
	session   *session.Session
	hub       *api.WebSocketHub

	cleanup []func()
}

// lifecycleHost is the host plus its start/stop hooks.
type lifecycleHost interface {
	lifecycle.Host
	Start()
	Stop()
}

// emitterHost adapts an Emitter to lifecycleHost.
type emitterHost struct{ *lifecycle.Emitter }

func (emitterHost) Start() {}
func (emitterHost) Stop()  {}

// newApp wires every component from cfg around service.
func newApp(cfg *config.Config, service updater.Service) (*app, error) {
	initial, err := cfg.Lifecycle.InitialState()
	if err != nil {
		return nil, err
	}

	var host lifecycleHost = emitterHost{lifecycle.NewEmitter(initial)}
	if cfg.Lifecycle.Signals {
		host = lifecycle.NewSignalHost(initial)
	}

	a := &app{
		cfg:     cfg,
		logs:    updatelog.New(nil),
		host:    host,
		metrics: metrics.New(),
		hub:     api.NewWebSocketHub(),
	}

	state := updater.NewState()
	a.collector = metrics.NewCollector(a.metrics, state, host)

	coord := updater.NewCoordinator(service, state, a.logs, updater.WithRecorder(a.collector))
	a.session = session.New(cfg.Updates, session.Deps{
		Coordinator: coord,
		Logs:        a.logs,
		Host:        host,
		Recorder:    a.collector,
	}, session.Callbacks{
		BeforeCheck: func() {
			logging.Info("Application returned to foreground, checking for updates")
		},
		BeforeDownload: func() {
			logging.Info("Downloading update")
		},
	})

	host.Start()
	a.cleanup = append(a.cleanup, host.Stop)

	a.collector.Start()
	a.cleanup = append(a.cleanup, a.collector.Stop)

	a.logs.Observe(a.hub.ForwardLog())
	a.cleanup = append(a.cleanup, func() { a.logs.Observe(nil) })
	a.cleanup = append(a.cleanup, a.hub.ForwardLifecycle(host))
	a.cleanup = append(a.cleanup, host.Subscribe(a.collector.RecordAppState))
	a.collector.RecordAppState(host.Current())

	return a, nil
}

// start activates the session and the hub. ctx bounds every update cycle.
func (a *app) start(ctx context.Context) error {
	go a.hub.Run(ctx)

	if err := a.session.Start(ctx); err != nil {
		return err
	}
	a.cleanup = append(a.cleanup, a.session.Close)

	go func() {
		applied, err := a.session.WaitStartup(ctx)
		switch {
		case err != nil:
			logging.Error("Startup update check failed", "error", err)
		case applied:
			logging.Info("Startup update applied")
		default:
			logging.Debug("Startup update check finished")
		}
	}()
	return nil
}

// handler returns the control API handler.
func (a *app) handler(ctx context.Context) http.Handler {
	return api.New(api.Config{
		Controller: a.session,
		Metrics:    a.metrics.Handler(),
		Hub:        a.hub,
		Token:      a.cfg.API.Token,
		BaseCtx:    ctx,
	}).Handler()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// daemon runs the wired app under the service runner.
type daemon struct {
	configPath string

	mu     sync.Mutex
	cfg    *config.Config
	app    *app
	server *http.Server
	addr   string
	cancel context.CancelFunc
}

func newDaemon(configPath string, cfg *config.Config) *daemon {
	return &daemon{configPath: configPath, cfg: cfg}
}

// Start wires the app, opens the control API and activates the session.
func (d *daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := logging.Setup(d.cfg.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	releases.CleanupPrevious()

	svc, err := releases.New(d.cfg.Release)
	if err != nil {
		return fmt.Errorf("create release client: %w", err)
	}

	a, err := newApp(d.cfg, svc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	if d.cfg.API.Enabled {
		ln, err := net.Listen("tcp", d.cfg.API.Listen)
		if err != nil {
			cancel()
			a.close()
			return fmt.Errorf("listen on %s: %w", d.cfg.API.Listen, err)
		}
		d.addr = ln.Addr().String()
		d.server = &http.Server{
			Handler:      a.handler(ctx),
			ReadTimeout:  d.cfg.API.ReadTimeout.Duration(),
			WriteTimeout: d.cfg.API.WriteTimeout.Duration(),
		}
		go func(server *http.Server) {
			logging.Info("Control API listening", "addr", ln.Addr().String())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Control API failed", "error", err)
			}
		}(d.server)
	}

	if err := a.start(ctx); err != nil {
		cancel()
		d.shutdownServer(context.Background())
		a.close()
		return fmt.Errorf("start session: %w", err)
	}

	d.app = a
	d.cancel = cancel
	return nil
}

// Stop cancels in-flight cycles, drains the control API and releases the app.
func (d *daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout(d.cfg))
	defer cancel()
	err := d.shutdownServer(ctx)

	if d.app != nil {
		d.app.close()
		d.app = nil
	}
	logging.Close()
	return err
}

func (d *daemon) shutdownServer(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	err := d.server.Shutdown(ctx)
	d.server = nil
	if err != nil {
		return fmt.Errorf("shutdown control API: %w", err)
	}
	return nil
}

// ReloadConfig re-reads the config file and applies the logging section.
// Every other section takes effect on the next restart.
func (d *daemon) ReloadConfig() error {
	newCfg, err := loadConfig(d.configPath)
	if err != nil {
		return err
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := logging.Setup(newCfg.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	d.cfg.Logging = newCfg.Logging

	if newCfg.Updates != d.cfg.Updates || newCfg.Release != d.cfg.Release ||
		newCfg.API != d.cfg.API || newCfg.Lifecycle != d.cfg.Lifecycle {
		logging.Warn("Configuration changes outside logging apply after restart")
	}
	logging.Info("Configuration reloaded", "path", d.configPath)
	return nil
}

// Addr returns the control API listen address once started.
func (d *daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if d := cfg.API.ShutdownTimeout.Duration(); d > 0 {
		return d
	}
	return 5 * time.Second
}

// runCheck runs one manual cycle against the release service.
func runCheck(ctx context.Context, out io.Writer, cfg *config.Config, force bool) error {
	if err := logging.Setup(cfg.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logging.Close()

	service, err := releases.New(cfg.Release)
	if err != nil {
		return fmt.Errorf("create release client: %w", err)
	}
	return checkOnce(ctx, out, service, force)
}

func checkOnce(ctx context.Context, out io.Writer, service updater.Service, force bool) error {
	logs := updatelog.New(nil)
	logs.Observe(func(entry string) { fmt.Fprintln(out, entry) })

	coord := updater.NewCoordinator(service, updater.NewState(), logs)
	applied, err := coord.RunUpdateCycle(ctx, updater.CycleOptions{ThrowOnError: true, Force: force})
	if err != nil {
		return err
	}
	if !applied {
		fmt.Fprintln(out, "No update applied")
	}
	return nil
}
