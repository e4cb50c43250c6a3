// Package service provides cross-platform system service management.
package service

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// DefaultName is the service name used when none is configured.
const DefaultName = "relaunch"

// Config holds service installation configuration.
type Config struct {
	// Name is the service name (e.g., "relaunch")
	Name string
	// Description is a human-readable service description
	Description string
	// BinaryPath is the absolute path to the executable
	BinaryPath string
	// ConfigPath is the absolute path to the config file
	ConfigPath string
	// WorkingDir is the working directory for the service
	WorkingDir string
	// Out receives progress messages. Defaults to os.Stdout.
	Out io.Writer
}

// Manager handles service installation and management.
type Manager struct {
	config Config
	goos   string
	run    func(name string, args ...string) ([]byte, error)
}

// New creates a new service manager.
func New(cfg Config) (*Manager, error) {
	if cfg.BinaryPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		cfg.BinaryPath = exe
	}

	if !filepath.IsAbs(cfg.BinaryPath) {
		abs, err := filepath.Abs(cfg.BinaryPath)
		if err != nil {
			return nil, fmt.Errorf("resolve binary path: %w", err)
		}
		cfg.BinaryPath = abs
	}

	if !filepath.IsAbs(cfg.ConfigPath) {
		abs, err := filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		cfg.ConfigPath = abs
	}

	// Restarts exec the binary in place, so the unit must run from its directory.
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = filepath.Dir(cfg.BinaryPath)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Description == "" {
		cfg.Description = "Relaunch self-updating application helper"
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	return &Manager{config: cfg, goos: runtime.GOOS, run: runCommand}, nil
}

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Name returns the installed service name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Install installs the service on the current platform.
func (m *Manager) Install() error {
	if _, err := os.Stat(m.config.BinaryPath); err != nil {
		return fmt.Errorf("binary not found: %s", m.config.BinaryPath)
	}
	if _, err := os.Stat(m.config.ConfigPath); err != nil {
		return fmt.Errorf("config not found: %s", m.config.ConfigPath)
	}

	switch m.goos {
	case "linux":
		return m.installSystemd()
	case "darwin":
		return m.installLaunchd()
	case "windows":
		return m.installWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", m.goos)
	}
}

// Uninstall removes the service from the current platform.
func (m *Manager) Uninstall() error {
	switch m.goos {
	case "linux":
		return m.uninstallSystemd()
	case "darwin":
		return m.uninstallLaunchd()
	case "windows":
		return m.uninstallWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", m.goos)
	}
}

// Status returns the current service status.
func (m *Manager) Status() (string, error) {
	switch m.goos {
	case "linux":
		return m.statusSystemd()
	case "darwin":
		return m.statusLaunchd()
	case "windows":
		return m.statusWindows()
	default:
		return "", fmt.Errorf("unsupported platform: %s", m.goos)
	}
}

// Render returns the unit definition installed on the current platform.
// Windows services are registered through sc.exe and have no unit file.
func (m *Manager) Render() ([]byte, error) {
	switch m.goos {
	case "linux":
		return m.render("systemd", systemdTemplate)
	case "darwin":
		return m.render("launchd", launchdTemplate)
	default:
		return nil, fmt.Errorf("no unit file on %s", m.goos)
	}
}

func (m *Manager) render(name, text string) ([]byte, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m.config); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// Platform returns the current platform name.
func Platform() string {
	return runtime.GOOS
}

// --- Linux (systemd) ---

// Restart=always covers a failed in-place exec after an update is installed.
const systemdTemplate = `[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} -c {{.ConfigPath}}
ExecReload=/bin/kill -HUP $MAINPID
WorkingDirectory={{.WorkingDir}}
Restart=always
RestartSec=5

# Logging
StandardOutput=journal
StandardError=journal
SyslogIdentifier={{.Name}}

[Install]
WantedBy=multi-user.target
`

func (m *Manager) systemdPath() string {
	return filepath.Join("/etc/systemd/system", m.config.Name+".service")
}

func (m *Manager) installSystemd() error {
	unit, err := m.Render()
	if err != nil {
		return err
	}

	unitPath := m.systemdPath()
	if err := os.WriteFile(unitPath, unit, 0644); err != nil {
		return fmt.Errorf("write unit file: %w (try running with sudo)", err)
	}

	if out, err := m.run("systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("reload systemd: %w\n%s", err, out)
	}
	if out, err := m.run("systemctl", "enable", m.config.Name); err != nil {
		return fmt.Errorf("enable service: %w\n%s", err, out)
	}

	fmt.Fprintf(m.config.Out, "Service installed: %s\n", unitPath)
	fmt.Fprintf(m.config.Out, "Start with: sudo systemctl start %s\n", m.config.Name)
	return nil
}

func (m *Manager) uninstallSystemd() error {
	// Stop and disable fail harmlessly when the unit is not running.
	_, _ = m.run("systemctl", "stop", m.config.Name)
	_, _ = m.run("systemctl", "disable", m.config.Name)

	unitPath := m.systemdPath()
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}

	_, _ = m.run("systemctl", "daemon-reload")

	fmt.Fprintf(m.config.Out, "Service uninstalled: %s\n", m.config.Name)
	return nil
}

func (m *Manager) statusSystemd() (string, error) {
	if _, err := os.Stat(m.systemdPath()); os.IsNotExist(err) {
		return "not installed", nil
	}

	out, err := m.run("systemctl", "is-active", m.config.Name)
	if err != nil {
		return "installed (inactive)", nil
	}
	return fmt.Sprintf("installed (%s)", strings.TrimSpace(string(out))), nil
}

// --- macOS (launchd) ---

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Name}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.BinaryPath}}</string>
        <string>-c</string>
        <string>{{.ConfigPath}}</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <true/>

    <key>WorkingDirectory</key>
    <string>{{.WorkingDir}}</string>

    <key>StandardOutPath</key>
    <string>/tmp/{{.Name}}.log</string>

    <key>StandardErrorPath</key>
    <string>/tmp/{{.Name}}.error.log</string>
</dict>
</plist>
`

func (m *Manager) launchdPath() string {
	// LaunchDaemons need root; fall back to the user's LaunchAgents.
	home, _ := os.UserHomeDir()
	userAgentPath := filepath.Join(home, "Library", "LaunchAgents", m.config.Name+".plist")

	daemonPath := filepath.Join("/Library/LaunchDaemons", m.config.Name+".plist")
	if f, err := os.OpenFile(daemonPath, os.O_WRONLY|os.O_CREATE, 0644); err == nil {
		f.Close()
		os.Remove(daemonPath)
		return daemonPath
	}

	return userAgentPath
}

func (m *Manager) installLaunchd() error {
	plist, err := m.Render()
	if err != nil {
		return err
	}

	plistPath := m.launchdPath()
	if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(plistPath, plist, 0644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	if out, err := m.run("launchctl", "load", plistPath); err != nil {
		return fmt.Errorf("load service: %w\n%s", err, out)
	}

	fmt.Fprintf(m.config.Out, "Service installed: %s\n", plistPath)
	fmt.Fprintln(m.config.Out, "Service is now running.")
	return nil
}

func (m *Manager) uninstallLaunchd() error {
	plistPath := m.launchdPath()

	_, _ = m.run("launchctl", "unload", plistPath)

	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}

	fmt.Fprintf(m.config.Out, "Service uninstalled: %s\n", m.config.Name)
	return nil
}

func (m *Manager) statusLaunchd() (string, error) {
	if _, err := os.Stat(m.launchdPath()); os.IsNotExist(err) {
		return "not installed", nil
	}

	out, err := m.run("launchctl", "list", m.config.Name)
	if err != nil {
		return "installed (not running)", nil
	}
	if strings.Contains(string(out), m.config.Name) {
		return "installed (running)", nil
	}
	return "installed (not running)", nil
}

// --- Windows ---

func (m *Manager) installWindows() error {
	binPath := fmt.Sprintf(`"%s" -c "%s"`, m.config.BinaryPath, m.config.ConfigPath)

	out, err := m.run("sc", "create", m.config.Name,
		"binPath=", binPath,
		"DisplayName=", m.config.Description,
		"start=", "auto")
	if err != nil {
		return fmt.Errorf("create service: %w\n%s", err, out)
	}

	_, _ = m.run("sc", "description", m.config.Name, m.config.Description)

	fmt.Fprintf(m.config.Out, "Service installed: %s\n", m.config.Name)
	fmt.Fprintf(m.config.Out, "Start with: sc start %s\n", m.config.Name)
	return nil
}

func (m *Manager) uninstallWindows() error {
	_, _ = m.run("sc", "stop", m.config.Name)

	if out, err := m.run("sc", "delete", m.config.Name); err != nil {
		return fmt.Errorf("delete service: %w\n%s", err, out)
	}

	fmt.Fprintf(m.config.Out, "Service uninstalled: %s\n", m.config.Name)
	return nil
}

func (m *Manager) statusWindows() (string, error) {
	out, err := m.run("sc", "query", m.config.Name)
	if err != nil {
		return "not installed", nil
	}

	output := string(out)
	switch {
	case strings.Contains(output, "RUNNING"):
		return "installed (running)", nil
	case strings.Contains(output, "STOPPED"):
		return "installed (stopped)", nil
	}
	return "installed", nil
}
