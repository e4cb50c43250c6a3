// Package main provides the relaunch entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/rennerdo30/relaunch/internal/cli"
	"github.com/rennerdo30/relaunch/internal/config"
	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/service"
	"github.com/rennerdo30/relaunch/internal/version"
)

const defaultConfigFile = "relaunch.yaml"

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "relaunch",
		Short: "Self-updating application helper",
		Long: `relaunch keeps the running binary current: it checks for a newer release on
startup and whenever the application returns to the foreground, then downloads,
installs and restarts into it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return service.Run(service.DefaultName, newDaemon(configFile, cfg))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := config.LoadAndValidate(configFile, &cfg); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	var force bool
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one update cycle now and exit",
		Long: `Run a single check, download and apply cycle in the foreground. Errors are
reported instead of swallowed. When an update is applied the process restarts
into the new binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, force)
		},
	}
	checkCmd.Flags().BoolVarP(&force, "force", "f", false, "download and apply even when no update is available")
	rootCmd.AddCommand(checkCmd)

	rootCmd.AddCommand(cli.NewCommands("http://" + config.DefaultConfig().API.Listen))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServiceCmd(&configFile))

	return rootCmd
}

func newConfigCmd() *cobra.Command {
	var (
		output string
		owner  string
		repo   string
		force  bool
	)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil {
				if !force {
					return fmt.Errorf("file %s already exists (use --force to overwrite)", output)
				}
				backup, err := config.Backup(output)
				if err != nil {
					return fmt.Errorf("backup existing config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up existing configuration to %s\n", backup)
			}

			cfg := config.DefaultConfig()
			if owner != "" {
				cfg.Release.Owner = owner
			}
			if repo != "" {
				cfg.Release.Repo = repo
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := config.Save(output, &cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated configuration: %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", defaultConfigFile, "output file path")
	initCmd.Flags().StringVar(&owner, "owner", "", "GitHub owner of the release repository")
	initCmd.Flags().StringVar(&repo, "repo", "", "GitHub release repository")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

func newServiceCmd(configFile *string) *cobra.Command {
	var name string

	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage relaunch as a system service",
		Long: `Install, remove or inspect relaunch as a system service (systemd on Linux,
launchd on macOS, the service control manager on Windows). The installed
service runs this binary with the current --config file.`,
	}
	serviceCmd.PersistentFlags().StringVar(&name, "name", service.DefaultName, "service name")

	manager := func(cmd *cobra.Command) (*service.Manager, error) {
		return service.New(service.Config{
			Name:       name,
			ConfigPath: *configFile,
			Out:        cmd.OutOrStdout(),
		})
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install and enable the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := config.LoadAndValidate(*configFile, &cfg); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			return m.Install()
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			return m.Uninstall()
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager(cmd)
			if err != nil {
				return err
			}
			status, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Name(), status)
			return nil
		},
	})

	return serviceCmd
}

// loadConfig reads path over the defaults. A missing file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Config file not found, using defaults", "path", path)
		defaults := config.DefaultConfig()
		return &defaults, nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
