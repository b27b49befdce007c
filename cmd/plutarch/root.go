// Root command for the plutarch CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/config"
	"github.com/Shonas301/plutarch/internal/logging"
	"github.com/Shonas301/plutarch/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagEnvFile   string
	flagJSON      bool
)

// appConfig holds the settings loaded by PersistentPreRunE so all
// subcommands can use them.
var appConfig config.Config

// logCleanup closes the log file opened by PersistentPreRunE.
var logCleanup = func() error { return nil }

var rootCmd = &cobra.Command{
	Use:           "plutarch",
	Short:         "Plutarch records, plays, and transcribes Discord voice channels",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(flagEnvFile); err != nil {
			return err
		}

		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appConfig = cfg

		dataDir, err := resolveDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}

		_, cleanup, err := logging.Setup(logging.Options{
			Level:      cfg.Log.Level,
			File:       paths.InDir(dataDir, cfg.Log.File),
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		logCleanup = cleanup
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logCleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/plutarch)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/plutarch)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(arcCmd)
	rootCmd.AddCommand(transcribeCmd)
}

// resolveDataDir returns the data directory with the precedence
// --data-dir flag > config.yaml data_dir > PLUTARCH_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, appConfig.DataDir)
}

// resolveConfigDir returns the configuration directory with the precedence
// --config-dir flag > PLUTARCH_CONFIG_DIR env > default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
