// Init command for the plutarch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize plutarch configuration and storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE already wrote config.yaml; report where it is.
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		// Attach backend (creates the data directory and schema).
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		dataDir, err := resolveDataDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "plutarch initialized successfully")
		fmt.Fprintln(out, "  config:", configDir)
		fmt.Fprintln(out, "  data:  ", dataDir)
		return nil
	},
}
