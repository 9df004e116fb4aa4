// Package cli provides the CLI command structure for go_dukpt.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/internal/config"
	"github.com/andrei-cloud/go_dukpt/internal/logging"
)

// NewRootCommand creates and returns the root command with all subcommands.
func NewRootCommand() (*cobra.Command, error) {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "go_dukpt",
		Short: "AES DUKPT key derivation, PIN blocks and a demo host",
		Long: `AES DUKPT (ANSI X9.24-3) key derivation and ISO 9564 PIN block utilities
with a demo host that serves derivations over TCP.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// Initialize configuration before running any command.
			config.SetConfigFile(cfgFile)
			if err := config.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg := config.Get()
			logging.Setup(cfg.Log.Level, cfg.Log.Format)

			return nil
		},
	}

	// Add persistent flags that affect all commands.
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_dukpt/config.yaml)")

	// Add global flags that can override config file settings.
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "logging format (human, json)")

	config.BindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	config.BindFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Register all commands.
	if err := RegisterCommands(rootCmd); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return rootCmd, nil
}
