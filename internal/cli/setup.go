package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/txflow/internal/setup"
	"github.com/yolodolo42/txflow/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the setup wizard",
	Long: `Run the interactive setup wizard to configure txflow.

This command guides you through:
  - Entering and checking a client ID
  - Choosing a default chain
  - Creating a keystore wallet

The choices are written to the config file and can be changed there later.`,
	RunE: runSetup,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is configured",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(statusCmd)
}

// configPath is the file setup writes to: the one in use, or the default
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(current.cfg.DataDir, "config.yaml")
}

func runSetup(cmd *cobra.Command, args []string) error {
	if !setup.IsInteractive() {
		setup.PrintEnvInstructions()
		return fmt.Errorf("setup requires an interactive terminal")
	}

	path := configPath()
	result, err := setup.RunWizard(current.cfg, path)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	if result == nil || result.Cancelled {
		return nil
	}

	fmt.Println(ui.Success("Saved " + path))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := setup.DetectSetupStatus(current.cfg)
	if err != nil {
		return err
	}

	credentials := ui.Failure("missing")
	if status.HasClientID {
		credentials = ui.Success("configured")
	}
	walletInfo := ui.Warning("none")
	if status.HasWallet {
		walletInfo = status.WalletAddress
	}

	fmt.Print(ui.KV(
		"Config", configPath(),
		"Data dir", current.cfg.DataDir,
		"Client ID", credentials,
		"Chain", status.Chain,
		"Wallet", walletInfo,
	))
	if !status.IsComplete {
		fmt.Println()
		fmt.Println(ui.HelpStyle.Render("Run 'txflow setup' to finish configuration."))
	}
	return nil
}
