package setup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yolodolo42/txflow/internal/config"
	"github.com/yolodolo42/txflow/internal/wallet"
)

// SetupStatus represents the current setup state
type SetupStatus struct {
	HasClientID   bool
	HasWallet     bool
	IsComplete    bool
	Chain         string
	WalletAddress string
}

// DetectSetupStatus checks the loaded configuration and the keystore
func DetectSetupStatus(cfg *config.Config) (*SetupStatus, error) {
	status := &SetupStatus{
		HasClientID: cfg.ClientID != "" || cfg.SecretKey != "",
		Chain:       cfg.Chain,
	}

	keystoreDir := filepath.Join(cfg.DataDir, "keystore")
	if entries, err := os.ReadDir(keystoreDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
				status.HasWallet = true
				break
			}
		}
	}

	if status.HasWallet {
		km, err := wallet.NewKeystoreManager(cfg.DataDir)
		if err == nil {
			if accounts := km.ListAccounts(); len(accounts) > 0 {
				status.WalletAddress = accounts[0].Address.Hex()
			}
		}
	}

	// A client ID is enough for reads and RPC access; the wallet is optional
	status.IsComplete = status.HasClientID

	return status, nil
}

// NeedsSetup returns true if interactive setup should run
func NeedsSetup(cfg *config.Config) bool {
	status, _ := DetectSetupStatus(cfg)
	return !status.IsComplete
}
