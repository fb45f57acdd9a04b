package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/config"
)

// validateCmd checks the client ID off the UI goroutine
func (m WizardModel) validateCmd(clientID string) tea.Cmd {
	chainKey := m.chainKey
	validate := m.validate

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return clientValidatedMsg{err: validate(ctx, clientID, chainKey)}
	}
}

// validateClientID asks the chain's first-party RPC endpoint for its chain
// ID, which fails for unknown client IDs
func validateClientID(ctx context.Context, clientID, chainKey string) error {
	cl, err := client.New(client.Options{ClientID: clientID})
	if err != nil {
		return err
	}
	c, err := chain.Lookup(chainKey, "")
	if err != nil {
		c = chain.FromID(1)
	}

	reg := chain.NewRegistry(chain.WithClient(cl))
	defer reg.Close()

	ec, err := reg.Dial(ctx, c, cl)
	if err != nil {
		return err
	}
	id, err := ec.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("RPC test failed: %w", err)
	}
	if id.Uint64() != c.ID() {
		return fmt.Errorf("RPC returned chain %d, expected %d", id.Uint64(), c.ID())
	}
	return nil
}

// SaveConfig merges clientID and chainKey into the YAML config at path,
// keeping any other settings already there. An empty clientID leaves the
// stored value alone.
func SaveConfig(path, clientID, chainKey string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if clientID != "" {
		v.Set(config.KeyClientID, clientID)
	}
	if chainKey != "" {
		v.Set(config.KeyChain, chainKey)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
