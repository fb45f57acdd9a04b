package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/config"
	"github.com/yolodolo42/txflow/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{DataDir: testutil.DataDir(t), Chain: "ethereum"}
}

func writeKeystoreFile(t *testing.T, dir, name string) {
	t.Helper()
	keystoreDir := filepath.Join(dir, "keystore")
	require.NoError(t, os.MkdirAll(keystoreDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(keystoreDir, name), []byte("{}"), 0600))
}

func TestDetectSetupStatus(t *testing.T) {
	t.Run("returns empty status for fresh directory", func(t *testing.T) {
		cfg := testConfig(t)

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)

		assert.False(t, status.HasClientID)
		assert.False(t, status.HasWallet)
		assert.False(t, status.IsComplete)
		assert.Equal(t, "ethereum", status.Chain)
		assert.Empty(t, status.WalletAddress)
	})

	t.Run("client id completes setup", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ClientID = "abc123"

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)

		assert.True(t, status.HasClientID)
		assert.True(t, status.IsComplete)
	})

	t.Run("secret key counts as credentials", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SecretKey = "sk-test"

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)
		assert.True(t, status.IsComplete)
	})

	t.Run("detects wallet from keystore", func(t *testing.T) {
		cfg := testConfig(t)
		writeKeystoreFile(t, cfg.DataDir, "UTC--2024-01-01T00-00-00.000000000Z--1234567890123456789012345678901234567890")

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)

		assert.True(t, status.HasWallet)
	})

	t.Run("ignores hidden files in keystore", func(t *testing.T) {
		cfg := testConfig(t)
		writeKeystoreFile(t, cfg.DataDir, ".DS_Store")

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)

		assert.False(t, status.HasWallet)
	})

	t.Run("ignores directories in keystore", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.MkdirAll(filepath.Join(cfg.DataDir, "keystore", "subdir"), 0700))

		status, err := DetectSetupStatus(cfg)
		require.NoError(t, err)

		assert.False(t, status.HasWallet)
	})
}

func TestNeedsSetup(t *testing.T) {
	cfg := testConfig(t)
	assert.True(t, NeedsSetup(cfg))

	cfg.ClientID = "abc123"
	assert.False(t, NeedsSetup(cfg))
}

func TestSaveConfig(t *testing.T) {
	dir := testutil.DataDir(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nclient_id: old\n"), 0600))

	require.NoError(t, SaveConfig(path, "new-id", "base"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "client_id: new-id")
	assert.Contains(t, string(raw), "chain: base")
	assert.Contains(t, string(raw), "log_level: debug")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	t.Run("empty client id keeps stored value", func(t *testing.T) {
		require.NoError(t, SaveConfig(path, "", "arbitrum"))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "client_id: new-id")
		assert.Contains(t, string(raw), "chain: arbitrum")
	})
}
