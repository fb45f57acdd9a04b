package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	presets := Presets()

	t.Run("returns all expected chains", func(t *testing.T) {
		expected := []string{
			"arbitrum",
			"base",
			"base-sepolia",
			"ethereum",
			"optimism",
			"polygon",
			"sepolia",
		}
		assert.Equal(t, expected, PresetNames())
		assert.Len(t, presets, len(expected))
	})

	t.Run("ethereum preset is correct", func(t *testing.T) {
		eth := presets["ethereum"]
		assert.Equal(t, "Ethereum Mainnet", eth.Name)
		assert.Equal(t, uint64(1), eth.ChainID)
		assert.Equal(t, "https://etherscan.io", eth.ExplorerURL)
		assert.Equal(t, "ETH", eth.NativeCurrency.Symbol)
		assert.Equal(t, uint8(18), eth.NativeCurrency.Decimals)
		assert.False(t, eth.IsTestnet)
	})

	t.Run("polygon uses POL", func(t *testing.T) {
		assert.Equal(t, "POL", presets["polygon"].NativeCurrency.Symbol)
	})

	t.Run("testnets are flagged", func(t *testing.T) {
		assert.True(t, presets["sepolia"].IsTestnet)
		assert.True(t, presets["base-sepolia"].IsTestnet)
	})

	t.Run("chain IDs are unique", func(t *testing.T) {
		seen := make(map[uint64]string)
		for name, p := range presets {
			other, dup := seen[p.ChainID]
			assert.False(t, dup, "%s and %s share chain ID %d", name, other, p.ChainID)
			seen[p.ChainID] = name
		}
	})
}

func TestLookup(t *testing.T) {
	t.Run("preset by name", func(t *testing.T) {
		c, err := Lookup("Base", "")
		require.NoError(t, err)
		assert.Equal(t, uint64(8453), c.ID())
		assert.False(t, c.IsBare())
		nc, ok := c.NativeCurrency()
		require.True(t, ok)
		assert.Equal(t, "ETH", nc.Symbol)
	})

	t.Run("known numeric id maps to preset", func(t *testing.T) {
		c, err := Lookup("137", "")
		require.NoError(t, err)
		nc, ok := c.NativeCurrency()
		require.True(t, ok)
		assert.Equal(t, "POL", nc.Symbol)
	})

	t.Run("unknown numeric id is bare", func(t *testing.T) {
		c, err := Lookup("31337", "")
		require.NoError(t, err)
		assert.True(t, c.IsBare())
		assert.Equal(t, uint64(31337), c.ID())
	})

	t.Run("unknown numeric id with rpc is structured", func(t *testing.T) {
		c, err := Lookup("31337", "http://127.0.0.1:8545")
		require.NoError(t, err)
		assert.False(t, c.IsBare())
		assert.Equal(t, "http://127.0.0.1:8545", c.RPC())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := Lookup("narnia", "")
		var unknown *UnknownChainError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "narnia", unknown.Name)
	})

	t.Run("zero is rejected", func(t *testing.T) {
		_, err := Lookup("0", "")
		assert.Error(t, err)
	})
}
