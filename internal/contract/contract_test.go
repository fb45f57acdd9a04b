package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
)

const erc20ABI = `[{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"}]`

func TestNew(t *testing.T) {
	cl, err := client.New(client.Options{ClientID: "test"})
	require.NoError(t, err)

	t.Run("normalises to checksum case", func(t *testing.T) {
		ct, err := New(cl, chain.FromID(1), "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
		require.NoError(t, err)
		assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", ct.Address().Hex())
		assert.Nil(t, ct.ABI())
		assert.Same(t, cl, ct.Client())
		assert.Equal(t, uint64(1), ct.Chain().ID())
	})

	t.Run("rejects bad addresses", func(t *testing.T) {
		for _, addr := range []string{"", "0x1234", "a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "0xzz0b86991c6218b36c1d19d4a2e9eb0ce3606eb4"} {
			_, err := New(cl, chain.FromID(1), addr)
			assert.ErrorIs(t, err, ErrInvalidAddress, addr)
		}
	})

	t.Run("parses abi", func(t *testing.T) {
		ct, err := New(cl, chain.FromID(1), "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", erc20ABI)
		require.NoError(t, err)
		require.NotNil(t, ct.ABI())
		_, ok := ct.ABI().Methods["decimals"]
		assert.True(t, ok)
	})

	t.Run("rejects bad abi", func(t *testing.T) {
		_, err := New(cl, chain.FromID(1), "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "{not json")
		assert.ErrorIs(t, err, ErrInvalidABI)
	})

	t.Run("must new panics", func(t *testing.T) {
		assert.Panics(t, func() { MustNew(cl, chain.FromID(1), "nope") })
	})
}
