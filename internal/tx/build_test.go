package tx

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	nonce     uint64
	tip       *big.Int
	price     *big.Int
	gas       uint64
	gasErr    error
	estimates int
	lastMsg   ethereum.CallMsg
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return f.tip, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.price, nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimates++
	f.lastMsg = msg
	return f.gas, f.gasErr
}

type revertErr struct{ data string }

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorCode() int         { return 3 }
func (e revertErr) ErrorData() interface{} { return e.data }

func TestBuildUnsignedTx(t *testing.T) {
	ctx := context.Background()
	from := common.HexToAddress("0x00000000000000000000000000000000000000f0")

	t.Run("fills nonce fees and gas", func(t *testing.T) {
		b := &fakeBackend{nonce: 4, tip: big.NewInt(2), price: big.NewInt(30), gas: 21000}
		r := &Resolved{ChainID: 10, To: recipient, Value: big.NewInt(1)}

		unsigned, fees, err := BuildUnsignedTx(ctx, b, from, r)
		require.NoError(t, err)
		assert.Equal(t, uint8(types.DynamicFeeTxType), unsigned.Type())
		assert.Equal(t, uint64(4), unsigned.Nonce())
		assert.Equal(t, uint64(21000), unsigned.Gas())
		assert.Equal(t, int64(10), unsigned.ChainId().Int64())
		assert.Equal(t, int64(30*21000+1), fees.EstimatedCostWei.Int64())
		assert.Equal(t, from, b.lastMsg.From)
	})

	t.Run("fixed gas skips estimation", func(t *testing.T) {
		b := &fakeBackend{tip: big.NewInt(1), price: big.NewInt(1)}
		nonce := uint64(9)
		r := &Resolved{ChainID: 1, To: recipient, Gas: 60000, Nonce: &nonce}

		unsigned, _, err := BuildUnsignedTx(ctx, b, from, r)
		require.NoError(t, err)
		assert.Equal(t, 0, b.estimates)
		assert.Equal(t, uint64(9), unsigned.Nonce())
		assert.Equal(t, int64(0), unsigned.Value().Int64())
	})

	t.Run("fee cap never below tip", func(t *testing.T) {
		b := &fakeBackend{tip: big.NewInt(50), price: big.NewInt(10), gas: 21000}
		unsigned, _, err := BuildUnsignedTx(ctx, b, from, &Resolved{ChainID: 1, To: recipient})
		require.NoError(t, err)
		assert.Equal(t, int64(50), unsigned.GasFeeCap().Int64())
	})

	t.Run("gas price means legacy", func(t *testing.T) {
		b := &fakeBackend{gas: 21000}
		unsigned, fees, err := BuildUnsignedTx(ctx, b, from, &Resolved{ChainID: 1, To: recipient, GasPrice: big.NewInt(7)})
		require.NoError(t, err)
		assert.Equal(t, uint8(types.LegacyTxType), unsigned.Type())
		assert.Equal(t, int64(7), unsigned.GasPrice().Int64())
		assert.Equal(t, int64(7*21000), fees.EstimatedCostWei.Int64())
	})

	t.Run("revert during estimation", func(t *testing.T) {
		// Error(string) "nope"
		data := "0x08c379a0" +
			"0000000000000000000000000000000000000000000000000000000000000020" +
			"0000000000000000000000000000000000000000000000000000000000000004" +
			"6e6f706500000000000000000000000000000000000000000000000000000000"
		b := &fakeBackend{tip: big.NewInt(1), price: big.NewInt(1), gasErr: revertErr{data: data}}
		r := &Resolved{ChainID: 1, To: recipient, Method: "mint(address)"}

		_, _, err := BuildUnsignedTx(ctx, b, from, r)
		var cce *ContractCallError
		require.ErrorAs(t, err, &cce)
		assert.Equal(t, "nope", cce.Reason)
		assert.Equal(t, "mint(address)", cce.Method)
	})

	t.Run("other estimation errors pass through", func(t *testing.T) {
		boom := errors.New("connection refused")
		b := &fakeBackend{tip: big.NewInt(1), price: big.NewInt(1), gasErr: boom}
		_, _, err := BuildUnsignedTx(ctx, b, from, &Resolved{ChainID: 1, To: recipient})
		assert.ErrorIs(t, err, boom)
		var cce *ContractCallError
		assert.False(t, errors.As(err, &cce))
	})
}
