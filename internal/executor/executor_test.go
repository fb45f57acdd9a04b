package executor

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/testutil"
	"github.com/yolodolo42/txflow/internal/tx"
	"github.com/yolodolo42/txflow/internal/wallet"
)

const tokenAddress = "0x00000000000000000000000000000000000000c0"

var recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")

// stubWaiter resolves every hash to a successful receipt in block 10
type stubWaiter struct {
	calls atomic.Int32
}

func (w *stubWaiter) Wait(ctx context.Context, req receipt.Request) (*types.Receipt, error) {
	w.calls.Add(1)
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(10),
		TxHash:      req.TransactionHash,
	}, nil
}

// recordingAdapter records what it is asked to send
type recordingAdapter struct {
	address common.Address
	waiter  wallet.ReceiptWaiter

	estimate    uint64
	estimateErr error
	sendErr     error

	mu   sync.Mutex
	sent []*tx.Resolved
}

func (a *recordingAdapter) ID() string             { return "recording" }
func (a *recordingAdapter) Kind() wallet.Kind      { return wallet.KindInjected }
func (a *recordingAdapter) Address() common.Address { return a.address }

func (a *recordingAdapter) Connect(ctx context.Context, opts wallet.ConnectOptions) error {
	a.address = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	return nil
}

func (a *recordingAdapter) Disconnect(ctx context.Context) error {
	a.address = common.Address{}
	return nil
}

func (a *recordingAdapter) SendTransaction(ctx context.Context, r *tx.Resolved) (*wallet.Submission, error) {
	a.mu.Lock()
	a.sent = append(a.sent, r)
	a.mu.Unlock()
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	return wallet.NewSubmission(common.HexToHash("0xabc"), r.Chain, r.Client, a.waiter), nil
}

func (a *recordingAdapter) EstimateGas(ctx context.Context, r *tx.Resolved) (uint64, error) {
	return a.estimate, a.estimateErr
}

func connected(t *testing.T) *recordingAdapter {
	t.Helper()
	a := &recordingAdapter{waiter: &stubWaiter{}, estimate: 60_000}
	require.NoError(t, a.Connect(context.Background(), wallet.ConnectOptions{}))
	return a
}

func testContract(t *testing.T) *contract.Contract {
	t.Helper()
	cl, err := client.New(client.Options{ClientID: "test"})
	require.NoError(t, err)
	return contract.MustNew(cl, chain.FromID(31337), tokenAddress)
}

func TestExecute_EndToEnd(t *testing.T) {
	var resolverCalls atomic.Int32
	d := tx.Prepare(testContract(t), "function transfer(address to, uint256 amount)",
		tx.Deferred(func(context.Context) ([]any, error) {
			resolverCalls.Add(1)
			return []any{recipient, big.NewInt(100)}, nil
		}),
		tx.WithValueFunc(func(ctx context.Context, params []any) (*big.Int, error) {
			return new(big.Int), nil
		}),
		tx.WithGasFunc(func(ctx context.Context, params []any) (uint64, error) {
			return 90_000, nil
		}),
	)

	var states []State
	e := New(chain.NewRegistry(), WithStateHook(func(s State) { states = append(states, s) }))
	a := connected(t)

	sub, err := e.Execute(context.Background(), d, a)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc"), sub.TransactionHash)
	assert.Equal(t, int32(1), resolverCalls.Load())

	require.Len(t, a.sent, 1)
	sent := a.sent[0]
	assert.Equal(t, "0xa9059cbb"+
		"00000000000000000000000000000000000000000000000000000000000000aa"+
		"0000000000000000000000000000000000000000000000000000000000000064",
		hexutil.Encode(sent.Data))
	assert.Equal(t, uint64(90_000), sent.Gas)

	assert.Equal(t, []State{StateBuilt, StateResolving, StateSigning, StateBroadcasting, StateSubmitted}, states)

	r, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	assert.Equal(t, big.NewInt(10), r.BlockNumber)

	again, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, r, again)
	assert.Equal(t, int32(1), a.waiter.(*stubWaiter).calls.Load())
}

func TestExecute_NoWallet(t *testing.T) {
	e := New(chain.NewRegistry())
	d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

	t.Run("nil adapter", func(t *testing.T) {
		_, err := e.Execute(context.Background(), d, nil)
		var noWallet *NoWalletError
		assert.True(t, errors.As(err, &noWallet))
	})

	t.Run("adapter without address", func(t *testing.T) {
		_, err := e.Execute(context.Background(), d, &recordingAdapter{})
		var noWallet *NoWalletError
		assert.True(t, errors.As(err, &noWallet))
	})

	// failing fast leaves the descriptor usable
	assert.False(t, d.Consumed())
}

func TestExecute_ConsumesOnce(t *testing.T) {
	e := New(chain.NewRegistry())
	a := connected(t)
	d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

	_, err := e.Execute(context.Background(), d, a)
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), d, a)
	assert.ErrorIs(t, err, tx.ErrDescriptorConsumed)
	assert.Len(t, a.sent, 1)
}

func TestExecute_ABIMismatch(t *testing.T) {
	e := New(chain.NewRegistry())
	a := connected(t)
	d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient))

	_, err := e.Execute(context.Background(), d, a)
	var callErr *tx.ContractCallError
	assert.True(t, errors.As(err, &callErr))
	assert.Empty(t, a.sent)
}

func TestExecute_GasEstimation(t *testing.T) {
	t.Run("uses the adapter estimate", func(t *testing.T) {
		a := connected(t)
		d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

		_, err := New(chain.NewRegistry()).Execute(context.Background(), d, a)
		require.NoError(t, err)
		assert.Equal(t, uint64(60_000), a.sent[0].Gas)
	})

	t.Run("falls back to the default ceiling", func(t *testing.T) {
		a := connected(t)
		a.estimateErr = errors.New("node unavailable")
		d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

		_, err := New(chain.NewRegistry()).Execute(context.Background(), d, a)
		require.NoError(t, err)
		assert.Equal(t, uint64(tx.DefaultGasCeiling), a.sent[0].Gas)
	})

	t.Run("revert stops the submission", func(t *testing.T) {
		a := connected(t)
		a.estimateErr = &tx.ContractCallError{Method: "transfer(address,uint256)", Reason: "insufficient balance"}
		d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

		_, err := New(chain.NewRegistry()).Execute(context.Background(), d, a)
		var callErr *tx.ContractCallError
		require.True(t, errors.As(err, &callErr))
		assert.Equal(t, "insufficient balance", callErr.Reason)
		assert.Empty(t, a.sent)
	})

	t.Run("memoized descriptor keeps zero gas", func(t *testing.T) {
		a := connected(t)
		d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

		_, err := New(chain.NewRegistry()).Execute(context.Background(), d, a)
		require.NoError(t, err)
		r, err := d.Resolve(context.Background())
		require.NoError(t, err)
		assert.Zero(t, r.Gas)
	})
}

func TestExecute_Policy(t *testing.T) {
	a := connected(t)
	policy := &tx.Policy{DenyTo: []common.Address{common.HexToAddress(tokenAddress)}}
	d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

	_, err := New(chain.NewRegistry(), WithPolicy(policy)).Execute(context.Background(), d, a)
	assert.ErrorIs(t, err, tx.ErrPolicyViolation)
	assert.Empty(t, a.sent)
}

func TestExecute_RejectionPropagates(t *testing.T) {
	a := connected(t)
	a.sendErr = &wallet.UserRejectedError{Method: "eth_sendTransaction"}
	d := tx.Prepare(testContract(t), "transfer(address,uint256)", tx.Literal(recipient, big.NewInt(1)))

	_, err := New(chain.NewRegistry()).Execute(context.Background(), d, a)
	var rejected *wallet.UserRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Len(t, a.sent, 1, "no retry")
}

func TestSubmit_SignsLocallyAndBroadcasts(t *testing.T) {
	node := testutil.NewRPCServer(t, 1337)
	var (
		mu   sync.Mutex
		sent []string
	)
	testutil.StandardTxHandlers(node, &sent, &mu)
	node.Handle("eth_getTransactionReceipt", func(params []json.RawMessage) (any, error) {
		var hash string
		_ = json.Unmarshal(params[0], &hash)
		return testutil.ReceiptJSON(hash, 10, 1), nil
	})

	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	reg := chain.NewRegistry()
	local := wallet.NewLocalAccountFromKey(key, wallet.WithRegistry(reg))
	require.NoError(t, local.Connect(context.Background(), wallet.ConnectOptions{}))

	var states []State
	e := New(reg,
		WithReceiptWaiter(receipt.NewPoller(reg, nil, receipt.WithInterval(10*time.Millisecond))),
		WithStateHook(func(s State) { states = append(states, s) }),
	)

	c := chain.Define(chain.Definition{ID: 1337, RPC: node.URL})
	sub, err := e.Submit(context.Background(), tx.Native(c, nil, recipient, big.NewInt(1)), local)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToHash(sent[0]), sub.TransactionHash)
	mu.Unlock()
	assert.Equal(t, []State{StateBuilt, StateResolving, StateSigning, StateBroadcasting, StateSubmitted}, states)

	r, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sub.TransactionHash, r.TxHash)
}

type mockWaiter struct {
	mock.Mock
}

func (m *mockWaiter) Wait(ctx context.Context, req receipt.Request) (*types.Receipt, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*types.Receipt)
	return r, args.Error(1)
}

func TestSubmit_WaitsThroughExecutorWaiter(t *testing.T) {
	node := testutil.NewRPCServer(t, 1337)
	var (
		mu   sync.Mutex
		sent []string
	)
	testutil.StandardTxHandlers(node, &sent, &mu)

	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	reg := chain.NewRegistry()
	local := wallet.NewLocalAccountFromKey(key, wallet.WithRegistry(reg))
	require.NoError(t, local.Connect(context.Background(), wallet.ConnectOptions{}))

	waiter := &mockWaiter{}
	c := chain.Define(chain.Definition{ID: 1337, RPC: node.URL})

	e := New(reg, WithReceiptWaiter(waiter))
	sub, err := e.Submit(context.Background(), tx.Native(c, nil, recipient, big.NewInt(1)), local)
	require.NoError(t, err)

	want := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10), TxHash: sub.TransactionHash}
	waiter.On("Wait", mock.Anything, mock.MatchedBy(func(req receipt.Request) bool {
		return req.TransactionHash == sub.TransactionHash && req.Chain.ID() == 1337
	})).Return(want, nil).Once()

	for range 2 {
		r, err := sub.Wait(context.Background())
		require.NoError(t, err)
		assert.Same(t, want, r)
	}
	waiter.AssertExpectations(t)
	waiter.AssertNumberOfCalls(t, "Wait", 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "built", StateBuilt.String())
	assert.Equal(t, "submitted", StateSubmitted.String())
	assert.Equal(t, "state(9)", State(9).String())
}
