package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/testutil"
)

// Well-known development key, never funded on a real network
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testChainID = 1337

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	return key
}

// testNode is a node that accepts transactions and reports every broadcast
// hash as mined in block 10
type testNode struct {
	*testutil.RPCServer

	mu   sync.Mutex
	sent []string
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	n := &testNode{RPCServer: testutil.NewRPCServer(t, testChainID)}
	testutil.StandardTxHandlers(n.RPCServer, &n.sent, &n.mu)
	n.Handle("eth_getTransactionReceipt", func(params []json.RawMessage) (any, error) {
		var hash string
		_ = json.Unmarshal(params[0], &hash)
		return testutil.ReceiptJSON(hash, 10, 1), nil
	})
	return n
}

func (n *testNode) chain() chain.Chain {
	return chain.Define(chain.Definition{ID: testChainID, RPC: n.URL})
}

func (n *testNode) broadcast() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

// stubWaiter answers every wait with a successful receipt
type stubWaiter struct {
	mu       sync.Mutex
	requests []receipt.Request
}

func (w *stubWaiter) Wait(ctx context.Context, req receipt.Request) (*types.Receipt, error) {
	w.mu.Lock()
	w.requests = append(w.requests, req)
	w.mu.Unlock()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: req.TransactionHash}, nil
}

func (w *stubWaiter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}
