// Package wallet connects signers to the transaction pipeline. Every wallet
// implements Adapter; signing capabilities beyond sending are optional
// interfaces checked with a type assertion.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/tx"
)

// Kind names a wallet variant
type Kind string

const (
	KindLocal    Kind = "local"
	KindInjected Kind = "injected"
	KindInApp    Kind = "inapp"
	KindSmart    Kind = "smart"
)

// ConnectOptions are passed to Adapter.Connect. Fields a variant does not
// use are ignored.
type ConnectOptions struct {
	Client *client.Client
	Chain  chain.Chain
	// Password unlocks a keystore account
	Password string
	// Auth carries embedded-wallet verification details
	Auth *InAppAuth
}

// Adapter is the capability every wallet provides
type Adapter interface {
	ID() string
	Kind() Kind
	// Address returns the bound address, zero before Connect
	Address() common.Address
	Connect(ctx context.Context, opts ConnectOptions) error
	Disconnect(ctx context.Context) error
	// SendTransaction signs and broadcasts r and returns without waiting
	// for inclusion
	SendTransaction(ctx context.Context, r *tx.Resolved) (*Submission, error)
	// EstimateGas is best effort
	EstimateGas(ctx context.Context, r *tx.Resolved) (uint64, error)
}

// MessageSigner signs EIP-191 personal messages
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// TransactionSigner signs without broadcasting
type TransactionSigner interface {
	SignTransaction(ctx context.Context, r *tx.Resolved) (*types.Transaction, error)
}

// TypedDataSigner signs EIP-712 typed data
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}
