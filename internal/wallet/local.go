package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/yolodolo42/txflow/internal/tx"
)

// LocalAccount signs with a private key held in process, unlocked from a
// keystore on Connect or supplied directly
type LocalAccount struct {
	base

	km     *KeystoreManager
	target common.Address

	// keyMu protects key from concurrent access. Prevents signing from
	// racing with Lock, which zeros the key material.
	keyMu sync.RWMutex
	key   *ecdsa.PrivateKey
}

var (
	_ Adapter           = (*LocalAccount)(nil)
	_ MessageSigner     = (*LocalAccount)(nil)
	_ TransactionSigner = (*LocalAccount)(nil)
	_ TypedDataSigner   = (*LocalAccount)(nil)
)

// NewLocalAccount returns an adapter for a keystore account. Connect
// unlocks it with ConnectOptions.Password.
func NewLocalAccount(km *KeystoreManager, address common.Address, opts ...Option) *LocalAccount {
	return &LocalAccount{base: newBase(KindLocal, opts), km: km, target: address}
}

// NewLocalAccountFromKey returns an adapter around an in-memory key
func NewLocalAccountFromKey(key *ecdsa.PrivateKey, opts ...Option) *LocalAccount {
	return &LocalAccount{
		base:   newBase(KindLocal, opts),
		target: crypto.PubkeyToAddress(key.PublicKey),
		key:    key,
	}
}

func (a *LocalAccount) Connect(ctx context.Context, opts ConnectOptions) error {
	a.keyMu.Lock()
	if a.key == nil {
		if a.km == nil {
			a.keyMu.Unlock()
			return &ConnectionError{Wallet: KindLocal, Err: ErrAccountLocked}
		}
		key, err := a.km.Unlock(a.target, opts.Password)
		if err != nil {
			a.keyMu.Unlock()
			return &ConnectionError{Wallet: KindLocal, Err: err}
		}
		a.key = key
	}
	a.keyMu.Unlock()

	a.bind(a.target, opts)
	a.logger.Debug().Str("address", a.target.Hex()).Msg("wallet connected")
	return nil
}

// Disconnect unbinds the address and zeroes a keystore-backed key
func (a *LocalAccount) Disconnect(ctx context.Context) error {
	a.unbind()
	if a.km != nil {
		a.Lock()
	}
	return nil
}

// Lock zeros private key material from memory. Safe to call multiple times.
// After Lock, all signing operations return ErrAccountLocked.
func (a *LocalAccount) Lock() {
	a.keyMu.Lock()
	defer a.keyMu.Unlock()

	if a.key != nil {
		a.key.D.SetInt64(0)
		a.key = nil
	}
}

func (a *LocalAccount) EstimateGas(ctx context.Context, r *tx.Resolved) (uint64, error) {
	from, err := a.sender()
	if err != nil {
		return 0, err
	}
	ec, err := a.registry.Dial(ctx, r.Chain, a.clientFor(r.Client))
	if err != nil {
		return 0, err
	}
	return tx.EstimateGas(ctx, ec, from, r)
}

// SignTransaction completes r against the node and signs it
func (a *LocalAccount) SignTransaction(ctx context.Context, r *tx.Resolved) (*types.Transaction, error) {
	from, err := a.sender()
	if err != nil {
		return nil, err
	}
	ec, err := a.registry.Dial(ctx, r.Chain, a.clientFor(r.Client))
	if err != nil {
		return nil, err
	}
	unsigned, _, err := tx.BuildUnsignedTx(ctx, ec, from, r)
	if err != nil {
		return nil, err
	}
	return a.signTx(unsigned, new(big.Int).SetUint64(r.ChainID))
}

func (a *LocalAccount) SendTransaction(ctx context.Context, r *tx.Resolved) (*Submission, error) {
	signed, err := a.SignTransaction(ctx, r)
	if err != nil {
		return nil, err
	}

	cl := a.clientFor(r.Client)
	ec, err := a.registry.Dial(ctx, r.Chain, cl)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := ec.SendTransaction(sendCtx, signed); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}

	a.logger.Info().Str("tx_hash", signed.Hash().Hex()).Uint64("chain_id", r.ChainID).Msg("transaction broadcast")
	return NewSubmission(signed.Hash(), r.Chain, cl, a.waiterFor(cl)), nil
}

func (a *LocalAccount) signTx(unsigned *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	a.keyMu.RLock()
	defer a.keyMu.RUnlock()

	if a.key == nil {
		return nil, ErrAccountLocked
	}
	return types.SignTx(unsigned, types.LatestSignerForChainID(chainID), a.key)
}

// SignMessage signs an arbitrary message using EIP-191 personal sign
func (a *LocalAccount) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return a.signHash(accounts.TextHash(message))
}

// SignTypedData signs EIP-712 typed data
func (a *LocalAccount) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return a.signHash(hash)
}

func (a *LocalAccount) signHash(hash []byte) ([]byte, error) {
	a.keyMu.RLock()
	defer a.keyMu.RUnlock()

	if a.key == nil {
		return nil, ErrAccountLocked
	}

	sig, err := crypto.Sign(hash, a.key)
	if err != nil {
		return nil, err
	}

	// crypto.Sign returns V as 0/1; ecrecover expects 27/28.
	sig[64] += 27
	return sig, nil
}
