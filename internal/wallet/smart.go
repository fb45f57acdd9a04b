package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/tx"
)

// DefaultEntrypoint is the ERC-4337 v0.6 entrypoint
var DefaultEntrypoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

const bundlerURLTemplate = "https://%d.bundler.thirdweb.com"

// dummySignature has the length and shape of a real one so bundlers can
// simulate validation before the operation is signed
var dummySignature = hexutil.MustDecode("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")

const accountABI = `[
	{"type":"function","name":"execute","stateMutability":"nonpayable","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"getAddress","stateMutability":"view","inputs":[{"name":"admin","type":"address"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"createAccount","stateMutability":"nonpayable","inputs":[{"name":"admin","type":"address"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getNonce","stateMutability":"view","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"name":"nonce","type":"uint256"}]}
]`

var smartABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(accountABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// UserOperation is an ERC-4337 v0.6 user operation
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// Hash is the v0.6 user operation hash for entrypoint on chainID
func (op *UserOperation) Hash(entrypoint common.Address, chainID uint64) (common.Hash, error) {
	packed, err := userOpArgs.Pack(
		op.Sender,
		op.Nonce.ToInt(),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		op.CallGasLimit.ToInt(),
		op.VerificationGasLimit.ToInt(),
		op.PreVerificationGas.ToInt(),
		op.MaxFeePerGas.ToInt(),
		op.MaxPriorityFeePerGas.ToInt(),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, err
	}
	outer, err := hashArgs.Pack(crypto.Keccak256Hash(packed), entrypoint, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(outer), nil
}

var (
	userOpArgs = mustArgs("address", "uint256", "bytes32", "bytes32", "uint256", "uint256", "uint256", "uint256", "uint256", "bytes32")
	hashArgs   = mustArgs("bytes32", "address", "uint256")
)

func mustArgs(kinds ...string) abi.Arguments {
	args := make(abi.Arguments, len(kinds))
	for i, t := range kinds {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: typ}
	}
	return args
}

// PaymasterResult is what a paymaster returns for an operation. Zero gas
// fields mean the paymaster left estimation to the bundler.
type PaymasterResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit,omitempty"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit,omitempty"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas,omitempty"`
}

// PaymasterFunc sponsors an operation
type PaymasterFunc func(ctx context.Context, op *UserOperation) (*PaymasterResult, error)

// WithFactory sets the account factory
func WithFactory(factory common.Address) Option {
	return func(s *settings) { s.factory = factory }
}

// WithEntrypoint overrides DefaultEntrypoint
func WithEntrypoint(entrypoint common.Address) Option {
	return func(s *settings) { s.entrypoint = entrypoint }
}

// WithBundlerURL overrides the chain's default bundler
func WithBundlerURL(url string) Option {
	return func(s *settings) { s.bundlerURL = url }
}

// WithAccountAddress skips the factory lookup
func WithAccountAddress(addr common.Address) Option {
	return func(s *settings) { s.accountAddress = addr }
}

// WithGasless has the bundler's paymaster sponsor every operation
func WithGasless(gasless bool) Option {
	return func(s *settings) { s.gasless = gasless }
}

// WithPaymaster installs a custom paymaster hook. It takes precedence over
// WithGasless.
func WithPaymaster(fn PaymasterFunc) Option {
	return func(s *settings) { s.paymaster = fn }
}

// PersonalAccount is the key that owns a smart account
type PersonalAccount interface {
	Adapter
	MessageSigner
}

// SmartAccount sends transactions as ERC-4337 user operations from a
// contract account owned by a personal account
type SmartAccount struct {
	base

	personal PersonalAccount
	bundler  *rpc.Client
}

var _ Adapter = (*SmartAccount)(nil)

func NewSmartAccount(personal PersonalAccount, opts ...Option) *SmartAccount {
	return &SmartAccount{base: newBase(KindSmart, opts), personal: personal}
}

// Personal returns the owning account
func (w *SmartAccount) Personal() PersonalAccount {
	return w.personal
}

func (w *SmartAccount) Connect(ctx context.Context, opts ConnectOptions) error {
	if w.personal.Address() == (common.Address{}) {
		if err := w.personal.Connect(ctx, opts); err != nil {
			return &ConnectionError{Wallet: KindSmart, Err: err}
		}
	}

	ec, err := w.registry.Dial(ctx, opts.Chain, opts.Client)
	if err != nil {
		return &ConnectionError{Wallet: KindSmart, Err: err}
	}
	addr, err := w.accountAddressFor(ctx, ec)
	if err != nil {
		return &ConnectionError{Wallet: KindSmart, Err: err}
	}

	url := w.bundlerURL
	if url == "" {
		url = BundlerURL(opts.Chain)
	}
	var rpcOpts []rpc.ClientOption
	if opts.Client != nil {
		rpcOpts = append(rpcOpts, rpc.WithHTTPClient(opts.Client.HTTPClient()))
	}
	bundler, err := rpc.DialOptions(ctx, url, rpcOpts...)
	if err != nil {
		return &ConnectionError{Wallet: KindSmart, Err: fmt.Errorf("failed to dial bundler: %w", err)}
	}

	w.mu.Lock()
	if w.bundler != nil {
		w.bundler.Close()
	}
	w.bundler = bundler
	w.mu.Unlock()

	w.bind(addr, opts)
	w.logger.Debug().
		Str("address", addr.Hex()).
		Str("owner", w.personal.Address().Hex()).
		Msg("wallet connected")
	return nil
}

func (w *SmartAccount) accountAddressFor(ctx context.Context, ec *ethclient.Client) (common.Address, error) {
	if w.accountAddress != (common.Address{}) {
		return w.accountAddress, nil
	}
	if w.factory == (common.Address{}) {
		return common.Address{}, errors.New("smart account needs a factory or an account address")
	}
	data, err := smartABI.Pack("getAddress", w.personal.Address(), []byte{})
	if err != nil {
		return common.Address{}, err
	}
	out, err := ec.CallContract(ctx, ethereum.CallMsg{To: &w.factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to compute account address: %w", err)
	}
	vals, err := smartABI.Unpack("getAddress", out)
	if err != nil || len(vals) == 0 {
		return common.Address{}, fmt.Errorf("failed to decode account address: %w", err)
	}
	addr, ok := vals[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, errors.New("factory returned no account address")
	}
	return addr, nil
}

// Disconnect closes the bundler connection. The personal account stays
// connected.
func (w *SmartAccount) Disconnect(ctx context.Context) error {
	w.unbind()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bundler != nil {
		w.bundler.Close()
		w.bundler = nil
	}
	return nil
}

func (w *SmartAccount) connected() (*rpc.Client, common.Address, error) {
	sender, err := w.sender()
	if err != nil {
		return nil, common.Address{}, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.bundler == nil {
		return nil, common.Address{}, ErrNoAddress
	}
	return w.bundler, sender, nil
}

// EstimateGas estimates the inner call as if sent from the account
func (w *SmartAccount) EstimateGas(ctx context.Context, r *tx.Resolved) (uint64, error) {
	sender, err := w.sender()
	if err != nil {
		return 0, err
	}
	ec, err := w.registry.Dial(ctx, r.Chain, w.clientFor(r.Client))
	if err != nil {
		return 0, err
	}
	return tx.EstimateGas(ctx, ec, sender, r)
}

// BuildUserOperation wraps r in an unsigned, gas-filled user operation
func (w *SmartAccount) BuildUserOperation(ctx context.Context, r *tx.Resolved) (*UserOperation, error) {
	bundler, sender, err := w.connected()
	if err != nil {
		return nil, err
	}
	ec, err := w.registry.Dial(ctx, r.Chain, w.clientFor(r.Client))
	if err != nil {
		return nil, err
	}

	value := r.Value
	if value == nil {
		value = new(big.Int)
	}
	callData, err := smartABI.Pack("execute", r.To, value, []byte(r.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute: %w", err)
	}

	nonce, err := w.entrypointNonce(ctx, ec, sender)
	if err != nil {
		return nil, err
	}
	initCode, err := w.initCode(ctx, ec, sender)
	if err != nil {
		return nil, err
	}
	maxFee, tip, err := userOpFees(ctx, ec, r)
	if err != nil {
		return nil, err
	}

	op := &UserOperation{
		Sender:               sender,
		Nonce:                (*hexutil.Big)(nonce),
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         (*hexutil.Big)(new(big.Int)),
		VerificationGasLimit: (*hexutil.Big)(new(big.Int)),
		PreVerificationGas:   (*hexutil.Big)(new(big.Int)),
		MaxFeePerGas:         (*hexutil.Big)(maxFee),
		MaxPriorityFeePerGas: (*hexutil.Big)(tip),
		PaymasterAndData:     []byte{},
		Signature:            dummySignature,
	}

	if err := w.fillGas(ctx, bundler, op, r); err != nil {
		return nil, err
	}
	return op, nil
}

func (w *SmartAccount) entrypointNonce(ctx context.Context, ec *ethclient.Client, sender common.Address) (*big.Int, error) {
	data, err := smartABI.Pack("getNonce", sender, new(big.Int))
	if err != nil {
		return nil, err
	}
	out, err := ec.CallContract(ctx, ethereum.CallMsg{To: &w.entrypoint, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read account nonce: %w", err)
	}
	vals, err := smartABI.Unpack("getNonce", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("failed to decode account nonce: %w", err)
	}
	nonce, ok := vals[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected nonce type")
	}
	return nonce, nil
}

// initCode deploys the account with its first operation
func (w *SmartAccount) initCode(ctx context.Context, ec *ethclient.Client, sender common.Address) ([]byte, error) {
	code, err := ec.CodeAt(ctx, sender, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check account deployment: %w", err)
	}
	if len(code) > 0 {
		return []byte{}, nil
	}
	if w.factory == (common.Address{}) {
		return nil, errors.New("account is not deployed and no factory is set")
	}
	data, err := smartABI.Pack("createAccount", w.personal.Address(), []byte{})
	if err != nil {
		return nil, err
	}
	return append(w.factory.Bytes(), data...), nil
}

func userOpFees(ctx context.Context, ec *ethclient.Client, r *tx.Resolved) (*big.Int, *big.Int, error) {
	if r.MaxFeePerGas != nil && r.MaxPriorityFeePerGas != nil {
		return r.MaxFeePerGas, r.MaxPriorityFeePerGas, nil
	}
	tip, err := ec.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	price, err := ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	maxFee := new(big.Int).Mul(price, big.NewInt(2))
	if maxFee.Cmp(tip) < 0 {
		maxFee = new(big.Int).Set(tip)
	}
	return maxFee, tip, nil
}

type userOpGas struct {
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
}

// fillGas applies paymaster data and gas limits to op
func (w *SmartAccount) fillGas(ctx context.Context, bundler *rpc.Client, op *UserOperation, r *tx.Resolved) error {
	var pm *PaymasterResult
	switch {
	case w.paymaster != nil:
		res, err := w.paymaster(ctx, op)
		if err != nil {
			return fmt.Errorf("paymaster failed: %w", err)
		}
		pm = res
	case w.gasless:
		pm = new(PaymasterResult)
		if err := bundler.CallContext(ctx, pm, "pm_sponsorUserOperation", op, w.entrypoint); err != nil {
			return fmt.Errorf("failed to sponsor user operation: %w", err)
		}
	}

	if pm != nil {
		op.PaymasterAndData = pm.PaymasterAndData
		if pm.CallGasLimit != nil && pm.VerificationGasLimit != nil && pm.PreVerificationGas != nil {
			op.CallGasLimit = pm.CallGasLimit
			op.VerificationGasLimit = pm.VerificationGasLimit
			op.PreVerificationGas = pm.PreVerificationGas
			return nil
		}
	}

	var est userOpGas
	if err := bundler.CallContext(ctx, &est, "eth_estimateUserOperationGas", op, w.entrypoint); err != nil {
		return tx.CallError(r, fmt.Errorf("failed to estimate user operation gas: %w", err))
	}
	if est.CallGasLimit == nil || est.VerificationGasLimit == nil || est.PreVerificationGas == nil {
		return errors.New("bundler returned incomplete gas estimate")
	}
	op.CallGasLimit = est.CallGasLimit
	if r.Gas > est.CallGasLimit.ToInt().Uint64() {
		op.CallGasLimit = (*hexutil.Big)(new(big.Int).SetUint64(r.Gas))
	}
	op.VerificationGasLimit = est.VerificationGasLimit
	op.PreVerificationGas = est.PreVerificationGas
	return nil
}

// SignUserOperation signs the operation hash with the personal account
func (w *SmartAccount) SignUserOperation(ctx context.Context, op *UserOperation, chainID uint64) error {
	hash, err := op.Hash(w.entrypoint, chainID)
	if err != nil {
		return fmt.Errorf("failed to hash user operation: %w", err)
	}
	sig, err := w.personal.SignMessage(ctx, hash.Bytes())
	if err != nil {
		return err
	}
	op.Signature = sig
	return nil
}

func (w *SmartAccount) SendTransaction(ctx context.Context, r *tx.Resolved) (*Submission, error) {
	op, err := w.BuildUserOperation(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := w.SignUserOperation(ctx, op, r.ChainID); err != nil {
		return nil, err
	}

	bundler, _, err := w.connected()
	if err != nil {
		return nil, err
	}
	var userOpHash common.Hash
	if err := bundler.CallContext(ctx, &userOpHash, "eth_sendUserOperation", op, w.entrypoint); err != nil {
		return nil, fmt.Errorf("failed to send user operation: %w", err)
	}

	cl := w.clientFor(r.Client)
	w.logger.Info().
		Str("user_op_hash", userOpHash.Hex()).
		Uint64("chain_id", r.ChainID).
		Bool("sponsored", len(op.PaymasterAndData) > 0).
		Msg("user operation sent")
	return newUserOpSubmission(userOpHash, r.Chain, cl, w.waiterFor(cl), userOpReceipt(bundler, userOpHash)), nil
}

// userOpReceipt reports ethereum.NotFound until the bundler has included
// the operation
func userOpReceipt(bundler *rpc.Client, userOpHash common.Hash) func(ctx context.Context) (*types.Receipt, error) {
	return func(ctx context.Context) (*types.Receipt, error) {
		var raw json.RawMessage
		if err := bundler.CallContext(ctx, &raw, "eth_getUserOperationReceipt", userOpHash); err != nil {
			return nil, err
		}
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, ethereum.NotFound
		}
		var resp struct {
			Receipt *types.Receipt `json:"receipt"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("invalid user operation receipt: %w", err)
		}
		if resp.Receipt == nil {
			return nil, ethereum.NotFound
		}
		return resp.Receipt, nil
	}
}

// BundlerURL returns the default bundler endpoint for c
func BundlerURL(c chain.Chain) string {
	return fmt.Sprintf(bundlerURLTemplate, c.ID())
}
