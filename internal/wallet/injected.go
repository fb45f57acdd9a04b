package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/tx"
)

// CodeUserRejected is the EIP-1193 error code for a declined request
const CodeUserRejected = 4001

// Provider is an EIP-1193 request function
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// ProviderError is an error returned by a provider with an EIP-1193 code
type ProviderError struct {
	Code    int
	Message string
	Data    any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ProviderCloser is a provider holding a connection that must be released
type ProviderCloser interface {
	Provider
	Close()
}

// RPCProvider forwards requests to a remote JSON-RPC endpoint over HTTP or
// WebSocket
type RPCProvider struct {
	c *rpc.Client
}

// DialProvider connects to url. Requests go through cl's HTTP client when
// cl is set.
func DialProvider(ctx context.Context, url string, cl *client.Client) (*RPCProvider, error) {
	var opts []rpc.ClientOption
	if cl != nil && (strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
		opts = append(opts, rpc.WithHTTPClient(cl.HTTPClient()))
	}
	c, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial provider: %w", err)
	}
	return &RPCProvider{c: c}, nil
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := p.c.CallContext(ctx, &out, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			pe := &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
			var dataErr rpc.DataError
			if errors.As(err, &dataErr) {
				pe.Data = dataErr.ErrorData()
			}
			return nil, pe
		}
		return nil, err
	}
	return out, nil
}

func (p *RPCProvider) Close() {
	p.c.Close()
}

// WithFallbackProvider is used by Injected when no provider was given
func WithFallbackProvider(p Provider) Option {
	return func(s *settings) { s.fallback = p }
}

// WithFallbackURL dials a remote provider when neither an injected nor a
// fallback provider is present
func WithFallbackURL(url string) Option {
	return func(s *settings) { s.fallbackURL = url }
}

// Injected drives an EIP-1193 provider. Signing happens in the provider.
type Injected struct {
	base

	provider Provider
	active   Provider
	dialed   ProviderCloser
	dial     func(ctx context.Context, url string, cl *client.Client) (ProviderCloser, error)
}

var (
	_ Adapter         = (*Injected)(nil)
	_ MessageSigner   = (*Injected)(nil)
	_ TypedDataSigner = (*Injected)(nil)
)

// NewInjected wraps provider, which may be nil when a fallback is configured
func NewInjected(provider Provider, opts ...Option) *Injected {
	return &Injected{base: newBase(KindInjected, opts), provider: provider, dial: dialRPCProvider}
}

func dialRPCProvider(ctx context.Context, url string, cl *client.Client) (ProviderCloser, error) {
	return DialProvider(ctx, url, cl)
}

// Connect asks the provider for accounts and switches it to opts.Chain. A
// provider dialed from the fallback URL is closed again if any step fails.
func (w *Injected) Connect(ctx context.Context, opts ConnectOptions) error {
	p, dialed, err := w.resolveProvider(ctx, opts.Client)
	if err != nil {
		return &ConnectionError{Wallet: KindInjected, Err: err}
	}

	addr, err := w.requestAccount(ctx, p, opts.Chain.ID())
	if err != nil {
		if dialed != nil {
			dialed.Close()
		}
		return &ConnectionError{Wallet: KindInjected, Err: err}
	}

	w.mu.Lock()
	if w.dialed != nil && w.dialed != dialed {
		w.dialed.Close()
	}
	w.dialed = dialed
	w.active = p
	w.mu.Unlock()

	w.bind(addr, opts)
	w.logger.Debug().Str("address", addr.Hex()).Msg("wallet connected")
	return nil
}

func (w *Injected) requestAccount(ctx context.Context, p Provider, chainID uint64) (common.Address, error) {
	raw, err := p.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return common.Address{}, classifyProviderError("eth_requestAccounts", err)
	}
	var addrs []string
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return common.Address{}, fmt.Errorf("invalid accounts response: %w", err)
	}
	if len(addrs) == 0 || !common.IsHexAddress(addrs[0]) {
		return common.Address{}, ErrNoAddress
	}
	if chainID != 0 {
		if err := w.ensureChain(ctx, p, chainID); err != nil {
			return common.Address{}, err
		}
	}
	return common.HexToAddress(addrs[0]), nil
}

// resolveProvider picks the provider to use. dialed is non-nil when the
// provider was opened from the fallback URL and is owned by the caller.
func (w *Injected) resolveProvider(ctx context.Context, cl *client.Client) (p Provider, dialed ProviderCloser, err error) {
	switch {
	case w.provider != nil:
		return w.provider, nil, nil
	case w.fallback != nil:
		return w.fallback, nil, nil
	case w.fallbackURL != "":
		dialed, err := w.dial(ctx, w.fallbackURL, cl)
		if err != nil {
			return nil, nil, err
		}
		return dialed, dialed, nil
	}
	return nil, nil, ErrNoProvider
}

func (w *Injected) ensureChain(ctx context.Context, p Provider, want uint64) error {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return classifyProviderError("eth_chainId", err)
	}
	var got hexutil.Uint64
	if err := json.Unmarshal(raw, &got); err != nil {
		return fmt.Errorf("invalid chain id response: %w", err)
	}
	if uint64(got) == want {
		return nil
	}
	_, err = p.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": hexutil.EncodeUint64(want)})
	if err != nil {
		return classifyProviderError("wallet_switchEthereumChain", err)
	}
	return nil
}

func (w *Injected) Disconnect(ctx context.Context) error {
	w.unbind()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = nil
	if w.dialed != nil {
		w.dialed.Close()
		w.dialed = nil
	}
	return nil
}

func (w *Injected) connected() (Provider, common.Address, error) {
	from, err := w.sender()
	if err != nil {
		return nil, common.Address{}, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.active == nil {
		return nil, common.Address{}, ErrNoAddress
	}
	return w.active, from, nil
}

type txArgs struct {
	From                 common.Address  `json:"from"`
	To                   common.Address  `json:"to"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

func newTxArgs(from common.Address, r *tx.Resolved) txArgs {
	args := txArgs{
		From:                 from,
		To:                   r.To,
		Data:                 r.Data,
		Value:                (*hexutil.Big)(r.Value),
		GasPrice:             (*hexutil.Big)(r.GasPrice),
		MaxFeePerGas:         (*hexutil.Big)(r.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(r.MaxPriorityFeePerGas),
	}
	if r.Gas != 0 {
		gas := hexutil.Uint64(r.Gas)
		args.Gas = &gas
	}
	if r.Nonce != nil {
		nonce := hexutil.Uint64(*r.Nonce)
		args.Nonce = &nonce
	}
	return args
}

func (w *Injected) SendTransaction(ctx context.Context, r *tx.Resolved) (*Submission, error) {
	p, from, err := w.connected()
	if err != nil {
		return nil, err
	}

	raw, err := p.Request(ctx, "eth_sendTransaction", newTxArgs(from, r))
	if err != nil {
		return nil, classifyProviderError("eth_sendTransaction", err)
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, fmt.Errorf("invalid transaction hash response: %w", err)
	}

	cl := w.clientFor(r.Client)
	w.logger.Info().Str("tx_hash", hash.Hex()).Uint64("chain_id", r.ChainID).Msg("transaction broadcast")
	return NewSubmission(hash, r.Chain, cl, w.waiterFor(cl)), nil
}

func (w *Injected) EstimateGas(ctx context.Context, r *tx.Resolved) (uint64, error) {
	p, from, err := w.connected()
	if err != nil {
		return 0, err
	}
	args := newTxArgs(from, r)
	args.Gas = nil
	raw, err := p.Request(ctx, "eth_estimateGas", args)
	if err != nil {
		return 0, tx.CallError(r, providerCallError(err))
	}
	var gas hexutil.Uint64
	if err := json.Unmarshal(raw, &gas); err != nil {
		return 0, fmt.Errorf("invalid gas estimate: %w", err)
	}
	return uint64(gas), nil
}

func (w *Injected) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	p, from, err := w.connected()
	if err != nil {
		return nil, err
	}
	raw, err := p.Request(ctx, "personal_sign", hexutil.Encode(message), from)
	if err != nil {
		return nil, classifyProviderError("personal_sign", err)
	}
	return decodeSignature(raw)
}

func (w *Injected) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	p, from, err := w.connected()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode typed data: %w", err)
	}
	raw, err := p.Request(ctx, "eth_signTypedData_v4", from, string(payload))
	if err != nil {
		return nil, classifyProviderError("eth_signTypedData_v4", err)
	}
	return decodeSignature(raw)
}

func decodeSignature(raw json.RawMessage) ([]byte, error) {
	var sig hexutil.Bytes
	if err := json.Unmarshal(raw, &sig); err != nil {
		return nil, fmt.Errorf("invalid signature response: %w", err)
	}
	return sig, nil
}

// classifyProviderError maps an EIP-1193 rejection to UserRejectedError
func classifyProviderError(method string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == CodeUserRejected {
		return &UserRejectedError{Method: method, Message: pe.Message}
	}
	return err
}

// providerCallError exposes revert data so tx.CallError can decode it
func providerCallError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Data != nil {
		return &revertData{msg: pe.Message, code: pe.Code, data: pe.Data}
	}
	return err
}

type revertData struct {
	msg  string
	code int
	data any
}

func (e *revertData) Error() string          { return e.msg }
func (e *revertData) ErrorCode() int         { return e.code }
func (e *revertData) ErrorData() interface{} { return e.data }
