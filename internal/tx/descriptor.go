// Package tx prepares contract calls. A Descriptor describes a call without
// performing it; its deferred parts are resolved once, when the call is
// executed or read.
package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/lazy"
)

// ErrDescriptorConsumed is returned when a descriptor is executed twice
var ErrDescriptorConsumed = errors.New("transaction descriptor already consumed")

// Params is the argument list of a call, either known up front or computed
// on first use
type Params struct {
	fn lazy.Func[[]any]
}

// Literal returns params known at prepare time
func Literal(args ...any) Params {
	return Params{fn: func(context.Context) ([]any, error) {
		return args, nil
	}}
}

// Deferred returns params computed by fn when the descriptor is resolved.
// fn runs at most once per descriptor.
func Deferred(fn func(ctx context.Context) ([]any, error)) Params {
	return Params{fn: fn}
}

// ValueFunc derives the native value from the resolved params
type ValueFunc func(ctx context.Context, params []any) (*big.Int, error)

// GasFunc derives the gas limit from the resolved params
type GasFunc func(ctx context.Context, params []any) (uint64, error)

type options struct {
	value     ValueFunc
	gas       GasFunc
	gasPrice  *big.Int
	maxFee    *big.Int
	maxPrio   *big.Int
	nonce     *uint64
	gasLimit  uint64
	gasLimSet bool
}

// Option overrides a transaction field
type Option func(*options)

// WithValue attaches native value to the call
func WithValue(v *big.Int) Option {
	return func(o *options) {
		o.value = nil
		if v != nil {
			val := new(big.Int).Set(v)
			o.value = func(context.Context, []any) (*big.Int, error) { return val, nil }
		}
	}
}

// WithValueFunc computes native value from the resolved params
func WithValueFunc(fn ValueFunc) Option {
	return func(o *options) {
		o.value = fn
	}
}

// WithGas fixes the gas limit and skips estimation
func WithGas(gas uint64) Option {
	return func(o *options) {
		o.gas = nil
		o.gasLimit = gas
		o.gasLimSet = true
	}
}

// WithGasFunc computes the gas limit from the resolved params
func WithGasFunc(fn GasFunc) Option {
	return func(o *options) {
		o.gas = fn
		o.gasLimSet = false
	}
}

// WithGasPrice requests a legacy transaction at the given price
func WithGasPrice(price *big.Int) Option {
	return func(o *options) {
		o.gasPrice = price
	}
}

// WithMaxFees sets EIP-1559 fee caps
func WithMaxFees(maxFeePerGas, maxPriorityFeePerGas *big.Int) Option {
	return func(o *options) {
		o.maxFee = maxFeePerGas
		o.maxPrio = maxPriorityFeePerGas
	}
}

// WithNonce pins the sender nonce
func WithNonce(nonce uint64) Option {
	return func(o *options) {
		o.nonce = &nonce
	}
}

// Resolved is a descriptor with every deferred part computed. Gas is zero
// when it should be estimated; nil fee fields are filled in by the wallet.
type Resolved struct {
	Chain   chain.Chain
	Client  *client.Client
	ChainID uint64

	To    common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64

	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *uint64

	Method string
	Args   []any

	method abi.Method
}

// Descriptor is a prepared, not yet executed, contract call
type Descriptor struct {
	contract *contract.Contract
	method   string
	opts     options

	params   *lazy.Value[[]any]
	value    *lazy.Value[*big.Int]
	gas      *lazy.Value[uint64]
	resolved *lazy.Value[*Resolved]

	consumed atomic.Bool
}

// Prepare describes a call to method on c. method is a human-readable
// signature ("function transfer(address to, uint256 amount)" or
// "transfer(address,uint256)") or a bare name looked up in the contract ABI.
// Nothing is validated until the descriptor is resolved.
func Prepare(c *contract.Contract, method string, params Params, opts ...Option) *Descriptor {
	d := &Descriptor{contract: c, method: method}
	for _, opt := range opts {
		opt(&d.opts)
	}

	paramsFn := params.fn
	if paramsFn == nil {
		paramsFn = func(context.Context) ([]any, error) { return nil, nil }
	}
	d.params = lazy.New(paramsFn)

	if valueFn := d.opts.value; valueFn != nil {
		d.value = lazy.New(func(ctx context.Context) (*big.Int, error) {
			p, err := d.params.Get(ctx)
			if err != nil {
				return nil, err
			}
			return valueFn(ctx, p)
		})
	} else {
		d.value = lazy.Of(new(big.Int))
	}

	switch {
	case d.opts.gas != nil:
		gasFn := d.opts.gas
		d.gas = lazy.New(func(ctx context.Context) (uint64, error) {
			p, err := d.params.Get(ctx)
			if err != nil {
				return 0, err
			}
			return gasFn(ctx, p)
		})
	case d.opts.gasLimSet:
		d.gas = lazy.Of(d.opts.gasLimit)
	default:
		d.gas = lazy.Of(uint64(0))
	}

	d.resolved = lazy.New(d.resolve)
	return d
}

// Contract returns the target contract
func (d *Descriptor) Contract() *contract.Contract {
	return d.contract
}

// Method returns the method as given to Prepare
func (d *Descriptor) Method() string {
	return d.method
}

// Resolve computes every deferred part of the descriptor. Repeated calls
// return the same result; the params function completes at most once. A
// resolve abandoned because ctx ended is not remembered and can be retried.
func (d *Descriptor) Resolve(ctx context.Context) (*Resolved, error) {
	return d.resolved.Get(ctx)
}

// Consume marks the descriptor as submitted. It fails if it already was.
func (d *Descriptor) Consume() error {
	if !d.consumed.CompareAndSwap(false, true) {
		return ErrDescriptorConsumed
	}
	return nil
}

// Consumed reports whether the descriptor has been submitted
func (d *Descriptor) Consumed() bool {
	return d.consumed.Load()
}

func (d *Descriptor) resolve(ctx context.Context) (*Resolved, error) {
	if d.contract == nil {
		return nil, errors.New("descriptor has no contract")
	}

	args, err := d.params.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve params: %w", err)
	}

	callErr := func(err error) error {
		return &ContractCallError{Contract: d.contract.Address(), Method: d.method, Err: err}
	}

	method, err := ParseMethod(d.method, d.contract.ABI())
	if err != nil {
		return nil, callErr(err)
	}
	packed, err := encodeArgs(method, args)
	if err != nil {
		return nil, callErr(err)
	}

	value, err := d.value.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve value: %w", err)
	}
	gas, err := d.gas.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gas: %w", err)
	}

	data := make([]byte, 0, len(method.ID)+len(packed))
	data = append(data, method.ID...)
	data = append(data, packed...)

	r := &Resolved{
		Chain:                d.contract.Chain(),
		Client:               d.contract.Client(),
		ChainID:              d.contract.Chain().ID(),
		To:                   d.contract.Address(),
		Data:                 data,
		Value:                value,
		Gas:                  gas,
		GasPrice:             d.opts.gasPrice,
		MaxFeePerGas:         d.opts.maxFee,
		MaxPriorityFeePerGas: d.opts.maxPrio,
		Nonce:                d.opts.nonce,
		Method:               method.Sig,
		Args:                 args,
		method:               method,
	}
	if r.Value == nil {
		r.Value = new(big.Int)
	}
	return r, nil
}

// Native builds a resolved plain value transfer with no calldata
func Native(c chain.Chain, cl *client.Client, to common.Address, value *big.Int) *Resolved {
	if value == nil {
		value = new(big.Int)
	}
	return &Resolved{
		Chain:   c,
		Client:  cl,
		ChainID: c.ID(),
		To:      to,
		Value:   value,
	}
}
