package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"

	"github.com/yolodolo42/txflow/internal/chain"
)

// Read resolves d and performs an eth_call against the latest block,
// unpacking the method outputs. The descriptor is not consumed.
func Read(ctx context.Context, reg *chain.Registry, d *Descriptor) ([]any, error) {
	r, err := d.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(r.method.Outputs) == 0 {
		return nil, &ContractCallError{Contract: r.To, Method: r.Method, Err: errors.New("method declares no outputs")}
	}

	ec, err := reg.Dial(ctx, r.Chain, r.Client)
	if err != nil {
		return nil, err
	}

	to := r.To
	out, err := ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: r.Data, Value: r.Value}, nil)
	if err != nil {
		return nil, CallError(r, err)
	}
	if len(out) == 0 {
		return nil, &ContractCallError{Contract: r.To, Method: r.Method, Err: errors.New("empty return data")}
	}

	values, err := r.method.Outputs.Unpack(out)
	if err != nil {
		return nil, &ContractCallError{Contract: r.To, Method: r.Method, Err: fmt.Errorf("failed to decode output: %w", err)}
	}
	return values, nil
}

// ReadOne is Read for methods returning a single value of type T
func ReadOne[T any](ctx context.Context, reg *chain.Registry, d *Descriptor) (T, error) {
	var zero T
	values, err := Read(ctx, reg, d)
	if err != nil {
		return zero, err
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("unexpected output type %T for %s", values[0], d.Method())
	}
	return v, nil
}
