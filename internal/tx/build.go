package tx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultGasCeiling is used when gas estimation fails for a reason other
// than a revert
const DefaultGasCeiling uint64 = 500_000

// Backend is the part of a node connection needed to complete a transaction
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// SuggestedFees carries gas estimates so the caller can render them.
type SuggestedFees struct {
	GasLimit         uint64
	MaxFeePerGas     *big.Int
	MaxPriorityFee   *big.Int
	GasPrice         *big.Int
	EstimatedCostWei *big.Int
}

// CallMsg returns the call message for r sent from from
func (r *Resolved) CallMsg(from common.Address) ethereum.CallMsg {
	to := r.To
	return ethereum.CallMsg{
		From:      from,
		To:        &to,
		Gas:       r.Gas,
		GasPrice:  r.GasPrice,
		GasFeeCap: r.MaxFeePerGas,
		GasTipCap: r.MaxPriorityFeePerGas,
		Value:     r.Value,
		Data:      r.Data,
	}
}

// EstimateGas asks the node for a gas limit. Reverts come back as
// *ContractCallError.
func EstimateGas(ctx context.Context, b Backend, from common.Address, r *Resolved) (uint64, error) {
	msg := r.CallMsg(from)
	msg.Gas = 0
	gas, err := b.EstimateGas(ctx, msg)
	if err != nil {
		return 0, CallError(r, err)
	}
	return gas, nil
}

// BuildUnsignedTx fills in nonce, fees and gas for r. A GasPrice with no
// EIP-1559 caps yields a legacy transaction; anything else is EIP-1559.
func BuildUnsignedTx(ctx context.Context, b Backend, from common.Address, r *Resolved) (*types.Transaction, SuggestedFees, error) {
	value := r.Value
	if value == nil {
		value = new(big.Int)
	}

	// Nonce
	var nonce uint64
	if r.Nonce != nil {
		nonce = *r.Nonce
	} else {
		n, err := b.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("failed to get nonce: %w", err)
		}
		nonce = n
	}

	legacy := r.GasPrice != nil && r.MaxFeePerGas == nil && r.MaxPriorityFeePerGas == nil

	// Fees
	maxFee := r.MaxFeePerGas
	maxPrio := r.MaxPriorityFeePerGas
	if !legacy && (maxFee == nil || maxPrio == nil) {
		if maxPrio == nil {
			tip, err := b.SuggestGasTipCap(ctx)
			if err != nil {
				return nil, SuggestedFees{}, fmt.Errorf("failed to suggest tip: %w", err)
			}
			maxPrio = tip
		}
		if maxFee == nil {
			fee, err := b.SuggestGasPrice(ctx)
			if err != nil {
				return nil, SuggestedFees{}, fmt.Errorf("failed to suggest gas price: %w", err)
			}
			maxFee = fee
		}
		if maxFee.Cmp(maxPrio) < 0 {
			maxFee = new(big.Int).Set(maxPrio)
		}
	}

	// Gas limit
	gasLimit := r.Gas
	if gasLimit == 0 {
		gl, err := EstimateGas(ctx, b, from, r)
		if err != nil {
			return nil, SuggestedFees{}, err
		}
		gasLimit = gl
	}

	to := r.To
	chainID := new(big.Int).SetUint64(r.ChainID)

	var (
		unsigned *types.Transaction
		perGas   *big.Int
	)
	if legacy {
		perGas = r.GasPrice
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: r.GasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     r.Data,
		})
	} else {
		perGas = maxFee
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: maxPrio,
			GasFeeCap: maxFee,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      r.Data,
		})
	}

	total := new(big.Int).Mul(perGas, new(big.Int).SetUint64(gasLimit))
	total.Add(total, value)

	return unsigned, SuggestedFees{
		GasLimit:         gasLimit,
		MaxFeePerGas:     maxFee,
		MaxPriorityFee:   maxPrio,
		GasPrice:         r.GasPrice,
		EstimatedCostWei: total,
	}, nil
}
