// Package erc20 prepares and reads the common ERC-20 calls.
package erc20

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/tx"
)

// DefaultDecimals is assumed when a token does not report its decimals
const DefaultDecimals = 18

const (
	sigTransfer      = "function transfer(address to, uint256 amount) returns (bool)"
	sigMintTo        = "function mintTo(address to, uint256 amount)"
	sigBalanceOf     = "function balanceOf(address owner) view returns (uint256)"
	sigDecimals      = "function decimals() view returns (uint8)"
	sigSymbol        = "function symbol() view returns (string)"
	sigSymbolBytes32 = "function symbol() view returns (bytes32)"
)

// Balance is a token balance with the metadata needed to display it
type Balance struct {
	Token    common.Address `json:"token"`
	Value    *big.Int       `json:"value"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Display  string         `json:"display"`
}

// Transfer prepares transfer(to, amount) with amount in base units
func Transfer(c *contract.Contract, to common.Address, amount *big.Int, opts ...tx.Option) *tx.Descriptor {
	return tx.Prepare(c, sigTransfer, tx.Literal(to, amount), opts...)
}

// MintTo prepares mintTo(to, amount) where amount is a decimal string in
// whole tokens. The token's decimals are read when the descriptor is
// resolved; a failed read assumes 18.
func MintTo(reg *chain.Registry, c *contract.Contract, to common.Address, amount string, opts ...tx.Option) *tx.Descriptor {
	return tx.Prepare(c, sigMintTo, tx.Deferred(func(ctx context.Context) ([]any, error) {
		decimals := Decimals(ctx, reg, c)
		units, err := ToUnits(amount, decimals)
		if err != nil {
			return nil, err
		}
		return []any{to, units}, nil
	}), opts...)
}

// Decimals reads the token decimals, falling back to 18
func Decimals(ctx context.Context, reg *chain.Registry, c *contract.Contract) uint8 {
	d, err := tx.ReadOne[uint8](ctx, reg, tx.Prepare(c, sigDecimals, tx.Literal()))
	if err != nil {
		return DefaultDecimals
	}
	return d
}

// Symbol reads the token symbol. Tokens that return bytes32 are handled; a
// failed read yields "".
func Symbol(ctx context.Context, reg *chain.Registry, c *contract.Contract) string {
	s, err := tx.ReadOne[string](ctx, reg, tx.Prepare(c, sigSymbol, tx.Literal()))
	if err == nil {
		return s
	}
	raw, err := tx.ReadOne[[32]byte](ctx, reg, tx.Prepare(c, sigSymbolBytes32, tx.Literal()))
	if err != nil {
		return ""
	}
	return decodeString(raw[:])
}

// BalanceOf reads the owner's balance, the decimals and the symbol
// concurrently. Only the balance read may fail the call.
func BalanceOf(ctx context.Context, reg *chain.Registry, c *contract.Contract, owner common.Address) (*Balance, error) {
	b := &Balance{Token: c.Address()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := tx.ReadOne[*big.Int](gctx, reg, tx.Prepare(c, sigBalanceOf, tx.Literal(owner)))
		if err != nil {
			return fmt.Errorf("failed to get token balance: %w", err)
		}
		b.Value = v
		return nil
	})
	g.Go(func() error {
		b.Decimals = Decimals(gctx, reg, c)
		return nil
	})
	g.Go(func() error {
		b.Symbol = Symbol(gctx, reg, c)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.Display = chain.FormatUnits(b.Value, b.Decimals, chain.DisplayPrecision)
	return b, nil
}

// ToUnits converts a decimal amount such as "1.5" to base units
func ToUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	units, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return units, nil
}

// decodeString decodes an ABI-encoded string
func decodeString(data []byte) string {
	if len(data) < 64 {
		// Some tokens return a fixed-length string
		return strings.TrimRight(string(data), "\x00")
	}

	// Standard ABI encoding: offset (32 bytes) + length (32 bytes) + data
	length := new(big.Int).SetBytes(data[32:64]).Int64()
	if length == 0 || int(length) > len(data)-64 {
		return ""
	}

	return strings.TrimRight(string(data[64:64+length]), "\x00")
}
