package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/txflow/internal/client"
)

// NativeBalance represents a native token balance
type NativeBalance struct {
	ChainID  uint64   `json:"chain_id"`
	Symbol   string   `json:"symbol"`
	Balance  *big.Int `json:"balance"`
	Decimals uint8    `json:"decimals"`
	Display  string   `json:"display"`
}

// NativeBalance returns the native token balance for an address along with
// the chain's currency metadata
func (r *Registry) NativeBalance(ctx context.Context, c Chain, cl *client.Client, address common.Address) (*NativeBalance, error) {
	ec, err := r.Dial(ctx, c, cl)
	if err != nil {
		return nil, err
	}

	var (
		balance *big.Int
		nc      NativeCurrency
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = ec.BalanceAt(gctx, address, nil)
		return err
	})
	g.Go(func() error {
		nc = r.NativeCurrency(gctx, c)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &NativeBalance{
		ChainID:  c.ID(),
		Symbol:   nc.Symbol,
		Balance:  balance,
		Decimals: nc.Decimals,
		Display:  FormatUnits(balance, nc.Decimals, DisplayPrecision),
	}, nil
}

// DisplayPrecision is the number of fractional digits shown for balances
const DisplayPrecision = 6

// FormatUnits renders value in whole units of a currency with the given
// decimals, truncated to at most precision fractional digits
func FormatUnits(value *big.Int, decimals uint8, precision int) string {
	if value == nil {
		return "0"
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(value), base, new(big.Int))

	out := whole.String()
	if digits := min(int(decimals), precision); digits > 0 {
		fs := frac.String()
		fs = strings.Repeat("0", int(decimals)-len(fs)) + fs
		out += "." + fs[:digits]
	}
	if value.Sign() < 0 {
		out = "-" + out
	}
	return out
}
