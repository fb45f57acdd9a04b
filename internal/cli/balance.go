package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/tx/erc20"
	"github.com/yolodolo42/txflow/internal/ui"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "View native and token balances",
	Long: `Display native token balances across chains, or an ERC-20 balance on the
selected chain when --token is given.`,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().String("address", "", "Address to check (uses the active wallet if not specified)")
	balanceCmd.Flags().StringSlice("chains", nil, "Chains to query (defaults to the selected chain)")
	balanceCmd.Flags().Bool("all", false, "Query every built-in chain")
	balanceCmd.Flags().String("token", "", "ERC-20 token address on the selected chain")
}

type balanceLine struct {
	name    string
	display string
	symbol  string
	nonzero bool
	err     error
}

func runBalance(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	names, _ := cmd.Flags().GetStringSlice("chains")
	all, _ := cmd.Flags().GetBool("all")
	token, _ := cmd.Flags().GetString("token")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	address, err := resolveAddress(ctx, addressFlag)
	if err != nil {
		return err
	}
	cl := current.optionalClient()

	if token != "" {
		return tokenBalance(ctx, address, token)
	}

	var chains []chain.Chain
	switch {
	case all:
		names = chain.PresetNames()
		fallthrough
	case len(names) > 0:
		for _, name := range names {
			c, err := chain.Lookup(name, "")
			if err != nil {
				return err
			}
			chains = append(chains, c)
		}
	default:
		c, err := current.chain()
		if err != nil {
			return err
		}
		chains = []chain.Chain{c}
		names = []string{current.cfg.Chain}
	}

	lines := make([]balanceLine, len(chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chains {
		g.Go(func() error {
			line := balanceLine{name: names[i]}
			b, err := current.registry.NativeBalance(gctx, c, cl, address)
			if err != nil {
				line.err = err
			} else {
				line.display, line.symbol = b.Display, b.Symbol
				line.nonzero = b.Balance.Sign() > 0
			}
			lines[i] = line
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println(ui.Title("Balances for " + address.Hex()))
	fmt.Println("─────────────────────────────────────────────────────────")
	for _, line := range lines {
		if line.err != nil {
			fmt.Printf("%-14s  %s\n", line.name, ui.Warning(fmt.Sprintf("Error: %v", line.err)))
			continue
		}
		indicator := "○"
		if line.nonzero {
			indicator = ui.SymbolBullet
		}
		fmt.Printf("%s %-14s  %s %s\n", indicator, line.name, line.display, line.symbol)
	}
	fmt.Println("─────────────────────────────────────────────────────────")
	return nil
}

func tokenBalance(ctx context.Context, owner common.Address, token string) error {
	c, err := current.chain()
	if err != nil {
		return err
	}
	ct, err := contract.New(current.optionalClient(), c, token)
	if err != nil {
		return err
	}

	b, err := erc20.BalanceOf(ctx, current.registry, ct, owner)
	if err != nil {
		return err
	}

	symbol := b.Symbol
	if symbol == "" {
		symbol = "tokens"
	}
	fmt.Print(ui.KV(
		"Owner", owner.Hex(),
		"Token", b.Token.Hex(),
		"Balance", b.Display+" "+symbol,
	))
	return nil
}
