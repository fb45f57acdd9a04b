package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/ui"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect supported chains",
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in chains",
	RunE:  runChainList,
}

var chainInfoCmd = &cobra.Command{
	Use:   "info [chain]",
	Short: "Show chain metadata and the RPC endpoint in use",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChainInfo,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.AddCommand(chainListCmd)
	chainCmd.AddCommand(chainInfoCmd)
}

func runChainList(cmd *cobra.Command, args []string) error {
	presets := chain.Presets()
	for _, name := range chain.PresetNames() {
		p := presets[name]
		line := fmt.Sprintf("%-14s %8d  %s", p.Key, p.ChainID, p.Name)
		if p.IsTestnet {
			line += " " + ui.HelpStyle.Render("(testnet)")
		}
		fmt.Println(line)
	}
	return nil
}

func runChainInfo(cmd *cobra.Command, args []string) error {
	c, err := current.chain()
	if len(args) == 1 {
		c, err = chain.Lookup(args[0], "")
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	cl := current.optionalClient()
	pairs := []string{
		"Chain ID", fmt.Sprint(c.ID()),
		"RPC", chain.RPCURL(c, cl),
	}

	meta, err := current.registry.Metadata(ctx, c.ID())
	if err != nil {
		current.logger.Debug().Err(err).Uint64("chain_id", c.ID()).Msg("chain metadata unavailable")
		nc := current.registry.NativeCurrency(ctx, c)
		pairs = append(pairs, "Currency", fmt.Sprintf("%s (%d decimals)", nc.Symbol, nc.Decimals))
	} else {
		pairs = append(pairs,
			"Name", meta.Name,
			"Currency", fmt.Sprintf("%s (%d decimals)", meta.NativeCurrency.Symbol, meta.NativeCurrency.Decimals),
			"Testnet", fmt.Sprint(meta.Testnet),
		)
	}

	fmt.Println(ui.Title(c.String()))
	fmt.Print(ui.KV(pairs...))
	return nil
}
