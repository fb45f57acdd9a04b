package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/tx"
	"github.com/yolodolo42/txflow/internal/tx/erc20"
	"github.com/yolodolo42/txflow/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send native currency",
	Long: `Send native currency from a keystore account, or from its smart account
with --smart. --value is in whole units of the chain's currency, e.g. 0.01.`,
	Example: `  txflow send --to 0xabc... --value 0.01
  txflow send --chain base --to 0xabc... --value 0.5 --smart --factory 0xdef... --gasless`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("to", "", "Recipient address")
	sendCmd.Flags().String("value", "0", "Amount in whole units of the native currency")
	_ = sendCmd.MarkFlagRequired("to")
	addSenderFlags(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	value, _ := cmd.Flags().GetString("value")

	if !common.IsHexAddress(to) {
		return fmt.Errorf("invalid recipient address: %s", to)
	}

	c, err := current.chain()
	if err != nil {
		return err
	}
	cl := current.optionalClient()
	ctx := cmd.Context()

	decimals := current.registry.NativeDecimals(ctx, c)
	amount, err := erc20.ToUnits(value, decimals)
	if err != nil {
		return err
	}

	poller := current.poller(cl)
	adapter, err := connectSender(cmd, c, cl, poller)
	if err != nil {
		return err
	}
	defer disconnect(ctx, adapter)

	fmt.Println(ui.Title("Sending " + value + " " + current.registry.NativeSymbol(ctx, c)))
	fmt.Print(ui.KV("From", adapter.Address().Hex(), "To", common.HexToAddress(to).Hex()))

	sub, err := newExecutor(poller).Submit(ctx, tx.Native(c, cl, common.HexToAddress(to), amount), adapter)
	if err != nil {
		return err
	}
	return report(cmd, sub)
}
