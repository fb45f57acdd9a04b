package cli

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/ui"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt <tx-hash>",
	Short: "Wait for or look up a transaction receipt",
	Long: `Print the receipt of a transaction on the selected chain. Receipts seen
before are served from the local store; others are polled until included
or until --timeout passes.`,
	Args: cobra.ExactArgs(1),
	RunE: runReceipt,
}

func init() {
	rootCmd.AddCommand(receiptCmd)

	receiptCmd.Flags().Duration("timeout", 0, "How long to wait (defaults to receipt_timeout)")
	receiptCmd.Flags().Bool("stored", false, "Only consult the local store")
}

func runReceipt(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	storedOnly, _ := cmd.Flags().GetBool("stored")

	raw := args[0]
	if len(raw) != 66 || raw[:2] != "0x" {
		return fmt.Errorf("invalid transaction hash: %s", raw)
	}
	hash := common.HexToHash(raw)

	c, err := current.chain()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if store, err := current.receiptStore(); err == nil {
		row, err := store.Row(ctx, c.ID(), hash)
		switch {
		case err == nil:
			printReceipt(hash, row.BlockNumber, row.GasUsed, row.Status == 0)
			fmt.Print(ui.KV("Stored", row.CreatedAt.Format("2006-01-02 15:04:05")))
			return nil
		case !errors.Is(err, receipt.ErrNotStored):
			current.logger.Warn().Err(err).Msg("receipt store lookup failed")
		}
	}
	if storedOnly {
		return fmt.Errorf("no stored receipt for %s on chain %d", hash.Hex(), c.ID())
	}

	if timeout <= 0 {
		timeout = current.cfg.ReceiptTimeout
	}
	cl := current.optionalClient()

	fmt.Println(ui.HelpStyle.Render("Waiting for receipt..."))
	r, err := current.poller(cl).Wait(ctx, receipt.Request{Chain: c, TransactionHash: hash, Timeout: timeout, Client: cl})
	if err != nil {
		return err
	}
	printReceipt(r.TxHash, r.BlockNumber.Uint64(), r.GasUsed, receipt.Reverted(r))
	return nil
}
