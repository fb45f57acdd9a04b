package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/contract"
	"github.com/yolodolo42/txflow/internal/tx"
	"github.com/yolodolo42/txflow/internal/tx/erc20"
	"github.com/yolodolo42/txflow/internal/ui"
)

var callCmd = &cobra.Command{
	Use:   "call <contract> <method> [args...]",
	Short: "Call a contract method",
	Long: `Prepare a contract call and send it, or read it with --read.

The method is a human-readable signature such as
"function transfer(address to, uint256 amount)", or a bare name when --abi
points at the contract's JSON ABI. Arguments are given as strings and
converted to the parameter types.`,
	Example: `  txflow call 0xtoken "transfer(address,uint256)" 0xabc... 1000000
  txflow call 0xtoken "function balanceOf(address) view returns (uint256)" 0xabc... --read`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().String("abi", "", "Path to the contract's JSON ABI")
	callCmd.Flags().String("value", "", "Native amount to attach, in whole units")
	callCmd.Flags().Uint64("gas", 0, "Gas limit (estimated when zero)")
	callCmd.Flags().Bool("read", false, "Perform a read-only call and print the result")
	addSenderFlags(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	abiPath, _ := cmd.Flags().GetString("abi")
	value, _ := cmd.Flags().GetString("value")
	gas, _ := cmd.Flags().GetUint64("gas")
	read, _ := cmd.Flags().GetBool("read")

	c, err := current.chain()
	if err != nil {
		return err
	}
	cl := current.optionalClient()
	ctx := cmd.Context()

	var abiJSON []string
	if abiPath != "" {
		raw, err := os.ReadFile(abiPath)
		if err != nil {
			return fmt.Errorf("failed to read abi: %w", err)
		}
		abiJSON = append(abiJSON, string(raw))
	}
	ct, err := contract.New(cl, c, args[0], abiJSON...)
	if err != nil {
		return err
	}

	params := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		params = append(params, a)
	}

	var opts []tx.Option
	if value != "" {
		amount, err := erc20.ToUnits(value, current.registry.NativeDecimals(ctx, c))
		if err != nil {
			return err
		}
		opts = append(opts, tx.WithValue(amount))
	}
	if gas > 0 {
		opts = append(opts, tx.WithGas(gas))
	}

	d := tx.Prepare(ct, args[1], tx.Literal(params...), opts...)

	if read {
		values, err := tx.Read(ctx, current.registry, d)
		if err != nil {
			return err
		}
		for i, v := range values {
			fmt.Printf("%s %s\n", ui.LabelStyle.Render(fmt.Sprintf("[%d]", i)), formatValue(v))
		}
		return nil
	}

	poller := current.poller(cl)
	adapter, err := connectSender(cmd, c, cl, poller)
	if err != nil {
		return err
	}
	defer disconnect(ctx, adapter)

	fmt.Println(ui.Title("Calling " + args[1]))
	fmt.Print(ui.KV("From", adapter.Address().Hex(), "Contract", ct.Address().Hex()))

	sub, err := newExecutor(poller).Execute(ctx, d, adapter)
	if err != nil {
		return err
	}
	return report(cmd, sub)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case []byte:
		return fmt.Sprintf("0x%x", t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
