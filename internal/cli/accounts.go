package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/client"
	"github.com/yolodolo42/txflow/internal/executor"
	"github.com/yolodolo42/txflow/internal/receipt"
	"github.com/yolodolo42/txflow/internal/ui"
	"github.com/yolodolo42/txflow/internal/wallet"
)

// addSenderFlags registers the flags shared by commands that send
func addSenderFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("wallet", walletLocal, "Sending wallet: local, injected or inapp")
	flags.String("from", "", "Sending keystore address (defaults to the last active wallet)")
	flags.String("provider-url", "", "EIP-1193 provider endpoint for --wallet injected")
	flags.String("email", "", "Email that owns the --wallet inapp account")
	flags.String("phone", "", "Phone number that owns the --wallet inapp account")
	flags.String("code", "", "Verification code for --wallet inapp (prompted for when empty)")
	flags.Bool("siwe", false, "Sign in to --wallet inapp with the keystore account from --from")
	flags.Bool("smart", false, "Send as a user operation from the smart account owned by --from")
	flags.String("factory", "", "Smart account factory address")
	flags.String("account", "", "Smart account address, skipping factory lookup")
	flags.Bool("gasless", false, "Sponsor user operation gas through the paymaster")
	flags.Bool("no-wait", false, "Return after broadcast without waiting for the receipt")
	flags.Duration("timeout", 0, "How long to wait for the receipt (defaults to receipt_timeout)")
}

// resolveAddress returns flagValue when set, otherwise the last active local
// wallet, otherwise the first keystore account
func resolveAddress(ctx context.Context, flagValue string) (common.Address, error) {
	if flagValue != "" {
		if !common.IsHexAddress(flagValue) {
			return common.Address{}, fmt.Errorf("invalid address: %s", flagValue)
		}
		return common.HexToAddress(flagValue), nil
	}

	if m, err := current.walletManager(); err == nil {
		if id, ok, _ := m.LastActiveID(ctx); ok {
			if hex, found := strings.CutPrefix(id, "local:"); found && common.IsHexAddress(hex) {
				return common.HexToAddress(hex), nil
			}
		}
	}

	km, err := current.keystore()
	if err != nil {
		return common.Address{}, fmt.Errorf("no address specified and failed to load wallets: %w", err)
	}
	accounts := km.ListAccounts()
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("no address specified and no wallets found. Use --from or create a wallet first")
	}
	return accounts[0].Address, nil
}

const (
	walletLocal    = "local"
	walletInjected = "injected"
	walletInApp    = "inapp"
)

// connectSender connects the wallet chosen by --wallet to c and makes it the
// active wallet. With --smart the connected wallet owns the smart account
// that is returned instead.
func connectSender(cmd *cobra.Command, c chain.Chain, cl *client.Client, waiter wallet.ReceiptWaiter) (wallet.Adapter, error) {
	ctx := cmd.Context()
	shared := []wallet.Option{
		wallet.WithRegistry(current.registry),
		wallet.WithReceiptWaiter(waiter),
		wallet.WithLogger(current.logger),
	}
	opts := wallet.ConnectOptions{Client: cl, Chain: c}

	var (
		personal wallet.PersonalAccount
		err      error
	)
	switch kind, _ := cmd.Flags().GetString("wallet"); kind {
	case "", walletLocal:
		personal, err = connectLocal(cmd, shared, opts)
	case walletInjected:
		personal, err = connectInjected(cmd, shared, opts)
	case walletInApp:
		personal, err = connectInApp(cmd, shared, opts)
	default:
		return nil, fmt.Errorf("unknown wallet %q (use local, injected or inapp)", kind)
	}
	if err != nil {
		return nil, err
	}

	smart, _ := cmd.Flags().GetBool("smart")
	if !smart {
		return personal, nil
	}

	smartOpts := append([]wallet.Option(nil), shared...)
	if factory, _ := cmd.Flags().GetString("factory"); factory != "" {
		if !common.IsHexAddress(factory) {
			return nil, fmt.Errorf("invalid factory address: %s", factory)
		}
		smartOpts = append(smartOpts, wallet.WithFactory(common.HexToAddress(factory)))
	}
	if account, _ := cmd.Flags().GetString("account"); account != "" {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("invalid account address: %s", account)
		}
		smartOpts = append(smartOpts, wallet.WithAccountAddress(common.HexToAddress(account)))
	}
	if gasless, _ := cmd.Flags().GetBool("gasless"); gasless {
		smartOpts = append(smartOpts, wallet.WithGasless(true))
	}
	if current.cfg.BundlerURL != "" {
		smartOpts = append(smartOpts, wallet.WithBundlerURL(current.cfg.BundlerURL))
	}

	sa := wallet.NewSmartAccount(personal, smartOpts...)
	if err := sa.Connect(ctx, opts); err != nil {
		return nil, err
	}
	return sa, nil
}

// unlockLocal unlocks the keystore account picked by --from
func unlockLocal(cmd *cobra.Command, shared []wallet.Option, opts wallet.ConnectOptions) (*wallet.LocalAccount, error) {
	ctx := cmd.Context()
	from, _ := cmd.Flags().GetString("from")

	address, err := resolveAddress(ctx, from)
	if err != nil {
		return nil, err
	}

	km, err := current.keystore()
	if err != nil {
		return nil, err
	}
	if !km.HasAccount(address) {
		return nil, fmt.Errorf("no keystore account for %s", address.Hex())
	}

	password, err := unlockPassword(address)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	local := wallet.NewLocalAccount(km, address, append(shared, wallet.WithID(localWalletID(address)))...)
	opts.Password = password
	if err := local.Connect(ctx, opts); err != nil {
		return nil, err
	}
	return local, nil
}

// connectLocal unlocks a keystore account. It is remembered as the active
// wallet for later commands.
func connectLocal(cmd *cobra.Command, shared []wallet.Option, opts wallet.ConnectOptions) (wallet.PersonalAccount, error) {
	local, err := unlockLocal(cmd, shared, opts)
	if err != nil {
		return nil, err
	}
	if err := activate(cmd.Context(), local, opts); err != nil {
		return nil, err
	}
	return local, nil
}

func connectInjected(cmd *cobra.Command, shared []wallet.Option, opts wallet.ConnectOptions) (wallet.PersonalAccount, error) {
	url, _ := cmd.Flags().GetString("provider-url")
	if url == "" {
		return nil, errors.New("--wallet injected needs --provider-url")
	}
	w := wallet.NewInjected(nil, append(shared, wallet.WithID(walletInjected+":"+url), wallet.WithFallbackURL(url))...)
	if err := activate(cmd.Context(), w, opts); err != nil {
		return nil, err
	}
	return w, nil
}

// connectInApp logs in to an embedded wallet by verification code, or by
// signing in with a keystore account when --siwe is set
func connectInApp(cmd *cobra.Command, shared []wallet.Option, opts wallet.ConnectOptions) (wallet.PersonalAccount, error) {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	phone, _ := cmd.Flags().GetString("phone")
	code, _ := cmd.Flags().GetString("code")
	siwe, _ := cmd.Flags().GetBool("siwe")

	var auth wallet.InAppAuth
	switch {
	case siwe:
		local, err := unlockLocal(cmd, shared, opts)
		if err != nil {
			return nil, err
		}
		defer func() { _ = local.Disconnect(ctx) }()
		auth = wallet.InAppAuth{Strategy: wallet.StrategySIWE, Account: local}
	case email != "":
		auth = wallet.InAppAuth{Strategy: wallet.StrategyEmail, Email: email, Code: code}
	case phone != "":
		auth = wallet.InAppAuth{Strategy: wallet.StrategyPhone, Phone: phone, Code: code}
	default:
		return nil, errors.New("--wallet inapp needs --email, --phone or --siwe")
	}

	w := wallet.NewInApp(append(shared, wallet.WithID(inAppWalletID(auth)), wallet.WithInAppBase(current.cfg.InAppBase))...)
	if auth.Strategy != wallet.StrategySIWE && auth.Code == "" {
		if err := w.SendCode(ctx, opts.Client, auth); err != nil {
			return nil, err
		}
		entered, err := readLine("Verification code: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read verification code: %w", err)
		}
		auth.Code = entered
	}

	opts.Auth = &auth
	if err := activate(ctx, w, opts); err != nil {
		return nil, err
	}
	return w, nil
}

func inAppWalletID(auth wallet.InAppAuth) string {
	switch auth.Strategy {
	case wallet.StrategyEmail:
		return walletInApp + ":" + strings.ToLower(auth.Email)
	case wallet.StrategyPhone:
		return walletInApp + ":" + auth.Phone
	}
	return walletInApp + ":siwe:" + auth.Account.Address().Hex()
}

// activate connects w through the wallet manager so it becomes the active
// wallet
func activate(ctx context.Context, w wallet.Adapter, opts wallet.ConnectOptions) error {
	m, err := current.walletManager()
	if err != nil {
		return err
	}
	return m.Connect(ctx, w, opts)
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// disconnect releases adapter and, for a smart account, locks its owner
func disconnect(ctx context.Context, adapter wallet.Adapter) {
	if sa, ok := adapter.(*wallet.SmartAccount); ok {
		_ = sa.Personal().Disconnect(ctx)
	}
	_ = adapter.Disconnect(ctx)
}

// newExecutor returns an executor that prints state changes as it goes
func newExecutor(waiter wallet.ReceiptWaiter) *executor.Executor {
	return executor.New(current.registry,
		executor.WithReceiptWaiter(waiter),
		executor.WithMetrics(current.metrics),
		executor.WithLogger(current.logger),
		executor.WithStateHook(func(s executor.State) {
			fmt.Println(ui.HelpStyle.Render(ui.SymbolTree + " " + s.String()))
		}),
	)
}

// report prints the submission and, unless --no-wait is set, waits for and
// prints its receipt
func report(cmd *cobra.Command, sub *wallet.Submission) error {
	fmt.Println()
	if sub.UserOpHash != (common.Hash{}) {
		fmt.Print(ui.KV("User op", ui.Hash(sub.UserOpHash.Hex()), "Chain", fmt.Sprint(sub.Chain.ID())))
	} else {
		fmt.Print(ui.KV("Transaction", ui.Hash(sub.TransactionHash.Hex()), "Chain", fmt.Sprint(sub.Chain.ID())))
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		return nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = current.cfg.ReceiptTimeout
	}

	fmt.Println(ui.HelpStyle.Render("Waiting for receipt..."))
	r, err := sub.WaitTimeout(cmd.Context(), timeout)
	if err != nil {
		return err
	}
	printReceipt(r.TxHash, r.BlockNumber.Uint64(), r.GasUsed, receipt.Reverted(r))
	if receipt.Reverted(r) {
		return fmt.Errorf("transaction %s reverted", r.TxHash.Hex())
	}
	return nil
}

func printReceipt(hash common.Hash, block, gasUsed uint64, reverted bool) {
	status := ui.Success("success")
	if reverted {
		status = ui.Failure("reverted")
	}
	fmt.Println()
	fmt.Print(ui.KV(
		"Transaction", ui.Hash(hash.Hex()),
		"Block", fmt.Sprint(block),
		"Gas used", fmt.Sprint(gasUsed),
		"Status", status,
	))
}
