package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yolodolo42/txflow/internal/ui"
)

// PasswordEnv unlocks keystore accounts without a prompt
const PasswordEnv = "TXFLOW_WALLET_PASSWORD"

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets and accounts",
	Long:  `Create, import, and manage keystore accounts used by the local wallet.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a wallet from private key",
	RunE:  runWalletImport,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all wallets",
	RunE:  runWalletList,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)

	walletImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println() // newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// unlockPassword reads the password from PasswordEnv or the terminal
func unlockPassword(address common.Address) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return pw, nil
	}
	return readPassword(fmt.Sprintf("Password for %s: ", address.Hex()))
}

func readNewPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}

	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	km, err := current.keystore()
	if err != nil {
		return err
	}

	password, err := readNewPassword("Enter password for new wallet: ")
	if err != nil {
		return err
	}

	account, err := km.CreateAccount(password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Println()
	fmt.Println(ui.Success("Wallet created"))
	fmt.Print(ui.KV("Address", account.Address.Hex(), "Keystore", account.URL.Path))
	fmt.Println()
	fmt.Println(ui.Warning("Back up your keystore file and remember your password!"))

	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	privateKey, _ := cmd.Flags().GetString("key")

	if privateKey == "" {
		fmt.Print("Enter private key (hex): ")
		var input string
		_, _ = fmt.Scanln(&input)
		privateKey = strings.TrimSpace(input)
	}

	if privateKey == "" {
		return fmt.Errorf("private key is required")
	}

	km, err := current.keystore()
	if err != nil {
		return err
	}

	password, err := readNewPassword("Enter password to encrypt wallet: ")
	if err != nil {
		return err
	}

	account, err := km.ImportKey(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	fmt.Println()
	fmt.Println(ui.Success("Wallet imported"))
	fmt.Print(ui.KV("Address", account.Address.Hex(), "Keystore", account.URL.Path))

	return nil
}

func runWalletList(cmd *cobra.Command, args []string) error {
	km, err := current.keystore()
	if err != nil {
		return err
	}

	accounts := km.ListAccounts()

	if len(accounts) == 0 {
		fmt.Println("No wallets found.")
		fmt.Println(ui.HelpStyle.Render("Use 'txflow wallet create' to create a new wallet."))
		return nil
	}

	active := ""
	if m, err := current.walletManager(); err == nil {
		if id, ok, _ := m.LastActiveID(cmd.Context()); ok {
			active = id
		}
	}

	fmt.Printf("Found %d wallet(s):\n\n", len(accounts))
	for i, acc := range accounts {
		line := fmt.Sprintf("%d. %s", i+1, acc.Address.Hex())
		if strings.EqualFold(localWalletID(acc.Address), active) {
			line += " " + ui.SuccessStyle.Render(ui.SymbolBullet+" active")
		}
		fmt.Println(line)
	}

	return nil
}

// localWalletID is the manager ID of a keystore account
func localWalletID(address common.Address) string {
	return "local:" + strings.ToLower(address.Hex())
}
