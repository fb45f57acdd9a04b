package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/yolodolo42/txflow/internal/client"
)

// SIWEAccount proves ownership of an address for sign-in with Ethereum.
// A connected LocalAccount or Injected wallet satisfies it.
type SIWEAccount interface {
	Address() common.Address
	MessageSigner
}

// LoginPayload is the EIP-4361 message the backend asks the user to sign
type LoginPayload struct {
	Domain         string   `json:"domain"`
	Address        string   `json:"address"`
	Statement      string   `json:"statement"`
	URI            string   `json:"uri,omitempty"`
	Version        string   `json:"version"`
	ChainID        string   `json:"chain_id,omitempty"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issued_at"`
	ExpirationTime string   `json:"expiration_time"`
	InvalidBefore  string   `json:"invalid_before"`
	Resources      []string `json:"resources,omitempty"`
}

// Message renders the payload in the EIP-4361 text format
func (p LoginPayload) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n%s\n\n", p.Domain, p.Address)
	if p.Statement != "" {
		b.WriteString(p.Statement + "\n\n")
	}
	if p.URI != "" {
		fmt.Fprintf(&b, "URI: %s\n", p.URI)
	}
	fmt.Fprintf(&b, "Version: %s\n", p.Version)
	if p.ChainID != "" {
		fmt.Fprintf(&b, "Chain ID: %s\n", p.ChainID)
	}
	fmt.Fprintf(&b, "Nonce: %s\n", p.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", p.IssuedAt)
	fmt.Fprintf(&b, "Expiration Time: %s\n", p.ExpirationTime)
	fmt.Fprintf(&b, "Not Before: %s", p.InvalidBefore)
	if len(p.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range p.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

func (p LoginPayload) validate(address common.Address) error {
	if !common.IsHexAddress(p.Address) || common.HexToAddress(p.Address) != address {
		return fmt.Errorf("login payload is for %q, not %s", p.Address, address.Hex())
	}
	if p.Nonce == "" || p.Domain == "" {
		return errors.New("login payload missing domain or nonce")
	}
	return nil
}

// siweLogin requests a login payload for the account, signs it and trades
// the signature for a session
func (w *InApp) siweLogin(ctx context.Context, opts ConnectOptions) (storedToken, error) {
	account := opts.Auth.Account
	address := account.Address()
	if address == (common.Address{}) {
		return storedToken{}, fmt.Errorf("siwe account: %w", ErrNoAddress)
	}

	hc := w.httpFor(opts.Client)
	headers := w.headers(opts.Client)
	url := w.loginURL(string(StrategySIWE))

	var payload LoginPayload
	req := map[string]any{"address": address.Hex(), "chainId": opts.Chain.ID()}
	if err := client.FetchJSON(ctx, hc, http.MethodPost, url, req, headers, &payload); err != nil {
		return storedToken{}, fmt.Errorf("failed to generate login payload: %w", err)
	}
	if err := payload.validate(address); err != nil {
		return storedToken{}, err
	}

	sig, err := account.SignMessage(ctx, []byte(payload.Message()))
	if err != nil {
		return storedToken{}, err
	}

	var resp callbackResponse
	body := map[string]any{"signature": hexutil.Encode(sig), "payload": payload}
	if err := client.FetchJSON(ctx, hc, http.MethodPost, url+"/callback", body, headers, &resp); err != nil {
		return storedToken{}, fmt.Errorf("failed to verify login signature: %w", err)
	}
	return resp.StoredToken, nil
}
