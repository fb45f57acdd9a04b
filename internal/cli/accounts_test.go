package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/config"
	"github.com/yolodolo42/txflow/internal/logging"
	"github.com/yolodolo42/txflow/internal/metrics"
	"github.com/yolodolo42/txflow/internal/testutil"
	"github.com/yolodolo42/txflow/internal/wallet"
)

var signer = common.HexToAddress("0x00000000000000000000000000000000000000aa")

// useApp installs an app rooted in a fresh data directory for the test
func useApp(t *testing.T, cfg config.Config) {
	t.Helper()
	cfg.DataDir = testutil.DataDir(t)
	reg := chain.NewRegistry()
	current = &app{cfg: &cfg, logger: logging.Nop(), metrics: metrics.NewNopMetrics(), registry: reg}
	t.Cleanup(func() {
		reg.Close()
		current = nil
	})
}

func senderCmd(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "send"}
	addSenderFlags(cmd)
	require.NoError(t, cmd.ParseFlags(flags))
	cmd.SetContext(context.Background())
	return cmd
}

func lastActive(t *testing.T) string {
	t.Helper()
	m, err := current.walletManager()
	require.NoError(t, err)
	id, ok, err := m.LastActiveID(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return id
}

func TestConnectSender_Injected(t *testing.T) {
	useApp(t, config.Config{})
	provider := testutil.NewRPCServer(t, 31337)
	provider.HandleResult("eth_requestAccounts", []string{signer.Hex()})
	c := chain.Define(chain.Definition{ID: 31337, RPC: provider.URL})

	adapter, err := connectSender(senderCmd(t, "--wallet", "injected", "--provider-url", provider.URL), c, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { disconnect(context.Background(), adapter) })

	assert.Equal(t, wallet.KindInjected, adapter.Kind())
	assert.Equal(t, signer, adapter.Address())
	assert.Equal(t, "injected:"+provider.URL, lastActive(t))
}

func TestConnectSender_InAppWithCode(t *testing.T) {
	var got map[string]string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2024-05-05/login/email/callback" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"storedToken": map[string]any{
				"cookieString": "session",
				"authDetails":  map[string]string{"walletAddress": signer.Hex()},
			},
		})
	}))
	t.Cleanup(backend.Close)
	useApp(t, config.Config{InAppBase: backend.URL})

	adapter, err := connectSender(senderCmd(t, "--wallet", "inapp", "--email", "Dev@Example.com", "--code", "123456"), chain.FromID(31337), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { disconnect(context.Background(), adapter) })

	assert.Equal(t, wallet.KindInApp, adapter.Kind())
	assert.Equal(t, signer, adapter.Address())
	assert.Equal(t, map[string]string{"email": "Dev@Example.com", "code": "123456"}, got)
	assert.Equal(t, "inapp:dev@example.com", lastActive(t))
}

func TestConnectSender_Errors(t *testing.T) {
	useApp(t, config.Config{})

	tests := []struct {
		name  string
		flags []string
		want  string
	}{
		{"unknown wallet", []string{"--wallet", "hardware"}, "unknown wallet"},
		{"injected without provider", []string{"--wallet", "injected"}, "--provider-url"},
		{"inapp without identity", []string{"--wallet", "inapp"}, "--email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := connectSender(senderCmd(t, tt.flags...), chain.FromID(1), nil, nil)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
