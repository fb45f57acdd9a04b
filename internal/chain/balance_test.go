package chain

import (
	"context"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/testutil"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad integer " + s)
	}
	return v
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name      string
		value     *big.Int
		decimals  uint8
		precision int
		want      string
	}{
		{"nil", nil, 18, 6, "0"},
		{"zero", big.NewInt(0), 18, 6, "0.000000"},
		{"one ether", wei("1000000000000000000"), 18, 6, "1.000000"},
		{"truncates instead of rounding", wei("1999999999999999999"), 18, 6, "1.999999"},
		{"dust", big.NewInt(1), 18, 6, "0.000000"},
		{"precision wider than decimals", big.NewInt(12345), 2, 6, "123.45"},
		{"no decimals", big.NewInt(42), 0, 6, "42"},
		{"zero precision", wei("2500000000000000000"), 18, 0, "2"},
		{"negative", big.NewInt(-1500000), 6, 6, "-1.500000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUnits(tt.value, tt.decimals, tt.precision))
		})
	}
}

func TestNativeBalance_DecimalsFromMetadata(t *testing.T) {
	api, hits := metadataServer(t, http.StatusOK,
		`{"data":{"chainId":31337,"nativeCurrency":{"symbol":"TUSD","decimals":6}}}`)
	node := testutil.NewRPCServer(t, 31337)
	node.HandleResult("eth_getBalance", "0x2625a0") // 2.5 at 6 decimals

	r := NewRegistry(WithAPIBase(api.URL))
	t.Cleanup(r.Close)

	c := Define(Definition{ID: 31337, RPC: node.URL})
	bal, err := r.NativeBalance(context.Background(), c, newTestClient(t), common.HexToAddress("0xaa"))
	require.NoError(t, err)

	assert.Equal(t, "TUSD", bal.Symbol)
	assert.Equal(t, uint8(6), bal.Decimals)
	assert.Equal(t, "2.500000", bal.Display)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNativeBalance_MetadataFallback(t *testing.T) {
	api, _ := metadataServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	node := testutil.NewRPCServer(t, 31337)
	node.HandleResult("eth_getBalance", "0xde0b6b3a7640000")

	m := &countingMetrics{}
	r := NewRegistry(WithAPIBase(api.URL), WithMetrics(m))
	t.Cleanup(r.Close)

	c := Define(Definition{ID: 31337, RPC: node.URL})
	bal, err := r.NativeBalance(context.Background(), c, newTestClient(t), common.HexToAddress("0xaa"))
	require.NoError(t, err)

	assert.Equal(t, FallbackSymbol, bal.Symbol)
	assert.Equal(t, uint8(FallbackDecimals), bal.Decimals)
	assert.Equal(t, "1.000000", bal.Display)
	assert.Equal(t, int32(2), m.fallbacks.Load())
}

func TestNativeBalance_NodeError(t *testing.T) {
	node := testutil.NewRPCServer(t, 31337)

	r := NewRegistry()
	t.Cleanup(r.Close)

	c := Define(Definition{ID: 31337, RPC: node.URL, NativeCurrency: &NativeCurrency{Symbol: "ETH", Decimals: 18}})
	_, err := r.NativeBalance(context.Background(), c, newTestClient(t), common.HexToAddress("0xaa"))
	assert.Error(t, err)
}
