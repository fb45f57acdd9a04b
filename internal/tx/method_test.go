package tx

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		wantSig string
		outputs int
		isConst bool
	}{
		{"canonical", "transfer(address,uint256)", "transfer(address,uint256)", 0, false},
		{"human readable", "function transfer(address to, uint256 amount)", "transfer(address,uint256)", 0, false},
		{"returns clause", "function balanceOf(address owner) view returns (uint256)", "balanceOf(address)", 1, true},
		{"external view", "function decimals() external view returns (uint8)", "decimals()", 1, true},
		{"uint alias", "function mint(address to, uint amount)", "mint(address,uint256)", 0, false},
		{"data location", "function setName(string calldata name)", "setName(string)", 0, false},
		{"tuple", "function submit((uint256 a, address b) order, bytes32 salt)", "submit((uint256,address),bytes32)", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMethod(tt.sig, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSig, m.Sig)
			assert.Len(t, m.Outputs, tt.outputs)
			assert.Equal(t, tt.isConst, m.IsConstant())
		})
	}
}

func TestParseMethod_Errors(t *testing.T) {
	for _, sig := range []string{"", "transfer(address", "function (uint256)", "f(uint256) returns uint256", "f(uint256,,address)"} {
		_, err := ParseMethod(sig, nil)
		assert.Error(t, err, sig)
	}
}

func TestParseMethod_FromABI(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`))
	require.NoError(t, err)

	m, err := ParseMethod("totalSupply", &parsed)
	require.NoError(t, err)
	assert.Equal(t, "totalSupply()", m.Sig)

	_, err = ParseMethod("missing", &parsed)
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	uint256, _ := abi.NewType("uint256", "", nil)
	uint8T, _ := abi.NewType("uint8", "", nil)
	int8T, _ := abi.NewType("int8", "", nil)
	addressT, _ := abi.NewType("address", "", nil)
	boolT, _ := abi.NewType("bool", "", nil)
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	bytesT, _ := abi.NewType("bytes", "", nil)

	t.Run("integers", func(t *testing.T) {
		v, err := coerce(uint256, 100)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(100), v)

		v, err = coerce(uint256, "0xff")
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(255), v)

		v, err = coerce(uint8T, big.NewInt(18))
		require.NoError(t, err)
		assert.Equal(t, uint8(18), v)

		v, err = coerce(int8T, -128)
		require.NoError(t, err)
		assert.Equal(t, int8(-128), v)

		_, err = coerce(uint8T, 256)
		assert.Error(t, err)
		_, err = coerce(int8T, 128)
		assert.Error(t, err)
		_, err = coerce(uint256, -1)
		assert.Error(t, err)
		_, err = coerce(uint256, "twelve")
		assert.Error(t, err)
	})

	t.Run("address", func(t *testing.T) {
		v, err := coerce(addressT, "0x00000000000000000000000000000000000000aa")
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xaa"), v)

		_, err = coerce(addressT, "0x1")
		assert.Error(t, err)
		_, err = coerce(addressT, 12)
		assert.Error(t, err)
	})

	t.Run("bool", func(t *testing.T) {
		v, err := coerce(boolT, "TRUE")
		require.NoError(t, err)
		assert.Equal(t, true, v)
	})

	t.Run("bytes", func(t *testing.T) {
		v, err := coerce(bytes32T, "0x01")
		require.NoError(t, err)
		arr, ok := v.([32]byte)
		require.True(t, ok)
		assert.Equal(t, byte(1), arr[0])

		v, err = coerce(bytesT, "0xdead")
		require.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad}, v)
	})
}
