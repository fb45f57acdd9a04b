package tx

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errNoABI = errors.New("method referenced by name but contract has no abi")

// ParseMethod turns a human-readable signature or an ABI method name into an
// abi.Method. Parameter names, data locations and mutability keywords are
// ignored; a trailing "returns (...)" clause becomes the method outputs.
func ParseMethod(sig string, contractABI *abi.ABI) (abi.Method, error) {
	s := strings.TrimSpace(sig)
	if s == "" {
		return abi.Method{}, errors.New("empty method")
	}

	if !strings.Contains(s, "(") {
		if contractABI == nil {
			return abi.Method{}, fmt.Errorf("%w: %s", errNoABI, s)
		}
		m, ok := contractABI.Methods[s]
		if !ok {
			return abi.Method{}, fmt.Errorf("method %q not found in abi", s)
		}
		return m, nil
	}

	s = strings.TrimSpace(strings.TrimPrefix(s, "function "))
	open := strings.Index(s, "(")
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return abi.Method{}, fmt.Errorf("invalid method signature %q", sig)
	}

	end, err := matchParen(s, open)
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid method signature %q: %w", sig, err)
	}
	inputs, err := normalizeParams(s[open+1 : end])
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid method signature %q: %w", sig, err)
	}

	outputs := ""
	tail := s[end+1:]
	modifiers := tail
	if idx := strings.Index(tail, "returns"); idx >= 0 {
		modifiers = tail[:idx]
		rest := strings.TrimSpace(tail[idx+len("returns"):])
		if !strings.HasPrefix(rest, "(") {
			return abi.Method{}, fmt.Errorf("invalid returns clause in %q", sig)
		}
		rEnd, err := matchParen(rest, 0)
		if err != nil {
			return abi.Method{}, fmt.Errorf("invalid returns clause in %q: %w", sig, err)
		}
		if outputs, err = normalizeParams(rest[1:rEnd]); err != nil {
			return abi.Method{}, fmt.Errorf("invalid returns clause in %q: %w", sig, err)
		}
	}

	in, err := selectorArgs(name, inputs)
	if err != nil {
		return abi.Method{}, err
	}
	out, err := selectorArgs(name, outputs)
	if err != nil {
		return abi.Method{}, err
	}

	mutability := "nonpayable"
	for _, kw := range strings.Fields(modifiers) {
		switch kw {
		case "view", "pure", "payable":
			mutability = kw
		}
	}
	isConst := mutability == "view" || mutability == "pure"

	return abi.NewMethod(name, name, abi.Function, mutability, isConst, mutability == "payable", in, out), nil
}

// selectorArgs builds typed arguments for a canonical comma-separated list
func selectorArgs(name, list string) (abi.Arguments, error) {
	sel, err := abi.ParseSelector(name + "(" + list + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid method signature %s(%s): %w", name, list, err)
	}
	args := make(abi.Arguments, 0, len(sel.Inputs))
	for i, in := range sel.Inputs {
		typ, err := abi.NewType(in.Type, in.InternalType, in.Components)
		if err != nil {
			return nil, fmt.Errorf("invalid type %q: %w", in.Type, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return args, nil
}

// normalizeParams strips names and keywords from a parameter list, leaving
// canonical types joined by commas
func normalizeParams(list string) (string, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return "", nil
	}

	parts, err := splitTopLevel(list)
	if err != nil {
		return "", err
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", errors.New("empty parameter")
		}

		var typ string
		if strings.HasPrefix(p, "(") || strings.HasPrefix(p, "tuple(") {
			p = strings.TrimPrefix(p, "tuple")
			end, err := matchParen(p, 0)
			if err != nil {
				return "", err
			}
			inner, err := normalizeParams(p[1:end])
			if err != nil {
				return "", err
			}
			typ = "(" + inner + ")"
			if rest := strings.Fields(p[end+1:]); len(rest) > 0 && strings.HasPrefix(rest[0], "[") {
				typ += rest[0]
			}
		} else {
			typ = canonicalType(strings.Fields(p)[0])
		}
		out = append(out, typ)
	}
	return strings.Join(out, ","), nil
}

func canonicalType(t string) string {
	base, suffix := t, ""
	if i := strings.Index(t, "["); i >= 0 {
		base, suffix = t[:i], t[i:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	case "byte":
		base = "bytes1"
	}
	return base + suffix
}

func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	return append(parts, s[start:]), nil
}

func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.New("unbalanced parentheses")
}

// encodeArgs checks arity, coerces args to the Go types the ABI packer
// expects and packs them
func encodeArgs(m abi.Method, args []any) ([]byte, error) {
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
	}
	coerced := make([]any, len(args))
	for i, arg := range args {
		v, err := coerce(m.Inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, m.Inputs[i].Type.String(), err)
		}
		coerced[i] = v
	}
	packed, err := m.Inputs.Pack(coerced...)
	if err != nil {
		return nil, err
	}
	return packed, nil
}

func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case *common.Address:
			if a == nil {
				return nil, errors.New("nil address")
			}
			return *a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address %q", a)
			}
			return common.HexToAddress(a), nil
		}
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for unsigned type", n)
		}
		if !fits(t, n) {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
		if t.Size > 64 {
			return n, nil
		}
		out := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			out.SetUint(n.Uint64())
		} else {
			out.SetInt(n.Int64())
		}
		return out.Interface(), nil
	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(b) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	case abi.StringTy:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case abi.BytesTy:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return hexutil.Decode(b)
		}
	case abi.FixedBytesTy:
		var raw []byte
		switch b := v.(type) {
		case []byte:
			raw = b
		case string:
			decoded, err := hexutil.Decode(b)
			if err != nil {
				return nil, err
			}
			raw = decoded
		case common.Hash:
			raw = b.Bytes()
		default:
			return v, nil
		}
		if len(raw) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit %s", len(raw), t.String())
		}
		out := reflect.New(t.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(raw))
		return out.Interface(), nil
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t.String())
}

func fits(t abi.Type, n *big.Int) bool {
	if t.T == abi.UintTy {
		return n.BitLen() <= t.Size
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Sign() < 0 {
		return new(big.Int).Neg(n).Cmp(limit) <= 0
	}
	return n.Cmp(limit) < 0
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, errors.New("nil integer")
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case string:
		s := strings.TrimSpace(n)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		out, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot use %T as integer", v)
}
