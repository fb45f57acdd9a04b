package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RPCError is returned by a handler to produce a JSON-RPC error object
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// RPCHandler answers one JSON-RPC method. A nil result encodes as null.
type RPCHandler func(params []json.RawMessage) (any, error)

// RPCServer is an in-process JSON-RPC node for tests
type RPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandler
	calls    map[string]int
	headers  []http.Header
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewRPCServer starts a node that reports chainID and answers nothing else
// until handlers are registered
func NewRPCServer(t *testing.T, chainID uint64) *RPCServer {
	t.Helper()
	s := &RPCServer{
		handlers: make(map[string]RPCHandler),
		calls:    make(map[string]int),
	}
	s.HandleResult("eth_chainId", Hex(chainID))
	s.HandleResult("net_version", fmt.Sprintf("%d", chainID))
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method, replacing any previous handler
func (s *RPCServer) Handle(method string, h RPCHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// HandleResult registers a fixed result for method
func (s *RPCServer) HandleResult(method string, result any) {
	s.Handle(method, func([]json.RawMessage) (any, error) {
		return result, nil
	})
}

// Calls returns how many times method was requested
func (s *RPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Headers returns the headers of every HTTP request received so far
func (s *RPCServer) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

func (s *RPCServer) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var batch []rpcRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]rpcResponse, 0, len(batch))
		for _, req := range batch {
			out = append(out, s.dispatch(req))
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(s.dispatch(req))
}

func (s *RPCServer) dispatch(req rpcRequest) rpcResponse {
	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &RPCError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method)}
		return resp
	}

	result, err := h(req.Params)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			resp.Error = rpcErr
		} else {
			resp.Error = &RPCError{Code: -32000, Message: err.Error()}
		}
		return resp
	}
	resp.Result = result
	return resp
}

// Hex encodes n as a JSON-RPC quantity
func Hex(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// ReceiptJSON builds a minimal receipt object that go-ethereum can decode
func ReceiptJSON(txHash string, blockNumber uint64, status uint64) map[string]any {
	return map[string]any{
		"transactionHash":   txHash,
		"transactionIndex":  "0x0",
		"blockHash":         "0x" + strings.Repeat("ab", 32),
		"blockNumber":       Hex(blockNumber),
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"status":            Hex(status),
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs":              []any{},
		"type":              "0x2",
	}
}

// StandardTxHandlers registers the methods needed to build, sign and
// broadcast a transaction. Broadcast hashes are appended to sent.
func StandardTxHandlers(s *RPCServer, sent *[]string, mu *sync.Mutex) {
	s.HandleResult("eth_getTransactionCount", "0x0")
	s.HandleResult("eth_gasPrice", "0x3b9aca00")
	s.HandleResult("eth_maxPriorityFeePerGas", "0x3b9aca00")
	s.HandleResult("eth_estimateGas", "0x5208")
	s.HandleResult("eth_call", "0x")
	s.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (any, error) {
		var raw string
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &raw)
		}
		hash := RawTxHash(raw)
		if sent != nil {
			mu.Lock()
			*sent = append(*sent, hash)
			mu.Unlock()
		}
		return hash, nil
	})
}
