package client

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// ErrMissingCredentials is returned when neither a client ID nor a secret key is provided
var ErrMissingCredentials = errors.New("clientId or secretKey must be provided")

// FetchConfig tunes outbound HTTP requests for one class of traffic
type FetchConfig struct {
	RequestTimeout time.Duration
	Headers        map[string]string
}

// StorageConfig configures IPFS downloads
type StorageConfig struct {
	Fetch   FetchConfig
	Gateway string
}

// Options are the inputs to New. Exactly one of ClientID or SecretKey is used;
// when SecretKey is set the client ID is derived from it.
type Options struct {
	ClientID  string
	SecretKey string
	RPC       FetchConfig
	Storage   StorageConfig
	// Transport carries the requests once headers are attached. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// Client identifies the caller to first-party services. It is immutable once
// created and meant to be shared by pointer for the life of the process.
type Client struct {
	clientID  string
	secretKey string
	rpc       FetchConfig
	storage   StorageConfig

	httpClient *http.Client
}

// New creates a client from the given options
func New(opts Options) (*Client, error) {
	c := &Client{
		rpc:     opts.RPC,
		storage: opts.Storage,
	}

	switch {
	case opts.SecretKey != "":
		// A provided client ID is ignored; the derived one always wins.
		c.clientID = ClientIDFromSecretKey(opts.SecretKey)
		c.secretKey = opts.SecretKey
	case opts.ClientID != "":
		c.clientID = opts.ClientID
	default:
		return nil, ErrMissingCredentials
	}

	timeout := opts.RPC.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Timeout:   timeout,
		Transport: &authTransport{client: c, base: base},
	}

	return c, nil
}

// ClientIDFromSecretKey derives the public client ID for a secret key. The
// derivation is one-way: the first 32 hex characters of sha256(secretKey).
func ClientIDFromSecretKey(secretKey string) string {
	sum := sha256.Sum256([]byte(secretKey))
	return hex.EncodeToString(sum[:])[:32]
}

// ClientID returns the public client identifier
func (c *Client) ClientID() string {
	return c.clientID
}

// SecretKey returns the secret key, or "" for public clients
func (c *Client) SecretKey() string {
	return c.secretKey
}

// IsServer reports whether the client carries a secret key
func (c *Client) IsServer() bool {
	return c.secretKey != ""
}

// RPCConfig returns the fetch configuration for RPC traffic
func (c *Client) RPCConfig() FetchConfig {
	return c.rpc
}

// StorageConfig returns the storage configuration
func (c *Client) StorageConfig() StorageConfig {
	return c.storage
}

// HTTPClient returns an HTTP client that attaches first-party auth and
// telemetry headers. Requests to any other host are sent untouched.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// String never includes the secret key
func (c *Client) String() string {
	if c.secretKey != "" {
		return "client(" + c.clientID + ", secret=***)"
	}
	return "client(" + c.clientID + ")"
}
