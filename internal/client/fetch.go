package client

import (
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	// Version is reported in the x-sdk-version header
	Version = "0.1.0"

	sdkName = "txflow"

	// DefaultRequestTimeout bounds a single outbound request
	DefaultRequestTimeout = 30 * time.Second
)

// Leading dots keep "otherthirdweb.com" from matching.
var firstPartyDomains = []string{
	".thirdweb.com",
	".ipfscdn.io",
	".thirdweb.dev",
	".thirdweb-dev.com",
}

// IsFirstPartyURL reports whether auth headers may be sent to rawURL
func IsFirstPartyURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range firstPartyDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// AuthHeaders returns the headers attached to a request for rawURL. The
// result is empty for third-party hosts.
func (c *Client) AuthHeaders(rawURL string) http.Header {
	h := make(http.Header)
	if !IsFirstPartyURL(rawURL) {
		return h
	}
	if c.secretKey != "" {
		h.Set("x-secret-key", c.secretKey)
	} else if c.clientID != "" {
		h.Set("x-client-id", c.clientID)
	}
	for k, v := range PlatformHeaders() {
		h.Set(k, v)
	}
	return h
}

var (
	platformOnce    sync.Once
	platformHeaders map[string]string
)

// PlatformHeaders returns the SDK telemetry headers. They are computed once
// per process.
func PlatformHeaders() map[string]string {
	platformOnce.Do(func() {
		platformHeaders = map[string]string{
			"x-sdk-name":     sdkName,
			"x-sdk-version":  Version,
			"x-sdk-platform": "server",
			"x-sdk-os":       parseOS(runtime.GOOS),
		}
	})
	return platformHeaders
}

func parseOS(goos string) string {
	os := strings.ToLower(goos)
	switch {
	case strings.HasPrefix(os, "win"):
		return "win"
	case os == "darwin":
		return "mac"
	case os == "ios":
		return "ios"
	case os == "android":
		return "android"
	case os == "":
		return "unknown"
	default:
		return strings.ReplaceAll(os, " ", "_")
	}
}

// authTransport adds first-party headers to outgoing requests
type authTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers := t.client.AuthHeaders(req.URL.String())
	extra := t.client.rpc.Headers
	if len(headers) == 0 && len(extra) == 0 {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	for k, v := range extra {
		r.Header.Set(k, v)
	}
	for k := range headers {
		r.Header.Set(k, headers.Get(k))
	}
	return t.base.RoundTrip(r)
}
