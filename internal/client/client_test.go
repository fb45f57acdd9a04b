package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("derives client id from secret key", func(t *testing.T) {
		c1, err := New(Options{SecretKey: "sk_live_abc"})
		require.NoError(t, err)
		c2, err := New(Options{SecretKey: "sk_live_abc"})
		require.NoError(t, err)

		assert.Equal(t, c1.ClientID(), c2.ClientID())
		assert.Len(t, c1.ClientID(), 32)
		assert.NotContains(t, c1.ClientID(), "sk_live_abc")
		assert.Equal(t, "sk_live_abc", c1.SecretKey())
		assert.True(t, c1.IsServer())
	})

	t.Run("different secrets derive different ids", func(t *testing.T) {
		assert.NotEqual(t, ClientIDFromSecretKey("sk_a"), ClientIDFromSecretKey("sk_b"))
	})

	t.Run("secret key wins over client id", func(t *testing.T) {
		c, err := New(Options{ClientID: "explicit", SecretKey: "sk_live_abc"})
		require.NoError(t, err)
		assert.Equal(t, ClientIDFromSecretKey("sk_live_abc"), c.ClientID())
	})

	t.Run("uses client id as is", func(t *testing.T) {
		c, err := New(Options{ClientID: "abc123"})
		require.NoError(t, err)
		assert.Equal(t, "abc123", c.ClientID())
		assert.Empty(t, c.SecretKey())
		assert.False(t, c.IsServer())
	})

	t.Run("fails without credentials", func(t *testing.T) {
		_, err := New(Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("string hides secret", func(t *testing.T) {
		c, err := New(Options{SecretKey: "sk_live_abc"})
		require.NoError(t, err)
		assert.NotContains(t, c.String(), "sk_live_abc")
	})
}

func TestIsFirstPartyURL(t *testing.T) {
	cases := map[string]bool{
		"https://1.rpc.thirdweb.com/abc":         true,
		"https://api.thirdweb.com/v1/chains/1":   true,
		"https://abc.ipfscdn.io/ipfs/Qm":         true,
		"https://embedded-wallet.thirdweb.dev/x": true,
		"https://otherthirdweb.com/x":            false,
		"https://thirdweb.com.evil.io/x":         false,
		"https://eth.llamarpc.com":               false,
		"not a url":                              false,
	}
	for url, want := range cases {
		assert.Equal(t, want, IsFirstPartyURL(url), url)
	}
}

func TestAuthHeaders(t *testing.T) {
	t.Run("public client sends client id", func(t *testing.T) {
		c, err := New(Options{ClientID: "abc123"})
		require.NoError(t, err)

		h := c.AuthHeaders("https://1.rpc.thirdweb.com/abc123")
		assert.Equal(t, "abc123", h.Get("x-client-id"))
		assert.Empty(t, h.Get("x-secret-key"))
		assert.Equal(t, Version, h.Get("x-sdk-version"))
		assert.NotEmpty(t, h.Get("x-sdk-os"))
	})

	t.Run("server client sends secret key only", func(t *testing.T) {
		c, err := New(Options{SecretKey: "sk_live_abc"})
		require.NoError(t, err)

		h := c.AuthHeaders("https://api.thirdweb.com/v1/chains/1")
		assert.Equal(t, "sk_live_abc", h.Get("x-secret-key"))
		assert.Empty(t, h.Get("x-client-id"))
	})

	t.Run("nothing for third-party hosts", func(t *testing.T) {
		c, err := New(Options{SecretKey: "sk_live_abc"})
		require.NoError(t, err)
		assert.Empty(t, c.AuthHeaders("https://eth.llamarpc.com"))
	})
}

func TestParseOS(t *testing.T) {
	assert.Equal(t, "win", parseOS("windows"))
	assert.Equal(t, "mac", parseOS("darwin"))
	assert.Equal(t, "linux", parseOS("linux"))
	assert.Equal(t, "unknown", parseOS(""))
}

func TestHTTPClient_ThirdPartyUntouched(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Options{SecretKey: "sk_live_abc"})
	require.NoError(t, err)

	resp, err := c.HTTPClient().Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, got.Get("x-secret-key"))
	assert.Empty(t, got.Get("x-sdk-name"))
}

func TestFetchJSON(t *testing.T) {
	t.Run("decodes response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		var out struct {
			OK bool `json:"ok"`
		}
		err := FetchJSON(context.Background(), http.DefaultClient, http.MethodPost, srv.URL, map[string]string{"a": "b"}, nil, &out)
		require.NoError(t, err)
		assert.True(t, out.OK)
	})

	t.Run("returns HTTPError on non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad token"}`))
		}))
		defer srv.Close()

		err := FetchJSON(context.Background(), http.DefaultClient, http.MethodGet, srv.URL, nil, nil, nil)
		require.Error(t, err)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.True(t, httpErr.IsUnauthorized())
		assert.Equal(t, "HTTP 401: bad token", httpErr.Error())
	})
}
