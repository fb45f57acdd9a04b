package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/txflow/internal/client"
)

func TestResolveScheme(t *testing.T) {
	gw := DefaultGateway("abc123")

	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr error
	}{
		{name: "ipfs cid", uri: "ipfs://QmHash", want: "https://abc123.ipfscdn.io/ipfs/QmHash"},
		{name: "ipfs path", uri: "ipfs://QmHash/0.json", want: "https://abc123.ipfscdn.io/ipfs/QmHash/0.json"},
		{name: "ipfs double prefix", uri: "ipfs://ipfs/QmHash", want: "https://abc123.ipfscdn.io/ipfs/QmHash"},
		{name: "https unchanged", uri: "https://example.com/a.json", want: "https://example.com/a.json"},
		{name: "http unchanged", uri: "http://localhost:8080/a", want: "http://localhost:8080/a"},
		{name: "empty cid", uri: "ipfs://", wantErr: ErrInvalidScheme},
		{name: "ftp", uri: "ftp://example.com/a", wantErr: ErrInvalidScheme},
		{name: "bare", uri: "QmHash", wantErr: ErrInvalidScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveScheme(tt.uri, gw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveScheme_CustomGateway(t *testing.T) {
	got, err := ResolveScheme("ipfs://QmHash", "https://gateway.example/ipfs")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/ipfs/QmHash", got)
}

func TestGateway(t *testing.T) {
	cl, err := client.New(client.Options{ClientID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.ipfscdn.io/ipfs/", Gateway(cl))

	cl, err = client.New(client.Options{ClientID: "abc123", Storage: client.StorageConfig{Gateway: "https://gw.example/ipfs/"}})
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/ipfs/", Gateway(cl))
}

func newGateway(t *testing.T) (*httptest.Server, *atomic.Int32, *http.Header) {
	t.Helper()
	var hits atomic.Int32
	var last http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		last = r.Header.Clone()
		switch r.URL.Path {
		case "/ipfs/QmHash/0.json":
			_, _ = w.Write([]byte(`{"name":"token"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &last
}

func TestDownload(t *testing.T) {
	srv, _, last := newGateway(t)
	cl, err := client.New(client.Options{
		SecretKey: "secret",
		Storage: client.StorageConfig{
			Gateway: srv.URL + "/ipfs/",
			Fetch:   client.FetchConfig{Headers: map[string]string{"x-extra": "1"}},
		},
	})
	require.NoError(t, err)

	body, err := Download(context.Background(), cl, "ipfs://QmHash/0.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"token"}`, string(body))

	// a local gateway is not first party, so no credentials leave the process
	assert.Empty(t, last.Get("x-secret-key"))
	assert.Equal(t, "1", last.Get("x-extra"))

	_, err = Download(context.Background(), cl, "ipfs://QmMissing")
	var httpErr *client.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	_, err = Download(context.Background(), cl, "s3://bucket/key")
	assert.ErrorIs(t, err, ErrInvalidScheme)
}

func TestDownloader_CachesIPFS(t *testing.T) {
	srv, hits, _ := newGateway(t)
	cl, err := client.New(client.Options{ClientID: "id", Storage: client.StorageConfig{Gateway: srv.URL + "/ipfs/"}})
	require.NoError(t, err)

	d, err := NewDownloader(cl, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := d.Download(context.Background(), "ipfs://QmHash/0.json")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	for i := 0; i < 2; i++ {
		_, err := d.Download(context.Background(), srv.URL+"/ipfs/QmHash/0.json")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}
