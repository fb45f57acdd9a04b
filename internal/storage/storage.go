// Package storage resolves and downloads IPFS and HTTP URIs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yolodolo42/txflow/internal/client"
)

// ErrInvalidScheme is returned for URIs that are neither ipfs nor http(s)
var ErrInvalidScheme = errors.New("invalid uri scheme")

// MaxDownloadSize caps a single download
const MaxDownloadSize = 50 << 20

// DefaultGateway is the first-party gateway for clientID. Requests to it
// carry the client's auth headers.
func DefaultGateway(clientID string) string {
	return fmt.Sprintf("https://%s.ipfscdn.io/ipfs/", clientID)
}

// Gateway returns the client's configured gateway or the default one
func Gateway(cl *client.Client) string {
	if gw := cl.StorageConfig().Gateway; gw != "" {
		return gw
	}
	return DefaultGateway(cl.ClientID())
}

// ResolveScheme turns uri into an HTTP URL. ipfs://CID/path is appended to
// gateway, http and https URIs are returned unchanged.
func ResolveScheme(uri, gateway string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		if gateway == "" {
			return "", errors.New("no ipfs gateway configured")
		}
		rest := strings.TrimPrefix(uri, "ipfs://")
		rest = strings.TrimPrefix(rest, "ipfs/")
		if rest == "" {
			return "", fmt.Errorf("%w: missing cid in %q", ErrInvalidScheme, uri)
		}
		return strings.TrimRight(gateway, "/") + "/" + rest, nil
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		return uri, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScheme, uri)
}

// Download fetches uri through the client's HTTP client
func Download(ctx context.Context, cl *client.Client, uri string) ([]byte, error) {
	url, err := ResolveScheme(uri, Gateway(cl))
	if err != nil {
		return nil, err
	}
	return fetch(ctx, cl, url)
}

func fetch(ctx context.Context, cl *client.Client, url string) ([]byte, error) {
	cfg := cl.StorageConfig().Fetch
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := cl.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &client.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	return body, nil
}

// Downloader is Download with an in-memory cache of IPFS content. IPFS
// content is addressed by hash so entries never go stale; HTTP URIs are
// always fetched.
type Downloader struct {
	client *client.Client
	cache  *lru.Cache[string, []byte]
}

func NewDownloader(cl *client.Client, size int) (*Downloader, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Downloader{client: cl, cache: cache}, nil
}

func (d *Downloader) Download(ctx context.Context, uri string) ([]byte, error) {
	cacheable := strings.HasPrefix(uri, "ipfs://")
	if cacheable {
		if body, ok := d.cache.Get(uri); ok {
			return body, nil
		}
	}
	body, err := Download(ctx, d.client, uri)
	if err != nil {
		return nil, err
	}
	if cacheable {
		d.cache.Add(uri, body)
	}
	return body, nil
}
