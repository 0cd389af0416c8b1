// Package storage reads objects referenced by gs:// URIs. It is the remote
// collaborator behind lazily resolved media references; all it knows how to
// do is fetch bytes.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/vertexvision/vertexvision/envconfig"
)

// Scheme is the object-store URI scheme accepted by this package.
const Scheme = "gs://"

// Fetcher reads the full contents of the object at uri.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Client fetches objects over the object store's public HTTP surface.
// Concurrent fetches of the same URI are collapsed into a single request.
type Client struct {
	http  *resty.Client
	group singleflight.Group
	token func() string
}

// NewClient returns a Client. A bearer token from the environment is
// attached when present; anonymous access works for public objects.
func NewClient() *Client {
	return &Client{
		http:  resty.New().SetBaseURL("https://storage.googleapis.com"),
		token: envconfig.AccessToken,
	}
}

// Fetch downloads the object at uri, which must use the gs:// scheme.
// Service errors (not found, access denied) surface as a *FetchError.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}

	v, err, shared := c.group.Do(uri, func() (any, error) {
		req := c.http.R().SetContext(ctx)
		if t := c.token(); t != "" {
			req.SetAuthToken(t)
		}

		resp, err := req.Get(fmt.Sprintf("/%s/%s", bucket, object))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, &FetchError{URI: uri, StatusCode: resp.StatusCode()}
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched object", "uri", uri, "shared", shared)
	return v.([]byte), nil
}

// SplitURI splits a gs://bucket/object URI into its bucket and object name.
func SplitURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, Scheme)
	if !ok {
		return "", "", fmt.Errorf("storage: not a %s uri: %q", Scheme, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("storage: malformed uri: %q", uri)
	}
	return bucket, object, nil
}

// FetchError is a non-2xx response from the object store.
type FetchError struct {
	URI        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("storage: fetching %s: status %d", e.URI, e.StatusCode)
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide Client used by media references that
// were not given an explicit Fetcher.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = NewClient()
	})
	return defaultClient
}
