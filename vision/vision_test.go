package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vertexvision/vertexvision/api"
)

// capturedRequest records the last predict request body seen by the fake
// service, both raw and decoded.
type capturedRequest struct {
	Raw  []byte
	Body map[string]any
}

func (c *capturedRequest) instance(t *testing.T) map[string]any {
	t.Helper()
	instances, ok := c.Body["instances"].([]any)
	require.True(t, ok, "request has no instances")
	require.Len(t, instances, 1)
	return instances[0].(map[string]any)
}

func (c *capturedRequest) parameters(t *testing.T) map[string]any {
	t.Helper()
	params, ok := c.Body["parameters"].(map[string]any)
	require.True(t, ok, "request has no parameters")
	return params
}

// newTestClient runs a fake predict endpoint that answers every call with
// the given predictions.
func newTestClient(t *testing.T, predictions ...any) (*api.Client, *capturedRequest) {
	t.Helper()

	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured.Raw = raw
		captured.Body = nil
		require.NoError(t, json.Unmarshal(raw, &captured.Body))

		json.NewEncoder(w).Encode(map[string]any{"predictions": predictions})
	}))
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return api.NewClient(base, "test-project", "us-central1", srv.Client()), captured
}

// countingFetcher is a fake object-store collaborator that records how
// many fetches were performed.
type countingFetcher struct {
	data    []byte
	fetches atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.fetches.Add(1)
	return f.data, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, rgba))
	return buf.Bytes()
}
