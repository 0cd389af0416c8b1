package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		http:  resty.New().SetBaseURL(srv.URL),
		token: func() string { return "" },
	}
}

func TestSplitURI(t *testing.T) {
	cases := []struct {
		uri            string
		bucket, object string
		wantErr        bool
	}{
		{uri: "gs://bucket/object.png", bucket: "bucket", object: "object.png"},
		{uri: "gs://bucket/deep/path/object.png", bucket: "bucket", object: "deep/path/object.png"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://", wantErr: true},
		{uri: "https://bucket/object", wantErr: true},
		{uri: "", wantErr: true},
	}

	for _, tt := range cases {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := SplitURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestFetch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bucket/object.png", r.URL.Path)
		w.Write([]byte("payload"))
	}))

	b, err := c.Fetch(context.Background(), "gs://bucket/object.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), b)
}

func TestFetchNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Fetch(context.Background(), "gs://bucket/missing.png")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "gs://bucket/missing.png", fe.URI)
}

func TestFetchAuthToken(t *testing.T) {
	var got atomic.Value
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.Write([]byte("ok"))
	}))
	c.token = func() string { return "secret" }

	_, err := c.Fetch(context.Background(), "gs://bucket/object.png")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Load())
}

func TestFetchBadURI(t *testing.T) {
	c := NewClient()
	_, err := c.Fetch(context.Background(), "file:///tmp/x")
	require.Error(t, err)
}
