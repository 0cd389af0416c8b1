package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertexvision/vertexvision/telemetry"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewClient(base, "test-project", "us-central1", srv.Client())
}

func TestPredict(t *testing.T) {
	var gotPath string
	var gotBody []byte
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		assert.Contains(t, r.Header.Get("User-Agent"), "vertexvision/")

		json.NewEncoder(w).Encode(map[string]any{
			"predictions":     []any{map[string]any{"bytesBase64Encoded": "aGk="}},
			"deployedModelId": "123",
		})
	}))

	prompt := "a cat"
	resp, err := c.Predict(context.Background(), "imagegeneration@002", &PredictRequest{
		Instances:  []Instance{{Prompt: &prompt}},
		Parameters: &Parameters{SampleCount: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/projects/test-project/locations/us-central1/publishers/google/models/imagegeneration@002:predict", gotPath)
	assert.JSONEq(t, `{"instances":[{"prompt":"a cat"}],"parameters":{"sampleCount":1}}`, string(gotBody))
	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, "123", resp.DeployedModelID)
}

func TestPredictStatusError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "quota exceeded"}`))
	}))

	_, err := c.Predict(context.Background(), "imagegeneration@002", &PredictRequest{})
	var se StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "quota exceeded", se.ErrorMessage)
}

func TestPredictBadErrorBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))

	_, err := c.Predict(context.Background(), "imagegeneration@002", &PredictRequest{})
	var se StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "not json", se.ErrorMessage)
}

func TestUserAgentCarriesToolContexts(t *testing.T) {
	var ua string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Write([]byte(`{"predictions":[]}`))
	}))

	err := telemetry.WithToolContext("my-tool", func() error {
		_, err := c.Predict(context.Background(), "imagetext@001", &PredictRequest{})
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, ua, "my-tool")
}

func TestParametersOmitAbsentKeys(t *testing.T) {
	data, err := json.Marshal(&Parameters{SampleCount: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sampleCount":2}`, string(data))

	// explicit zero seed must survive, as a JSON number
	seed := int64(0)
	data, err = json.Marshal(&Parameters{SampleCount: 1, Seed: &seed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sampleCount":1,"seed":0}`, string(data))
}
