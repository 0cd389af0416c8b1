// Package api implements the client-side API for the vision prediction
// service. Everything substantive happens remotely; the [Client] builds
// JSON predict requests, sends them, and decodes the envelope. The vision
// package sits on top of this and is what most callers want.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/vertexvision/vertexvision/envconfig"
	"github.com/vertexvision/vertexvision/telemetry"
	"github.com/vertexvision/vertexvision/version"
)

// Client encapsulates client state for interacting with the vision
// prediction service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base     *url.URL
	http     *http.Client
	project  string
	location string
}

// ClientFromEnvironment creates a new [Client] using configuration from
// the VERTEXVISION_* environment variables (see package envconfig).
func ClientFromEnvironment() (*Client, error) {
	project := envconfig.Project()
	if project == "" {
		return nil, fmt.Errorf("api: VERTEXVISION_PROJECT is not set")
	}
	return &Client{
		base:     envconfig.Host(),
		http:     http.DefaultClient,
		project:  project,
		location: envconfig.Location(),
	}, nil
}

func NewClient(base *url.URL, project, location string, http *http.Client) *Client {
	return &Client{
		base:     base,
		http:     http,
		project:  project,
		location: location,
	}
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent())
	request.Header.Set("X-Request-Id", uuid.NewString())

	if token := envconfig.AccessToken(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// userAgent identifies the SDK plus any active telemetry tool contexts.
func userAgent() string {
	ua := fmt.Sprintf("vertexvision/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
	if contexts := telemetry.Contexts(); len(contexts) > 0 {
		ua += " " + strings.Join(contexts, " ")
	}
	return ua
}

// Predict sends one predict call for the named model and returns the raw
// prediction envelope. There is exactly one round trip per call; failures
// surface unwrapped to the caller.
func (c *Client) Predict(ctx context.Context, model string, req *PredictRequest) (*PredictResponse, error) {
	path := fmt.Sprintf("/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.project, c.location, model)

	var resp PredictResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
