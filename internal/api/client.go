package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource yields the current bearer token. ok is false when the user is
// not authenticated.
type TokenSource func() (token string, ok bool)

// Client is a thin HTTP client for the classroom REST API. It handles
// Bearer token authentication and JSON marshaling. It never retries: a
// failed poll simply waits for the next tick.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

// NewClient creates a new API client. The baseURL should be the root URL of
// the API (e.g., https://class.example.com/api).
func NewClient(baseURL string, token TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// do builds the request, attaches the credential and decodes the response.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if err := checkStatus(resp, method, path, respBody); err != nil {
		return err
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}

// stream performs a GET and copies the raw body to w.
func (c *Client) stream(ctx context.Context, path, accept string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, accept)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, checkStatus(resp, http.MethodGet, path, respBody)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copying response from GET %s: %w", path, err)
	}
	return n, nil
}

func (c *Client) send(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	accept string,
) (*http.Response, error) {
	token, ok := c.token()
	if !ok || token == "" {
		return nil, ErrNoCredential
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to AuthError or Error.
func checkStatus(resp *http.Response, method, path string, respBody []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errBody ErrorResponse
	msg := ""
	if json.Unmarshal(respBody, &errBody) == nil {
		msg = errBody.Text()
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Method: method, Path: path, Message: msg}
	}

	if msg == "" {
		msg = strings.TrimSpace(string(respBody))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Method: method, Path: path, Message: msg}
}
