package gateway

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

// TokenSource supplies the bearer token for authenticated requests. An
// empty token sends the request unauthenticated; the backend answers 401
// and the caller handles session teardown.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning a fixed string. Used in tests
// and for the auth exchange itself.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is a thin HTTP client for the triage backend REST API. It handles
// Bearer token authentication, JSON (de)serialization, and maps failures
// onto the NetworkError/AuthError/ServerError taxonomy. It performs no
// retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL is the API root (e.g.
// http://localhost:5000/api); tokens supplies the session bearer token.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// get performs an authenticated GET and unmarshals the JSON response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result, true)
}

// post performs an authenticated POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result, true)
}

// do builds the request, attaches auth when wanted, executes it, and maps
// the outcome onto the error taxonomy.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	auth bool,
) error {
	op := method + " " + path
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &NetworkError{Op: op, Err: readErr}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Op: op}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("parsing response from %s: %w", op, err)
	}

	return nil
}

// raw performs an authenticated GET and returns the response bytes
// unparsed. Used for the profile photo, which is a binary image.
func (c *Client) raw(ctx context.Context, path string) ([]byte, error) {
	op := http.MethodGet + " " + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Op: op}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ServerError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return data, nil
}

// errorMessage pulls the backend's error string out of a failure body.
// The backend answers {"success": false, "error": "..."} on failures.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
