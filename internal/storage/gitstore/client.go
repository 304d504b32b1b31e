// Package gitstore is the access layer for the remote versioned-blob
// backend. Every durable document is a JSON blob addressed by path
// inside a repository; the backend's contents API returns the blob
// together with an opaque version token (the blob SHA) and accepts
// writes only against the token the caller last read, which gives
// whole-document compare-and-swap semantics.
package gitstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type Config struct {
	// BaseURL is the backend API root (e.g. "https://git.example.com/api/v1").
	BaseURL string
	// Repo is the "owner/name" repository holding the documents.
	Repo string
	// Branch is the branch documents are read from and written to.
	Branch string
	// Token authenticates every request. Sent as a bearer token.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

type Client struct {
	baseURL    string
	repo       string
	branch     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("gitstore: BaseURL is required")
	}
	if config.Repo == "" {
		return nil, fmt.Errorf("gitstore: Repo is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("gitstore: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	branch := config.Branch
	if branch == "" {
		branch = "main"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		repo:       config.Repo,
		branch:     branch,
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// contentsResponse is the backend's representation of a stored blob.
type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type writeResponse struct {
	Content contentsResponse `json:"content"`
}

// Read fetches the current document body and its version token.
// Returns domain.ErrNotFound if no document exists at the path.
func (c *Client) Read(ctx context.Context, path string) ([]byte, string, error) {
	query := url.Values{"ref": {c.branch}}
	body, err := c.doRequest(ctx, http.MethodGet, c.contentsPath(path), nil, query)
	if err != nil {
		return nil, "", classify(err, path)
	}

	var response contentsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, "", fmt.Errorf("gitstore: failed to parse contents of %s: %w", path, err)
	}

	content, err := base64.StdEncoding.DecodeString(response.Content)
	if err != nil {
		return nil, "", fmt.Errorf("gitstore: failed to decode contents of %s: %w", path, err)
	}

	return content, response.SHA, nil
}

// Write replaces the document at path, guarded by the version token
// from the caller's read. expectedVersion may be empty only when the
// document is being created. The change description becomes the
// commit message on the backend. Returns the new version token.
func (c *Client) Write(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error) {
	request := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.branch,
		SHA:     expectedVersion,
	}

	body, err := c.doRequest(ctx, http.MethodPut, c.contentsPath(path), request, nil)
	if err != nil {
		return "", classify(err, path)
	}

	var response writeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("gitstore: failed to parse write response for %s: %w", path, err)
	}

	return response.Content.SHA, nil
}

func (c *Client) contentsPath(path string) string {
	return fmt.Sprintf("/repos/%s/contents/%s", c.repo, path)
}

// doRequest performs an HTTP request against the backend and returns
// the response body. On 2xx, returns the body. On 4xx/5xx, returns a
// *BackendError carrying the status code.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if query != nil {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("gitstore: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("gitstore: failed to create request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("gitstore: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("gitstore: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	backendErr := &BackendError{
		StatusCode: response.StatusCode,
		Method:     method,
		Path:       path,
	}
	// Error bodies are JSON with a message field; fall back to the raw
	// body when the backend sends something else.
	var parsed struct {
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal(responseBody, &parsed); jsonErr == nil && parsed.Message != "" {
		backendErr.Message = parsed.Message
	} else {
		backendErr.Message = strings.TrimSpace(string(responseBody))
	}

	return nil, backendErr
}
