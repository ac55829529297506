// Package ado is a thin client for the Azure DevOps work item, WIQL and wiki
// REST APIs. Responses are translated into workitem.WorkItem at this
// boundary.
package ado

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every ADO request.
const DefaultTimeout = 30 * time.Second

// Auth modes.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

const (
	apiVersion       = "7.1"
	createAPIVersion = "7.0"
	jsonPatch        = "application/json-patch+json"
)

// Options configures a Client.
type Options struct {
	OrgURL  string
	Project string
	PAT     string

	// Auth is AuthBasic (default) or AuthBearer.
	Auth    string
	Timeout time.Duration

	// AreaPath, when set, limits WIQL queries to that area.
	AreaPath string
	// WorkItemTypes restricts the backlog and recent queries.
	WorkItemTypes []string

	// HTTPClient overrides the transport. Its Timeout is left alone.
	HTTPClient *http.Client
}

// Client talks to one ADO project.
type Client struct {
	baseURL  string
	project  string
	pat      string
	auth     string
	areaPath string
	types    []string
	http     *http.Client
}

// APIError is a non-2xx response from ADO. Message carries ADO's own error
// text when it sent one.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ado: %s %s: %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// IsNotFound reports whether err is an ADO 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient validates opts and returns a Client. No request is made.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.OrgURL, "/")
	if base == "" || opts.Project == "" || opts.PAT == "" {
		return nil, fmt.Errorf("ado: org url, project and pat are required")
	}
	auth := opts.Auth
	if auth == "" {
		auth = AuthBasic
	}
	if auth != AuthBasic && auth != AuthBearer {
		return nil, fmt.Errorf("ado: unknown auth mode %q", auth)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	if auth == AuthBearer {
		rt := hc.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		wrapped := *hc
		wrapped.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.PAT, TokenType: "Bearer"}),
			Base:   rt,
		}
		hc = &wrapped
	}

	types := make([]string, len(opts.WorkItemTypes))
	copy(types, opts.WorkItemTypes)

	return &Client{
		baseURL:  base,
		project:  opts.Project,
		pat:      opts.PAT,
		auth:     auth,
		areaPath: opts.AreaPath,
		types:    types,
		http:     hc,
	}, nil
}

// OrgURL returns the organization URL without a trailing slash.
func (c *Client) OrgURL() string { return c.baseURL }

// Project returns the project name.
func (c *Client) Project() string { return c.project }

// EditURL is the browser link for a work item.
func (c *Client) EditURL(id int) string {
	return fmt.Sprintf("%s/%s/_workitems/edit/%d/", c.baseURL, c.project, id)
}

// APIURL is the REST link for a work item, as used in relation patches.
func (c *Client) APIURL(id int) string {
	return fmt.Sprintf("%s/_apis/wit/workItems/%d", c.baseURL, id)
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, "application/json", body, result)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ado: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("ado: create request: %w", err)
	}
	if c.auth == AuthBasic {
		// ADO expects an empty user name with the PAT as password.
		req.SetBasicAuth("", c.pat)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ado: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ado: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(resp, respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("ado: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(resp *http.Response, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "authentication failed: check the personal access token"
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
