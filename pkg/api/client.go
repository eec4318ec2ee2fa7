// Package api is the Go client for the marketplace REST API. Each service
// owns its own configured http.Client whose transport attaches the stored
// bearer token to every outgoing request. The pipeline itself never mutates
// the session: a 401 surfaces as ErrUnauthenticated and the caller decides
// whether to clear the session and send the user back to login.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/enchanted/marketplace/pkg/session"
)

// ErrUnauthenticated marks any 401 response, regardless of endpoint.
var ErrUnauthenticated = errors.New("unauthenticated")

// Error is the single error shape every service method returns: the
// server-provided message when one exists, otherwise a fixed per-operation
// fallback.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type bearerTransport struct {
	base    http.RoundTripper
	session *session.Store
}

// RoundTrip reads the store at request time, so a token cleared before the
// request is issued is never attached.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if tok := t.session.Token(); tok != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return t.base.RoundTrip(req)
}

func newClient(baseURL string, store *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &bearerTransport{
				base: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     90 * time.Second,
				},
				session: store,
			},
		},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

type errorBody struct {
	Error string `json:"error"`
}

// do performs one request attempt and decodes the JSON response into out.
// No retry, no backoff: a failure surfaces directly to the caller.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, fallback string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: fallback, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out, fallback)
}

// doMultipart uploads a single file under the given form field.
func (c *Client) doMultipart(ctx context.Context, method, path, field, filename string, file io.Reader, out interface{}, fallback string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	if _, err := io.Copy(fw, file); err != nil {
		return &Error{Message: fallback, Err: err}
	}
	if err := w.Close(); err != nil {
		return &Error{Message: fallback, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.send(req, out, fallback)
}

func (c *Client) send(req *http.Request, out interface{}, fallback string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &Error{
			Status:  resp.StatusCode,
			Message: serverMessage(resp.Body, fallback),
			Err:     ErrUnauthenticated,
		}
	}
	if resp.StatusCode >= 400 {
		return &Error{
			Status:  resp.StatusCode,
			Message: serverMessage(resp.Body, fallback),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Message: fallback, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func serverMessage(body io.Reader, fallback string) string {
	var eb errorBody
	if err := json.NewDecoder(body).Decode(&eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return fallback
}
