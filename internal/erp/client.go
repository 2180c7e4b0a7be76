// Package erp is the RemoteClient collaborator: it owns the two call
// shapes the core depends on (an MCP JSON-RPC tool call, and REST document
// operations) and normalizes their response shapes so the core never
// special-cases wire formats.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"facops/internal/config"
	"facops/internal/redact"
)

// Record is a remote document as returned by the ERP. Fields are whatever
// the collection defines; the core only reads the handful it asked for.
type Record = map[string]any

const (
	maxBodyBytes   = 1 << 20
	defaultTimeout = 60 * time.Second
)

type Client struct {
	restBase   string
	mcpURL     string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
	redactor   *redact.Redactor
}

type Option func(*Client)

// WithTimeout bounds every call. There is no automatic retry: a timeout
// surfaces as a transport error and the caller decides what is safe.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithRedactor(r *redact.Redactor) Option {
	return func(c *Client) { c.redactor = r }
}

// NewClient derives the single Authorization value from the secrets and
// registers it with the redactor so it can never leak through logs.
func NewClient(env config.Environment, secrets config.Secrets, opts ...Option) (*Client, error) {
	header, _, raw, err := secrets.AuthHeader()
	if err != nil {
		return nil, err
	}
	c := &Client{
		restBase:   strings.TrimRight(env.RESTBaseURL, "/"),
		mcpURL:     env.MCPBaseURL,
		authHeader: header,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		redactor:   redact.NewRedactor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.redactor.AddSecrets([]string{raw, header})
	c.redactor.AddSecrets(secrets.SecretValues())
	return c, nil
}

// doJSON issues one HTTP request and decodes a JSON response. Non-2xx
// statuses and non-JSON bodies are transport errors carrying the raw body.
func (c *Client) doJSON(ctx context.Context, method, url string, body any, out any) error {
	op := method + " " + url
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("erp request", "method", method, "url", c.redactor.Redact(url))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("%s", c.redactor.Redact(err.Error()))}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, Status: resp.StatusCode, Body: c.redactor.Redact(string(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{
				Op:     op,
				Status: resp.StatusCode,
				Body:   c.redactor.Redact(string(raw)),
				Err:    fmt.Errorf("non-JSON response: %w", err),
			}
		}
	}
	return nil
}
