package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/config"
)

// ErrEmployeeNotFound is returned when the gateway has no such employee.
var ErrEmployeeNotFound = errors.New("biometric employee not found")

// Module provides the gateway client to Fx.
var Module = fx.Provide(NewClient)

// Client talks to the attendance device gateway over HTTP JSON.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.Biometric.BaseURL, "/"),
		apiKey:   cfg.Biometric.APIKey,
		pageSize: cfg.Biometric.PageSize,
		httpClient: &http.Client{
			Timeout:   cfg.Biometric.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetEmployees lists up to limit employees. A non-positive limit uses the page size.
func (c *Client) GetEmployees(ctx context.Context, limit int) ([]Employee, error) {
	if limit <= 0 {
		limit = c.pageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var envelope struct {
		Data []Employee `json:"data"`
	}
	raw, err := c.get(ctx, "/employees?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if raw = bytes.TrimSpace(raw); len(raw) > 0 && raw[0] == '[' {
		var list []Employee
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode employees: %w", err)
		}
		return list, nil
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode employees: %w", err)
	}
	return envelope.Data, nil
}

// GetEmployee loads one employee by gateway id.
func (c *Client) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	raw, err := c.get(ctx, "/employees/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data *Employee `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}
	var e Employee
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode employee %s: %w", id, err)
	}
	return &e, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build biometric request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call biometric gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read biometric response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrEmployeeNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("biometric gateway returned status %d", resp.StatusCode)
	}
	return body, nil
}
