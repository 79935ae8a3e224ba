// Package client calls the dashboard JSON endpoints of a running server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zento-erp/zento/internal/charts"
)

// ErrUnexpectedStatus is returned when the server answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("dashboard client: unexpected status")

const (
	businessLinesPath = "/dashboard/api/business-lines/"
	expensesPath      = "/dashboard/api/expenses/"
	healthPath        = "/healthz"
)

// Client wraps the dashboard API. Host, when set, overrides the request Host
// header so the server resolves that tenant.
type Client struct {
	baseURL    string
	host       string
	httpClient *http.Client
}

// New constructs a client for baseURL. A nil httpClient uses a 10 second timeout.
func New(baseURL, host string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		host:       host,
		httpClient: httpClient,
	}
}

var _ charts.BusinessLineSource = (*Client)(nil)

// Ping checks the server is up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, healthPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return checkStatus(resp)
}

// BusinessLines fetches net revenue per business line for the query window.
func (c *Client) BusinessLines(ctx context.Context, q charts.Query) ([]charts.BusinessLinePoint, error) {
	var body struct {
		Data []charts.BusinessLinePoint `json:"business_lines_data"`
	}
	if err := c.getJSON(ctx, businessLinesPath, q.Values(), &body); err != nil {
		return nil, fmt.Errorf("dashboard client: business lines: %w", err)
	}
	if body.Data == nil {
		body.Data = []charts.BusinessLinePoint{}
	}
	return body.Data, nil
}

// Expenses fetches expense totals per category between start and end. Zero
// times leave the window open.
func (c *Client) Expenses(ctx context.Context, start, end time.Time) ([]charts.ExpenseCategoryPoint, error) {
	var body struct {
		Data []charts.ExpenseCategoryPoint `json:"expenses_data"`
	}
	params := charts.Query{Start: start, End: end}.Values()
	if err := c.getJSON(ctx, expensesPath, params, &body); err != nil {
		return nil, fmt.Errorf("dashboard client: expenses: %w", err)
	}
	if body.Data == nil {
		body.Data = []charts.ExpenseCategoryPoint{}
	}
	return body.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	resp, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.host != "" {
		req.Host = c.host
	}
	return c.httpClient.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
}
