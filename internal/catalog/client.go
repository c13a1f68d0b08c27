// Package catalog is the HTTP client for the platform's catalog/inventory
// read API. Product management itself lives in another service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chatorder/platform/internal/tools"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.HTTP == nil {
		return errors.New("catalog: http client is nil")
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("catalog: %s", msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ErrNotFound is returned for unknown SKUs and unserved addresses.
var ErrNotFound = errors.New("catalog: not found")

func (c *Client) Search(ctx context.Context, tenantID, query string, limit int) ([]tools.Product, error) {
	q := url.Values{}
	q.Set("tenant_id", tenantID)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var out struct {
		Products []tools.Product `json:"products"`
	}
	if err := c.get(ctx, "/products/search", q, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) BySKU(ctx context.Context, tenantID, sku string) (*tools.Product, error) {
	q := url.Values{}
	q.Set("tenant_id", tenantID)

	var out tools.Product
	if err := c.get(ctx, "/products/"+url.PathEscape(sku), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResolveZone(ctx context.Context, tenantID, address string) (*tools.Zone, error) {
	q := url.Values{}
	q.Set("tenant_id", tenantID)
	q.Set("address", address)

	var out tools.Zone
	if err := c.get(ctx, "/zones/resolve", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
