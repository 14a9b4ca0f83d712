package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/glacier/internal/ledger"
)

// Client talks to a glacierd instance as a fixed caller account.
type Client struct {
	httpClient *http.Client
	BaseURL    string
	Caller     string
}

// NewClient creates a client for the glacierd at baseURL, acting as
// caller.
func NewClient(baseURL, caller string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Caller:     caller,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// MintKey returns a fresh random operation key. Two v4 UUIDs fill the 32
// bytes; uniqueness is the caller's idempotency handle.
func MintKey() ledger.Key {
	var k ledger.Key
	a, b := uuid.New(), uuid.New()
	copy(k[:16], a[:])
	copy(k[16:], b[:])
	return k
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerHeader, c.Caller)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s (%s)", method, path, resp.StatusCode, apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("%s %s: http %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SetFrozen submits a freeze-set operation.
func (c *Client) SetFrozen(ctx context.Context, account, amount string, key ledger.Key) error {
	return c.do(ctx, http.MethodPost, "/v1/frozen/set",
		OperationRequest{Account: account, Amount: amount, Key: key.String()}, nil)
}

// IncreaseFrozen submits a freeze-increase operation.
func (c *Client) IncreaseFrozen(ctx context.Context, account, amount string, key ledger.Key) error {
	return c.do(ctx, http.MethodPost, "/v1/frozen/increase",
		OperationRequest{Account: account, Amount: amount, Key: key.String()}, nil)
}

// DecreaseFrozen submits a freeze-decrease operation.
func (c *Client) DecreaseFrozen(ctx context.Context, account, amount string, key ledger.Key) error {
	return c.do(ctx, http.MethodPost, "/v1/frozen/decrease",
		OperationRequest{Account: account, Amount: amount, Key: key.String()}, nil)
}

// TransferFrozen submits a frozen-balance transfer.
func (c *Client) TransferFrozen(ctx context.Context, from, to, amount string, key ledger.Key) error {
	return c.do(ctx, http.MethodPost, "/v1/frozen/transfer",
		OperationRequest{Account: from, To: to, Amount: amount, Key: key.String()}, nil)
}

// Operation fetches the registry record for key.
func (c *Client) Operation(ctx context.Context, key ledger.Key) (OperationResponse, error) {
	var out OperationResponse
	err := c.do(ctx, http.MethodGet, "/v1/operations/"+key.String(), nil, &out)
	return out, err
}

// BalanceOfFrozen fetches an account's frozen balance.
func (c *Client) BalanceOfFrozen(ctx context.Context, account string) (BalanceResponse, error) {
	var out BalanceResponse
	err := c.do(ctx, http.MethodGet, "/v1/frozen/"+url.PathEscape(account), nil, &out)
	return out, err
}

// Shards fetches the shard set.
func (c *Client) Shards(ctx context.Context) (ShardsResponse, error) {
	var out ShardsResponse
	err := c.do(ctx, http.MethodGet, "/v1/shards", nil, &out)
	return out, err
}

// ShardRange fetches up to limit shards starting at index.
func (c *Client) ShardRange(ctx context.Context, index, limit int) (ShardsResponse, error) {
	var out ShardsResponse
	path := fmt.Sprintf("/v1/shards?index=%d&limit=%d", index, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// AddShards appends count fresh shards.
func (c *Client) AddShards(ctx context.Context, count int) error {
	return c.do(ctx, http.MethodPost, "/v1/shards", AddShardsRequest{Count: count}, nil)
}

// ReplaceShards swaps count slots starting at from for fresh shards.
func (c *Client) ReplaceShards(ctx context.Context, from, count int) error {
	return c.do(ctx, http.MethodPut, "/v1/shards", ReplaceShardsRequest{From: from, Count: count}, nil)
}

// Route asks the server where key lives. Compare with DeriveRoute to
// audit the server's placement.
func (c *Client) Route(ctx context.Context, key ledger.Key) (RouteResponse, error) {
	var out RouteResponse
	err := c.do(ctx, http.MethodGet, "/v1/route/"+key.String(), nil, &out)
	return out, err
}

// ConfigureCapability fans a shard-admin change out across the shard set.
func (c *Client) ConfigureCapability(ctx context.Context, account string, granted bool) error {
	return c.do(ctx, http.MethodPost, "/v1/capabilities",
		CapabilityRequest{Account: account, Granted: granted}, nil)
}

// Grant changes a facade-layer capability grant.
func (c *Client) Grant(ctx context.Context, account, capability string, granted bool) error {
	return c.do(ctx, http.MethodPost, "/v1/grants",
		GrantRequest{Account: account, Capability: capability, Granted: granted}, nil)
}

// Upgrade swaps the root implementation and/or shard versions.
func (c *Client) Upgrade(ctx context.Context, rootName, shardVersion string) error {
	return c.do(ctx, http.MethodPost, "/v1/upgrade",
		UpgradeRequest{Root: rootName, Shards: shardVersion}, nil)
}

// Pause sets the global pause flag; Resume clears it.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/pause", nil, nil)
}

// Resume clears the global pause flag.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/pause", nil, nil)
}
