package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/fastprodman/killrewards/internal/money"
)

const maxBody = 1 << 20

var errNoBlock = errors.New("node accepted send without a block hash")

// NodeClient speaks the node's action-style JSON RPC.
type NodeClient struct {
	url    string
	wallet string
	client *http.Client
}

func NewNode(url, wallet string, timeout time.Duration) *NodeClient {
	return &NodeClient{
		url:    url,
		wallet: wallet,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *NodeClient) Send(ctx context.Context, t Transfer) SendResult {
	if t.Raw == nil || t.Raw.Sign() <= 0 {
		return SendResult{Outcome: Permanent, Err: errors.New("transfer amount must be positive")}
	}

	body, outcome, err := c.call(ctx, map[string]string{
		"action":      "send",
		"wallet":      c.wallet,
		"source":      t.From,
		"destination": t.To,
		"amount":      t.Raw.String(),
		"id":          t.ID,
	})
	if err != nil {
		return SendResult{Outcome: outcome, Err: err}
	}

	block := gjson.GetBytes(body, "block").String()
	if block == "" {
		return SendResult{Outcome: Transient, Err: errNoBlock}
	}

	return SendResult{Outcome: Success, Reference: block}
}

func (c *NodeClient) Balance(ctx context.Context, account string) (decimal.Decimal, decimal.Decimal, error) {
	body, _, err := c.call(ctx, map[string]string{
		"action":  "account_balance",
		"account": account,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	available, err := rawField(body, "balance")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	pending, err := rawField(body, "pending")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return available, pending, nil
}

// call posts one action and classifies failures.
func (c *NodeClient) call(ctx context.Context, payload map[string]string) ([]byte, Outcome, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, Permanent, fmt.Errorf("encode %s: %w", payload["action"], err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, Permanent, fmt.Errorf("build %s request: %w", payload["action"], err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Transient, fmt.Errorf("%s: %w", payload["action"], err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, Transient, fmt.Errorf("read %s response: %w", payload["action"], err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, Transient, fmt.Errorf("%s: node status %d", payload["action"], resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, Permanent, fmt.Errorf("%s: node status %d", payload["action"], resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, Transient, fmt.Errorf("%s: malformed node response", payload["action"])
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return nil, Permanent, fmt.Errorf("%s: node error: %s", payload["action"], rpcErr.String())
	}

	return body, Success, nil
}

func rawField(body []byte, field string) (decimal.Decimal, error) {
	v := gjson.GetBytes(body, field)
	if !v.Exists() {
		return decimal.Zero, nil
	}

	raw, ok := money.ParseRaw(v.String())
	if !ok {
		return decimal.Zero, fmt.Errorf("account_balance: bad %s %q", field, v.String())
	}

	return money.FromRaw(raw), nil
}
