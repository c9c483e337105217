// Package oracle reads on-chain token holdings used for the holding boost.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const maxBody = 4 << 20

type Oracle interface {
	// Balance returns the whole-token amount owner holds. An error means
	// the balance is unknown, not zero.
	Balance(ctx context.Context, owner string) (int64, error)
}

// Solana queries getTokenAccountsByOwner for one mint.
type Solana struct {
	rpcURL string
	mint   string
	client *http.Client
}

func NewSolana(rpcURL, mint string, timeout time.Duration) *Solana {
	return &Solana{
		rpcURL: rpcURL,
		mint:   mint,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (s *Solana) Balance(ctx context.Context, owner string) (int64, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			owner,
			map[string]string{"mint": s.mint},
			map[string]string{"encoding": "jsonParsed"},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build rpc request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rpc request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, fmt.Errorf("read rpc response: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("rpc response is not valid json")
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return 0, fmt.Errorf("rpc error: %s", rpcErr.Get("message").String())
	}

	accounts := gjson.GetBytes(body, "result.value")
	if !accounts.IsArray() {
		return 0, fmt.Errorf("rpc response has no result.value")
	}

	var total int64

	accounts.ForEach(func(_, acct gjson.Result) bool {
		ui := acct.Get("account.data.parsed.info.tokenAmount.uiAmount")
		if ui.Type == gjson.Number {
			total += int64(ui.Float())
		}

		return true
	})

	return total, nil
}
