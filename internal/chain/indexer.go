// Package chain reads incoming transfers to the watched wallet from the
// toncenter-style indexer and decides whether a pending order has been paid.
// It never mutates anything: the reconciliation core owns all state.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"starpay/internal/models"
)

type IndexerClient struct {
	baseURL string
	apiKey  string
	address string
	client  *http.Client
}

func NewIndexerClient(baseURL, apiKey, walletAddress string) *IndexerClient {
	return &IndexerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		address: walletAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *IndexerClient) WalletAddress() string {
	return c.address
}

// RecentTransactions fetches the most recent incoming transfers to the
// watched address. Errors are returned so the caller can log them, but the
// caller must treat a failure as "no evidence yet", never as terminal.
func (c *IndexerClient) RecentTransactions(ctx context.Context, limit int) ([]models.LedgerTransaction, error) {
	if limit < 1 {
		limit = 20
	}
	u, err := url.Parse(c.baseURL + "/getTransactions")
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	values.Set("address", c.address)
	values.Set("limit", strconv.Itoa(limit))
	values.Set("archival", "true")
	u.RawQuery = values.Encode()

	var resp txListResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("indexer error: %s", resp.Error)
	}

	out := make([]models.LedgerTransaction, 0, len(resp.Result))
	for _, tx := range resp.Result {
		if tx.InMsg == nil || tx.InMsg.Value == "" {
			continue
		}
		value, err := strconv.ParseInt(tx.InMsg.Value, 10, 64)
		if err != nil || value <= 0 {
			continue
		}
		out = append(out, models.LedgerTransaction{
			AmountNano:   value,
			Timestamp:    time.Unix(tx.Utime, 0).UTC(),
			Comment:      tx.InMsg.Message,
			Counterparty: tx.InMsg.Source,
			TxHash:       tx.TransactionID.Hash,
		})
	}
	return out, nil
}

func (c *IndexerClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("indexer http status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("indexer http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Indexer response types

type txListResponse struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error"`
	Result []indexerTx `json:"result"`
}

type indexerTx struct {
	Utime         int64         `json:"utime"`
	InMsg         *indexerInMsg `json:"in_msg"`
	TransactionID indexerTxID   `json:"transaction_id"`
}

type indexerInMsg struct {
	Value   string `json:"value"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type indexerTxID struct {
	Hash string `json:"hash"`
}
