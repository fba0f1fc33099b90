package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleTransactions = `{
  "ok": true,
  "result": [
    {
      "utime": 1700000600,
      "in_msg": {"value": "500000000", "source": "EQsenderA", "message": "T188065"},
      "transaction_id": {"hash": "abc123"}
    },
    {
      "utime": 1700000500,
      "in_msg": {"value": "0", "source": "EQsenderB", "message": ""},
      "transaction_id": {"hash": "def456"}
    },
    {
      "utime": 1700000400,
      "transaction_id": {"hash": "ghi789"}
    }
  ]
}`

func TestRecentTransactionsParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getTransactions", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "EQwallet", q.Get("address"))
		require.Equal(t, "20", q.Get("limit"))
		require.Equal(t, "true", q.Get("archival"))
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		w.Write([]byte(sampleTransactions))
	}))
	defer srv.Close()

	c := NewIndexerClient(srv.URL, "test-key", "EQwallet")
	txs, err := c.RecentTransactions(context.Background(), 20)
	require.NoError(t, err)

	// Zero-value and outgoing-only entries are dropped.
	require.Len(t, txs, 1)
	require.Equal(t, int64(500_000_000), txs[0].AmountNano)
	require.Equal(t, "T188065", txs[0].Comment)
	require.Equal(t, "EQsenderA", txs[0].Counterparty)
	require.Equal(t, "abc123", txs[0].TxHash)
	require.Equal(t, time.Unix(1700000600, 0).UTC(), txs[0].Timestamp)
}

func TestRecentTransactionsIndexerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "rate limited"}`))
	}))
	defer srv.Close()

	c := NewIndexerClient(srv.URL, "", "EQwallet")
	_, err := c.RecentTransactions(context.Background(), 20)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestRecentTransactionsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewIndexerClient(srv.URL, "", "EQwallet")
	_, err := c.RecentTransactions(context.Background(), 20)
	require.Error(t, err)
}
