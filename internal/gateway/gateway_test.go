package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func md5of(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestCreateOrderSignsRequest(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/backend/create_order", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"client_id":    q.Get("client_id"),
			"order_id":     q.Get("order_id"),
			"amount":       q.Get("amount"),
			"sign":         q.Get("sign"),
			"callback_url": q.Get("callback_url"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true, "url": "https://pay.example/o/abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 42, "secret")
	resp, err := c.CreateOrder(context.Background(), "order-1", 100000, "https://cb.example/webhook")
	require.NoError(t, err)
	require.True(t, resp.Status)
	require.Equal(t, "https://pay.example/o/abc", resp.URL)

	require.Equal(t, "42", gotQuery["client_id"])
	require.Equal(t, "order-1", gotQuery["order_id"])
	require.Equal(t, "100000", gotQuery["amount"])
	require.Equal(t, "https://cb.example/webhook", gotQuery["callback_url"])
	require.Equal(t, md5of("order-1:100000:secret"), gotQuery["sign"])
}

func TestOrderStatusSignsWithoutAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/backend/get_order", r.URL.Path)
		require.Equal(t, md5of("order-1:secret"), r.URL.Query().Get("sign"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true, "order_status": "pending"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 42, "secret")
	status, err := c.OrderStatus(context.Background(), "order-1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)
}

func TestCreateOrderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 42, "secret")
	_, err := c.CreateOrder(context.Background(), "order-1", 100000, "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOrderStatusMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 42, "secret")
	_, err := c.OrderStatus(context.Background(), "order-1")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNormalizeStatus(t *testing.T) {
	// Webhook spellings.
	require.Equal(t, StatusApprove, NormalizeStatus("approved"))
	require.Equal(t, StatusDeclined, NormalizeStatus("declined"))

	// Poll spellings.
	require.Equal(t, StatusApprove, NormalizeStatus("approve"))
	require.Equal(t, StatusDeclined, NormalizeStatus("decline"))
	require.Equal(t, StatusExpired, NormalizeStatus("expired"))

	// Anything else passes through.
	require.Equal(t, "pending", NormalizeStatus("pending"))
	require.Equal(t, "weird", NormalizeStatus("weird"))
}

func TestVerifyCallbackSignature(t *testing.T) {
	c := NewClient("https://gw.example", 42, "secret")

	good := md5of("order-1:approve:secret")
	require.True(t, c.VerifyCallbackSignature("order-1", "approve", good))

	// Signature over a different status must not pass.
	require.False(t, c.VerifyCallbackSignature("order-1", "declined", good))
	require.False(t, c.VerifyCallbackSignature("order-2", "approve", good))
	require.False(t, c.VerifyCallbackSignature("order-1", "approve", ""))
	require.False(t, c.VerifyCallbackSignature("order-1", "approve", good[:31]))
}
