package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fallbackMinor = 20000 // 200 rubles per coin

func newTestService(feedURL string) *Service {
	return New(feedURL, "the-open-network", "rub", fallbackMinor, zap.NewNop())
}

func TestRateFromFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "the-open-network", r.URL.Query().Get("ids"))
		require.Equal(t, "rub", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"the-open-network": {"rub": 250.5}}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	require.Equal(t, int64(25050), s.RateMinor(context.Background()))
}

func TestRateFallbackOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	require.Equal(t, int64(fallbackMinor), s.RateMinor(context.Background()))
}

func TestRateFallbackOnMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin": {"usd": 1}}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	require.Equal(t, int64(fallbackMinor), s.RateMinor(context.Background()))
}

func TestRateFallbackOnNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"the-open-network": {"rub": 0}}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	require.Equal(t, int64(fallbackMinor), s.RateMinor(context.Background()))
}

func TestFiatToNanoAtFallbackRate(t *testing.T) {
	// Unreachable feed: deterministic fallback conversion.
	s := newTestService("http://127.0.0.1:1")
	ctx := context.Background()

	// 400 rubles at 200 rub/coin is exactly 2 coins.
	require.Equal(t, int64(2_000_000_000), s.FiatToNano(ctx, 40000))
}

func TestFiatToNanoRoundsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"the-open-network": {"rub": 3}}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	// 1 kopeck at 300 minor/coin: 10^9/300 is not whole, round up so the
	// payer covers the quote.
	require.Equal(t, int64(3_333_334), s.FiatToNano(context.Background(), 1))
}

func TestFiatToNanoLargeAmount(t *testing.T) {
	s := newTestService("http://127.0.0.1:1")
	ctx := context.Background()

	// 10 billion minor units: the naive product with nanoPerCoin would
	// exceed int64, the big-integer path must not.
	require.Equal(t, int64(500_000_000_000_000), s.FiatToNano(ctx, 10_000_000_000))
}

func TestNanoToFiatMinorAtFallbackRate(t *testing.T) {
	s := newTestService("http://127.0.0.1:1")
	ctx := context.Background()

	// Half a coin at 200 rub/coin is 100 rubles.
	require.Equal(t, int64(10000), s.NanoToFiatMinor(ctx, 500_000_000))
}
