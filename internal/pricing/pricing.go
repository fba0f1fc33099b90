// Package pricing quotes the fiat price of the chain's native coin. The
// external feed is best-effort: on any failure or a non-positive quote the
// service falls back to a fixed configured rate, so a quote is always
// available and always deterministic for a given feed state.
package pricing

import (
	"context"
	"encoding/json"
	"math"
	"math/big"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const nanoPerCoin = 1_000_000_000

type Service struct {
	assetID           string
	fiatID            string
	fallbackRateMinor int64
	http              *resty.Client
	log               *zap.Logger
}

func New(feedURL, assetID, fiatID string, fallbackRateMinor int64, log *zap.Logger) *Service {
	return &Service{
		assetID:           assetID,
		fiatID:            fiatID,
		fallbackRateMinor: fallbackRateMinor,
		http:              resty.New().SetBaseURL(feedURL).SetTimeout(10 * time.Second),
		log:               log,
	}
}

// RateMinor returns the price of one whole coin in fiat minor units.
func (s *Service) RateMinor(ctx context.Context) int64 {
	resp, err := s.http.R().SetContext(ctx).
		SetQueryParam("ids", s.assetID).
		SetQueryParam("vs_currencies", s.fiatID).
		Get("/simple/price")
	if err != nil {
		s.log.Warn("price feed unreachable, using fallback rate",
			zap.Error(err), zap.Int64("fallback_minor", s.fallbackRateMinor))
		return s.fallbackRateMinor
	}
	if resp.IsError() {
		s.log.Warn("price feed error, using fallback rate",
			zap.Int("status", resp.StatusCode()), zap.Int64("fallback_minor", s.fallbackRateMinor))
		return s.fallbackRateMinor
	}

	var quote map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &quote); err != nil {
		s.log.Warn("price feed decode failed, using fallback rate", zap.Error(err))
		return s.fallbackRateMinor
	}

	price := quote[s.assetID][s.fiatID]
	if price <= 0 {
		s.log.Warn("price feed quoted non-positive price, using fallback rate",
			zap.Float64("price", price))
		return s.fallbackRateMinor
	}

	rateMinor := int64(math.Round(price * 100))
	if rateMinor <= 0 {
		return s.fallbackRateMinor
	}
	return rateMinor
}

// FiatToNano converts a fiat amount in minor units into nanotons at the
// current rate, rounding up so the payer never undershoots the quote. The
// intermediate product can exceed int64, so the division runs on big
// integers; a result that still does not fit is clamped.
func (s *Service) FiatToNano(ctx context.Context, amountMinor int64) int64 {
	rate := s.RateMinor(ctx)
	num := new(big.Int).Mul(big.NewInt(amountMinor), big.NewInt(nanoPerCoin))
	quot, rem := new(big.Int).QuoRem(num, big.NewInt(rate), new(big.Int))
	if rem.Sign() > 0 {
		quot.Add(quot, big.NewInt(1))
	}
	if !quot.IsInt64() {
		return math.MaxInt64
	}
	return quot.Int64()
}

// NanoToFiatMinor converts a received nanoton amount into fiat minor units
// at the current rate. Used when crediting an on-chain payment, where the
// final credited amount is computed at receipt time.
func (s *Service) NanoToFiatMinor(ctx context.Context, amountNano int64) int64 {
	rate := s.RateMinor(ctx)
	return int64(math.Round(float64(amountNano) * float64(rate) / nanoPerCoin))
}
