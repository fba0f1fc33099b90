package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"starpay/internal/chain"
	"starpay/internal/gateway"
	"starpay/internal/ledger"
	"starpay/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingUser     = errors.New("missing user id")
	ErrInvalidAmount   = errors.New("invalid top-up amount")
	ErrUnknownRail     = errors.New("unknown payment rail")
	ErrBadSignature    = errors.New("callback signature mismatch")
	ErrRailUnavailable = errors.New("payment rail unavailable")
)

// OrderStore is the order side of the reconciliation state. ConfirmOrder
// and SetTerminal are compare-and-swap transitions: they report false when
// the order already left the awaiting state.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListAwaiting(ctx context.Context, rail models.Rail) ([]*models.Order, error)
	ConfirmOrder(ctx context.Context, orderID string, confirmedAt time.Time, confirmedNano *int64, creditedMinor int64, txHash *string) (bool, error)
	SetTerminal(ctx context.Context, orderID string, status models.OrderStatus) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	InsertChainPayment(ctx context.Context, payment *models.ChainPayment) (bool, error)
	ChainPaymentOrder(ctx context.Context, txHash string) (string, error)
}

type GatewayAPI interface {
	CreateOrder(ctx context.Context, orderID string, amountMinor int64, callbackURL string) (*gateway.CreateOrderResponse, error)
	OrderStatus(ctx context.Context, orderID string) (string, error)
	VerifyCallbackSignature(orderID, status, sign string) bool
	CreateSign(orderID string, amountMinor int64) string
}

type ChainReader interface {
	RecentTransactions(ctx context.Context, limit int) ([]models.LedgerTransaction, error)
	WalletAddress() string
}

type Converter interface {
	FiatToNano(ctx context.Context, amountMinor int64) int64
	NanoToFiatMinor(ctx context.Context, amountNano int64) int64
}

// Reconciler owns the order lifecycle: it issues payment intents per rail
// and settles them against rail evidence exactly once.
type Reconciler struct {
	Store   OrderStore
	Ledger  ledger.Ledger
	Gateway GatewayAPI
	Chain   ChainReader
	Pricing Converter
	Log     *zap.Logger

	CallbackURL       string
	CommissionPercent float64
	MinAmountMinor    int64
	MaxAmountMinor    int64
	TTL               time.Duration
	ScanLimit         int

	now func() time.Time
}

func (r *Reconciler) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now().UTC()
}

// CreateResult carries the pay-to instructions the caller shows the payer.
type CreateResult struct {
	Order         *models.Order
	PayURL        string
	WalletAddress string
	Comment       string
	TransferLink  string
}

func (r *Reconciler) CreateOrder(ctx context.Context, userID string, rail models.Rail, amountMinor int64) (*CreateResult, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if amountMinor <= 0 || amountMinor < r.MinAmountMinor {
		return nil, ErrInvalidAmount
	}
	if r.MaxAmountMinor > 0 && amountMinor > r.MaxAmountMinor {
		return nil, ErrInvalidAmount
	}

	switch rail {
	case models.RailGateway:
		return r.createGatewayOrder(ctx, userID, amountMinor)
	case models.RailOnChain:
		return r.createOnChainOrder(ctx, userID, amountMinor)
	default:
		return nil, ErrUnknownRail
	}
}

func (r *Reconciler) createGatewayOrder(ctx context.Context, userID string, amountMinor int64) (*CreateResult, error) {
	now := r.clock()
	payMinor := withCommission(amountMinor, r.CommissionPercent)
	order := &models.Order{
		OrderID:        uuid.NewString(),
		UserID:         userID,
		Rail:           models.RailGateway,
		RequestedMinor: amountMinor,
		PayAmount:      payMinor,
		Status:         models.OrderAwaiting,
		ExpiresAt:      now.Add(r.TTL),
	}
	order.Discriminator = r.Gateway.CreateSign(order.OrderID, payMinor)

	resp, err := r.Gateway.CreateOrder(ctx, order.OrderID, payMinor, r.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRailUnavailable, err)
	}
	if !resp.Status || resp.URL == "" {
		return nil, fmt.Errorf("%w: gateway refused order", ErrRailUnavailable)
	}

	if err := r.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	r.Log.Info("gateway order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", userID),
		zap.Int64("requested_minor", amountMinor),
		zap.Int64("pay_minor", payMinor))

	return &CreateResult{Order: order, PayURL: resp.URL}, nil
}

func (r *Reconciler) createOnChainOrder(ctx context.Context, userID string, amountMinor int64) (*CreateResult, error) {
	now := r.clock()
	payNano := r.Pricing.FiatToNano(ctx, amountMinor)
	comment := transferComment(userID, now)
	order := &models.Order{
		OrderID:        fmt.Sprintf("ton_%s_%d", userID, now.Unix()),
		UserID:         userID,
		Rail:           models.RailOnChain,
		RequestedMinor: amountMinor,
		PayAmount:      payNano,
		Discriminator:  comment,
		Status:         models.OrderAwaiting,
		ExpiresAt:      now.Add(r.TTL),
	}

	if err := r.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	r.Log.Info("on-chain order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", userID),
		zap.Int64("requested_minor", amountMinor),
		zap.Int64("pay_nano", payNano),
		zap.String("comment", comment))

	wallet := r.Chain.WalletAddress()
	return &CreateResult{
		Order:         order,
		WalletAddress: wallet,
		Comment:       comment,
		TransferLink:  fmt.Sprintf("ton://transfer/%s?amount=%d&text=%s", wallet, payNano, comment),
	}, nil
}

// transferComment builds the short correlation token the payer attaches to
// the transfer: the marker plus the last three digits of the user id and of
// the unix timestamp, e.g. T188065.
func transferComment(userID string, now time.Time) string {
	return string(chain.CommentMarker) + last3(userID) + last3(strconv.FormatInt(now.Unix(), 10))
}

func last3(s string) string {
	if len(s) <= 3 {
		return s
	}
	return s[len(s)-3:]
}

func withCommission(amountMinor int64, percent float64) int64 {
	if percent <= 0 {
		return amountMinor
	}
	return amountMinor + int64(math.Ceil(float64(amountMinor)*percent/100))
}
