package services

import (
	"context"
	"fmt"

	"starpay/internal/chain"
	"starpay/internal/gateway"
	"starpay/internal/models"

	"go.uber.org/zap"
)

// ConfirmResult describes the outcome of one confirmation attempt. It is a
// result, not an error: a redundant call against a settled order comes back
// with the terminal status and Credited=false.
type ConfirmResult struct {
	Status          models.OrderStatus
	Credited        bool
	CreditedMinor   int64
	NewBalanceMinor int64
	TxHash          string
}

// AttemptConfirm is the single entry point for the client-triggered poll
// path on both rails. It is safe to call concurrently and repeatedly for
// the same order: the store transition decides the one winner.
func (r *Reconciler) AttemptConfirm(ctx context.Context, orderID string) (*ConfirmResult, error) {
	order, res, err := r.loadPending(ctx, orderID)
	if res != nil || err != nil {
		return res, err
	}

	switch order.Rail {
	case models.RailGateway:
		status, err := r.Gateway.OrderStatus(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRailUnavailable, err)
		}
		return r.applyGatewayStatus(ctx, order, status)
	case models.RailOnChain:
		txs, err := r.Chain.RecentTransactions(ctx, r.ScanLimit)
		if err != nil {
			// No evidence yet; the caller polls again.
			r.Log.Warn("chain indexer fetch failed", zap.String("order_id", orderID), zap.Error(err))
			return &ConfirmResult{Status: order.Status}, nil
		}
		return r.confirmOnChain(ctx, order, txs)
	default:
		return nil, ErrUnknownRail
	}
}

// HandleGatewayCallback is the webhook path. The signature is verified
// before the payload may touch any state.
func (r *Reconciler) HandleGatewayCallback(ctx context.Context, cb models.GatewayCallback) (*ConfirmResult, error) {
	if !r.Gateway.VerifyCallbackSignature(cb.OrderID, cb.Status, cb.Sign) {
		r.Log.Warn("gateway callback rejected: bad signature", zap.String("order_id", cb.OrderID))
		return nil, ErrBadSignature
	}

	order, res, err := r.loadPending(ctx, cb.OrderID)
	if res != nil || err != nil {
		return res, err
	}
	if order.Rail != models.RailGateway {
		return nil, ErrUnknownRail
	}
	return r.applyGatewayStatus(ctx, order, cb.Status)
}

// loadPending fetches the order and resolves everything that short-circuits
// a confirmation attempt: terminal states answer as no-ops, overdue orders
// are expired before any evidence is considered.
func (r *Reconciler) loadPending(ctx context.Context, orderID string) (*models.Order, *ConfirmResult, error) {
	order, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status.Terminal() {
		return nil, r.terminalResult(order), nil
	}
	if r.clock().After(order.ExpiresAt) {
		moved, err := r.Store.SetTerminal(ctx, order.OrderID, models.OrderExpired)
		if err != nil {
			return nil, nil, err
		}
		if !moved {
			current, err := r.Store.GetOrder(ctx, order.OrderID)
			if err != nil {
				return nil, nil, err
			}
			return nil, r.terminalResult(current), nil
		}
		r.Log.Info("order expired", zap.String("order_id", order.OrderID))
		return nil, &ConfirmResult{Status: models.OrderExpired}, nil
	}
	return order, nil, nil
}

func (r *Reconciler) terminalResult(order *models.Order) *ConfirmResult {
	res := &ConfirmResult{Status: order.Status}
	if order.CreditedMinor != nil {
		res.CreditedMinor = *order.CreditedMinor
	}
	if order.TxHash != nil {
		res.TxHash = *order.TxHash
	}
	return res
}

func (r *Reconciler) applyGatewayStatus(ctx context.Context, order *models.Order, status string) (*ConfirmResult, error) {
	switch gateway.NormalizeStatus(status) {
	case gateway.StatusApprove:
		return r.settle(ctx, order, order.RequestedMinor, nil, nil)
	case gateway.StatusDeclined:
		return r.setTerminal(ctx, order, models.OrderDeclined)
	case gateway.StatusExpired:
		return r.setTerminal(ctx, order, models.OrderExpired)
	default:
		// Still pending on the gateway side.
		return &ConfirmResult{Status: order.Status}, nil
	}
}

func (r *Reconciler) confirmOnChain(ctx context.Context, order *models.Order, txs []models.LedgerTransaction) (*ConfirmResult, error) {
	m := chain.Match(order, txs, r.clock())
	if !m.Found {
		return &ConfirmResult{Status: order.Status}, nil
	}

	// Claim the tx hash before transitioning, so one transfer can never
	// settle two orders that happen to share a fuzzy suffix.
	claimed, err := r.Store.InsertChainPayment(ctx, &models.ChainPayment{
		TxHash:      m.Tx.TxHash,
		OrderID:     order.OrderID,
		FromAddress: m.Tx.Counterparty,
		AmountNano:  m.Tx.AmountNano,
		Comment:     m.Tx.Comment,
		BlockTime:   m.Tx.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		owner, err := r.Store.ChainPaymentOrder(ctx, m.Tx.TxHash)
		if err != nil {
			return nil, err
		}
		if owner != order.OrderID {
			r.Log.Info("transfer already claimed by another order",
				zap.String("order_id", order.OrderID),
				zap.String("owner", owner),
				zap.String("tx_hash", m.Tx.TxHash))
			return &ConfirmResult{Status: order.Status}, nil
		}
	}

	// The credited amount is computed from what actually arrived, at the
	// rate in effect at receipt time.
	creditedMinor := r.Pricing.NanoToFiatMinor(ctx, m.AmountNano)
	return r.settle(ctx, order, creditedMinor, &m.AmountNano, &m.Tx.TxHash)
}

// settle is the exactly-once transition: the guarded store update picks the
// winner, and only the winner credits the ledger.
func (r *Reconciler) settle(ctx context.Context, order *models.Order, creditMinor int64, confirmedNano *int64, txHash *string) (*ConfirmResult, error) {
	won, err := r.Store.ConfirmOrder(ctx, order.OrderID, r.clock(), confirmedNano, creditMinor, txHash)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := r.Store.GetOrder(ctx, order.OrderID)
		if err != nil {
			return nil, err
		}
		return r.terminalResult(current), nil
	}

	balance, err := r.Ledger.Credit(ctx, order.UserID, creditMinor)
	if err != nil {
		// The order is confirmed but the credit failed: surface loudly,
		// the credited amount is recorded on the order for repair.
		r.Log.Error("ledger credit failed after confirm",
			zap.String("order_id", order.OrderID),
			zap.String("user_id", order.UserID),
			zap.Int64("credit_minor", creditMinor),
			zap.Error(err))
		return nil, err
	}

	r.Log.Info("order confirmed",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", order.UserID),
		zap.String("rail", string(order.Rail)),
		zap.Int64("credited_minor", creditMinor),
		zap.Int64("balance_minor", balance))

	res := &ConfirmResult{
		Status:          models.OrderConfirmed,
		Credited:        true,
		CreditedMinor:   creditMinor,
		NewBalanceMinor: balance,
	}
	if txHash != nil {
		res.TxHash = *txHash
	}
	return res, nil
}

func (r *Reconciler) setTerminal(ctx context.Context, order *models.Order, status models.OrderStatus) (*ConfirmResult, error) {
	moved, err := r.Store.SetTerminal(ctx, order.OrderID, status)
	if err != nil {
		return nil, err
	}
	if !moved {
		current, err := r.Store.GetOrder(ctx, order.OrderID)
		if err != nil {
			return nil, err
		}
		return r.terminalResult(current), nil
	}
	r.Log.Info("order settled without credit",
		zap.String("order_id", order.OrderID),
		zap.String("status", string(status)))
	return &ConfirmResult{Status: status}, nil
}

// SweepOnce runs one sweeper tick: expire overdue orders, then try to
// settle every awaiting on-chain order against one fetch of recent
// transfers. Races with the webhook and poll paths are resolved by the
// same store transition.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	expired, err := r.Store.SweepExpired(ctx, r.clock())
	if err != nil {
		return err
	}
	if expired > 0 {
		r.Log.Info("expired overdue orders", zap.Int64("count", expired))
	}

	orders, err := r.Store.ListAwaiting(ctx, models.RailOnChain)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	txs, err := r.Chain.RecentTransactions(ctx, r.ScanLimit)
	if err != nil {
		r.Log.Warn("chain indexer fetch failed during sweep", zap.Error(err))
		return nil
	}

	for _, order := range orders {
		if _, err := r.confirmOnChain(ctx, order, txs); err != nil {
			r.Log.Warn("sweep confirm failed",
				zap.String("order_id", order.OrderID), zap.Error(err))
		}
	}
	return nil
}
