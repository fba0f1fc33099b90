package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"starpay/internal/models"
	"starpay/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type Handler struct {
	Reconciler *services.Reconciler
}

func NewHandler(rec *services.Reconciler) *Handler {
	return &Handler{Reconciler: rec}
}

type createOrderRequest struct {
	Rail        string `json:"rail"`
	AmountMinor int64  `json:"amountMinor"`
}

type createOrderResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Rail          string `json:"rail"`
	PayAmount     int64  `json:"payAmount"`
	PayURL        string `json:"payUrl,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Comment       string `json:"comment,omitempty"`
	TransferLink  string `json:"transferLink,omitempty"`
	ExpiresAt     string `json:"expiresAt"`
}

type orderResponse struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	Rail           string `json:"rail"`
	RequestedMinor int64  `json:"requestedMinor"`
	PayAmount      int64  `json:"payAmount"`
	CreditedMinor  *int64 `json:"creditedMinor,omitempty"`
	TxHash         string `json:"txHash,omitempty"`
	ExpiresAt      string `json:"expiresAt"`
	ConfirmedAt    string `json:"confirmedAt,omitempty"`
}

type confirmResponse struct {
	Status        string `json:"status"`
	Credited      bool   `json:"credited"`
	CreditedMinor int64  `json:"creditedMinor,omitempty"`
	BalanceMinor  int64  `json:"balanceMinor,omitempty"`
	TxHash        string `json:"txHash,omitempty"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	userID := r.Header.Get("X-User-Id")
	res, err := h.Reconciler.CreateOrder(r.Context(), userID, models.Rail(req.Rail), req.AmountMinor)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUser):
			writeError(w, http.StatusUnauthorized, "missing user id")
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "invalid amount")
		case errors.Is(err, services.ErrUnknownRail):
			writeError(w, http.StatusBadRequest, "unknown rail")
		case errors.Is(err, services.ErrRailUnavailable):
			writeError(w, http.StatusServiceUnavailable, "payment rail unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "create order failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:       res.Order.OrderID,
		Status:        string(res.Order.Status),
		Rail:          string(res.Order.Rail),
		PayAmount:     res.Order.PayAmount,
		PayURL:        res.PayURL,
		WalletAddress: res.WalletAddress,
		Comment:       res.Comment,
		TransferLink:  res.TransferLink,
		ExpiresAt:     res.Order.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.Reconciler.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}

	resp := orderResponse{
		OrderID:        order.OrderID,
		Status:         string(order.Status),
		Rail:           string(order.Rail),
		RequestedMinor: order.RequestedMinor,
		PayAmount:      order.PayAmount,
		CreditedMinor:  order.CreditedMinor,
		ExpiresAt:      order.ExpiresAt.Format(time.RFC3339),
	}
	if order.TxHash != nil {
		resp.TxHash = *order.TxHash
	}
	if order.ConfirmedAt != nil {
		resp.ConfirmedAt = order.ConfirmedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Confirm is the client-triggered poll path.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	res, err := h.Reconciler.AttemptConfirm(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrRailUnavailable):
			// Not a verdict: the rail is unreachable, try again later.
			writeError(w, http.StatusServiceUnavailable, "payment rail unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "confirm failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{
		Status:        string(res.Status),
		Credited:      res.Credited,
		CreditedMinor: res.CreditedMinor,
		BalanceMinor:  res.NewBalanceMinor,
		TxHash:        res.TxHash,
	})
}

// GatewayCallback handles the gateway's webhook pushes.
func (h *Handler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	var cb models.GatewayCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if cb.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	res, err := h.Reconciler.HandleGatewayCallback(r.Context(), cb)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadSignature):
			writeError(w, http.StatusForbidden, "invalid signature")
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			writeError(w, http.StatusInternalServerError, "callback failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"order":  string(res.Status),
	})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	balance, err := h.Reconciler.Ledger.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get balance failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balanceMinor": balance})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
