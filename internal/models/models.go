package models

import "time"

type Rail string

const (
	RailGateway Rail = "gateway"
	RailOnChain Rail = "onchain"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderAwaiting  OrderStatus = "awaiting_confirmation"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDeclined  OrderStatus = "declined"
	OrderExpired   OrderStatus = "expired"
	OrderError     OrderStatus = "error"
)

// Terminal reports whether no further transition is accepted from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderConfirmed, OrderDeclined, OrderExpired, OrderError:
		return true
	}
	return false
}

// Order is a payment intent on one rail. RequestedMinor is the fiat amount
// the user wants credited, in minor units. PayAmount is what the payer must
// actually send: minor units for the gateway rail (commission included),
// nanotons for the on-chain rail. Discriminator is the gateway create-order
// signature or the on-chain transfer comment, depending on the rail.
type Order struct {
	OrderID        string
	UserID         string
	Rail           Rail
	RequestedMinor int64
	PayAmount      int64
	Discriminator  string
	Status         OrderStatus
	ConfirmedNano  *int64
	CreditedMinor  *int64
	TxHash         *string
	ExpiresAt      time.Time
	ConfirmedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LedgerTransaction is read-only evidence of an incoming transfer to the
// watched wallet. AmountNano is the transfer value in nanotons.
type LedgerTransaction struct {
	AmountNano   int64
	Timestamp    time.Time
	Comment      string
	Counterparty string
	TxHash       string
}

// GatewayCallback is the inbound webhook payload. Nothing trusts it before
// the signature check passes.
type GatewayCallback struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Sign    string `json:"sign"`
}

// ChainPayment records matched on-chain evidence once an order is settled
// against it. One tx hash settles at most one order.
type ChainPayment struct {
	TxHash      string
	OrderID     string
	FromAddress string
	AmountNano  int64
	Comment     string
	BlockTime   time.Time
	CreatedAt   time.Time
}
