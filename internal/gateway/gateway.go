// Package gateway is the client for the signed-request card payment gateway.
// All requests carry an md5 signature over the order id, amount and the
// shared secret; the gateway answers plain JSON over GET endpoints.
package gateway

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Canonical order statuses. The gateway spells them differently per
// channel: the webhook says "approved"/"declined", the poll endpoint says
// "approve"/"decline"/"expired".
const (
	StatusApprove  = "approve"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
	StatusPending  = "pending"
)

// NormalizeStatus maps both channel spellings onto the canonical
// constants. Unknown statuses pass through unchanged and are treated as
// still pending by the caller.
func NormalizeStatus(status string) string {
	switch status {
	case "approve", "approved":
		return StatusApprove
	case "decline", "declined":
		return StatusDeclined
	case "expired":
		return StatusExpired
	}
	return status
}

var ErrUnavailable = errors.New("gateway unavailable")

type Client struct {
	clientID  int64
	secretKey string
	http      *resty.Client
}

func NewClient(baseURL string, clientID int64, secretKey string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "starpay/1.0").
		SetHeader("Accept", "application/json")
	return &Client{
		clientID:  clientID,
		secretKey: secretKey,
		http:      http,
	}
}

type CreateOrderResponse struct {
	Status bool   `json:"status"`
	URL    string `json:"url"`
}

type OrderStatusResponse struct {
	Status      bool   `json:"status"`
	OrderStatus string `json:"order_status"`
}

// CreateOrder registers an order with the gateway and returns the URL the
// payer is redirected to. amountMinor is in kopecks.
func (c *Client) CreateOrder(ctx context.Context, orderID string, amountMinor int64, callbackURL string) (*CreateOrderResponse, error) {
	req := c.http.R().SetContext(ctx).
		SetQueryParam("client_id", strconv.FormatInt(c.clientID, 10)).
		SetQueryParam("order_id", orderID).
		SetQueryParam("amount", strconv.FormatInt(amountMinor, 10)).
		SetQueryParam("sign", c.CreateSign(orderID, amountMinor))
	if callbackURL != "" {
		req.SetQueryParam("callback_url", callbackURL)
	}

	resp, err := req.Get("/backend/create_order")
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: create order status %d", ErrUnavailable, resp.StatusCode())
	}

	var out CreateOrderResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: create order decode: %v", ErrUnavailable, err)
	}
	return &out, nil
}

// OrderStatus polls the gateway over its authenticated channel, so the
// returned status is trusted without a callback signature.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("client_id", strconv.FormatInt(c.clientID, 10)).
		SetQueryParam("order_id", orderID).
		SetQueryParam("sign", c.statusSign(orderID)).
		Get("/backend/get_order")
	if err != nil {
		return "", fmt.Errorf("%w: get order: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: get order status %d", ErrUnavailable, resp.StatusCode())
	}

	var out OrderStatusResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: get order decode: %v", ErrUnavailable, err)
	}
	if !out.Status {
		return "", fmt.Errorf("%w: get order rejected", ErrUnavailable)
	}
	return out.OrderStatus, nil
}

// VerifyCallbackSignature checks the webhook signature
// md5(order_id:status:secret). Comparison is constant-time.
func (c *Client) VerifyCallbackSignature(orderID, status, sign string) bool {
	expected := md5Hex(orderID + ":" + status + ":" + c.secretKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) == 1
}

// CreateSign is the create-order signature md5(order_id:amount:secret). It
// doubles as the order's discriminator.
func (c *Client) CreateSign(orderID string, amountMinor int64) string {
	return md5Hex(orderID + ":" + strconv.FormatInt(amountMinor, 10) + ":" + c.secretKey)
}

func (c *Client) statusSign(orderID string) string {
	return md5Hex(orderID + ":" + c.secretKey)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
