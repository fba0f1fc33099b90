package store

import (
	"context"
	"database/sql"
	"time"

	"starpay/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const orderColumns = `order_id, user_id, rail, requested_minor, pay_amount,
	discriminator, status, confirmed_nano, credited_minor, tx_hash,
	expires_at, confirmed_at, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, user_id, rail, requested_minor, pay_amount,
			discriminator, status, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.OrderID,
		order.UserID,
		order.Rail,
		order.RequestedMinor,
		order.PayAmount,
		order.Discriminator,
		order.Status,
		order.ExpiresAt,
	)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID)
	return scanOrder(row)
}

// ListAwaiting returns orders still waiting for confirmation on the given
// rail, oldest first.
func (s *Store) ListAwaiting(ctx context.Context, rail models.Rail) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status='awaiting_confirmation' AND rail=$1
		ORDER BY created_at
	`, rail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ConfirmOrder performs the single-writer-wins transition to confirmed.
// The guarded UPDATE only fires while the order is still awaiting
// confirmation; a false return means another caller already settled it.
func (s *Store) ConfirmOrder(ctx context.Context, orderID string, confirmedAt time.Time, confirmedNano *int64, creditedMinor int64, txHash *string) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status='confirmed', confirmed_at=$2, confirmed_nano=$3,
			credited_minor=$4, tx_hash=$5, updated_at=now()
		WHERE order_id=$1 AND status='awaiting_confirmation'
	`, orderID, confirmedAt, confirmedNano, creditedMinor, txHash)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// SetTerminal moves an awaiting order to declined, expired or error under
// the same guard as ConfirmOrder.
func (s *Store) SetTerminal(ctx context.Context, orderID string, status models.OrderStatus) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status=$2, updated_at=now()
		WHERE order_id=$1 AND status='awaiting_confirmation'
	`, orderID, status)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// SweepExpired expires every awaiting order past its deadline and returns
// how many it touched.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status='expired', updated_at=now()
		WHERE status='awaiting_confirmation' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// InsertChainPayment records matched on-chain evidence. The tx hash is the
// primary key, so one transfer can never settle two orders; false means the
// hash was already claimed.
func (s *Store) InsertChainPayment(ctx context.Context, payment *models.ChainPayment) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		INSERT INTO chain_payments (
			tx_hash, order_id, from_address, amount_nano, comment, block_time
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tx_hash) DO NOTHING
	`,
		payment.TxHash,
		payment.OrderID,
		payment.FromAddress,
		payment.AmountNano,
		payment.Comment,
		payment.BlockTime,
	)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// ChainPaymentOrder returns the order id a tx hash has been claimed for.
func (s *Store) ChainPaymentOrder(ctx context.Context, txHash string) (string, error) {
	var orderID string
	err := s.Pool.QueryRow(ctx,
		`SELECT order_id FROM chain_payments WHERE tx_hash=$1`, txHash).Scan(&orderID)
	return orderID, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var confirmedNano sql.NullInt64
	var creditedMinor sql.NullInt64
	var txHash sql.NullString
	var confirmedAt sql.NullTime

	err := row.Scan(
		&order.OrderID,
		&order.UserID,
		&order.Rail,
		&order.RequestedMinor,
		&order.PayAmount,
		&order.Discriminator,
		&order.Status,
		&confirmedNano,
		&creditedMinor,
		&txHash,
		&order.ExpiresAt,
		&confirmedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if confirmedNano.Valid {
		order.ConfirmedNano = &confirmedNano.Int64
	}
	if creditedMinor.Valid {
		order.CreditedMinor = &creditedMinor.Int64
	}
	if txHash.Valid {
		order.TxHash = &txHash.String
	}
	if confirmedAt.Valid {
		order.ConfirmedAt = &confirmedAt.Time
	}
	return &order, nil
}
