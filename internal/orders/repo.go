package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store. Transition takes a row lock on the order so
// concurrent resolver workers serialize per order id, nothing wider.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, o *Order) error {
	if o.ExternalID != "" {
		var existing string
		err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id=$1`, o.ExternalID).Scan(&existing)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, correlation_id, external_id, customer_ref, channel, status, total_cents, currency, created_at, updated_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.CorrelationID, o.ExternalID, o.CustomerRef, o.Channel, o.Status, o.TotalCents, o.Currency, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, sku, name, qty, unit_price_cents, currency)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.SKU, it.Name, it.Qty, it.UnitPriceCents, it.Currency,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	return r.getBy(ctx, `id=$1`, orderID)
}

func (r *Repo) GetByCorrelation(ctx context.Context, correlationID string) (*Order, error) {
	return r.getBy(ctx, `correlation_id=$1`, correlationID)
}

func (r *Repo) getBy(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	var externalID, gatewayTxn *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, correlation_id, external_id, customer_ref, channel, status, total_cents, currency,
		       COALESCE(provider,''), COALESCE(pay_url,''), COALESCE(qr_code_url,''),
		       COALESCE(pay_expires_at, 'epoch'::timestamptz), gateway_txn_id, created_at, updated_at
		FROM orders WHERE `+where, arg,
	).Scan(
		&o.ID, &o.CorrelationID, &externalID, &o.CustomerRef, &o.Channel, &o.Status, &o.TotalCents, &o.Currency,
		&o.Payment.Provider, &o.Payment.PayURL, &o.Payment.QRCodeURL, &o.Payment.ExpiresAt,
		&gatewayTxn, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		o.ExternalID = *externalID
	}
	if gatewayTxn != nil {
		o.GatewayTxnID = *gatewayTxn
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, sku, name, qty, unit_price_cents, currency
		FROM order_items WHERE order_id=$1 ORDER BY sku`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.SKU, &it.Name, &it.Qty, &it.UnitPriceCents, &it.Currency); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *Repo) SetPaymentInfo(ctx context.Context, orderID string, info PaymentInfo) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET provider=$2, pay_url=$3, qr_code_url=$4, pay_expires_at=$5, updated_at=now()
		WHERE id=$1`,
		orderID, info.Provider, info.PayURL, info.QRCodeURL, info.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Transition(ctx context.Context, orderID string, next Status, gatewayTxnID string) (*Order, error) {
	if !next.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, next)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch {
	case current == next:
		// duplicate resolver run, nothing to do
	case CanTransition(current, next):
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET status=$2, gateway_txn_id=COALESCE(NULLIF($3,''), gateway_txn_id), updated_at=now()
			WHERE id=$1`, orderID, next, gatewayTxnID,
		); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, orderID)
}
