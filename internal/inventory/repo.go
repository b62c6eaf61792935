package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger backs the ledger with products and reservations tables. Stock
// rows are locked per SKU with FOR UPDATE, so only reserves on the same SKU
// queue behind each other.
type PGLedger struct{ DB *pgxpool.Pool }

var _ Ledger = (*PGLedger)(nil)

func (l *PGLedger) Reserve(ctx context.Context, orderID, sku string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve qty must be positive, got %d", qty)
	}

	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE sku=$1 FOR UPDATE`, sku).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	if err != nil {
		return err
	}
	if stock < qty {
		return fmt.Errorf("%w: sku %s has %d, need %d", ErrInsufficientStock, sku, stock, qty)
	}

	// the conflict target makes a repeat reserve a no-op without a second decrement
	ct, err := tx.Exec(ctx, `
		INSERT INTO reservations(order_id, sku, qty, status)
		VALUES ($1,$2,$3,'RESERVED')
		ON CONFLICT (order_id, sku) DO NOTHING`, orderID, sku, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return nil // already reserved for this order
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE sku=$1`, sku, qty); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PGLedger) Release(ctx context.Context, orderID, sku string, qty int) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var reserved int
	err = tx.QueryRow(ctx, `
		SELECT qty FROM reservations
		WHERE order_id=$1 AND sku=$2 AND status='RESERVED'
		FOR UPDATE`, orderID, sku).Scan(&reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // no-op: never reserved, or already released
	}
	if err != nil {
		return err
	}
	if qty != 0 && qty != reserved {
		return fmt.Errorf("release qty %d does not match reserved %d for order %s sku %s", qty, reserved, orderID, sku)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status='RELEASED'
		WHERE order_id=$1 AND sku=$2 AND status='RESERVED'`, orderID, sku); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE sku=$1`, sku, reserved); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PGLedger) Stock(ctx context.Context, sku string) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE sku=$1`, sku).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	return stock, err
}
