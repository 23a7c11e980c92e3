package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// ListLines returns the items of an order. ErrNotFound if the order does not exist.
func (r *OrderRepo) ListLines(ctx context.Context, orderID string) ([]models.CartLine, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	query := `
		SELECT oi.artwork_id, oi.quantity, a.weight_kg
		FROM order_items oi
		JOIN artworks a ON oi.artwork_id = a.id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLines(rows)
}

// SaveShipping stores the billed weight and charge on the order row.
// The row is locked first so concurrent recalculations serialize.
func (r *OrderRepo) SaveShipping(ctx context.Context, orderID string, q models.ShippingQuote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	update := `
		UPDATE orders
		SET weight = $2,
		    shipping_charges = $3
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, orderID, q.TotalWeightKg, q.Charge); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	committed = true
	return nil
}
