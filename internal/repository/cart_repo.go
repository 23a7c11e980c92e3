package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
)

var ErrNotFound = errors.New("not found")

type CartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) *CartRepo {
	return &CartRepo{db: db}
}

// ListLines returns the active cart lines of a user with each product's weight.
func (r *CartRepo) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	query := `
		SELECT c.artwork_id, c.quantity, a.weight_kg
		FROM cart c
		JOIN artworks a ON c.artwork_id = a.id
		WHERE c.user_id = $1 AND a.status = 'active'
		ORDER BY c.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLines(rows)
}

func scanLines(rows *sql.Rows) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	for rows.Next() {
		var (
			l      models.CartLine
			weight decimal.NullDecimal
		)
		if err := rows.Scan(&l.ProductID, &l.Quantity, &weight); err != nil {
			return nil, err
		}
		if weight.Valid {
			w := weight.Decimal
			l.WeightKg = &w
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
