// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/vinovest/sqlx"
)

const preOrderColumns = `id, user_id, customer_name, contact, product_name, quantity, price, total_price,
	notes, order_date, status, created_at, updated_at`

// CreatePreOrder inserts a pre-order.
func (r *Repository) CreatePreOrder(ctx context.Context, order *models.PreOrder) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO pre_orders (`+preOrderColumns+`) VALUES (
		:id, :user_id, :customer_name, :contact, :product_name, :quantity, :price, :total_price,
		:notes, :order_date, :status, :created_at, :updated_at)`, order)
	return wrapError(err)
}

// GetPreOrder retrieves a pre-order by ID.
func (r *Repository) GetPreOrder(ctx context.Context, id string) (*models.PreOrder, error) {
	var order models.PreOrder
	if err := r.db.GetContext(ctx, &order, `SELECT `+preOrderColumns+` FROM pre_orders WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &order, nil
}

// ListPreOrdersByUser returns a user's pre-orders, newest first.
func (r *Repository) ListPreOrdersByUser(ctx context.Context, userID string) ([]models.PreOrder, error) {
	orders := []models.PreOrder{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT `+preOrderColumns+` FROM pre_orders WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	return orders, wrapError(err)
}

// ListPreOrders returns one page of all pre-orders, oldest first.
func (r *Repository) ListPreOrders(ctx context.Context, offset, limit int) ([]models.PreOrder, error) {
	orders := []models.PreOrder{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT `+preOrderColumns+` FROM pre_orders ORDER BY created_at ASC, id LIMIT ? OFFSET ?`, limit, offset)
	return orders, wrapError(err)
}

// CountPreOrders returns the total number of pre-orders.
func (r *Repository) CountPreOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM pre_orders`)
	return count, wrapError(err)
}

// ListAllPreOrders returns every pre-order, newest first.
func (r *Repository) ListAllPreOrders(ctx context.Context) ([]models.PreOrder, error) {
	orders := []models.PreOrder{}
	err := r.db.SelectContext(ctx, &orders,
		`SELECT `+preOrderColumns+` FROM pre_orders ORDER BY created_at DESC, id`)
	return orders, wrapError(err)
}

// UpdatePreOrderStatus sets a new status. A non-empty expected status makes
// the update conditional on the current value; a mismatch reports ErrNotFound.
func (r *Repository) UpdatePreOrderStatus(ctx context.Context, id string, expected, next models.OrderStatus, now time.Time) error {
	if expected == "" {
		return requireAffected(r.db.ExecContext(ctx,
			`UPDATE pre_orders SET status = ?, updated_at = ? WHERE id = ?`, next, now, id))
	}
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE pre_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, next, now, id, expected))
}

// DeleteUserPreOrder deletes a pre-order owned by userID whose status is one
// of statuses. Anything else reports ErrNotFound.
func (r *Repository) DeleteUserPreOrder(ctx context.Context, id, userID string, statuses []models.OrderStatus) error {
	query, args, err := sqlx.In(
		`DELETE FROM pre_orders WHERE id = ? AND user_id = ? AND status IN (?)`, id, userID, statuses)
	if err != nil {
		return err
	}
	return requireAffected(r.db.ExecContext(ctx, r.db.Rebind(query), args...))
}

// DeletePreOrder deletes a pre-order regardless of owner.
func (r *Repository) DeletePreOrder(ctx context.Context, id string) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM pre_orders WHERE id = ?`, id))
}
