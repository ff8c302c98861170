// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a pre-order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

// ParseOrderStatus validates s against the fixed status set.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OrderDateLayout is the format of PreOrder.OrderDate.
const OrderDateLayout = "2006-01-02"

// PreOrder is a customer's advance order. Line data is immutable after
// creation; only Status and UpdatedAt change.
type PreOrder struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"userId"`
	CustomerName string          `db:"customer_name" json:"customerName"`
	Contact      string          `db:"contact" json:"contact"`
	ProductName  string          `db:"product_name" json:"productName"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	TotalPrice   decimal.Decimal `db:"total_price" json:"totalPrice"`
	Notes        string          `db:"notes" json:"notes"`
	OrderDate    string          `db:"order_date" json:"orderDate"`
	Status       OrderStatus     `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// LineTotal computes quantity * price in decimal arithmetic.
func LineTotal(quantity int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(quantity))
}
