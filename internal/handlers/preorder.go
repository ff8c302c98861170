// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/preorder"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// OrderHandlers serves the member and admin pre-order endpoints.
type OrderHandlers struct {
	orders *preorder.Service
}

// NewOrders creates a new OrderHandlers instance.
func NewOrders(orders *preorder.Service) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// OrderResponse is the public view of a pre-order. Money is written as a
// JSON number without rounding.
type OrderResponse struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	CustomerName string             `json:"customerName"`
	Contact      string             `json:"contact"`
	ProductName  string             `json:"productName"`
	Quantity     int64              `json:"quantity"`
	Price        json.Number        `json:"price"`
	TotalPrice   json.Number        `json:"totalPrice"`
	Notes        string             `json:"notes"`
	OrderDate    string             `json:"orderDate"`
	Status       models.OrderStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func orderResponse(o *models.PreOrder) OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		CustomerName: o.CustomerName,
		Contact:      o.Contact,
		ProductName:  o.ProductName,
		Quantity:     o.Quantity,
		Price:        json.Number(o.Price.String()),
		TotalPrice:   json.Number(o.TotalPrice.String()),
		Notes:        o.Notes,
		OrderDate:    o.OrderDate,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func orderResponses(orders []models.PreOrder) []OrderResponse {
	return lo.Map(orders, func(o models.PreOrder, _ int) OrderResponse {
		return orderResponse(&o)
	})
}

// CreateOrderRequest is the request body for POST /pre-order.
type CreateOrderRequest struct {
	ProductName  string     `json:"productName"`
	Quantity     flexString `json:"quantity"`
	Price        flexString `json:"price"`
	Notes        string     `json:"notes"`
	Contact      string     `json:"contact"`
	CustomerName string     `json:"customerName"`
}

// Create submits a pre-order for the current user.
func (h *OrderHandlers) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.Create(c.Request().Context(), user, preorder.CreateParams{
		ProductName:  req.ProductName,
		Quantity:     req.Quantity.String(),
		Price:        req.Price.String(),
		Notes:        req.Notes,
		Contact:      req.Contact,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "preorder_created", map[string]any{
		"preOrder": orderResponse(order),
	})
}

// ListMine returns the current user's orders.
func (h *OrderHandlers) ListMine(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListMine(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "preorders_retrieved", map[string]any{
		"preOrders": orderResponses(orders),
	})
}

// Cancel removes one of the current user's open orders, identified by ?id=.
func (h *OrderHandlers) Cancel(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.orders.CancelMine(c.Request().Context(), user, c.QueryParam("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "preorder_cancelled", nil)
}
