// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/catalog"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type productResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
}

// Pinger checks that the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the public, unauthenticated handlers.
type Handlers struct {
	store Pinger
}

// New creates a new Handlers instance.
func New(store Pinger) *Handlers {
	return &Handlers{store: store}
}

// Health reports whether the store answers.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health_check_failed", "error", err)
		return fail(c, http.StatusServiceUnavailable, "health_unavailable", "UNAVAILABLE", nil)
	}
	return respond(c, http.StatusOK, "health_ok", map[string]string{"status": "ok"})
}

// Products lists the catalog.
func (h *Handlers) Products(c echo.Context) error {
	products := lo.Map(catalog.All(), func(p catalog.Product, _ int) productResponse {
		return productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       json.Number(p.Price.String()),
		}
	})
	return respond(c, http.StatusOK, "products_retrieved", map[string]any{"products": products})
}
