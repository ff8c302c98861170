// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/labstack/echo/v4"
)

// Export formats.
const (
	formatJSON = "json"
	formatCSV  = "csv"
)

var csvHeader = []string{
	"id", "userId", "customerName", "contact", "productName", "quantity",
	"price", "totalPrice", "notes", "orderDate", "status", "createdAt", "updatedAt",
}

// AdminList returns one page of all orders. ?page defaults to 1.
func (h *OrderHandlers) AdminList(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	page := 1
	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return apperr.Validation("validation_invalid_page")
		}
	}

	result, err := h.orders.ListAll(c.Request().Context(), user, page)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "preorders_retrieved", map[string]any{
		"orders":     orderResponses(result.Orders),
		"totalCount": result.TotalCount,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalPages": result.TotalPages,
	})
}

// UpdateStatusRequest is the request body for PATCH /admin/orders.
type UpdateStatusRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// AdminUpdateStatus changes an order's status.
func (h *OrderHandlers) AdminUpdateStatus(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateStatus(c.Request().Context(), user, req.OrderID, req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "preorder_status_updated", map[string]any{
		"preOrder": orderResponse(order),
	})
}

// AdminDelete removes any order, identified by ?id=.
func (h *OrderHandlers) AdminDelete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.orders.Delete(c.Request().Context(), user, c.QueryParam("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "preorder_deleted", nil)
}

// AdminExport returns every order as JSON or as a CSV attachment.
func (h *OrderHandlers) AdminExport(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	format := strings.ToLower(strings.TrimSpace(c.QueryParam("format")))
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatCSV {
		return apperr.Validation("validation_invalid_format")
	}

	orders, err := h.orders.Export(c.Request().Context(), user)
	if err != nil {
		return err
	}

	if format == formatJSON {
		return respond(c, http.StatusOK, "preorders_exported", map[string]any{
			"orders":     orderResponses(orders),
			"totalCount": len(orders),
		})
	}
	return writeCSV(c, orders)
}

func writeCSV(c echo.Context, orders []models.PreOrder) error {
	filename := fmt.Sprintf("preorders-%s.csv", time.Now().UTC().Format("20060102-150405"))
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := range orders {
		o := &orders[i]
		if err := w.Write([]string{
			o.ID,
			o.UserID,
			o.CustomerName,
			o.Contact,
			o.ProductName,
			strconv.FormatInt(o.Quantity, 10),
			o.Price.String(),
			o.TotalPrice.String(),
			o.Notes,
			o.OrderDate,
			string(o.Status),
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
