// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/auth"
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/handlers"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/preorder"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEnv struct {
	e      *echo.Echo
	h      *handlers.OrderHandlers
	member *models.User
	admin  *models.User
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	svc := preorder.NewService(repo, &config.PreOrderConfig{
		Form:        config.FormPublic,
		Transitions: config.TransitionsLenient,
	}, preorder.WithClock(testutil.NewClock().Now))

	return &orderEnv{
		e:      echo.New(),
		h:      handlers.NewOrders(svc),
		member: testutil.NewTestUser(t, repo, "alice"),
		admin:  testutil.NewTestUser(t, repo, "root", testutil.Admin()),
	}
}

func (o *orderEnv) call(t *testing.T, user *models.User, method, target, body string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	c, rec := testutil.NewEchoContext(o.e, method, target, strings.NewReader(body))
	if user != nil {
		c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), user)))
	}
	return rec, handler(c)
}

func TestCreateOrder(t *testing.T) {
	o := newOrderEnv(t)

	rec, err := o.call(t, o.member, http.MethodPost, "/pre-order",
		`{"productName":"sushi","quantity":"5","price":"2000.50","contact":"0812"}`, o.h.Create)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalPrice":10002.5`)
	assert.Contains(t, rec.Body.String(), `"orderDate":"2025-06-01"`)

	_, err = o.call(t, o.member, http.MethodPost, "/pre-order", `{"productName":"sushi","quantity":0,"price":1}`, o.h.Create)
	assert.ErrorIs(t, err, apperr.Validation(""))

	_, err = o.call(t, nil, http.MethodPost, "/pre-order", `{}`, o.h.Create)
	assert.ErrorIs(t, err, apperr.Unauthenticated(""))
}

func TestCancelOrder_RequiresID(t *testing.T) {
	o := newOrderEnv(t)

	_, err := o.call(t, o.member, http.MethodDelete, "/pre-order", "", o.h.Cancel)
	assert.ErrorIs(t, err, apperr.Validation(""))

	_, err = o.call(t, o.member, http.MethodDelete, "/pre-order?id=missing", "", o.h.Cancel)
	assert.ErrorIs(t, err, apperr.NotFound(""))
}

func TestAdminList_Paging(t *testing.T) {
	o := newOrderEnv(t)
	for range 12 {
		_, err := o.call(t, o.member, http.MethodPost, "/pre-order", `{"productName":"milo","quantity":1,"price":5000}`, o.h.Create)
		require.NoError(t, err)
	}

	rec, err := o.call(t, o.admin, http.MethodGet, "/admin/orders?page=2", "", o.h.AdminList)
	require.NoError(t, err)
	data := dataOf(t, decode(t, rec))
	assert.Len(t, data["orders"], 2)
	assert.InDelta(t, 12, data["totalCount"], 0)
	assert.InDelta(t, 2, data["totalPages"], 0)

	_, err = o.call(t, o.admin, http.MethodGet, "/admin/orders?page=0", "", o.h.AdminList)
	assert.ErrorIs(t, err, apperr.Validation(""))

	_, err = o.call(t, o.member, http.MethodGet, "/admin/orders", "", o.h.AdminList)
	assert.ErrorIs(t, err, apperr.Forbidden(""))
}

func TestAdminExport_CSV(t *testing.T) {
	o := newOrderEnv(t)
	_, err := o.call(t, o.member, http.MethodPost, "/pre-order",
		`{"productName":"kentang","quantity":3,"price":12000,"notes":"extra, spicy"}`, o.h.Create)
	require.NoError(t, err)

	rec, err := o.call(t, o.admin, http.MethodGet, "/admin/orders/export?format=CSV", "", o.h.AdminExport)
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get(echo.HeaderContentType))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "kentang", rows[1][4])
	assert.Equal(t, "3", rows[1][5])
	assert.Equal(t, "36000", rows[1][7])
	assert.Equal(t, "extra, spicy", rows[1][8])
}

func TestAdminUpdateStatus(t *testing.T) {
	o := newOrderEnv(t)
	id := createOrder(t, o)

	rec, err := o.call(t, o.admin, http.MethodPatch, "/admin/orders",
		`{"orderId":"`+id+`","status":"confirmed"}`, o.h.AdminUpdateStatus)
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	_, err = o.call(t, o.admin, http.MethodPatch, "/admin/orders", `{"orderId":"nope","status":"confirmed"}`, o.h.AdminUpdateStatus)
	assert.ErrorIs(t, err, apperr.NotFound(""))
}

func createOrder(t *testing.T, o *orderEnv) string {
	t.Helper()
	rec, err := o.call(t, o.member, http.MethodPost, "/pre-order", `{"productName":"jasuke","quantity":1,"price":5000}`, o.h.Create)
	require.NoError(t, err)
	order := dataOf(t, decode(t, rec))["preOrder"].(map[string]any)
	return order["id"].(string)
}
