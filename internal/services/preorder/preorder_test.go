// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package preorder_test

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"codeberg.org/oliverandrich/ambatobuy/internal/services/preorder"
	"codeberg.org/oliverandrich/ambatobuy/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitions struct {
	seen []string
}

func (r *transitions) OrderTransition(from, to models.OrderStatus) {
	r.seen = append(r.seen, fmt.Sprintf("%s>%s", from, to))
}

type env struct {
	svc    *preorder.Service
	repo   *repository.Repository
	member *models.User
	other  *models.User
	admin  *models.User
	rec    *transitions
}

func setup(t *testing.T, cfg config.PreOrderConfig) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock()
	rec := &transitions{}
	if cfg.Form == "" {
		cfg.Form = config.FormPublic
	}
	if cfg.Transitions == "" {
		cfg.Transitions = config.TransitionsLenient
	}
	return &env{
		svc:    preorder.NewService(repo, &cfg, preorder.WithClock(clock.Now), preorder.WithRecorder(rec)),
		repo:   repo,
		member: testutil.NewTestUser(t, repo, "alice"),
		other:  testutil.NewTestUser(t, repo, "bob"),
		admin:  testutil.NewTestUser(t, repo, "root", testutil.Admin()),
		rec:    rec,
	}
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func sushi() preorder.CreateParams {
	return preorder.CreateParams{ProductName: "sushi", Quantity: "5", Price: "2000"}
}

func create(t *testing.T, e *env, caller *models.User) *models.PreOrder {
	t.Helper()
	order, err := e.svc.Create(context.Background(), caller, sushi())
	require.NoError(t, err)
	return order
}

func TestCreate(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()

	order, err := e.svc.Create(ctx, e.member, preorder.CreateParams{
		ProductName: " sushi ",
		Quantity:    "5",
		Price:       "2000",
		Notes:       "extra wasabi",
		Contact:     "0812",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "sushi", order.ProductName)
	assert.Equal(t, int64(5), order.Quantity)
	assert.Equal(t, "10000", order.TotalPrice.String())
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, e.member.ID, order.UserID)
	assert.Equal(t, "alice", order.CustomerName)
	assert.Equal(t, "2025-06-01", order.OrderDate)

	stored, err := e.repo.GetPreOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10000).Equal(stored.TotalPrice))
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, []string{">pending"}, e.rec.seen)
}

func TestCreate_TotalsAreExact(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})

	tests := []struct {
		quantity string
		price    string
		total    string
	}{
		{"1", "0.01", "0.01"},
		{"100", "0.01", "1"},
		{"1", "99999.99", "99999.99"},
		{"100", "99999.99", "9999999"},
		{"3", "0.1", "0.3"},
		{"5.0", "2000", "10000"},
	}

	for _, tt := range tests {
		t.Run(tt.quantity+"x"+tt.price, func(t *testing.T) {
			order, err := e.svc.Create(context.Background(), e.member, preorder.CreateParams{
				ProductName: "milo", Quantity: tt.quantity, Price: tt.price,
			})
			require.NoError(t, err)

			expected := decimal.RequireFromString(tt.total)
			assert.True(t, expected.Equal(order.TotalPrice), "got %s", order.TotalPrice)

			stored, err := e.repo.GetPreOrder(context.Background(), order.ID)
			require.NoError(t, err)
			assert.True(t, expected.Equal(stored.TotalPrice), "stored %s", stored.TotalPrice)
			assert.True(t, stored.TotalPrice.Equal(models.LineTotal(stored.Quantity, stored.Price)))
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})

	tests := []struct {
		name      string
		params    preorder.CreateParams
		messageID string
	}{
		{"missing product", preorder.CreateParams{Quantity: "1", Price: "1"}, "validation_missing_fields"},
		{"missing quantity", preorder.CreateParams{ProductName: "milo", Price: "1"}, "validation_missing_fields"},
		{"missing price", preorder.CreateParams{ProductName: "milo", Quantity: "1"}, "validation_missing_fields"},
		{"zero quantity", preorder.CreateParams{ProductName: "milo", Quantity: "0", Price: "1"}, "validation_invalid_quantity"},
		{"negative quantity", preorder.CreateParams{ProductName: "milo", Quantity: "-2", Price: "1"}, "validation_invalid_quantity"},
		{"fractional quantity", preorder.CreateParams{ProductName: "milo", Quantity: "1.5", Price: "1"}, "validation_invalid_quantity"},
		{"text quantity", preorder.CreateParams{ProductName: "milo", Quantity: "two", Price: "1"}, "validation_invalid_quantity"},
		{"zero price", preorder.CreateParams{ProductName: "milo", Quantity: "1", Price: "0"}, "validation_invalid_price"},
		{"text price", preorder.CreateParams{ProductName: "milo", Quantity: "1", Price: "cheap"}, "validation_invalid_price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), e.member, tt.params)
			appErr := requireCode(t, err, apperr.CodeValidation)
			assert.Equal(t, tt.messageID, appErr.MessageID)
		})
	}

	orders, err := e.repo.ListAllPreOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreate_PrivateForm(t *testing.T) {
	e := setup(t, config.PreOrderConfig{Form: config.FormPrivate})

	_, err := e.svc.Create(context.Background(), e.member, sushi())
	appErr := requireCode(t, err, apperr.CodeForbidden)
	assert.Equal(t, "preorder_form_closed", appErr.MessageID)

	order, err := e.svc.Create(context.Background(), e.admin, sushi())
	require.NoError(t, err)
	assert.Equal(t, e.admin.ID, order.UserID)
}

func TestListMine_IsScopedToOwner(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()

	first := create(t, e, e.member)
	second := create(t, e, e.member)
	create(t, e, e.other)

	orders, err := e.svc.ListMine(ctx, e.member)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	for _, o := range orders {
		assert.Equal(t, e.member.ID, o.UserID)
	}

	empty, err := e.svc.ListMine(ctx, e.admin)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCancelMine(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	require.NoError(t, e.svc.CancelMine(ctx, e.member, order.ID))

	_, err := e.repo.GetPreOrder(ctx, order.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = e.svc.CancelMine(ctx, e.member, order.ID)
	requireCode(t, err, apperr.CodeNotFound)
}

func TestCancelMine_Confirmed(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	_, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, "confirmed")
	require.NoError(t, err)
	require.NoError(t, e.svc.CancelMine(ctx, e.member, order.ID))
}

func TestCancelMine_OtherUsersOrderIsNotFound(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.other)

	err := e.svc.CancelMine(ctx, e.member, order.ID)
	appErr := requireCode(t, err, apperr.CodeNotFound)
	assert.Equal(t, 404, appErr.Status())

	err = e.svc.CancelMine(ctx, e.member, "does-not-exist")
	requireCode(t, err, apperr.CodeNotFound)

	stored, err := e.repo.GetPreOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestCancelMine_TerminalOrder(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	_, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, "cancelled")
	require.NoError(t, err)

	err = e.svc.CancelMine(ctx, e.member, order.ID)
	appErr := requireCode(t, err, apperr.CodeInvalidTransition)
	assert.Equal(t, 409, appErr.Status())

	err = e.svc.CancelMine(ctx, e.member, "  ")
	requireCode(t, err, apperr.CodeValidation)
}

func TestAdminOperations_RequireAdmin(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	_, err := e.svc.ListAll(ctx, e.member, 1)
	requireCode(t, err, apperr.CodeForbidden)

	_, err = e.svc.UpdateStatus(ctx, e.member, order.ID, "confirmed")
	requireCode(t, err, apperr.CodeForbidden)

	_, err = e.svc.Export(ctx, e.member)
	requireCode(t, err, apperr.CodeForbidden)

	err = e.svc.Delete(ctx, e.member, order.ID)
	requireCode(t, err, apperr.CodeForbidden)

	stored, err := e.repo.GetPreOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestListAll_Pagination(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()

	var created []*models.PreOrder
	for i := range 23 {
		caller := e.member
		if i%2 == 1 {
			caller = e.other
		}
		created = append(created, create(t, e, caller))
	}

	page, err := e.svc.ListAll(ctx, e.admin, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(23), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, preorder.PageSize, page.PageSize)
	require.Len(t, page.Orders, 10)
	assert.Equal(t, created[0].ID, page.Orders[0].ID)

	last, err := e.svc.ListAll(ctx, e.admin, 3)
	require.NoError(t, err)
	require.Len(t, last.Orders, 3)
	assert.Equal(t, created[22].ID, last.Orders[2].ID)

	beyond, err := e.svc.ListAll(ctx, e.admin, 4)
	require.NoError(t, err)
	assert.Empty(t, beyond.Orders)

	_, err = e.svc.ListAll(ctx, e.admin, 0)
	requireCode(t, err, apperr.CodeValidation)
}

func TestListAll_Empty(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})

	page, err := e.svc.ListAll(context.Background(), e.admin, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.TotalCount)
	assert.Equal(t, 0, page.TotalPages)
}

func TestUpdateStatus_Validation(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	_, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, "shipped")
	appErr := requireCode(t, err, apperr.CodeValidation)
	assert.Equal(t, "validation_invalid_status", appErr.MessageID)

	_, err = e.svc.UpdateStatus(ctx, e.admin, "", "confirmed")
	appErr = requireCode(t, err, apperr.CodeValidation)
	assert.Equal(t, "validation_order_id_required", appErr.MessageID)

	_, err = e.svc.UpdateStatus(ctx, e.admin, "missing", "confirmed")
	requireCode(t, err, apperr.CodeNotFound)
}

func TestUpdateStatus_Lenient(t *testing.T) {
	e := setup(t, config.PreOrderConfig{Transitions: config.TransitionsLenient})
	ctx := context.Background()
	order := create(t, e, e.member)

	for _, status := range []string{"confirmed", "completed"} {
		updated, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatus(status), updated.Status)
	}

	// Lenient parity: cancelling a completed order succeeds.
	updated, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)

	stored, err := e.repo.GetPreOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Equal(t, []string{">pending", "pending>confirmed", "confirmed>completed", "completed>cancelled"}, e.rec.seen)
}

func TestUpdateStatus_Strict(t *testing.T) {
	e := setup(t, config.PreOrderConfig{Transitions: config.TransitionsStrict})
	ctx := context.Background()
	order := create(t, e, e.member)

	_, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, "completed")
	appErr := requireCode(t, err, apperr.CodeInvalidTransition)
	assert.Equal(t, map[string]any{"From": "pending", "To": "completed"}, appErr.Data)

	for _, status := range []string{"confirmed", "completed"} {
		_, err := e.svc.UpdateStatus(ctx, e.admin, order.ID, status)
		require.NoError(t, err)
	}

	_, err = e.svc.UpdateStatus(ctx, e.admin, order.ID, "cancelled")
	appErr = requireCode(t, err, apperr.CodeInvalidTransition)
	assert.Equal(t, 409, appErr.Status())

	stored, err := e.repo.GetPreOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestStrictPolicy(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.StatusPending, models.StatusConfirmed}:   true,
		{models.StatusPending, models.StatusCancelled}:   true,
		{models.StatusConfirmed, models.StatusCompleted}: true,
	}

	policy := preorder.Strict{}
	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], policy.Allowed(from, to), "%s -> %s", from, to)
			assert.True(t, preorder.Lenient{}.Allowed(from, to))
		}
	}

	assert.Equal(t, "strict", preorder.PolicyFor(config.TransitionsStrict).Name())
	assert.Equal(t, "lenient", preorder.PolicyFor("").Name())
}

func TestExport(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	first := create(t, e, e.member)
	second := create(t, e, e.other)

	orders, err := e.svc.Export(context.Background(), e.admin)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestDelete(t *testing.T) {
	e := setup(t, config.PreOrderConfig{})
	ctx := context.Background()
	order := create(t, e, e.member)

	require.NoError(t, e.svc.Delete(ctx, e.admin, order.ID))
	err := e.svc.Delete(ctx, e.admin, order.ID)
	requireCode(t, err, apperr.CodeNotFound)
}

func TestParseQuantity(t *testing.T) {
	q, err := preorder.ParseQuantity(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), q)

	_, err = preorder.ParseQuantity("99999999999")
	requireCode(t, err, apperr.CodeValidation)
}
