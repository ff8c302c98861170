// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package preorder implements the pre-order lifecycle: creation by members,
// owner-scoped listing and cancellation, and admin status management.
package preorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PageSize is the number of orders per admin page.
const PageSize = 10

// cancellable are the statuses a member may still cancel.
var cancellable = []models.OrderStatus{models.StatusPending, models.StatusConfirmed}

// OrderStore is the pre-order persistence the service needs.
type OrderStore interface {
	CreatePreOrder(ctx context.Context, order *models.PreOrder) error
	GetPreOrder(ctx context.Context, id string) (*models.PreOrder, error)
	ListPreOrdersByUser(ctx context.Context, userID string) ([]models.PreOrder, error)
	ListPreOrders(ctx context.Context, offset, limit int) ([]models.PreOrder, error)
	CountPreOrders(ctx context.Context) (int64, error)
	ListAllPreOrders(ctx context.Context) ([]models.PreOrder, error)
	UpdatePreOrderStatus(ctx context.Context, id string, expected, next models.OrderStatus, now time.Time) error
	DeleteUserPreOrder(ctx context.Context, id, userID string, statuses []models.OrderStatus) error
	DeletePreOrder(ctx context.Context, id string) error
}

// Recorder receives status changes. Creation is reported with an empty from.
type Recorder interface {
	OrderTransition(from, to models.OrderStatus)
}

type noopRecorder struct{}

func (noopRecorder) OrderTransition(_, _ models.OrderStatus) {}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder reports status changes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service places, lists, cancels and administers pre-orders against an
// OrderStore.
type Service struct {
	store     OrderStore
	policy    TransitionPolicy
	adminOnly bool
	now       func() time.Time
	recorder  Recorder
}

// NewService creates the pre-order service.
func NewService(store OrderStore, cfg *config.PreOrderConfig, opts ...Option) *Service {
	s := &Service{
		store:     store,
		policy:    PolicyFor(cfg.Transitions),
		adminOnly: cfg.Form == config.FormPrivate,
		now:       time.Now,
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the active transition policy.
func (s *Service) Policy() TransitionPolicy {
	return s.policy
}

// CreateParams is a pre-order submission. Quantity and Price are decimal
// literals as sent by the client.
type CreateParams struct {
	ProductName  string
	Quantity     string
	Price        string
	Notes        string
	Contact      string
	CustomerName string
}

// ParseQuantity accepts a positive integer literal, also written as "5.0".
func ParseQuantity(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, apperr.Validation("validation_invalid_quantity")
	}
	return d.IntPart(), nil
}

// ParsePrice accepts a positive decimal literal.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, apperr.Validation("validation_invalid_price")
	}
	return d, nil
}

func storeError(op string, err error) error {
	return apperr.Dependency("internal_error", fmt.Errorf("%s: %w", op, err))
}

func requireAdmin(caller *models.User) error {
	if caller == nil || !caller.IsAdmin() {
		return apperr.Forbidden("access_denied")
	}
	return nil
}

// Create stores a pending pre-order owned by caller.
func (s *Service) Create(ctx context.Context, caller *models.User, p CreateParams) (*models.PreOrder, error) {
	if s.adminOnly && !caller.IsAdmin() {
		return nil, apperr.Forbidden("preorder_form_closed")
	}

	productName := strings.TrimSpace(p.ProductName)
	if productName == "" || strings.TrimSpace(p.Quantity) == "" || strings.TrimSpace(p.Price) == "" {
		return nil, apperr.Validation("validation_missing_fields")
	}
	quantity, err := ParseQuantity(p.Quantity)
	if err != nil {
		return nil, err
	}
	price, err := ParsePrice(p.Price)
	if err != nil {
		return nil, err
	}

	customerName := strings.TrimSpace(p.CustomerName)
	if customerName == "" {
		customerName = caller.Username
	}

	now := s.now()
	order := &models.PreOrder{
		ID:           uuid.NewString(),
		UserID:       caller.ID,
		CustomerName: customerName,
		Contact:      strings.TrimSpace(p.Contact),
		ProductName:  productName,
		Quantity:     quantity,
		Price:        price,
		TotalPrice:   models.LineTotal(quantity, price),
		Notes:        strings.TrimSpace(p.Notes),
		OrderDate:    now.Format(models.OrderDateLayout),
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreatePreOrder(ctx, order); err != nil {
		return nil, storeError("creating pre-order", err)
	}

	s.recorder.OrderTransition("", models.StatusPending)
	slog.InfoContext(ctx, "order_created",
		"order_id", order.ID,
		"user_id", caller.ID,
		"product", productName,
		"total", order.TotalPrice.String(),
	)
	return order, nil
}

// ListMine returns the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, caller *models.User) ([]models.PreOrder, error) {
	orders, err := s.store.ListPreOrdersByUser(ctx, caller.ID)
	if err != nil {
		return nil, storeError("listing pre-orders", err)
	}
	return orders, nil
}

// CancelMine deletes one of the caller's pending or confirmed orders. Orders
// that do not exist or belong to someone else are reported as not found.
func (s *Service) CancelMine(ctx context.Context, caller *models.User, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("validation_order_id_required")
	}

	err := s.store.DeleteUserPreOrder(ctx, id, caller.ID, cancellable)
	if err == nil {
		slog.InfoContext(ctx, "order_cancelled", "order_id", id, "user_id", caller.ID)
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storeError("cancelling pre-order", err)
	}

	order, err := s.store.GetPreOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("preorder_not_found")
		}
		return storeError("loading pre-order", err)
	}
	if order.UserID != caller.ID {
		return apperr.NotFound("preorder_not_found")
	}
	return apperr.New(apperr.KindConflict, apperr.CodeInvalidTransition, "preorder_not_cancellable")
}

// Page is one page of the admin order list.
type Page struct {
	Orders     []models.PreOrder
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// ListAll returns a page of all orders, oldest first. Pages start at 1.
func (s *Service) ListAll(ctx context.Context, caller *models.User, page int) (*Page, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if page < 1 {
		return nil, apperr.Validation("validation_invalid_page")
	}

	total, err := s.store.CountPreOrders(ctx)
	if err != nil {
		return nil, storeError("counting pre-orders", err)
	}
	orders, err := s.store.ListPreOrders(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, storeError("listing pre-orders", err)
	}

	return &Page{
		Orders:     orders,
		TotalCount: total,
		Page:       page,
		PageSize:   PageSize,
		TotalPages: int((total + PageSize - 1) / PageSize),
	}, nil
}

// UpdateStatus moves an order to status if the transition policy allows it.
// The write is conditional on the status that was checked.
func (s *Service) UpdateStatus(ctx context.Context, caller *models.User, id, status string) (*models.PreOrder, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("validation_order_id_required")
	}
	next, ok := models.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return nil, apperr.Validation("validation_invalid_status")
	}

	order, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !s.policy.Allowed(from, next) {
		return nil, invalidTransition(from, next)
	}

	now := s.now()
	if err := s.store.UpdatePreOrderStatus(ctx, id, from, next, now); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError("updating pre-order status", err)
		}
		// Deleted or changed since it was read.
		current, getErr := s.get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, invalidTransition(current.Status, next)
	}

	order.Status = next
	order.UpdatedAt = now

	s.recorder.OrderTransition(from, next)
	slog.InfoContext(ctx, "order_status_changed",
		"order_id", id,
		"admin_id", caller.ID,
		"from", from,
		"to", next,
		"policy", s.policy.Name(),
	)
	return order, nil
}

func invalidTransition(from, to models.OrderStatus) error {
	return apperr.New(apperr.KindConflict, apperr.CodeInvalidTransition, "invalid_transition").
		WithData(map[string]any{"From": string(from), "To": string(to)})
}

func (s *Service) get(ctx context.Context, id string) (*models.PreOrder, error) {
	order, err := s.store.GetPreOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("preorder_not_found")
		}
		return nil, storeError("loading pre-order", err)
	}
	return order, nil
}

// Export returns every order, newest first.
func (s *Service) Export(ctx context.Context, caller *models.User) ([]models.PreOrder, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	orders, err := s.store.ListAllPreOrders(ctx)
	if err != nil {
		return nil, storeError("exporting pre-orders", err)
	}
	return orders, nil
}

// Delete removes an order regardless of owner or status.
func (s *Service) Delete(ctx context.Context, caller *models.User, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("validation_order_id_required")
	}
	if err := s.store.DeletePreOrder(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("preorder_not_found")
		}
		return storeError("deleting pre-order", err)
	}
	slog.InfoContext(ctx, "order_deleted", "order_id", id, "admin_id", caller.ID)
	return nil
}
