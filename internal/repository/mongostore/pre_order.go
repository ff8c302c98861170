// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mongostore

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Money is stored as decimal strings so totals survive round trips exactly.
type preOrderDoc struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string    `bson:"_id"`
	UserID       string    `bson:"user_id"`
	CustomerName string    `bson:"customer_name"`
	Contact      string    `bson:"contact"`
	ProductName  string    `bson:"product_name"`
	Quantity     int64     `bson:"quantity"`
	Price        string    `bson:"price"`
	TotalPrice   string    `bson:"total_price"`
	Notes        string    `bson:"notes"`
	OrderDate    string    `bson:"order_date"`
	Status       string    `bson:"status"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toPreOrderDoc(o *models.PreOrder) preOrderDoc {
	return preOrderDoc{
		ID:           o.ID,
		UserID:       o.UserID,
		CustomerName: o.CustomerName,
		Contact:      o.Contact,
		ProductName:  o.ProductName,
		Quantity:     o.Quantity,
		Price:        o.Price.String(),
		TotalPrice:   o.TotalPrice.String(),
		Notes:        o.Notes,
		OrderDate:    o.OrderDate,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func (d preOrderDoc) model() (models.PreOrder, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return models.PreOrder{}, fmt.Errorf("pre-order %s price: %w", d.ID, err)
	}
	total, err := decimal.NewFromString(d.TotalPrice)
	if err != nil {
		return models.PreOrder{}, fmt.Errorf("pre-order %s total: %w", d.ID, err)
	}
	return models.PreOrder{
		ID:           d.ID,
		UserID:       d.UserID,
		CustomerName: d.CustomerName,
		Contact:      d.Contact,
		ProductName:  d.ProductName,
		Quantity:     d.Quantity,
		Price:        price,
		TotalPrice:   total,
		Notes:        d.Notes,
		OrderDate:    d.OrderDate,
		Status:       models.OrderStatus(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (s *Store) findOrders(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]models.PreOrder, error) {
	cur, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapError(err)
	}
	var docs []preOrderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapError(err)
	}

	orders := make([]models.PreOrder, 0, len(docs))
	for _, d := range docs {
		o, err := d.model()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

var (
	newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
)

// CreatePreOrder inserts a pre-order.
func (s *Store) CreatePreOrder(ctx context.Context, order *models.PreOrder) error {
	_, err := s.orders.InsertOne(ctx, toPreOrderDoc(order))
	return wrapError(err)
}

// GetPreOrder retrieves a pre-order by ID.
func (s *Store) GetPreOrder(ctx context.Context, id string) (*models.PreOrder, error) {
	var doc preOrderDoc
	if err := s.orders.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	o, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListPreOrdersByUser returns a user's pre-orders, newest first.
func (s *Store) ListPreOrdersByUser(ctx context.Context, userID string) ([]models.PreOrder, error) {
	return s.findOrders(ctx, bson.D{{Key: "user_id", Value: userID}}, options.Find().SetSort(newestFirst))
}

// ListPreOrders returns one page of all pre-orders, oldest first.
func (s *Store) ListPreOrders(ctx context.Context, offset, limit int) ([]models.PreOrder, error) {
	return s.findOrders(ctx, bson.D{}, options.Find().
		SetSort(oldestFirst).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
}

// CountPreOrders returns the total number of pre-orders.
func (s *Store) CountPreOrders(ctx context.Context) (int64, error) {
	n, err := s.orders.CountDocuments(ctx, bson.D{})
	return n, wrapError(err)
}

// ListAllPreOrders returns every pre-order, newest first.
func (s *Store) ListAllPreOrders(ctx context.Context) ([]models.PreOrder, error) {
	return s.findOrders(ctx, bson.D{}, options.Find().SetSort(newestFirst))
}

// UpdatePreOrderStatus sets a new status, conditional on expected when it is
// non-empty.
func (s *Store) UpdatePreOrderStatus(ctx context.Context, id string, expected, next models.OrderStatus, now time.Time) error {
	filter := bson.D{{Key: "_id", Value: id}}
	if expected != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(expected)})
	}
	return requireMatched(s.orders.UpdateOne(ctx, filter, bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: string(next)}, {Key: "updated_at", Value: now}}},
	}))
}

// DeleteUserPreOrder deletes a pre-order owned by userID whose status is one
// of statuses.
func (s *Store) DeleteUserPreOrder(ctx context.Context, id, userID string, statuses []models.OrderStatus) error {
	in := lo.Map(statuses, func(st models.OrderStatus, _ int) string { return string(st) })
	return requireDeleted(s.orders.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "user_id", Value: userID},
		{Key: "status", Value: bson.D{{Key: "$in", Value: in}}},
	}))
}

// DeletePreOrder deletes a pre-order regardless of owner.
func (s *Store) DeletePreOrder(ctx context.Context, id string) error {
	return requireDeleted(s.orders.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
}
