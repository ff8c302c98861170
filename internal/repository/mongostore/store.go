// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package mongostore is a MongoDB implementation of the credential and order
// store. It mirrors the method set of repository.Repository and reports the
// same sentinel errors.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/ambatobuy/internal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection     = "users"
	preOrdersCollection = "preorders"
)

// Store is a MongoDB-backed store.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	orders *mongo.Collection
}

// Open connects to MongoDB and ensures the required indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		users:  db.Collection(usersCollection),
		orders: db.Collection(preOrdersCollection),
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Drop removes both collections. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.users.Drop(ctx); err != nil {
		return err
	}
	return s.orders.Drop(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		{Keys: bson.D{{Key: "reset_password_token", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	_, err = s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating pre-order indexes: %w", err)
	}
	return nil
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "email_unique"):
			return repository.ErrDuplicateEmail
		case strings.Contains(msg, "username_unique"):
			return repository.ErrDuplicateUsername
		default:
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
	}
	return err
}

func requireMatched(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func requireDeleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
