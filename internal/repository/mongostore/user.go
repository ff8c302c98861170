// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package mongostore

import (
	"context"
	"strings"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type userDoc struct { //nolint:govet // fieldalignment: readability over optimization
	ID                   string     `bson:"_id"`
	Username             string     `bson:"username"`
	Email                string     `bson:"email"`
	PasswordHash         string     `bson:"password_hash"`
	Role                 string     `bson:"role"`
	IsVerified           bool       `bson:"is_verified"`
	VerificationCode     *string    `bson:"verification_code,omitempty"`
	VerificationExpires  *time.Time `bson:"verification_expires,omitempty"`
	ResetPasswordToken   *string    `bson:"reset_password_token,omitempty"`
	ResetPasswordExpires *time.Time `bson:"reset_password_expires,omitempty"`
	CreatedAt            time.Time  `bson:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at"`
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:                   u.ID,
		Username:             u.Username,
		Email:                strings.ToLower(u.Email),
		PasswordHash:         u.PasswordHash,
		Role:                 string(u.Role),
		IsVerified:           u.IsVerified,
		VerificationCode:     u.VerificationCode,
		VerificationExpires:  u.VerificationExpires,
		ResetPasswordToken:   u.ResetPasswordToken,
		ResetPasswordExpires: u.ResetPasswordExpires,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (d userDoc) model() *models.User {
	return &models.User{
		ID:                   d.ID,
		Username:             d.Username,
		Email:                d.Email,
		PasswordHash:         d.PasswordHash,
		Role:                 models.Role(d.Role),
		IsVerified:           d.IsVerified,
		VerificationCode:     d.VerificationCode,
		VerificationExpires:  d.VerificationExpires,
		ResetPasswordToken:   d.ResetPasswordToken,
		ResetPasswordExpires: d.ResetPasswordExpires,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	return doc.model(), nil
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, toUserDoc(user))
	return wrapError(err)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

// FindUserByEmailOrUsername returns any user holding either identifier,
// preferring an email match.
func (s *Store) FindUserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

// GetUserByResetToken retrieves the user holding a password reset token that
// is still valid at now.
func (s *Store) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return s.findUser(ctx, bson.D{
		{Key: "reset_password_token", Value: token},
		{Key: "reset_password_expires", Value: bson.D{{Key: "$gt", Value: now}}},
	})
}

// SetVerificationCode stores a new email verification code.
func (s *Store) SetVerificationCode(ctx context.Context, id, code string, expires, now time.Time) error {
	return requireMatched(s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "verification_code", Value: code},
			{Key: "verification_expires", Value: expires},
			{Key: "updated_at", Value: now},
		}},
	}))
}

// MarkUserVerified flags the user verified and clears the verification code.
func (s *Store) MarkUserVerified(ctx context.Context, id string, now time.Time) error {
	return requireMatched(s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{
		{Key: "$set", Value: bson.D{{Key: "is_verified", Value: true}, {Key: "updated_at", Value: now}}},
		{Key: "$unset", Value: bson.D{{Key: "verification_code", Value: ""}, {Key: "verification_expires", Value: ""}}},
	}))
}

// SetResetToken stores a password reset token.
func (s *Store) SetResetToken(ctx context.Context, id, token string, expires, now time.Time) error {
	return requireMatched(s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "reset_password_token", Value: token},
			{Key: "reset_password_expires", Value: expires},
			{Key: "updated_at", Value: now},
		}},
	}))
}

// ResetPassword replaces the password hash and consumes the reset token.
func (s *Store) ResetPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return requireMatched(s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{
		{Key: "$set", Value: bson.D{{Key: "password_hash", Value: passwordHash}, {Key: "updated_at", Value: now}}},
		{Key: "$unset", Value: bson.D{{Key: "reset_password_token", Value: ""}, {Key: "reset_password_expires", Value: ""}}},
	}))
}

// SetUserRole assigns a role to the user with the given email.
func (s *Store) SetUserRole(ctx context.Context, email string, role models.Role, now time.Time) error {
	return requireMatched(s.users.UpdateOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}}, bson.D{
		{Key: "$set", Value: bson.D{{Key: "role", Value: string(role)}, {Key: "updated_at", Value: now}}},
	}))
}
