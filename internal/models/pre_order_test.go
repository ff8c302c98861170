// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"

	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "completed", "cancelled"} {
		st, ok := models.ParseOrderStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, s, string(st))
	}

	for _, s := range []string{"", "PENDING", "shipped", "canceled"} {
		_, ok := models.ParseOrderStatus(s)
		assert.False(t, ok, s)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.False(t, models.StatusPending.IsTerminal())
	assert.False(t, models.StatusConfirmed.IsTerminal())
	assert.True(t, models.StatusCompleted.IsTerminal())
	assert.True(t, models.StatusCancelled.IsTerminal())
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		quantity int64
		price    string
		expected string
	}{
		{1, "0.01", "0.01"},
		{100, "0.01", "1"},
		{1, "99999.99", "99999.99"},
		{100, "99999.99", "9999999"},
		{5, "2000", "10000"},
		{3, "0.1", "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got := models.LineTotal(tt.quantity, decimal.RequireFromString(tt.price))
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}
