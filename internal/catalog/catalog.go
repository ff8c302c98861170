// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package catalog holds the fixed product list shown on the storefront.
package catalog

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Prices are informational; orders carry the
// price submitted with them.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

var products = []Product{
	{ID: "kentang", Name: "Kentang", Description: "Spiral potato on a stick", Price: decimal.NewFromInt(12000)},
	{ID: "sushi", Name: "Sushi", Description: "Sushi roll box", Price: decimal.NewFromInt(10000)},
	{ID: "milo", Name: "Milo", Description: "Iced Milo", Price: decimal.NewFromInt(5000)},
	{ID: "jasuke", Name: "Jasuke", Description: "Corn, milk and cheese cup", Price: decimal.NewFromInt(5000)},
}

// All returns a copy of the catalog in display order.
func All() []Product {
	return append([]Product(nil), products...)
}

// Find looks a product up by id, ignoring case.
func Find(id string) (Product, bool) {
	return lo.Find(products, func(p Product) bool {
		return strings.EqualFold(p.ID, strings.TrimSpace(id))
	})
}
