// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package preorder

import (
	"codeberg.org/oliverandrich/ambatobuy/internal/config"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
)

// TransitionPolicy decides which admin status changes are accepted.
type TransitionPolicy interface {
	Name() string
	Allowed(from, to models.OrderStatus) bool
}

// Lenient accepts any status change, including from terminal states.
type Lenient struct{}

func (Lenient) Name() string { return config.TransitionsLenient }

func (Lenient) Allowed(_, _ models.OrderStatus) bool { return true }

// Strict only follows the lifecycle graph:
//
//	pending -> confirmed -> completed
//	pending -> cancelled
type Strict struct{}

var strictEdges = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted},
}

func (Strict) Name() string { return config.TransitionsStrict }

func (Strict) Allowed(from, to models.OrderStatus) bool {
	for _, next := range strictEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PolicyFor returns the policy configured by name. Unknown names fall back
// to Lenient; config validation rejects them earlier.
func PolicyFor(name string) TransitionPolicy {
	if name == config.TransitionsStrict {
		return Strict{}
	}
	return Lenient{}
}
