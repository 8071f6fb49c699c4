// Package durable is the system of record for orders and reviews. Each order
// is stored twice, once per participant, and every write touches both copies
// in one transaction.
package durable

import (
	"context"
	"errors"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

var (
	// ErrOrderNotFound is returned when the owner holds no copy of the order.
	ErrOrderNotFound = errors.New("durable: order not found")
	// ErrDuplicateReview signals the order already carries a review.
	ErrDuplicateReview = errors.New("durable: review already exists")
	// ErrInvalidUpdate rejects updates missing an order id or a participant.
	ErrInvalidUpdate = errors.New("durable: invalid order update")
)

// Repository persists both participants' copies of an order.
type Repository interface {
	PersistOrderField(ctx context.Context, update marketplace.OrderUpdate) error
	FindOrder(ctx context.Context, owner, orderID string) (marketplace.Order, error)
	ListOrders(ctx context.Context, owner string) ([]marketplace.Order, error)
	SaveReview(ctx context.Context, review marketplace.Review) error
	ListReviews(ctx context.Context, freelancer string) ([]marketplace.Review, error)
}

func validate(u marketplace.OrderUpdate) error {
	if u.Order.ID == "" || u.Order.ClientUsername == "" || u.Order.FreelancerUsername == "" {
		return ErrInvalidUpdate
	}
	if u.Type == "" {
		return ErrInvalidUpdate
	}
	return nil
}
