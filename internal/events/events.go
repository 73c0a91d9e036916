package events

import (
	"context"
	"errors"
	"time"
)

const (
	TypeOrderCreated  = "order.created"
	TypeOrderCanceled = "order.canceled"
	TypeItemCanceled  = "order.item_canceled"
)

// OrderEvent describes a committed change to an order.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       int64     `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	OrderType     string    `json:"orderType"`
	BuyerID       *int64    `json:"buyerId,omitempty"`
	BuyerEmail    string    `json:"buyerEmail,omitempty"`
	FarmerIDs     []int64   `json:"farmerIds"`
	ItemID        int64     `json:"itemId,omitempty"`
	TotalPrice    string    `json:"totalPrice"`
	OrderCanceled bool      `json:"orderCanceled"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher delivers order events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
