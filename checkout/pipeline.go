// Package checkout turns a cart into a persisted order.
package checkout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/cart"
	"github.com/judyrop/epicerie-backend/models"
)

// OrderStore is the part of the Catalog Store the pipeline writes to.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, id string) error
}

// Notifier is told about every placed order. Its failures never reach the customer.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
}

// Clearer empties the cart an order came from.
type Clearer interface {
	Clear(ctx context.Context) error
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Request struct {
	Items      []cart.Item
	Customer   Customer
	PickupDate string
	PickupSlot string
	Notes      string
}

const DefaultNotifyTimeout = 10 * time.Second

type Pipeline struct {
	store         OrderStore
	notifier      Notifier
	now           func() time.Time
	loc           *time.Location
	notifyTimeout time.Duration
}

type Option func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.notifyTimeout = d }
}

func NewPipeline(store OrderStore, notifier Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		notifier:      notifier,
		now:           time.Now,
		loc:           time.UTC,
		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates req, writes the order header and its items, and on
// success clears the cart and fires the notification. A failed item insert
// deletes the header again before the error is returned. session may be nil.
func (p *Pipeline) Submit(ctx context.Context, req Request, session Clearer) (*models.Order, error) {
	now := p.now()
	if err := p.Validate(req, now); err != nil {
		return nil, err
	}
	// order_items has one row per product.
	req.Items = cart.Merge(req.Items)

	order := p.buildOrder(req, now)
	if err := p.store.CreateOrder(ctx, order); err != nil {
		log.Printf("failed to insert order %s: %v", order.OrderNumber, err)
		return nil, apperr.Upstream("create order", err)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   it.ID,
			ProductName: it.Name,
			Price:       it.Price,
			Quantity:    it.Quantity,
		})
	}

	if err := p.store.CreateOrderItems(ctx, items); err != nil {
		log.Printf("failed to insert order items for %s: %v", order.OrderNumber, err)
		p.compensate(ctx, order.ID)
		return nil, apperr.Upstream("create order items", err)
	}
	order.Items = items

	if session != nil {
		if err := session.Clear(ctx); err != nil {
			log.Printf("order %s placed but cart was not cleared: %v", order.OrderNumber, err)
		}
	}

	p.notify(order)
	return order, nil
}

func (p *Pipeline) compensate(ctx context.Context, orderID string) {
	if err := p.store.DeleteOrder(context.WithoutCancel(ctx), orderID); err != nil {
		log.Print(&apperr.CompensationError{OrderID: orderID, Err: err})
	}
}

func (p *Pipeline) notify(order *models.Order) {
	if p.notifier == nil {
		return
	}
	snapshot := *order
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
		defer cancel()
		if err := p.notifier.OrderPlaced(ctx, &snapshot); err != nil {
			log.Printf("order %s: notification failed: %v", snapshot.OrderNumber, err)
		}
	}()
}

func (p *Pipeline) buildOrder(req Request, now time.Time) *models.Order {
	subtotal := cart.Subtotal(req.Items)
	return &models.Order{
		OrderNumber:   OrderNumber(now),
		CustomerName:  strings.TrimSpace(req.Customer.Name),
		CustomerEmail: strings.TrimSpace(req.Customer.Email),
		CustomerPhone: strings.TrimSpace(req.Customer.Phone),
		PickupDate:    req.PickupDate,
		PickupSlot:    req.PickupSlot,
		Notes:         strings.TrimSpace(req.Notes),
		Subtotal:      subtotal,
		Total:         subtotal,
		Status:        models.OrderStatusPending,
	}
}

// OrderNumber is "ORD-" followed by the last six digits of t in unix milliseconds.
func OrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD-%06d", t.UnixMilli()%1_000_000)
}
