package cart

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/judyrop/epicerie-backend/apperr"
)

// Service opens session carts from a Store and attaches the shared observers.
type Service struct {
	store     Store
	observers []Observer
	loads     singleflight.Group
}

func NewService(store Store, observers ...Observer) *Service {
	return &Service{store: store, observers: observers}
}

// NewID returns a fresh cart session id.
func NewID() string {
	return uuid.NewString()
}

// Open loads the cart for id. Unknown ids yield an empty cart.
func (s *Service) Open(ctx context.Context, id string) (*Cart, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.Validation("cart_id", "identifiant de panier invalide")
	}
	// Concurrent opens of one session share a single store read.
	// The load is shared with other callers, so it must outlive ctx.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loads.Do(id, func() (any, error) {
		return s.store.Load(loadCtx, id)
	})
	if err != nil {
		return nil, apperr.Upstream("load cart", err)
	}
	c := New(id, clone(v.([]Item)), persisterFunc(func(ctx context.Context, id string, items []Item) error {
		return apperr.Upstream("save cart", s.store.Save(ctx, id, items))
	}))
	for _, o := range s.observers {
		c.Subscribe(o)
	}
	return c, nil
}

type persisterFunc func(ctx context.Context, id string, items []Item) error

func (f persisterFunc) Save(ctx context.Context, id string, items []Item) error {
	return f(ctx, id, items)
}
