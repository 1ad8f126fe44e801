// Package cart is the shopping cart state container: an ordered set of line
// items with derived totals, an explicit persistence hook and synchronous
// observers.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Product is the snapshot of catalog data a line item keeps. Later catalog
// changes do not touch items already in a cart.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
}

type Item struct {
	Product
	Quantity int `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is an immutable view of a cart after a mutation.
type Snapshot struct {
	ID         string          `json:"id"`
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Persister stores the full cart after every mutation.
type Persister interface {
	Save(ctx context.Context, id string, items []Item) error
}

type Observer interface {
	CartChanged(s Snapshot)
}

type ObserverFunc func(s Snapshot)

func (f ObserverFunc) CartChanged(s Snapshot) { f(s) }

type Cart struct {
	mu        sync.Mutex
	id        string
	items     []Item
	persister Persister
	observers map[int]Observer
	nextObs   int
}

// New builds a cart holding items. A nil persister keeps the cart in memory only.
func New(id string, items []Item, persister Persister) *Cart {
	return &Cart{
		id:        id,
		items:     normalize(items),
		persister: persister,
		observers: make(map[int]Observer),
	}
}

func (c *Cart) ID() string { return c.id }

// Subscribe registers o. Observers run synchronously after each mutation has
// been applied and persisted. The returned func unsubscribes.
func (c *Cart) Subscribe(o Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.nextObs
	c.nextObs++
	c.observers[key] = o
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, key)
	}
}

// AddItem increments the quantity of p if present, otherwise appends it with quantity 1.
func (c *Cart) AddItem(ctx context.Context, p Product) error {
	return c.mutate(ctx, func(items []Item) []Item {
		for i := range items {
			if items[i].ID == p.ID {
				items[i].Quantity++
				return items
			}
		}
		return append(items, Item{Product: p, Quantity: 1})
	})
}

// RemoveItem deletes the item for productID. Unknown ids are a no-op.
func (c *Cart) RemoveItem(ctx context.Context, productID string) error {
	return c.mutate(ctx, func(items []Item) []Item {
		return remove(items, productID)
	})
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or less removes the item.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return c.mutate(ctx, func(items []Item) []Item {
		if quantity <= 0 {
			return remove(items, productID)
		}
		for i := range items {
			if items[i].ID == productID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]Item) []Item { return nil })
}

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.items)
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.items)
}

func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Subtotal(c.items)
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// mutate applies fn to a copy of the items and commits it only once the
// persister accepted it, so observers never see a state that was not saved.
func (c *Cart) mutate(ctx context.Context, fn func([]Item) []Item) error {
	c.mu.Lock()
	next := normalize(fn(clone(c.items)))
	if c.persister != nil {
		if err := c.persister.Save(ctx, c.id, next); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.items = next
	snap := c.snapshot()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.CartChanged(snap)
	}
	return nil
}

func (c *Cart) snapshot() Snapshot {
	items := clone(c.items)
	if items == nil {
		items = []Item{}
	}
	return Snapshot{
		ID:         c.id,
		Items:      items,
		TotalItems: totalItems(c.items),
		Subtotal:   Subtotal(c.items),
	}
}

// Subtotal is Σ price × quantity over items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func totalItems(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func remove(items []Item, productID string) []Item {
	out := items[:0]
	for _, it := range items {
		if it.ID != productID {
			out = append(out, it)
		}
	}
	return out
}

// Merge combines lines sharing a product id into the first of them, summing
// quantities. Lines with a non-positive quantity are dropped.
func Merge(items []Item) []Item { return normalize(items) }

// normalize drops lines with a non-positive quantity and merges duplicate ids.
func normalize(items []Item) []Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

func clone(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
