package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/judyrop/epicerie-backend/models"
)

// MockOrderStore implements OrderStore and records every call.
type MockOrderStore struct {
	CreateErr error
	ItemsErr  error
	DeleteErr error

	Calls   []string
	Orders  map[string]*models.Order
	Items   []models.OrderItem
	Deleted []string
}

func newMockStore() *MockOrderStore {
	return &MockOrderStore{Orders: make(map[string]*models.Order)}
}

func (m *MockOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.Calls = append(m.Calls, "CreateOrder")
	if m.CreateErr != nil {
		return m.CreateErr
	}
	order.ID = uuid.NewString()
	m.Orders[order.ID] = order
	return nil
}

func (m *MockOrderStore) CreateOrderItems(_ context.Context, items []models.OrderItem) error {
	m.Calls = append(m.Calls, "CreateOrderItems")
	if m.ItemsErr != nil {
		return m.ItemsErr
	}
	m.Items = append(m.Items, items...)
	return nil
}

func (m *MockOrderStore) DeleteOrder(_ context.Context, id string) error {
	m.Calls = append(m.Calls, "DeleteOrder")
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, id)
	delete(m.Orders, id)
	return nil
}

// MockNotifier signals on Done once OrderPlaced returned.
type MockNotifier struct {
	Err  error
	Done chan struct{}

	mu     sync.Mutex
	orders []*models.Order
}

func newMockNotifier(err error) *MockNotifier {
	return &MockNotifier{Err: err, Done: make(chan struct{}, 1)}
}

func (m *MockNotifier) OrderPlaced(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	m.orders = append(m.orders, order)
	m.mu.Unlock()
	m.Done <- struct{}{}
	return m.Err
}

func (m *MockNotifier) Orders() []*models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders
}

type failingClearer struct{ calls int }

func (f *failingClearer) Clear(context.Context) error {
	f.calls++
	return errors.New("redis down")
}
