package checkout

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/cart"
)

var paris = mustLoad("Europe/Paris")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Wednesday 14 October 2026, 10:00 in the shop.
func fixedNow() time.Time {
	return time.Date(2026, 10, 14, 10, 0, 0, 0, paris)
}

func newPipeline(store OrderStore, n Notifier) *Pipeline {
	return NewPipeline(store, n, WithClock(fixedNow), WithLocation(paris), WithNotifyTimeout(time.Second))
}

func filledCart(t *testing.T) *cart.Cart {
	ctx := context.Background()
	c := cart.New("c1", nil, nil)
	p1 := cart.Product{ID: "p1", Name: "Pain de campagne", Price: decimal.RequireFromString("6.50")}
	p2 := cart.Product{ID: "p2", Name: "Confiture", Price: decimal.RequireFromString("3.20")}
	require.NoError(t, c.AddItem(ctx, p1))
	require.NoError(t, c.AddItem(ctx, p1))
	require.NoError(t, c.AddItem(ctx, p2))
	return c
}

func validRequest(c *cart.Cart) Request {
	return Request{
		Items:      c.Items(),
		Customer:   Customer{Name: " Marie Curie ", Email: "marie@example.fr", Phone: "0601020304"},
		PickupDate: "2026-10-17",
		PickupSlot: "10:00 - 12:00",
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func waitNotified(t *testing.T, n *MockNotifier) {
	select {
	case <-n.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}
}

func TestSubmit_Success(t *testing.T) {
	store := newMockStore()
	notifier := newMockNotifier(nil)
	c := filledCart(t)

	order, err := newPipeline(store, notifier).Submit(context.Background(), validRequest(c), c)

	require.NoError(t, err)
	assert.Regexp(t, `^ORD-\d{6}$`, order.OrderNumber)
	assert.True(t, decimal.RequireFromString("16.20").Equal(order.Subtotal))
	assert.True(t, order.Total.Equal(order.Subtotal))
	assert.Equal(t, "Marie Curie", order.CustomerName)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, []string{"CreateOrder", "CreateOrderItems"}, store.Calls)
	for _, it := range store.Items {
		assert.Equal(t, order.ID, it.OrderID)
	}
	assert.True(t, c.IsEmpty())

	waitNotified(t, notifier)
	require.Len(t, notifier.Orders(), 1)
	assert.Equal(t, order.OrderNumber, notifier.Orders()[0].OrderNumber)
}

func TestSubmit_MergesRepeatedProducts(t *testing.T) {
	store := newMockStore()
	price := decimal.RequireFromString("6.50")
	req := validRequest(cart.New("c1", nil, nil))
	req.Items = []cart.Item{
		{Product: cart.Product{ID: "p1", Name: "Pain de campagne", Price: price}, Quantity: 1},
		{Product: cart.Product{ID: "p2", Name: "Confiture", Price: decimal.RequireFromString("3.20")}, Quantity: 1},
		{Product: cart.Product{ID: "p1", Name: "Pain de campagne", Price: price}, Quantity: 2},
	}

	order, err := newPipeline(store, newMockNotifier(nil)).Submit(context.Background(), req, nil)

	require.NoError(t, err)
	require.Len(t, store.Items, 2)
	assert.Equal(t, "p1", store.Items[0].ProductID)
	assert.Equal(t, 3, store.Items[0].Quantity)
	assert.Equal(t, "p2", store.Items[1].ProductID)
	assert.Equal(t, 1, store.Items[1].Quantity)
	assert.True(t, decimal.RequireFromString("22.70").Equal(order.Subtotal))
}

func TestSubmit_EmptyCartRejectedBeforeStore(t *testing.T) {
	store := newMockStore()
	c := cart.New("c1", nil, nil)
	req := validRequest(c)

	_, err := newPipeline(store, nil).Submit(context.Background(), req, c)

	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, store.Calls)
}

func TestSubmit_ClosedDayRejected(t *testing.T) {
	for _, date := range []string{"2026-10-18", "2026-10-19"} {
		t.Run(date, func(t *testing.T) {
			store := newMockStore()
			c := filledCart(t)
			req := validRequest(c)
			req.PickupDate = date

			_, err := newPipeline(store, nil).Submit(context.Background(), req, c)

			assert.True(t, apperr.IsValidation(err))
			assert.Empty(t, store.Calls)
			assert.Equal(t, 3, c.TotalItems())
		})
	}
}

func TestValidate(t *testing.T) {
	p := newPipeline(newMockStore(), nil)
	c := filledCart(t)

	cases := []struct {
		name  string
		edit  func(r *Request)
		field string
	}{
		{"blank name", func(r *Request) { r.Customer.Name = "  " }, "customer"},
		{"blank email", func(r *Request) { r.Customer.Email = "" }, "customer"},
		{"email without at", func(r *Request) { r.Customer.Email = "marie.example.fr" }, "customer.email"},
		{"bad date", func(r *Request) { r.PickupDate = "17/10/2026" }, "pickup_date"},
		{"past date", func(r *Request) { r.PickupDate = "2026-10-10" }, "pickup_date"},
		{"unknown slot", func(r *Request) { r.PickupSlot = "12:00 - 14:00" }, "pickup_slot"},
		{"zero quantity", func(r *Request) { r.Items[0].Quantity = 0 }, "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(c)
			tc.edit(&req)

			err := p.Validate(req, fixedNow())

			var v *apperr.ValidationError
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tc.field, v.Field)
		})
	}
}

func TestValidate_OptionalPickup(t *testing.T) {
	p := newPipeline(newMockStore(), nil)
	req := validRequest(filledCart(t))
	req.PickupDate = ""
	req.PickupSlot = ""

	assert.NoError(t, p.Validate(req, fixedNow()))
}

func TestValidate_TodayAllowed(t *testing.T) {
	p := newPipeline(newMockStore(), nil)
	req := validRequest(filledCart(t))
	req.PickupDate = "2026-10-14"

	assert.NoError(t, p.Validate(req, fixedNow()))
}

func TestSubmit_ItemFailureCompensates(t *testing.T) {
	store := newMockStore()
	store.ItemsErr = errors.New("insert failed")
	c := filledCart(t)

	order, err := newPipeline(store, nil).Submit(context.Background(), validRequest(c), c)

	require.Error(t, err)
	assert.Nil(t, order)
	var up *apperr.UpstreamError
	assert.True(t, errors.As(err, &up))
	assert.Equal(t, []string{"CreateOrder", "CreateOrderItems", "DeleteOrder"}, store.Calls)
	assert.Empty(t, store.Orders)
	assert.Len(t, store.Deleted, 1)
	assert.Equal(t, 3, c.TotalItems())
}

func TestSubmit_CompensationFailureLogged(t *testing.T) {
	logs := captureLog(t)
	store := newMockStore()
	store.ItemsErr = errors.New("insert failed")
	store.DeleteErr = errors.New("delete failed")
	c := filledCart(t)

	_, err := newPipeline(store, nil).Submit(context.Background(), validRequest(c), c)

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ItemsErr)
	assert.NotErrorIs(t, err, store.DeleteErr)
	assert.Contains(t, logs.String(), "compensation failed for order")
}

func TestSubmit_HeaderFailure(t *testing.T) {
	store := newMockStore()
	store.CreateErr = errors.New("db down")
	c := filledCart(t)

	_, err := newPipeline(store, nil).Submit(context.Background(), validRequest(c), c)

	assert.Equal(t, 500, apperr.Status(err))
	assert.Equal(t, []string{"CreateOrder"}, store.Calls)
	assert.False(t, c.IsEmpty())
}

func TestSubmit_NotificationFailureIgnored(t *testing.T) {
	captureLog(t)
	store := newMockStore()
	notifier := newMockNotifier(errors.New("smtp down"))
	c := filledCart(t)

	order, err := newPipeline(store, notifier).Submit(context.Background(), validRequest(c), c)

	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
	waitNotified(t, notifier)
}

func TestSubmit_CartClearFailureStillSucceeds(t *testing.T) {
	captureLog(t)
	store := newMockStore()
	clearer := &failingClearer{}

	order, err := newPipeline(store, nil).Submit(context.Background(), validRequest(filledCart(t)), clearer)

	require.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 1, clearer.calls)
}

func TestOrderNumber(t *testing.T) {
	ts := time.UnixMilli(1_760_000_123_456)
	assert.Equal(t, "ORD-123456", OrderNumber(ts))
	assert.Equal(t, "ORD-000042", OrderNumber(time.UnixMilli(5_000_042)))
}
