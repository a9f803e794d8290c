package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStore enforces number uniqueness the way the orders_order_number_key constraint does.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	byNum   map[string]*Order
	inserts int
	failErr error
}

func newMemStore() *memStore { return &memStore{byNum: map[string]*Order{}} }

func (s *memStore) Insert(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.byNum[o.Number]; ok {
		return ErrDuplicateNumber
	}
	s.nextID++
	o.ID = s.nextID
	cp := *o
	s.byNum[o.Number] = &cp
	return nil
}

func testCart(t *testing.T) Cart {
	t.Helper()
	cart, err := NormalizeCart(rawItems(t, `[
		{"id": 1, "name": "Sac en raphia", "quantity": 1, "price": 12000, "total": 12000},
		{"id": 2, "name": "Bracelet", "quantity": 3, "price": 1500, "total": 4500}
	]`))
	require.NoError(t, err)
	return cart
}

func validInput(method string) CheckoutInput {
	return CheckoutInput{
		Customer: Customer{
			Name: " Awa Koné ", Email: "awa@example.com", Phone: "0707070707",
			Address: "Rue des Jardins", City: "Abidjan",
		},
		PaymentMethod: method,
	}
}

func TestBuildComputesTotals(t *testing.T) {
	store := newMemStore()
	b := NewBuilder(store, decimal.NewFromInt(2000))
	uid := int64(9)

	o, err := b.Build(context.Background(), &uid, testCart(t), validInput("cash"))
	require.NoError(t, err)

	assert.Equal(t, "16500", o.Subtotal.String())
	assert.Equal(t, "2000", o.ShippingCost.String())
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.ShippingCost)))
	assert.Equal(t, "18500", o.Total.String())
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, MethodCash, o.PaymentMethod)
	assert.Equal(t, "Awa Koné", o.Customer.Name)
	assert.Equal(t, DefaultCountry, o.Customer.Country)
	assert.Equal(t, &uid, o.UserID)
	assert.NotZero(t, o.ID)
	assert.Regexp(t, `^CMD-\d{4}-[0-9A-F]{6}$`, o.Number)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutInput)
		msg    string
	}{
		{"missing name", func(in *CheckoutInput) { in.Customer.Name = "  " }, "name"},
		{"missing address and city", func(in *CheckoutInput) { in.Customer.Address = ""; in.Customer.City = "" }, "address, city"},
		{"bad email", func(in *CheckoutInput) { in.Customer.Email = "not-an-email" }, "invalid email"},
		{"no method", func(in *CheckoutInput) { in.PaymentMethod = "" }, "payment method is required"},
		{"unknown method", func(in *CheckoutInput) { in.PaymentMethod = "bitcoin" }, "unknown payment method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			in := validInput("wave")
			tt.mutate(&in)

			_, err := NewBuilder(store, decimal.NewFromInt(2000)).Build(context.Background(), nil, testCart(t), in)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.msg)
			assert.Zero(t, store.inserts)
		})
	}
}

func TestBuildRejectsEmptyCart(t *testing.T) {
	store := newMemStore()
	_, err := NewBuilder(store, decimal.NewFromInt(2000)).Build(context.Background(), nil, Cart{}, validInput("cash"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, store.inserts)
}

func TestBuildRegeneratesNumberOnCollision(t *testing.T) {
	store := newMemStore()
	store.byNum["CMD-2026-AAAAAA"] = &Order{}

	numbers := []string{"CMD-2026-AAAAAA", "CMD-2026-AAAAAA", "CMD-2026-BBBBBB"}
	b := NewBuilder(store, decimal.NewFromInt(2000))
	b.NewNumber = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	o, err := b.Build(context.Background(), nil, testCart(t), validInput("orange"))
	require.NoError(t, err)
	assert.Equal(t, "CMD-2026-BBBBBB", o.Number)
	assert.Equal(t, 3, store.inserts)
}

func TestBuildGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	store.byNum["CMD-2026-AAAAAA"] = &Order{}
	b := NewBuilder(store, decimal.NewFromInt(2000))
	b.MaxAttempts = 3
	b.NewNumber = func(time.Time) string { return "CMD-2026-AAAAAA" }

	_, err := b.Build(context.Background(), nil, testCart(t), validInput("cash"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNumber))
	assert.Equal(t, 3, store.inserts)
}

func TestBuildPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.failErr = errors.New("connection reset")
	_, err := NewBuilder(store, decimal.NewFromInt(2000)).Build(context.Background(), nil, testCart(t), validInput("cash"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, store.inserts)
}

func TestBuildNumbersUniqueUnderConcurrency(t *testing.T) {
	const n = 10_000
	store := newMemStore()
	b := NewBuilder(store, decimal.NewFromInt(2000))
	cart := testCart(t)

	var g errgroup.Group
	g.SetLimit(64)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := b.Build(context.Background(), nil, cart, validInput("cash"))
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, store.byNum, n)
}
