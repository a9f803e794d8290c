package orders

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/shopspring/decimal"
)

const DefaultCountry = "Côte d'Ivoire"

// ErrDuplicateNumber is returned by a Store when the order number is already taken.
var ErrDuplicateNumber = errors.New("order number already exists")

type Store interface {
	// Insert persists o and fills ID and CreatedAt.
	Insert(ctx context.Context, o *Order) error
}

// CheckoutInput carries the customer and shipping fields of a checkout request.
type CheckoutInput struct {
	Customer      Customer
	Notes         string
	PaymentMethod string
}

type Builder struct {
	Store        Store
	ShippingCost decimal.Decimal
	NewNumber    func(time.Time) string
	Now          func() time.Time
	MaxAttempts  int
}

func NewBuilder(store Store, shipping decimal.Decimal) *Builder {
	return &Builder{
		Store:        store,
		ShippingCost: shipping,
		NewNumber:    NewNumber,
		Now:          time.Now,
		MaxAttempts:  5,
	}
}

// Build validates the checkout fields, prices the cart and persists a pending order.
func (b *Builder) Build(ctx context.Context, userID *int64, cart Cart, in CheckoutInput) (*Order, error) {
	if len(cart.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	method, err := validate(&in)
	if err != nil {
		return nil, err
	}

	now := b.Now().UTC()
	o := &Order{
		UserID:        userID,
		Items:         cart.Items,
		Subtotal:      cart.Subtotal,
		ShippingCost:  b.ShippingCost,
		Total:         cart.Subtotal.Add(b.ShippingCost),
		Customer:      in.Customer,
		Notes:         strings.TrimSpace(in.Notes),
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		Status:        StatusPending,
		CreatedAt:     now,
	}

	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		o.Number = b.NewNumber(now)
		err = b.Store.Insert(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, fmt.Errorf("insert order: %w", err)
		}
	}
	return nil, fmt.Errorf("allocate order number after %d attempts: %w", attempts, err)
}

func validate(in *CheckoutInput) (PaymentMethod, error) {
	c := &in.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.Country = strings.TrimSpace(c.Country)
	c.Zipcode = strings.TrimSpace(c.Zipcode)
	if c.Country == "" {
		c.Country = DefaultCountry
	}

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"name", c.Name}, {"email", c.Email}, {"address", c.Address}, {"city", c.City},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return "", apperr.Validation("invalid email address")
	}

	if strings.TrimSpace(in.PaymentMethod) == "" {
		return "", apperr.Validation("payment method is required")
	}
	method, ok := ParsePaymentMethod(strings.ToLower(strings.TrimSpace(in.PaymentMethod)))
	if !ok {
		return "", apperr.Validation("unknown payment method: " + in.PaymentMethod)
	}
	return method, nil
}
