package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	method orders.PaymentMethod
	calls  []SessionRequest
	err    error
}

func (p *stubProvider) Method() orders.PaymentMethod { return p.method }

func (p *stubProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return Session{}, p.err
	}
	return Session{ID: "s1", PaymentURL: "https://pay.example/" + req.Reference}, nil
}

func pendingOrder(method orders.PaymentMethod) *orders.Order {
	return &orders.Order{
		ID:            42,
		Number:        "CMD-2026-0A1B2C",
		Total:         decimal.NewFromInt(18500),
		PaymentMethod: method,
		PaymentStatus: orders.PaymentPending,
		Status:        orders.StatusPending,
	}
}

func TestDispatchCashMakesNoCall(t *testing.T) {
	wave := &stubProvider{method: orders.MethodWave}
	d := NewDispatcher("https://shop.example", "XOF", zap.NewNop(), wave)

	res, err := d.Dispatch(context.Background(), pendingOrder(orders.MethodCash), orders.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, "/order/success/42", res.RedirectURL)
	assert.Empty(t, res.PaymentURL)
	assert.Empty(t, wave.calls)
}

func TestDispatchOnline(t *testing.T) {
	wave := &stubProvider{method: orders.MethodWave}
	d := NewDispatcher("https://shop.example/", "XOF", zap.NewNop(), wave)

	res, err := d.Dispatch(context.Background(), pendingOrder(orders.MethodWave), orders.MethodWave)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/CMD-2026-0A1B2C", res.PaymentURL)
	assert.Equal(t, "/order/success/42", res.RedirectURL)
	assert.Equal(t, "CMD-2026-0A1B2C", res.Reference)

	require.Len(t, wave.calls, 1)
	req := wave.calls[0]
	assert.Equal(t, "https://shop.example/order/success/42", req.SuccessURL)
	assert.Equal(t, "https://shop.example/payment/wave/callback", req.CallbackURL)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(18500)))
	assert.Equal(t, "XOF", req.Currency)
}

func TestDispatchErrors(t *testing.T) {
	failing := &stubProvider{method: orders.MethodWave, err: apperr.ExternalService("wave", errors.New("status 502"))}
	d := NewDispatcher("https://shop.example", "XOF", zap.NewNop(), failing)

	_, err := d.Dispatch(context.Background(), pendingOrder(orders.MethodWave), orders.MethodWave)
	assert.True(t, apperr.Is(err, apperr.KindExternalService))

	_, err = d.Dispatch(context.Background(), pendingOrder(orders.MethodOrange), orders.MethodOrange)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), "no orange provider wired")

	_, err = d.Dispatch(context.Background(), pendingOrder(orders.MethodCash), orders.MethodWave)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	paid := pendingOrder(orders.MethodWave)
	paid.PaymentStatus = orders.PaymentPaid
	_, err = d.Dispatch(context.Background(), paid, orders.MethodWave)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
