package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "wave_whsec"

// memOrders mimics the conditional updates of the postgres repo.
type memOrders struct {
	mu       sync.Mutex
	byID     map[int64]*orders.Order
	failErr  error
	getFails int
}

func newMemOrders(os ...*orders.Order) *memOrders {
	m := &memOrders{byID: map[int64]*orders.Order{}}
	for _, o := range os {
		m.byID[o.ID] = o
	}
	return m
}

func (m *memOrders) Get(_ context.Context, id int64) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getFails > 0 {
		m.getFails--
		return nil, errors.New("connection reset")
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("order not found")
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByNumber(_ context.Context, number string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("order not found")
}

func (m *memOrders) MarkPaid(_ context.Context, id int64, ref string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	o := m.byID[id]
	if o.PaymentStatus != orders.PaymentPending {
		return false, nil
	}
	o.PaymentStatus, o.PaymentReference, o.PaidAt = orders.PaymentPaid, ref, &at
	return true, nil
}

func (m *memOrders) MarkFailed(_ context.Context, id int64, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID[id]
	if o.PaymentStatus != orders.PaymentPending {
		return false, nil
	}
	o.PaymentStatus, o.PaymentReference = orders.PaymentFailed, ref
	return true, nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (r *recorder) Publish(key, value []byte, headers ...kafka.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, kafka.Message{Key: key, Value: value, Headers: headers})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type callbackFixture struct {
	mr     *miniredis.Miniredis
	cb     *Callbacks
	store  *memOrders
	paid   *recorder
	failed *recorder
	now    time.Time
}

func newFixture(t *testing.T) *callbackFixture {
	mr := miniredis.RunT(t)
	f := &callbackFixture{
		mr: mr,
		store: newMemOrders(&orders.Order{
			ID: 7, Number: "CMD-2026-0A1B2C", Total: decimal.NewFromInt(18500),
			PaymentMethod: orders.MethodWave, PaymentStatus: orders.PaymentPending, Status: orders.StatusPending,
		}),
		paid:   &recorder{},
		failed: &recorder{},
		now:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	events := &orders.Events{Paid: f.paid, Failed: f.failed, Service: "storefront-api"}
	f.cb = NewCallbacks(f.store, redisx.New(mr.Addr()), events,
		map[orders.PaymentMethod]string{orders.MethodWave: testSecret}, zap.NewNop())
	f.cb.Now = func() time.Time { return f.now }
	return f
}

func (f *callbackFixture) apply(t *testing.T, payload CallbackPayload) (Outcome, error) {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.cb.Apply(context.Background(), orders.MethodWave, SignatureValue(testSecret, f.now, body), body, "trace-1")
}

func TestCallbackMarksPaidOnce(t *testing.T) {
	f := newFixture(t)
	p := CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_ABC"}

	out, err := f.apply(t, p)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, orders.PaymentPaid, out.Order.PaymentStatus)
	assert.Equal(t, "T_ABC", out.Order.PaymentReference)
	require.NotNil(t, out.Order.PaidAt)
	assert.Equal(t, f.now, *out.Order.PaidAt)
	assert.Equal(t, 1, f.paid.count())

	// Replay: same outcome, no new event, paid_at untouched.
	f.now = f.now.Add(time.Minute)
	out, err = f.apply(t, p)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, orders.PaymentPaid, out.Order.PaymentStatus)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), *out.Order.PaidAt)
	assert.Equal(t, 1, f.paid.count())
}

func TestCallbackNewTransactionOnSettledOrderIsNoop(t *testing.T) {
	f := newFixture(t)
	_, err := f.apply(t, CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_1"})
	require.NoError(t, err)

	out, err := f.apply(t, CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "failed", TransactionID: "T_2"})
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, orders.PaymentPaid, out.Order.PaymentStatus)
	assert.Equal(t, 0, f.failed.count())
}

func TestCallbackFailedStatus(t *testing.T) {
	f := newFixture(t)
	out, err := f.apply(t, CallbackPayload{Reference: "cmd-7", Status: "cancelled"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, orders.PaymentFailed, out.Order.PaymentStatus)
	assert.Equal(t, 1, f.failed.count())
}

func TestCallbackRejects(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"reference":"CMD-2026-0A1B2C","status":"success","transaction_id":"T_1"}`)
	ctx := context.Background()

	tests := []struct {
		name   string
		header string
		body   []byte
		kind   apperr.Kind
	}{
		{"no header", "", body, apperr.KindUnauthorized},
		{"wrong secret", SignatureValue("other", f.now, body), body, apperr.KindUnauthorized},
		{"tampered body", SignatureValue(testSecret, f.now, body), []byte(`{"reference":"CMD-9","status":"success","transaction_id":"T_1"}`), apperr.KindUnauthorized},
		{"stale", SignatureValue(testSecret, f.now.Add(-6*time.Minute), body), body, apperr.KindUnauthorized},
		{"malformed", SignatureValue(testSecret, f.now, []byte(`{`)), []byte(`{`), apperr.KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cb.Apply(ctx, orders.MethodWave, tt.header, tt.body, "")
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}

	_, err := f.apply(t, CallbackPayload{Reference: "ORDER-7", Status: "success", TransactionID: "T"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.apply(t, CallbackPayload{Reference: "CMD-2026-FFFFFF", Status: "success", TransactionID: "T"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.apply(t, CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "processing", TransactionID: "T"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.apply(t, CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	assert.Equal(t, 0, f.paid.count())
}

func TestCallbackMissingSecret(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"reference":"CMD-2026-0A1B2C","status":"success","transaction_id":"T"}`)
	_, err := f.cb.Apply(context.Background(), orders.MethodOrange, SignatureValue(testSecret, f.now, body), body, "")
	assert.True(t, apperr.Is(err, apperr.KindExternalService), "orange secret not configured")

	_, err = f.cb.Apply(context.Background(), orders.MethodCash, "", body, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestCallbackStoreFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	p := CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_RETRY"}

	f.store.failErr = errors.New("connection reset")
	_, err := f.apply(t, p)
	require.Error(t, err)

	f.store.failErr = nil
	out, err := f.apply(t, p)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 1, f.paid.count())
}

func TestCallbackConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	body, _ := json.Marshal(CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_RACE"})
	header := SignatureValue(testSecret, f.now, body)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cb.Apply(context.Background(), orders.MethodWave, header, body, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.paid.count())
}

func (r *recorder) paidPayload(t *testing.T, i int) orders.OrderPaidPayload {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var ev orders.Envelope
	require.NoError(t, json.Unmarshal(r.msgs[i].Value, &ev))
	var p orders.OrderPaidPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	return p
}

func TestCallbackPaidEventSurvivesReadFailure(t *testing.T) {
	f := newFixture(t)
	p := CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_FLAKY"}

	f.store.getFails = 1
	out, err := f.apply(t, p)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, orders.PaymentPaid, out.Order.PaymentStatus)
	require.Equal(t, 1, f.paid.count())
	assert.Equal(t, 1, f.store.getFails, "the event is built without re-reading the order")

	out, err = f.apply(t, p)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, f.paid.count())
	assert.Equal(t, "T_FLAKY", f.paid.paidPayload(t, 0).TransactionID)
}

func TestCallbackRepublishesMissedPaidEvent(t *testing.T) {
	f := newFixture(t)
	// The row was updated but the process died before publishing.
	paidAt := f.now.Add(-time.Minute)
	o := f.store.byID[7]
	o.PaymentStatus, o.PaymentReference, o.PaidAt = orders.PaymentPaid, "T_LOST", &paidAt

	p := CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_LOST"}
	out, err := f.apply(t, p)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	require.Equal(t, 1, f.paid.count())
	got := f.paid.paidPayload(t, 0)
	assert.Equal(t, "T_LOST", got.TransactionID)
	assert.True(t, paidAt.Equal(got.PaidAt))

	_, err = f.apply(t, p)
	require.NoError(t, err)
	assert.Equal(t, 1, f.paid.count())
}

func TestCallbackStaleClaimStillApplies(t *testing.T) {
	f := newFixture(t)
	// Left behind by an attempt that never reached the store.
	require.NoError(t, f.mr.Set(fmt.Sprintf(redisx.KeyDedup, orders.MethodWave, "T_STALE:paid"), "1"))

	out, err := f.apply(t, CallbackPayload{Reference: "CMD-2026-0A1B2C", Status: "success", TransactionID: "T_STALE"})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, orders.PaymentPaid, f.store.byID[7].PaymentStatus)
	assert.Equal(t, 1, f.paid.count())
}
