package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SignatureHeader     = "X-Signature"
	DefaultSigTolerance = 5 * time.Minute
)

// CallbackPayload is the provider notification body.
type CallbackPayload struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// OrderStore is the slice of the order repository the callback needs.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
	GetByNumber(ctx context.Context, number string) (*orders.Order, error)
	MarkPaid(ctx context.Context, id int64, reference string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reference string) (bool, error)
}

// Outcome reports the order after a callback. Applied is false for replays and
// for notifications that arrive after the order left pending.
type Outcome struct {
	Order   *orders.Order
	Applied bool
}

// Callbacks applies signed provider notifications. Each online method has its
// own signing secret.
type Callbacks struct {
	Store     OrderStore
	Redis     *redis.Client
	Events    *orders.Events
	Secrets   map[orders.PaymentMethod]string
	Tolerance time.Duration
	Now       func() time.Time
	Log       *zap.Logger
}

func NewCallbacks(store OrderStore, rdb *redis.Client, events *orders.Events, secrets map[orders.PaymentMethod]string, log *zap.Logger) *Callbacks {
	return &Callbacks{
		Store:     store,
		Redis:     rdb,
		Events:    events,
		Secrets:   secrets,
		Tolerance: DefaultSigTolerance,
		Now:       time.Now,
		Log:       log,
	}
}

// Apply authenticates and applies one provider notification. Delivering the same
// notification again returns the current order without changing it.
func (c *Callbacks) Apply(ctx context.Context, method orders.PaymentMethod, sigHeader string, body []byte, trace string) (Outcome, error) {
	if !method.Online() {
		return Outcome{}, apperr.InvalidArgument("no callbacks for payment method: " + string(method))
	}
	if err := c.verify(c.Secrets[method], sigHeader, body); err != nil {
		return Outcome{}, err
	}

	var p CallbackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Outcome{}, apperr.InvalidArgument("malformed callback body")
	}
	target, err := paymentTarget(p.Status)
	if err != nil {
		return Outcome{}, err
	}
	if target == orders.PaymentPaid && strings.TrimSpace(p.TransactionID) == "" {
		return Outcome{}, apperr.InvalidArgument("transaction_id is required")
	}

	o, err := c.resolve(ctx, p.Reference)
	if err != nil {
		return Outcome{}, err
	}
	if !orders.CanTransitionPayment(o.PaymentStatus, target) {
		return c.settled(ctx, o, trace), nil
	}

	txID := strings.TrimSpace(p.TransactionID)
	dedupID := fmt.Sprintf("%s:%s", txID, target)
	if txID == "" {
		dedupID = fmt.Sprintf("order-%d:%s", o.ID, target)
	}
	key := fmt.Sprintf(redisx.KeyDedup, method, dedupID)
	claimed, cerr := redisx.Claim(ctx, c.Redis, key, redisx.TTLDedup)
	if cerr != nil {
		// The conditional update below still guards state.
		c.Log.Warn("callback dedup unavailable", zap.String("key", key), zap.Error(cerr))
		claimed = true
	}
	if !claimed {
		cur, err := c.Store.Get(ctx, o.ID)
		if err != nil {
			return Outcome{}, err
		}
		if !orders.CanTransitionPayment(cur.PaymentStatus, target) {
			c.Log.Info("callback replay ignored", zap.String("order_number", o.Number), zap.String("transaction_id", txID))
			return c.settled(ctx, cur, trace), nil
		}
		// Held by a delivery still in flight or one that died before the store; the
		// conditional update decides.
		c.Log.Warn("stale callback claim, applying", zap.String("key", key))
		o = cur
	}

	now := c.Now().UTC()
	var applied bool
	switch target {
	case orders.PaymentPaid:
		applied, err = c.Store.MarkPaid(ctx, o.ID, txID, now)
	default:
		applied, err = c.Store.MarkFailed(ctx, o.ID, txID)
	}
	if err != nil {
		if cerr == nil {
			_ = redisx.Release(ctx, c.Redis, key)
		}
		return Outcome{}, fmt.Errorf("apply %s callback: %w", target, err)
	}
	if !applied {
		cur, err := c.Store.Get(ctx, o.ID)
		if err != nil {
			return Outcome{}, err
		}
		return c.settled(ctx, cur, trace), nil
	}

	updated := *o
	updated.PaymentStatus = target
	updated.PaymentReference = txID
	if target == orders.PaymentPaid {
		updated.PaidAt = &now
		c.publishPaid(ctx, &updated, trace, true)
	} else {
		c.Events.PaymentFailed(trace, &updated, txID, "provider reported "+strings.ToLower(p.Status))
	}
	c.Log.Info("payment status updated",
		zap.String("order_number", updated.Number),
		zap.String("payment_status", string(updated.PaymentStatus)),
		zap.String("transaction_id", txID))
	return Outcome{Order: &updated, Applied: true}, nil
}

// settled answers a callback for an order that already left pending. A paid
// order whose event was never published gets it now.
func (c *Callbacks) settled(ctx context.Context, o *orders.Order, trace string) Outcome {
	c.Log.Info("callback for settled order",
		zap.String("order_number", o.Number),
		zap.String("payment_status", string(o.PaymentStatus)))
	if o.PaymentStatus == orders.PaymentPaid {
		c.publishPaid(ctx, o, trace, false)
	}
	return Outcome{Order: o}
}

// publishPaid emits OrderPaid at most once per order. The marker is taken before
// publishing; when redis is down only the caller that changed the row publishes.
func (c *Callbacks) publishPaid(ctx context.Context, o *orders.Order, trace string, applied bool) {
	key := fmt.Sprintf(redisx.KeyPaidEvent, o.ID)
	first, err := redisx.Claim(ctx, c.Redis, key, redisx.TTLDedup)
	if err != nil {
		c.Log.Warn("paid event marker unavailable", zap.String("key", key), zap.Error(err))
		first = applied
	}
	if !first {
		return
	}
	at := c.Now().UTC()
	if o.PaidAt != nil {
		at = *o.PaidAt
	}
	if !applied {
		c.Log.Warn("republishing missed paid event", zap.String("order_number", o.Number))
	}
	c.Events.OrderPaid(trace, o, o.PaymentReference, at)
}

func (c *Callbacks) resolve(ctx context.Context, reference string) (*orders.Order, error) {
	ref, ok := orders.ParseReference(reference)
	if !ok {
		return nil, apperr.InvalidArgument("unrecognised order reference")
	}
	if ref.Number != "" {
		return c.Store.GetByNumber(ctx, ref.Number)
	}
	return c.Store.Get(ctx, ref.ID)
}

func paymentTarget(status string) (orders.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "succeeded", "complete", "completed":
		return orders.PaymentPaid, nil
	case "failed", "error", "cancelled", "expired":
		return orders.PaymentFailed, nil
	}
	return "", apperr.InvalidArgument("unsupported callback status: " + status)
}

// verify checks a "t=<unix>,v1=<hex>" header: HMAC-SHA256 of "<t>.<body>".
func (c *Callbacks) verify(secret, header string, body []byte) error {
	if secret == "" {
		return apperr.ExternalService("callback", errors.New("webhook secret not configured"))
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return apperr.Unauthorized("missing callback signature")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return apperr.Unauthorized("invalid callback signature")
	}
	if d := c.Now().Sub(time.Unix(unix, 0)); d > c.Tolerance || d < -c.Tolerance {
		return apperr.Unauthorized("callback signature expired")
	}

	want := Sign(secret, ts, body)
	for _, s := range sigs {
		if hmac.Equal([]byte(s), []byte(want)) {
			return nil
		}
	}
	return apperr.Unauthorized("invalid callback signature")
}

// Sign returns the hex signature a provider sends for body at timestamp ts.
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValue builds the header value for body signed at t.
func SignatureValue(secret string, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + Sign(secret, ts, body)
}
