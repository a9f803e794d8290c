package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"go.uber.org/zap"
)

// Result tells the client where to go next. PaymentURL is set only for online methods.
type Result struct {
	Method      orders.PaymentMethod `json:"method"`
	RedirectURL string               `json:"redirect_url"`
	PaymentURL  string               `json:"payment_url,omitempty"`
	Reference   string               `json:"reference,omitempty"`
}

type Dispatcher struct {
	providers map[orders.PaymentMethod]Provider
	siteURL   string
	currency  string
	log       *zap.Logger
}

func NewDispatcher(siteURL, currency string, log *zap.Logger, providers ...Provider) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[orders.PaymentMethod]Provider, len(providers)),
		siteURL:   strings.TrimRight(siteURL, "/"),
		currency:  currency,
		log:       log,
	}
	for _, p := range providers {
		d.providers[p.Method()] = p
	}
	return d
}

func SuccessPath(orderID int64) string { return fmt.Sprintf("/order/success/%d", orderID) }

// Dispatch starts payment for an order still awaiting it. Cash needs no outbound
// call; online methods open a provider session and return its URL.
func (d *Dispatcher) Dispatch(ctx context.Context, o *orders.Order, method orders.PaymentMethod) (Result, error) {
	if o.PaymentStatus != orders.PaymentPending {
		return Result{}, apperr.Conflict(fmt.Sprintf("order %s is already %s", o.Number, o.PaymentStatus))
	}
	if method != o.PaymentMethod {
		return Result{}, apperr.InvalidArgument(fmt.Sprintf("order %s was placed for %s payment", o.Number, o.PaymentMethod))
	}

	res := Result{Method: method, RedirectURL: SuccessPath(o.ID), Reference: o.Number}
	if method == orders.MethodCash {
		return res, nil
	}

	p, ok := d.providers[method]
	if !ok {
		return Result{}, apperr.InvalidArgument("unsupported payment method: " + string(method))
	}
	sess, err := p.CreateSession(ctx, SessionRequest{
		OrderID:     o.ID,
		Reference:   o.Number,
		Amount:      o.Total,
		Currency:    d.currency,
		SuccessURL:  d.siteURL + SuccessPath(o.ID),
		ErrorURL:    d.siteURL + "/checkout?error=payment&order=" + o.Number,
		CallbackURL: d.siteURL + "/payment/" + string(method) + "/callback",
	})
	if err != nil {
		d.log.Error("payment session",
			zap.String("method", string(method)),
			zap.String("order_number", o.Number),
			zap.Error(err))
		return Result{}, err
	}
	d.log.Info("payment session opened",
		zap.String("method", string(method)),
		zap.String("order_number", o.Number),
		zap.String("session_id", sess.ID))

	res.PaymentURL = sess.PaymentURL
	return res, nil
}
