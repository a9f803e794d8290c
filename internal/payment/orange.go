package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
)

// OrangeClient opens Orange Money web payment sessions.
type OrangeClient struct {
	BaseURL     string
	MerchantKey string
	AccessToken string
	HTTP        *http.Client
}

type orangeWebPayment struct {
	MerchantKey string `json:"merchant_key"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifURL    string `json:"notif_url"`
	Lang        string `json:"lang"`
	Reference   string `json:"reference"`
}

type orangeWebPaymentResponse struct {
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

func (c *OrangeClient) Method() orders.PaymentMethod { return orders.MethodOrange }

// CreateSession sends a fresh merchant order id on every attempt since Orange
// rejects a reused one; the order number travels in reference.
func (c *OrangeClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if c.MerchantKey == "" || c.AccessToken == "" {
		return Session{}, apperr.ExternalService("orange", errors.New("merchant credentials not configured"))
	}
	var out orangeWebPaymentResponse
	err := postJSON(ctx, c.HTTP, "orange", strings.TrimRight(c.BaseURL, "/")+"/orange-money-webpay/dev/v1/webpayment", c.AccessToken,
		orangeWebPayment{
			MerchantKey: c.MerchantKey,
			Currency:    req.Currency,
			OrderID:     req.Reference + "-" + uuid.NewString()[:8],
			Amount:      minorUnits(req.Amount),
			ReturnURL:   req.SuccessURL,
			CancelURL:   req.ErrorURL,
			NotifURL:    req.CallbackURL,
			Lang:        "fr",
			Reference:   req.Reference,
		}, &out)
	if err != nil {
		return Session{}, err
	}
	if out.PaymentURL == "" {
		return Session{}, apperr.ExternalService("orange", errors.New("response has no payment url"))
	}
	return Session{ID: out.PayToken, PaymentURL: out.PaymentURL}, nil
}
