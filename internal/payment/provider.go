package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

// SessionRequest is what a provider needs to open a checkout session for an order.
type SessionRequest struct {
	OrderID     int64
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	SuccessURL  string
	ErrorURL    string
	CallbackURL string
}

// Session is the provider's answer: where to send the customer.
type Session struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
}

type Provider interface {
	Method() orders.PaymentMethod
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// postJSON sends body to url with a bearer token and decodes a 2xx JSON answer into out.
// Every failure is an ExternalService error tagged with the provider name.
func postJSON(ctx context.Context, client *http.Client, provider, url, token string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return apperr.ExternalService(provider, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return apperr.ExternalService(provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperr.ExternalService(provider, errors.New("request timed out"))
		}
		return apperr.ExternalService(provider, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.ExternalService(provider, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.ExternalService(provider, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// minorUnits renders an amount without decimals; both providers take XOF as whole francs.
func minorUnits(d decimal.Decimal) string {
	return d.Round(0).String()
}
