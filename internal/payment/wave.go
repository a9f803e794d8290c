package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/orders"
)

// WaveClient opens Wave checkout sessions.
type WaveClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type waveSessionRequest struct {
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ClientReference string `json:"client_reference"`
	SuccessURL      string `json:"success_url"`
	ErrorURL        string `json:"error_url"`
}

type waveSessionResponse struct {
	ID            string `json:"id"`
	WaveLaunchURL string `json:"wave_launch_url"`
}

func (c *WaveClient) Method() orders.PaymentMethod { return orders.MethodWave }

func (c *WaveClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if c.APIKey == "" {
		return Session{}, apperr.ExternalService("wave", errors.New("api key not configured"))
	}
	var out waveSessionResponse
	err := postJSON(ctx, c.HTTP, "wave", strings.TrimRight(c.BaseURL, "/")+"/v1/checkout/sessions", c.APIKey,
		waveSessionRequest{
			Amount:          minorUnits(req.Amount),
			Currency:        req.Currency,
			ClientReference: req.Reference,
			SuccessURL:      req.SuccessURL,
			ErrorURL:        req.ErrorURL,
		}, &out)
	if err != nil {
		return Session{}, err
	}
	if out.WaveLaunchURL == "" {
		return Session{}, apperr.ExternalService("wave", errors.New("response has no launch url"))
	}
	return Session{ID: out.ID, PaymentURL: out.WaveLaunchURL}, nil
}
