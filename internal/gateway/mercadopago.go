package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"quotedesk/internal/domain"
)

// MercadoPago talks to the Mercado Pago checkout REST API. All calls carry
// the client timeout; a timed-out status fetch must leave local records
// untouched, which the reconciler guarantees by treating any error here as
// retryable infrastructure failure.
type MercadoPago struct {
	http            *resty.Client
	notificationURL string
}

func NewMercadoPago(baseURL, accessToken, notificationURL string, timeout time.Duration) *MercadoPago {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &MercadoPago{http: c, notificationURL: notificationURL}
}

type preferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func (g *MercadoPago) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	req := preferenceRequest{
		Items: []preferenceItem{{
			Title:     in.Description,
			Quantity:  1,
			UnitPrice: in.Amount,
		}},
		ExternalReference: in.ExternalReference,
		NotificationURL:   g.notificationURL,
	}
	if in.CustomerEmail != "" || in.CustomerName != "" {
		req.Payer = &preferencePayer{Name: in.CustomerName, Email: in.CustomerEmail}
	}

	var out preferenceResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/checkout/preferences")
	if err != nil {
		return CreateOrderResult{}, &domain.GatewayError{Op: "create order", Err: err}
	}
	if resp.IsError() {
		return CreateOrderResult{}, &domain.GatewayError{Op: "create order", StatusCode: resp.StatusCode()}
	}
	if out.ID == "" {
		return CreateOrderResult{}, &domain.GatewayError{Op: "create order", Err: fmt.Errorf("empty preference id")}
	}
	return CreateOrderResult{
		PreferenceID:       out.ID,
		CheckoutURL:        out.InitPoint,
		SandboxCheckoutURL: out.SandboxInitPoint,
	}, nil
}

type paymentResponse struct {
	ID                any    `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (g *MercadoPago) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (StatusReport, error) {
	var out paymentResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/payments/" + gatewayPaymentID)
	if err != nil {
		return StatusReport{}, &domain.GatewayError{Op: "get payment status", Err: err}
	}
	if resp.IsError() {
		return StatusReport{}, &domain.GatewayError{Op: "get payment status", StatusCode: resp.StatusCode()}
	}
	return StatusReport{Status: out.Status, ExternalReference: out.ExternalReference}, nil
}
