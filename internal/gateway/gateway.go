// Package gateway is the narrow boundary to the external payment provider.
// The rest of the system only sees the Adapter interface; the reconciler
// treats the provider's answer to GetPaymentStatus as the source of truth,
// never the webhook body.
package gateway

import (
	"context"

	"quotedesk/internal/domain"
)

type CreateOrderInput struct {
	QuoteID           string
	Amount            float64
	Description       string
	ExternalReference string
	CustomerEmail     string
	CustomerName      string
}

type CreateOrderResult struct {
	PreferenceID       string
	CheckoutURL        string
	SandboxCheckoutURL string
}

// StatusReport is the authoritative payment state fetched from the provider.
type StatusReport struct {
	Status            string
	ExternalReference string
}

// Normalized maps the provider's status vocabulary onto the local payment
// statuses. Anything not terminal maps to pending.
func (s StatusReport) Normalized() domain.PaymentStatus {
	switch s.Status {
	case "approved":
		return domain.PaymentStatusApproved
	case "rejected":
		return domain.PaymentStatusRejected
	case "cancelled":
		return domain.PaymentStatusCancelled
	default:
		return domain.PaymentStatusPending
	}
}

type Adapter interface {
	// CreateOrder registers a checkout preference for a quote and returns
	// where to send the customer.
	CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error)

	// GetPaymentStatus fetches the current state of a gateway payment.
	GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (StatusReport, error)
}
