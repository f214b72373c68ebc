package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductInactive      = errors.New("product inactive")
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrQuoteExpired         = errors.New("quote expired")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPaymentAlreadyExists = errors.New("payment already exists for quote")
	ErrDuplicateLine        = errors.New("duplicate product line")
)

// StockShortfall is one failing item of a batch stock check.
type StockShortfall struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError bundles every shortfall of a batch operation.
// A batch either applies completely or reports all of its failures at once.
type InsufficientStockError struct {
	Items []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s (need %d, have %d)", it.ProductID, it.Requested, it.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// GatewayError marks a payment-gateway transport or non-2xx failure.
// It is retryable and never implies a local state change.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ReconciliationAnomaly records a gateway report that contradicts a payment
// already in a terminal state. Local state stays authoritative; the event is
// acknowledged so the gateway stops redelivering it.
type ReconciliationAnomaly struct {
	PaymentID     string
	LocalStatus   PaymentStatus
	GatewayStatus PaymentStatus
}

func (e *ReconciliationAnomaly) Error() string {
	return fmt.Sprintf("payment %s is %s locally but gateway reports %s", e.PaymentID, e.LocalStatus, e.GatewayStatus)
}

// StockInconsistencyError is the hard-escalation case: the customer paid but
// stock could not be decremented. The payment and quote transitions are kept;
// the shortfall must reach an operator.
type StockInconsistencyError struct {
	PaymentID string
	QuoteID   string
	Cause     *InsufficientStockError
}

func (e *StockInconsistencyError) Error() string {
	return fmt.Sprintf("payment %s approved but stock not decremented for quote %s: %v", e.PaymentID, e.QuoteID, e.Cause)
}

func (e *StockInconsistencyError) Unwrap() error { return e.Cause }
