package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quotedesk/internal/domain"
)

func TestPaymentService_CreateForQuote(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)

	res, err := s.paySvc.CreateForQuote(context.Background(), q.ID)
	if err != nil {
		t.Fatal(err)
	}
	p := res.Payment
	if p.Status != domain.PaymentStatusPending {
		t.Fatalf("want pending, got %s", p.Status)
	}
	if p.Amount != q.Total {
		t.Fatalf("amount must pin the quote total: want %v, got %v", q.Total, p.Amount)
	}
	if p.ExternalReference == "" || p.GatewayPreferenceID == "" {
		t.Fatalf("missing gateway linkage: %+v", p)
	}
	if res.CheckoutURL == "" {
		t.Fatal("missing checkout url")
	}
	if res.ExpiresAt != q.ExpiresAt {
		t.Fatalf("want quote expiry %s, got %s", q.ExpiresAt, res.ExpiresAt)
	}

	// The quote carries the back-reference.
	got, err := s.quoteSvc.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentID != p.ID {
		t.Fatalf("quote not linked: %+v", got)
	}

	// One live payment per quote.
	_, err = s.paySvc.CreateForQuote(context.Background(), q.ID)
	if !errors.Is(err, domain.ErrPaymentAlreadyExists) {
		t.Fatalf("want ErrPaymentAlreadyExists, got %v", err)
	}
}

func TestPaymentService_GatewayFailureLeavesNoState(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)

	s.gw.orderErr = &domain.GatewayError{Op: "create order", StatusCode: 503}
	_, err := s.paySvc.CreateForQuote(context.Background(), q.ID)
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("want GatewayError, got %v", err)
	}

	if _, err := s.payments.LiveByQuoteID(s.db, q.ID); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("gateway failure must leave no payment behind, got %v", err)
	}

	// Once the gateway recovers the same quote can check out.
	s.gw.orderErr = nil
	if _, err := s.paySvc.CreateForQuote(context.Background(), q.ID); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentService_CreateRequiresLiveQuote(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	if err := s.quoteSvc.Cancel(q.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.paySvc.CreateForQuote(context.Background(), q.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}

	// An expired-but-unswept quote is refused as well.
	s2 := newStack(t, time.Nanosecond)
	q2 := s2.createQuote(t)
	if _, err := s2.paySvc.CreateForQuote(context.Background(), q2.ID); !errors.Is(err, domain.ErrQuoteExpired) {
		t.Fatalf("want ErrQuoteExpired, got %v", err)
	}
}

func TestPaymentService_CancelAllowsRetry(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	p := s.createPayment(t, q.ID)

	if err := s.paySvc.Cancel(p.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.PaymentStatusCancelled {
		t.Fatalf("want cancelled, got %s", got.Status)
	}

	// The quote's reference is cleared and a new attempt goes through.
	gotQ, err := s.quoteSvc.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotQ.PaymentID != "" {
		t.Fatalf("payment ref not cleared: %+v", gotQ)
	}
	if _, err := s.paySvc.CreateForQuote(context.Background(), q.ID); err != nil {
		t.Fatal(err)
	}

	// Cancelling twice is refused.
	if err := s.paySvc.Cancel(p.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}
