package services_test

import (
	"context"
	"errors"
	"testing"

	"quotedesk/internal/domain"
	"quotedesk/internal/services"
)

func TestReconciler_ApprovedAppliesOnce(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t) // 2x desk-001, stock 12
	p := s.createPayment(t, q.ID)
	s.gw.report("mp-1", "approved", p.ExternalReference)

	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil {
		t.Fatal(err)
	}
	if out != services.OutcomeApplied {
		t.Fatalf("want applied, got %s", out)
	}

	gotP, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotP.Status != domain.PaymentStatusApproved || gotP.GatewayPaymentID != "mp-1" || gotP.PaidAt == "" {
		t.Fatalf("payment not settled: %+v", gotP)
	}
	gotQ, err := s.quoteSvc.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotQ.Status != domain.QuoteStatusPaid {
		t.Fatalf("want paid, got %s", gotQ.Status)
	}
	if got := s.qty(t, "desk-001"); got != 10 {
		t.Fatalf("want stock 10, got %d", got)
	}

	// Same event id: suppressed by the dedupe cache.
	out, err = s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil || out != services.OutcomeReplayed {
		t.Fatalf("want replayed, got %s, %v", out, err)
	}
	// Fresh event id for the same payment: terminal-state check catches it.
	out, err = s.rec.HandleNotification(context.Background(), notification("evt-2", "mp-1"))
	if err != nil || out != services.OutcomeReplayed {
		t.Fatalf("want replayed, got %s, %v", out, err)
	}
	if got := s.qty(t, "desk-001"); got != 10 {
		t.Fatalf("replay decremented stock again: %d", got)
	}
}

func TestReconciler_RejectedKeepsQuotePending(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	p := s.createPayment(t, q.ID)
	s.gw.report("mp-1", "rejected", p.ExternalReference)

	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil || out != services.OutcomeApplied {
		t.Fatalf("want applied, got %s, %v", out, err)
	}

	gotP, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotP.Status != domain.PaymentStatusRejected || gotP.PaidAt != "" {
		t.Fatalf("bad payment state: %+v", gotP)
	}
	gotQ, err := s.quoteSvc.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotQ.Status != domain.QuoteStatusPending || gotQ.PaymentID != "" {
		t.Fatalf("quote must stay pending with the ref cleared: %+v", gotQ)
	}
	if got := s.qty(t, "desk-001"); got != 12 {
		t.Fatalf("rejection must not touch stock: %d", got)
	}

	// The customer can try again.
	if _, err := s.paySvc.CreateForQuote(context.Background(), q.ID); err != nil {
		t.Fatal(err)
	}
}

func TestReconciler_NonTerminalIgnored(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	p := s.createPayment(t, q.ID)
	s.gw.report("mp-1", "in_process", p.ExternalReference)

	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil || out != services.OutcomeIgnored {
		t.Fatalf("want ignored, got %s, %v", out, err)
	}
	gotP, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotP.Status != domain.PaymentStatusPending {
		t.Fatalf("in-flight report must not settle the payment: %+v", gotP)
	}
}

func TestReconciler_Uncorrelated(t *testing.T) {
	s := newStack(t, 0)
	s.gw.report("mp-9", "approved", "ref-from-another-system")

	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-9"))
	if err != nil || out != services.OutcomeUncorrelated {
		t.Fatalf("want uncorrelated, got %s, %v", out, err)
	}
}

func TestReconciler_MalformedAndForeignKinds(t *testing.T) {
	s := newStack(t, 0)

	out, err := s.rec.HandleNotification(context.Background(), domain.Notification{EventID: "evt-1"})
	if err != nil || out != services.OutcomeIgnored {
		t.Fatalf("want ignored for missing payment id, got %s, %v", out, err)
	}

	out, err = s.rec.HandleNotification(context.Background(), domain.Notification{
		EventID: "evt-2", Kind: "merchant_order", GatewayPaymentID: "mp-1",
	})
	if err != nil || out != services.OutcomeIgnored {
		t.Fatalf("want ignored for foreign kind, got %s, %v", out, err)
	}
}

func TestReconciler_GatewayDownIsRetryable(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	p := s.createPayment(t, q.ID)

	s.gw.statusErr = &domain.GatewayError{Op: "get payment status", StatusCode: 503}
	_, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("want GatewayError, got %v", err)
	}

	// The failed delivery released its dedupe mark, so the gateway's retry of
	// the same event id is processed, not swallowed as a replay.
	s.gw.statusErr = nil
	s.gw.report("mp-1", "approved", p.ExternalReference)
	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil || out != services.OutcomeApplied {
		t.Fatalf("want applied on retry, got %s, %v", out, err)
	}
}

func TestReconciler_StockVanishedEscalates(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t) // 2x desk-001
	p := s.createPayment(t, q.ID)

	// Stock disappears between quote creation and payment confirmation.
	set, _ := domain.SetTo("desk-001", 1)
	if _, err := s.stockSvc.Adjust([]domain.StockAdjustment{set}); err != nil {
		t.Fatal(err)
	}

	s.gw.report("mp-1", "approved", p.ExternalReference)
	out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1"))
	if err != nil {
		t.Fatal(err)
	}
	if out != services.OutcomeEscalated {
		t.Fatalf("want escalated, got %s", out)
	}

	// The customer paid: payment and quote advance, stock is never clamped.
	gotP, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotP.Status != domain.PaymentStatusApproved {
		t.Fatalf("payment must stay approved: %+v", gotP)
	}
	gotQ, err := s.quoteSvc.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotQ.Status != domain.QuoteStatusPaid {
		t.Fatalf("quote must read paid: %+v", gotQ)
	}
	if got := s.qty(t, "desk-001"); got != 1 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestReconciler_DivergentTerminalIsAnomaly(t *testing.T) {
	s := newStack(t, 0)
	q := s.createQuote(t)
	p := s.createPayment(t, q.ID)

	s.gw.report("mp-1", "approved", p.ExternalReference)
	if out, err := s.rec.HandleNotification(context.Background(), notification("evt-1", "mp-1")); err != nil || out != services.OutcomeApplied {
		t.Fatalf("setup: %s, %v", out, err)
	}

	// The gateway now claims a different terminal state. Local state stays,
	// the contradiction is surfaced, the event is acknowledged.
	s.gw.report("mp-1", "rejected", p.ExternalReference)
	out, err := s.rec.HandleNotification(context.Background(), notification("evt-2", "mp-1"))
	if err != nil || out != services.OutcomeAnomaly {
		t.Fatalf("want anomaly, got %s, %v", out, err)
	}
	gotP, err := s.paySvc.Get(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotP.Status != domain.PaymentStatusApproved {
		t.Fatalf("local terminal state must win: %+v", gotP)
	}
}
