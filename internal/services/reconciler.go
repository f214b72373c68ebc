package services

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/dedupe"
	"quotedesk/internal/domain"
	"quotedesk/internal/gateway"
	applog "quotedesk/internal/log"
	"quotedesk/internal/repos"
)

// ReconcileOutcome says what a notification did. Only an empty outcome with
// a non-nil error means "not processed, have the gateway retry".
type ReconcileOutcome string

const (
	OutcomeApplied      ReconcileOutcome = "applied"
	OutcomeReplayed     ReconcileOutcome = "replayed"
	OutcomeIgnored      ReconcileOutcome = "ignored"
	OutcomeUncorrelated ReconcileOutcome = "uncorrelated"
	OutcomeAnomaly      ReconcileOutcome = "anomaly"
	OutcomeEscalated    ReconcileOutcome = "escalated"
)

var errAlreadyApplied = errors.New("transition already applied")

// ReconcilerService turns gateway notifications into local state transitions.
// The notification body is only a hint: the authoritative status is always
// re-fetched from the gateway, and the payment+quote+stock transition is one
// transaction so duplicate or reordered deliveries cannot double-apply.
type ReconcilerService struct {
	db       *sqlx.DB
	Payments *repos.PaymentRepo
	QuoteSvc *QuoteService
	Ledger   *StockService
	Gateway  gateway.Adapter
	Dedupe   dedupe.Cache
}

func NewReconcilerService(db *sqlx.DB, payments *repos.PaymentRepo, quoteSvc *QuoteService, ledger *StockService, gw gateway.Adapter, dd dedupe.Cache) *ReconcilerService {
	return &ReconcilerService{db: db, Payments: payments, QuoteSvc: quoteSvc, Ledger: ledger, Gateway: gw, Dedupe: dd}
}

func (s *ReconcilerService) HandleNotification(ctx context.Context, n domain.Notification) (ReconcileOutcome, error) {
	if n.GatewayPaymentID == "" {
		applog.Info(nil, "webhook.malformed", map[string]any{"event_id": n.EventID, "kind": n.Kind})
		return OutcomeIgnored, nil
	}
	if n.Kind != "" && n.Kind != "payment" {
		return OutcomeIgnored, nil
	}

	// Fast-path replay suppression. A cache outage degrades to processing:
	// the terminal-state checks below still guarantee idempotency.
	if s.Dedupe != nil && n.EventID != "" {
		fresh, err := s.Dedupe.MarkProcessed(ctx, n.EventID)
		if err != nil {
			applog.Error(nil, "webhook.dedupe.unavailable", err, map[string]any{"event_id": n.EventID})
		} else if !fresh {
			return OutcomeReplayed, nil
		}
	}

	report, err := s.Gateway.GetPaymentStatus(ctx, n.GatewayPaymentID)
	if err != nil {
		// Includes timeouts. Nothing was mutated; undo the dedupe mark so
		// the gateway's retry is processed.
		s.release(ctx, n.EventID)
		return "", err
	}

	target := report.Normalized()
	if !target.Terminal() {
		// Still in flight at the gateway; a later event will settle it.
		return OutcomeIgnored, nil
	}

	pay, err := s.Payments.GetByExternalReference(s.db, report.ExternalReference)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		// Possibly an order this system never created, or the notification
		// outran local persistence. Not fatal; the counter distinguishes a
		// correlation bug from legitimately foreign traffic.
		applog.Info(nil, "webhook.uncorrelated", map[string]any{
			"event_id":           n.EventID,
			"gateway_payment_id": n.GatewayPaymentID,
			"external_reference": report.ExternalReference,
		})
		return OutcomeUncorrelated, nil
	}
	if err != nil {
		s.release(ctx, n.EventID)
		return "", err
	}

	if pay.Status.Terminal() {
		if pay.Status == target {
			// Replay of an already-applied event.
			return OutcomeReplayed, nil
		}
		anom := &domain.ReconciliationAnomaly{PaymentID: pay.ID, LocalStatus: pay.Status, GatewayStatus: target}
		applog.Security(nil, "webhook.anomaly", map[string]any{
			"payment_id": pay.ID,
			"detail":     anom.Error(),
		})
		return OutcomeAnomaly, nil
	}

	switch target {
	case domain.PaymentStatusApproved:
		return s.applyApproved(ctx, pay, n)
	default:
		return s.applySettled(ctx, pay, target, n)
	}
}

// applyApproved moves payment -> approved, quote -> paid and decrements all
// quote lines in one transaction. If stock vanished between quote creation
// and payment confirmation, the payment and quote transitions are kept (the
// customer paid) and the mismatch is escalated; stock is never clamped below
// zero.
func (s *ReconcilerService) applyApproved(ctx context.Context, pay domain.Payment, n domain.Notification) (ReconcileOutcome, error) {
	lines, err := s.QuoteSvc.Quotes.Lines(s.db, pay.QuoteID)
	if err != nil {
		s.release(ctx, n.EventID)
		return "", err
	}
	items := make([]domain.StockItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.StockItem{ProductID: l.ProductID, Qty: l.Qty})
	}

	now := repos.FormatTime(time.Now())
	raw := string(n.RawBody)

	var (
		levels          []domain.StockLevel
		quoteNotPending bool
	)
	err = repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		ok, err := s.Payments.MarkApproved(tx, pay.ID, n.GatewayPaymentID, raw, now)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent delivery won the race.
			return errAlreadyApplied
		}
		if err := s.QuoteSvc.MarkPaid(tx, pay.QuoteID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// Quote left pending through another path. Keep the payment
				// transition, skip stock, escalate below.
				quoteNotPending = true
				return nil
			}
			return err
		}
		levels, err = s.Ledger.Stock.DecrementAll(tx, items)
		return err
	})

	switch {
	case err == nil && quoteNotPending:
		applog.Alert(nil, "payment.approved.quote.not.pending", nil, map[string]any{
			"payment_id": pay.ID,
			"quote_id":   pay.QuoteID,
		})
		return OutcomeAnomaly, nil
	case err == nil:
		applog.Audit(nil, "payment.approved", map[string]any{
			"payment_id": pay.ID,
			"quote_id":   pay.QuoteID,
			"stock":      levels,
		})
		return OutcomeApplied, nil
	case errors.Is(err, errAlreadyApplied):
		return OutcomeReplayed, nil
	}

	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		// Re-apply payment and quote alone; the customer paid and the system
		// must not revert to pending.
		err2 := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
			ok, err := s.Payments.MarkApproved(tx, pay.ID, n.GatewayPaymentID, raw, now)
			if err != nil {
				return err
			}
			if !ok {
				return errAlreadyApplied
			}
			return s.QuoteSvc.MarkPaid(tx, pay.QuoteID)
		})
		if err2 != nil && !errors.Is(err2, errAlreadyApplied) {
			s.release(ctx, n.EventID)
			return "", err2
		}
		esc := &domain.StockInconsistencyError{PaymentID: pay.ID, QuoteID: pay.QuoteID, Cause: short}
		applog.Alert(nil, "stock.inconsistency.after.payment", esc, map[string]any{
			"payment_id": pay.ID,
			"quote_id":   pay.QuoteID,
			"shortfalls": short.Items,
		})
		return OutcomeEscalated, nil
	}

	s.release(ctx, n.EventID)
	return "", err
}

// applySettled handles rejected and cancelled reports. The quote stays
// pending and its payment reference is cleared so a new attempt can be made.
func (s *ReconcilerService) applySettled(ctx context.Context, pay domain.Payment, target domain.PaymentStatus, n domain.Notification) (ReconcileOutcome, error) {
	err := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		ok, err := s.Payments.MarkSettled(tx, pay.ID, target, n.GatewayPaymentID, string(n.RawBody))
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyApplied
		}
		return s.QuoteSvc.Quotes.ClearPaymentRef(tx, pay.QuoteID)
	})
	if errors.Is(err, errAlreadyApplied) {
		return OutcomeReplayed, nil
	}
	if err != nil {
		s.release(ctx, n.EventID)
		return "", err
	}
	applog.Audit(nil, "payment.settled", map[string]any{
		"payment_id": pay.ID,
		"quote_id":   pay.QuoteID,
		"status":     target,
	})
	return OutcomeApplied, nil
}

func (s *ReconcilerService) release(ctx context.Context, eventID string) {
	if s.Dedupe == nil || eventID == "" {
		return
	}
	if err := s.Dedupe.Release(ctx, eventID); err != nil {
		applog.Error(nil, "webhook.dedupe.release", err, map[string]any{"event_id": eventID})
	}
}
