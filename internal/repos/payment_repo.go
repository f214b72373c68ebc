package repos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
)

type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentCols = `
	id, quote_id, gateway_payment_id, gateway_preference_id, external_reference,
	amount, status, raw_payload, paid_at,
	created_at, COALESCE(updated_at,'') AS updated_at`

// Insert persists a new pending payment. The partial unique index on
// payments(quote_id) rejects a second live payment for the same quote; that
// violation surfaces as domain.ErrPaymentAlreadyExists.
func (r *PaymentRepo) Insert(ext sqlx.Ext, p domain.Payment) error {
	_, err := ext.Exec(`
		INSERT INTO payments(
			id, quote_id, gateway_payment_id, gateway_preference_id,
			external_reference, amount, status, raw_payload, paid_at
		) VALUES (?,?,?,?,?,?,?,?,?)
	`, p.ID, p.QuoteID, p.GatewayPaymentID, p.GatewayPreferenceID,
		p.ExternalReference, p.Amount, p.Status, p.RawPayload, p.PaidAt)
	if isUniqueViolation(err) {
		return domain.ErrPaymentAlreadyExists
	}
	return err
}

func (r *PaymentRepo) GetByID(ext sqlx.Ext, id string) (domain.Payment, error) {
	var p domain.Payment
	err := sqlx.Get(ext, &p, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

// GetByExternalReference correlates a gateway report back to the local
// payment through the reference we generated at creation time.
func (r *PaymentRepo) GetByExternalReference(ext sqlx.Ext, ref string) (domain.Payment, error) {
	var p domain.Payment
	err := sqlx.Get(ext, &p, `SELECT `+paymentCols+` FROM payments WHERE external_reference = ?`, ref)
	if err == sql.ErrNoRows {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

// LiveByQuoteID returns the pending or approved payment for a quote, if any.
func (r *PaymentRepo) LiveByQuoteID(ext sqlx.Ext, quoteID string) (domain.Payment, error) {
	var p domain.Payment
	err := sqlx.Get(ext, &p, `
		SELECT `+paymentCols+` FROM payments
		WHERE quote_id = ? AND status IN ('pending','approved')
	`, quoteID)
	if err == sql.ErrNoRows {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

// MarkApproved applies the approved transition only if the payment is still
// pending. A false return means another delivery already settled it.
func (r *PaymentRepo) MarkApproved(ext sqlx.Ext, id, gatewayPaymentID, rawPayload, paidAt string) (bool, error) {
	res, err := ext.Exec(`
		UPDATE payments
		SET status = 'approved', gateway_payment_id = ?, raw_payload = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, gatewayPaymentID, rawPayload, paidAt, nowUTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CancelPending cancels a payment locally (caller gave up on checkout).
// Only a pending payment can be cancelled.
func (r *PaymentRepo) CancelPending(ext sqlx.Ext, id string) (bool, error) {
	res, err := ext.Exec(`
		UPDATE payments SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, nowUTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkSettled applies a rejected or cancelled transition from pending.
// paid_at stays cleared for any non-approved status.
func (r *PaymentRepo) MarkSettled(ext sqlx.Ext, id string, to domain.PaymentStatus, gatewayPaymentID, rawPayload string) (bool, error) {
	res, err := ext.Exec(`
		UPDATE payments
		SET status = ?, gateway_payment_id = ?, raw_payload = ?, paid_at = '', updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, to, gatewayPaymentID, rawPayload, nowUTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
