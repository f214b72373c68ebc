package repos

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
)

type QuoteRepo struct{ db *sqlx.DB }

func NewQuoteRepo(db *sqlx.DB) *QuoteRepo { return &QuoteRepo{db: db} }

// NextQuoteNumber draws the next value from the counters table. Call inside
// the quote-creation transaction so numbers stay gap-free under concurrency.
func (r *QuoteRepo) NextQuoteNumber(ext sqlx.Ext) (string, error) {
	if _, err := ext.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'quote_number'`); err != nil {
		return "", err
	}
	var n int64
	if err := sqlx.Get(ext, &n, `SELECT value FROM counters WHERE name = 'quote_number'`); err != nil {
		return "", err
	}
	return fmt.Sprintf("Q-%06d", n), nil
}

func (r *QuoteRepo) Insert(ext sqlx.Ext, q domain.Quote) error {
	_, err := ext.Exec(`
		INSERT INTO quotes(
			id, quote_number, customer_name, customer_email, customer_phone,
			discount_pct, tax_pct, subtotal, total, status, notes,
			expires_at, created_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, q.ID, q.QuoteNumber, q.CustomerName, q.CustomerEmail, q.CustomerPhone,
		q.DiscountPct, q.TaxPct, q.Subtotal, q.Total, q.Status, q.Notes,
		q.ExpiresAt, q.CreatedBy)
	if err != nil {
		return err
	}
	for _, l := range q.Lines {
		if _, err := ext.Exec(`
			INSERT INTO quote_lines(quote_id, product_id, product_name, unit_price, qty, line_subtotal)
			VALUES (?,?,?,?,?,?)
		`, q.ID, l.ProductID, l.ProductName, l.UnitPrice, l.Qty, l.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *QuoteRepo) Get(ext sqlx.Ext, id string) (domain.Quote, error) {
	var q domain.Quote
	err := sqlx.Get(ext, &q, `
		SELECT id, quote_number, customer_name, customer_email, customer_phone,
		       discount_pct, tax_pct, subtotal, total, status, notes,
		       expires_at, payment_id, created_by,
		       created_at, COALESCE(updated_at,'') AS updated_at
		FROM quotes WHERE id = ?
	`, id)
	if err == sql.ErrNoRows {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	if err != nil {
		return domain.Quote{}, err
	}
	q.Lines, err = r.Lines(ext, id)
	return q, err
}

func (r *QuoteRepo) Lines(ext sqlx.Ext, quoteID string) ([]domain.QuoteLine, error) {
	var lines []domain.QuoteLine
	err := sqlx.Select(ext, &lines, `
		SELECT quote_id, product_id, product_name, unit_price, qty, line_subtotal
		FROM quote_lines WHERE quote_id = ?
		ORDER BY product_id
	`, quoteID)
	return lines, err
}

func (r *QuoteRepo) List(ext sqlx.Ext, status domain.QuoteStatus, limit int) ([]domain.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	where := ``
	args := []any{}
	if status != "" {
		where = `WHERE status = ?`
		args = append(args, status)
	}
	args = append(args, limit)
	var out []domain.Quote
	err := sqlx.Select(ext, &out, `
		SELECT id, quote_number, customer_name, customer_email, customer_phone,
		       discount_pct, tax_pct, subtotal, total, status, notes,
		       expires_at, payment_id, created_by,
		       created_at, COALESCE(updated_at,'') AS updated_at
		FROM quotes `+where+`
		ORDER BY created_at DESC
		LIMIT ?
	`, args...)
	return out, err
}

// Transition moves a quote from one status to another, reporting whether the
// row actually changed. A false return means the quote was not in `from`.
func (r *QuoteRepo) Transition(ext sqlx.Ext, id string, from, to domain.QuoteStatus) (bool, error) {
	res, err := ext.Exec(`
		UPDATE quotes SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, nowUTC(), id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExpireDue flips every pending quote past its expiry in one statement, so
// overlapping sweeps cannot double-count.
func (r *QuoteRepo) ExpireDue(ext sqlx.Ext, now string) (int64, error) {
	res, err := ext.Exec(`
		UPDATE quotes SET status = 'expired', updated_at = ?
		WHERE status = 'pending' AND expires_at <= ?
	`, nowUTC(), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetPaymentRef and ClearPaymentRef keep the quote<->payment link bidirectional:
// set together with payment creation, cleared together with payment cancellation.
func (r *QuoteRepo) SetPaymentRef(ext sqlx.Ext, quoteID, paymentID string) error {
	_, err := ext.Exec(`UPDATE quotes SET payment_id = ?, updated_at = ? WHERE id = ?`,
		paymentID, nowUTC(), quoteID)
	return err
}

func (r *QuoteRepo) ClearPaymentRef(ext sqlx.Ext, quoteID string) error {
	_, err := ext.Exec(`UPDATE quotes SET payment_id = '', updated_at = ? WHERE id = ?`,
		nowUTC(), quoteID)
	return err
}
