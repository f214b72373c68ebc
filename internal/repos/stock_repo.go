package repos

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
)

// StockRepo owns the stock table. Every method takes an sqlx.Ext so the same
// code runs standalone against the DB or inside a caller's transaction; the
// batch methods assume they run inside one and rely on rollback for the
// all-or-nothing contract.
type StockRepo struct{ db *sqlx.DB }

func NewStockRepo(db *sqlx.DB) *StockRepo { return &StockRepo{db: db} }

func (r *StockRepo) DB() *sqlx.DB { return r.db }

// Qty returns current stock for a product. sql.ErrNoRows if the product has
// no ledger row.
func (r *StockRepo) Qty(ext sqlx.Ext, productID string) (int, error) {
	var qty int
	err := sqlx.Get(ext, &qty, `SELECT qty FROM stock WHERE product_id = ?`, productID)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

// Shortfalls checks availability for a batch without mutating anything and
// returns every failing item. An unknown product is a structural error, not
// a shortfall.
func (r *StockRepo) Shortfalls(ext sqlx.Ext, items []domain.StockItem) ([]domain.StockShortfall, error) {
	var out []domain.StockShortfall
	for _, it := range items {
		qty, err := r.Qty(ext, it.ProductID)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("stock check: %s: %w", it.ProductID, domain.ErrProductNotFound)
		}
		if err != nil {
			return nil, err
		}
		if qty < it.Qty {
			out = append(out, domain.StockShortfall{ProductID: it.ProductID, Requested: it.Qty, Available: qty})
		}
	}
	return out, nil
}

// DecrementAll re-validates and decrements the whole batch. On any shortfall
// it returns *domain.InsufficientStockError listing every failing item; the
// caller's rollback undoes any rows already touched. The conditional UPDATE
// keeps qty from ever computing below zero, even if a concurrent writer got
// in between the check and the write.
func (r *StockRepo) DecrementAll(ext sqlx.Ext, items []domain.StockItem) ([]domain.StockLevel, error) {
	shortfalls, err := r.Shortfalls(ext, items)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, &domain.InsufficientStockError{Items: shortfalls}
	}

	levels := make([]domain.StockLevel, 0, len(items))
	for _, it := range items {
		prev, err := r.Qty(ext, it.ProductID)
		if err != nil {
			return nil, err
		}
		res, err := ext.Exec(`
			UPDATE stock SET qty = qty - ?, updated_at = ?
			WHERE product_id = ? AND qty >= ?
		`, it.Qty, nowUTC(), it.ProductID, it.Qty)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Raced below the requested quantity after the pre-check.
			return nil, &domain.InsufficientStockError{Items: []domain.StockShortfall{
				{ProductID: it.ProductID, Requested: it.Qty, Available: prev},
			}}
		}
		levels = append(levels, domain.StockLevel{ProductID: it.ProductID, Previous: prev, Current: prev - it.Qty})
	}
	return levels, nil
}

// IncrementAll adds quantities back (compensation or manual correction).
// No upper bound; unknown products are structural errors.
func (r *StockRepo) IncrementAll(ext sqlx.Ext, items []domain.StockItem) ([]domain.StockLevel, error) {
	levels := make([]domain.StockLevel, 0, len(items))
	for _, it := range items {
		prev, err := r.Qty(ext, it.ProductID)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("stock increment: %s: %w", it.ProductID, domain.ErrProductNotFound)
		}
		if err != nil {
			return nil, err
		}
		if _, err := ext.Exec(`
			UPDATE stock SET qty = qty + ?, updated_at = ?
			WHERE product_id = ?
		`, it.Qty, nowUTC(), it.ProductID); err != nil {
			return nil, err
		}
		levels = append(levels, domain.StockLevel{ProductID: it.ProductID, Previous: prev, Current: prev + it.Qty})
	}
	return levels, nil
}

// SetQty pins a product's level (admin corrections).
func (r *StockRepo) SetQty(ext sqlx.Ext, productID string, qty int) (domain.StockLevel, error) {
	prev, err := r.Qty(ext, productID)
	if err == sql.ErrNoRows {
		return domain.StockLevel{}, fmt.Errorf("stock set: %s: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.StockLevel{}, err
	}
	if _, err := ext.Exec(`
		UPDATE stock SET qty = ?, updated_at = ? WHERE product_id = ?
	`, qty, nowUTC(), productID); err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{ProductID: productID, Previous: prev, Current: qty}, nil
}

// UpsertQty creates the ledger row if needed (seeding, new products).
func (r *StockRepo) UpsertQty(ext sqlx.Ext, productID string, qty int) error {
	_, err := ext.Exec(`
		INSERT INTO stock(product_id, qty, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET qty = excluded.qty, updated_at = excluded.updated_at
	`, productID, qty, nowUTC())
	return err
}
