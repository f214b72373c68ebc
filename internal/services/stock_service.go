package services

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
	"quotedesk/internal/repos"
)

// StockService is the only mutation path for inventory quantities. Batches
// are all-or-nothing: a quote's lines are decremented together or not at all.
type StockService struct {
	db    *sqlx.DB
	Stock *repos.StockRepo
}

func NewStockService(db *sqlx.DB, stock *repos.StockRepo) *StockService {
	return &StockService{db: db, Stock: stock}
}

// Validate is a read-only availability check. All failing items come back
// bundled in one *domain.InsufficientStockError; nothing is mutated.
func (s *StockService) Validate(items []domain.StockItem) error {
	if err := checkItems(items); err != nil {
		return err
	}
	shortfalls, err := s.Stock.Shortfalls(s.db, items)
	if err != nil {
		return err
	}
	if len(shortfalls) > 0 {
		return &domain.InsufficientStockError{Items: shortfalls}
	}
	return nil
}

// Decrement re-validates and decrements the whole batch in one transaction.
// Any shortfall aborts the batch with no partial effect.
func (s *StockService) Decrement(items []domain.StockItem) ([]domain.StockLevel, error) {
	if err := checkItems(items); err != nil {
		return nil, err
	}
	var levels []domain.StockLevel
	err := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		var err error
		levels, err = s.Stock.DecrementAll(tx, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// Increment adds quantities back, e.g. compensating a sale that was counted
// and later voided. Same all-or-nothing semantics, no upper bound.
func (s *StockService) Increment(items []domain.StockItem) ([]domain.StockLevel, error) {
	if err := checkItems(items); err != nil {
		return nil, err
	}
	var levels []domain.StockLevel
	err := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		var err error
		levels, err = s.Stock.IncrementAll(tx, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// Adjust applies a batch of typed admin corrections in one transaction.
func (s *StockService) Adjust(adjustments []domain.StockAdjustment) ([]domain.StockLevel, error) {
	if len(adjustments) == 0 {
		return nil, fmt.Errorf("no adjustments given")
	}
	var levels []domain.StockLevel
	err := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		for _, a := range adjustments {
			var (
				lv  domain.StockLevel
				err error
			)
			switch {
			case a.IsIncrement():
				var ls []domain.StockLevel
				ls, err = s.Stock.IncrementAll(tx, []domain.StockItem{{ProductID: a.ProductID, Qty: a.Amount()}})
				if err == nil {
					lv = ls[0]
				}
			case a.IsDecrement():
				var ls []domain.StockLevel
				ls, err = s.Stock.DecrementAll(tx, []domain.StockItem{{ProductID: a.ProductID, Qty: a.Amount()}})
				if err == nil {
					lv = ls[0]
				}
			case a.IsSet():
				lv, err = s.Stock.SetQty(tx, a.ProductID, a.Amount())
			}
			if err != nil {
				return err
			}
			levels = append(levels, lv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// Availability converts qty to IN_STOCK / LOW_STOCK / OUT_OF_STOCK for the
// public availability endpoint.
func (s *StockService) Availability(productID string) (domain.Availability, error) {
	qty, err := s.Stock.Qty(s.db, productID)
	if err != nil {
		// If no ledger row exists, treat as 0.
		if err == sql.ErrNoRows {
			return domain.Availability{Status: "OUT_OF_STOCK", Qty: 0}, nil
		}
		return domain.Availability{}, err
	}

	status := "OUT_OF_STOCK"
	switch {
	case qty >= 5:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}, nil
}

func checkItems(items []domain.StockItem) error {
	if len(items) == 0 {
		return fmt.Errorf("empty item batch")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("missing product id")
		}
		if it.Qty <= 0 {
			return fmt.Errorf("quantity for %s must be positive, got %d", it.ProductID, it.Qty)
		}
	}
	return nil
}
