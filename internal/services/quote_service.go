package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
	"quotedesk/internal/repos"
)

// QuoteService owns the quote lifecycle: pending -> paid | cancelled | expired,
// with paid/cancelled/expired terminal. Stock is validated at creation but
// never reserved; it is decremented only when a payment is confirmed.
type QuoteService struct {
	db       *sqlx.DB
	Quotes   *repos.QuoteRepo
	Products *repos.ProductRepo
	Ledger   *StockService
	TTL      time.Duration
}

func NewQuoteService(db *sqlx.DB, quotes *repos.QuoteRepo, products *repos.ProductRepo, ledger *StockService, ttl time.Duration) *QuoteService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &QuoteService{db: db, Quotes: quotes, Products: products, Ledger: ledger, TTL: ttl}
}

type CreateQuoteLine struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type CreateQuoteInput struct {
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerPhone string            `json:"customerPhone"`
	Items         []CreateQuoteLine `json:"items"`
	DiscountPct   float64           `json:"discount"`
	TaxPct        float64           `json:"tax"`
	Notes         string            `json:"notes"`
	CreatedBy     string            `json:"-"`
}

// Create validates the request against the ledger (read-only), freezes
// product name/price into the lines, computes totals and persists the quote
// as pending. Stock shortfalls are collected across all lines and returned
// together rather than failing on the first one.
func (s *QuoteService) Create(in CreateQuoteInput) (domain.Quote, error) {
	if in.CustomerName == "" {
		return domain.Quote{}, fmt.Errorf("customer name is required")
	}
	if len(in.Items) == 0 {
		return domain.Quote{}, fmt.Errorf("quote needs at least one line")
	}
	if in.DiscountPct < 0 || in.DiscountPct > 100 {
		return domain.Quote{}, fmt.Errorf("discount must be between 0 and 100")
	}
	if in.TaxPct < 0 || in.TaxPct > 100 {
		return domain.Quote{}, fmt.Errorf("tax must be between 0 and 100")
	}

	lines := make([]domain.QuoteLine, 0, len(in.Items))
	items := make([]domain.StockItem, 0, len(in.Items))
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return domain.Quote{}, fmt.Errorf("quantity for %s must be positive", it.ProductID)
		}
		// One line per product: a repeated id would split the stock check
		// across lines and understate the requested quantity.
		if _, dup := seen[it.ProductID]; dup {
			return domain.Quote{}, fmt.Errorf("%s: %w", it.ProductID, domain.ErrDuplicateLine)
		}
		seen[it.ProductID] = struct{}{}
		p, err := s.Products.Get(s.db, it.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.Quote{}, fmt.Errorf("%s: %w", it.ProductID, domain.ErrProductNotFound)
			}
			return domain.Quote{}, err
		}
		if !p.Active {
			return domain.Quote{}, fmt.Errorf("%s: %w", it.ProductID, domain.ErrProductInactive)
		}
		lines = append(lines, domain.QuoteLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Qty:         it.Qty,
			Subtotal:    lineSubtotal(p.Price, it.Qty),
		})
		items = append(items, domain.StockItem{ProductID: p.ID, Qty: it.Qty})
	}

	// Optimistic pre-flight: all shortfalls come back in one bundled error.
	if err := s.Ledger.Validate(items); err != nil {
		return domain.Quote{}, err
	}

	subtotal, total := Totals(lines, in.DiscountPct, in.TaxPct)

	q := domain.Quote{
		ID:            uuid.NewString(),
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		DiscountPct:   in.DiscountPct,
		TaxPct:        in.TaxPct,
		Subtotal:      subtotal,
		Total:         total,
		Status:        domain.QuoteStatusPending,
		Notes:         in.Notes,
		ExpiresAt:     repos.FormatTime(time.Now().Add(s.TTL)),
		CreatedBy:     in.CreatedBy,
		Lines:         lines,
	}

	err := repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		num, err := s.Quotes.NextQuoteNumber(tx)
		if err != nil {
			return err
		}
		q.QuoteNumber = num
		return s.Quotes.Insert(tx, q)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return s.Quotes.Get(s.db, q.ID)
}

func (s *QuoteService) Get(id string) (domain.Quote, error) {
	return s.Quotes.Get(s.db, id)
}

func (s *QuoteService) List(status domain.QuoteStatus, limit int) ([]domain.Quote, error) {
	return s.Quotes.List(s.db, status, limit)
}

// Cancel is a pure status change, allowed only from pending. It has no stock
// or payment side effects: before a payment exists there is nothing to undo.
func (s *QuoteService) Cancel(id, actor string) error {
	ok, err := s.Quotes.Transition(s.db, id, domain.QuoteStatusPending, domain.QuoteStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Quotes.Get(s.db, id); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// ExpireDue flips every pending quote past its expiry. Safe to run twice and
// safe to overlap with itself: the single conditional UPDATE only ever
// touches rows still pending.
func (s *QuoteService) ExpireDue(now time.Time) (int64, error) {
	return s.Quotes.ExpireDue(s.db, repos.FormatTime(now))
}

// MarkPaid moves pending -> paid. Only the event reconciler calls this, and
// always inside its own transaction so the payment, quote and stock move as
// one unit.
func (s *QuoteService) MarkPaid(ext sqlx.Ext, id string) error {
	ok, err := s.Quotes.Transition(ext, id, domain.QuoteStatusPending, domain.QuoteStatusPaid)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Totals computes subtotal and total from the frozen lines:
// subtotal = sum(price*qty), total = subtotal * (1 - d/100) * (1 + t/100),
// both rounded half-up to 2 decimals at the final step only.
func Totals(lines []domain.QuoteLine, discountPct, taxPct float64) (subtotal, total float64) {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	d := one.Sub(decimal.NewFromFloat(discountPct).Div(hundred))
	t := one.Add(decimal.NewFromFloat(taxPct).Div(hundred))
	tot := sub.Mul(d).Mul(t)
	return sub.Round(2).InexactFloat64(), tot.Round(2).InexactFloat64()
}

func lineSubtotal(price float64, qty int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}
