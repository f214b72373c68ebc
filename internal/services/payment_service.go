package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"quotedesk/internal/domain"
	"quotedesk/internal/gateway"
	"quotedesk/internal/repos"
)

// PaymentService owns payment records: one live payment per quote, amount
// pinned to the quote total at creation time.
type PaymentService struct {
	db       *sqlx.DB
	Payments *repos.PaymentRepo
	Quotes   *repos.QuoteRepo
	Gateway  gateway.Adapter
}

func NewPaymentService(db *sqlx.DB, payments *repos.PaymentRepo, quotes *repos.QuoteRepo, gw gateway.Adapter) *PaymentService {
	return &PaymentService{db: db, Payments: payments, Quotes: quotes, Gateway: gw}
}

type CreatePaymentResult struct {
	Payment            domain.Payment
	CheckoutURL        string
	SandboxCheckoutURL string
	ExpiresAt          string
}

// CreateForQuote registers a checkout order with the gateway and persists the
// pending payment. The gateway call happens first so a gateway failure leaves
// no local state behind; the partial unique index on payments(quote_id)
// closes the race between two concurrent creation attempts.
func (s *PaymentService) CreateForQuote(ctx context.Context, quoteID string) (CreatePaymentResult, error) {
	q, err := s.Quotes.Get(s.db, quoteID)
	if err != nil {
		return CreatePaymentResult{}, err
	}
	if q.Status != domain.QuoteStatusPending {
		return CreatePaymentResult{}, domain.ErrInvalidTransition
	}
	if q.ExpiresAt <= repos.FormatTime(time.Now()) {
		return CreatePaymentResult{}, domain.ErrQuoteExpired
	}
	if _, err := s.Payments.LiveByQuoteID(s.db, quoteID); err == nil {
		return CreatePaymentResult{}, domain.ErrPaymentAlreadyExists
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		return CreatePaymentResult{}, err
	}

	p := domain.Payment{
		ID:                uuid.NewString(),
		QuoteID:           q.ID,
		ExternalReference: uuid.NewString(),
		Amount:            q.Total,
		Status:            domain.PaymentStatusPending,
	}

	order, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		QuoteID:           q.ID,
		Amount:            q.Total,
		Description:       fmt.Sprintf("Quote %s", q.QuoteNumber),
		ExternalReference: p.ExternalReference,
		CustomerEmail:     q.CustomerEmail,
		CustomerName:      q.CustomerName,
	})
	if err != nil {
		return CreatePaymentResult{}, err
	}
	p.GatewayPreferenceID = order.PreferenceID

	err = repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		if err := s.Payments.Insert(tx, p); err != nil {
			return err
		}
		// Keep the bidirectional link consistent: set together here, cleared
		// together on cancellation.
		return s.Quotes.SetPaymentRef(tx, q.ID, p.ID)
	})
	if err != nil {
		return CreatePaymentResult{}, err
	}

	return CreatePaymentResult{
		Payment:            p,
		CheckoutURL:        order.CheckoutURL,
		SandboxCheckoutURL: order.SandboxCheckoutURL,
		ExpiresAt:          q.ExpiresAt,
	}, nil
}

func (s *PaymentService) Get(id string) (domain.Payment, error) {
	return s.Payments.GetByID(s.db, id)
}

// Cancel voids a pending payment and clears the quote's payment reference so
// a new attempt can be made while the quote is still pending.
func (s *PaymentService) Cancel(paymentID string) error {
	return repos.WithTx(s.db, func(tx *sqlx.Tx) error {
		p, err := s.Payments.GetByID(tx, paymentID)
		if err != nil {
			return err
		}
		ok, err := s.Payments.CancelPending(tx, paymentID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		return s.Quotes.ClearPaymentRef(tx, p.QuoteID)
	})
}
