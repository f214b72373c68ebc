package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"quotedesk/internal/dedupe"
	"quotedesk/internal/domain"
	"quotedesk/internal/gateway"
	"quotedesk/internal/repos"
	"quotedesk/internal/services"
)

// memdb opens a fresh in-memory database with the full schema and the demo
// seed (desk-001 qty 12, chair-001 qty 30, lamp-001 qty 0). cache=shared keeps
// the data visible across pool connections; the name keeps tests isolated.
func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repos.OpenDB("file:" + name + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// fakeGateway scripts provider answers per gateway payment id.
type fakeGateway struct {
	mu        sync.Mutex
	orderErr  error
	statusErr error
	reports   map[string]gateway.StatusReport
	created   []gateway.CreateOrderInput
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{reports: make(map[string]gateway.StatusReport)}
}

func (f *fakeGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (gateway.CreateOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return gateway.CreateOrderResult{}, f.orderErr
	}
	f.created = append(f.created, in)
	return gateway.CreateOrderResult{
		PreferenceID:       "pref-" + in.ExternalReference,
		CheckoutURL:        "https://pay.example/checkout/" + in.ExternalReference,
		SandboxCheckoutURL: "https://sandbox.pay.example/checkout/" + in.ExternalReference,
	}, nil
}

func (f *fakeGateway) GetPaymentStatus(_ context.Context, gatewayPaymentID string) (gateway.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return gateway.StatusReport{}, f.statusErr
	}
	r, ok := f.reports[gatewayPaymentID]
	if !ok {
		return gateway.StatusReport{}, &domain.GatewayError{Op: "get payment status", StatusCode: 404}
	}
	return r, nil
}

func (f *fakeGateway) report(gatewayPaymentID, status, externalRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[gatewayPaymentID] = gateway.StatusReport{Status: status, ExternalReference: externalRef}
}

// stack wires the full service graph against one in-memory database.
type stack struct {
	db       *sqlx.DB
	payments *repos.PaymentRepo
	stockSvc *services.StockService
	quoteSvc *services.QuoteService
	paySvc   *services.PaymentService
	rec      *services.ReconcilerService
	gw       *fakeGateway
	dd       *dedupe.Memory
}

func newStack(t *testing.T, ttl time.Duration) *stack {
	t.Helper()
	db := memdb(t)
	prodRepo := repos.NewProductRepo(db)
	stockRepo := repos.NewStockRepo(db)
	quoteRepo := repos.NewQuoteRepo(db)
	payRepo := repos.NewPaymentRepo(db)

	gw := newFakeGateway()
	dd := dedupe.NewMemory()

	stockSvc := services.NewStockService(db, stockRepo)
	quoteSvc := services.NewQuoteService(db, quoteRepo, prodRepo, stockSvc, ttl)
	paySvc := services.NewPaymentService(db, payRepo, quoteRepo, gw)
	rec := services.NewReconcilerService(db, payRepo, quoteSvc, stockSvc, gw, dd)

	return &stack{
		db: db, payments: payRepo,
		stockSvc: stockSvc, quoteSvc: quoteSvc, paySvc: paySvc, rec: rec,
		gw: gw, dd: dd,
	}
}

// createQuote makes a pending quote for 2x desk-001 (399.00 each).
func (s *stack) createQuote(t *testing.T) domain.Quote {
	t.Helper()
	q, err := s.quoteSvc.Create(services.CreateQuoteInput{
		CustomerName: "Ada Lovelace",
		Items:        []services.CreateQuoteLine{{ProductID: "desk-001", Qty: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return q
}

// createPayment makes a pending payment for q and returns it.
func (s *stack) createPayment(t *testing.T, quoteID string) domain.Payment {
	t.Helper()
	res, err := s.paySvc.CreateForQuote(context.Background(), quoteID)
	if err != nil {
		t.Fatal(err)
	}
	return res.Payment
}

func (s *stack) qty(t *testing.T, productID string) int {
	t.Helper()
	qty, err := s.stockSvc.Stock.Qty(s.db, productID)
	if err != nil {
		t.Fatal(err)
	}
	return qty
}

func notification(eventID, gatewayPaymentID string) domain.Notification {
	return domain.Notification{
		EventID:          eventID,
		Kind:             "payment",
		GatewayPaymentID: gatewayPaymentID,
		RawBody:          []byte(fmt.Sprintf(`{"id":%q,"type":"payment","data":{"id":%q}}`, eventID, gatewayPaymentID)),
	}
}
