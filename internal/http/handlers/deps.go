package handlers

import (
	"github.com/jmoiron/sqlx"

	"quotedesk/internal/config"
	"quotedesk/internal/dedupe"
	"quotedesk/internal/gateway"
	"quotedesk/internal/repos"
	"quotedesk/internal/services"
)

type Deps struct {
	QuoteHandler   *QuoteHandler
	PaymentHandler *PaymentHandler
	WebhookHandler *WebhookHandler
	ProductHandler *ProductHandler
	AdminHandler   *AdminHandler

	// Quotes is exposed for the expiry sweeper in main.
	Quotes *services.QuoteService
}

func NewDeps(db *sqlx.DB, cfg config.Config, gw gateway.Adapter, dd dedupe.Cache) *Deps {
	prodRepo := repos.NewProductRepo(db)
	stockRepo := repos.NewStockRepo(db)
	quoteRepo := repos.NewQuoteRepo(db)
	payRepo := repos.NewPaymentRepo(db)

	stockSvc := services.NewStockService(db, stockRepo)
	quoteSvc := services.NewQuoteService(db, quoteRepo, prodRepo, stockSvc, cfg.QuoteTTL)
	paySvc := services.NewPaymentService(db, payRepo, quoteRepo, gw)
	reconciler := services.NewReconcilerService(db, payRepo, quoteSvc, stockSvc, gw, dd)

	var auth Authenticator
	if cfg.WebhookSecret != "" {
		auth = HMACAuthenticator{Secret: cfg.WebhookSecret}
	}

	return &Deps{
		QuoteHandler:   &QuoteHandler{Quotes: quoteSvc},
		PaymentHandler: &PaymentHandler{Payments: paySvc},
		WebhookHandler: &WebhookHandler{Reconciler: reconciler, Auth: auth},
		ProductHandler: &ProductHandler{Products: prodRepo, DB: db, Ledger: stockSvc},
		AdminHandler:   &AdminHandler{Ledger: stockSvc},
		Quotes:         quoteSvc,
	}
}
