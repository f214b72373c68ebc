package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "quotedesk/internal/log"
	"quotedesk/internal/services"
	"quotedesk/internal/validate"
)

type PaymentHandler struct {
	Payments *services.PaymentService
}

// Create starts a checkout for a pending quote.
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	quoteID, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quote id"})
	}

	res, err := h.Payments.CreateForQuote(c.Context(), quoteID)
	if err != nil {
		return respondError(c, err)
	}
	applog.Audit(c, "payment.create", map[string]any{
		"payment_id": res.Payment.ID,
		"quote_id":   quoteID,
		"amount":     res.Payment.Amount,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"paymentId":           res.Payment.ID,
		"gatewayPreferenceId": res.Payment.GatewayPreferenceID,
		"checkoutUrl":         res.CheckoutURL,
		"sandboxCheckoutUrl":  res.SandboxCheckoutURL,
		"amount":              res.Payment.Amount,
		"expiresAt":           res.ExpiresAt,
	})
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	p, err := h.Payments.Get(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payment id"})
	}
	if err := h.Payments.Cancel(id); err != nil {
		return respondError(c, err)
	}
	applog.Audit(c, "payment.cancel", map[string]any{"payment_id": id})
	return c.JSON(fiber.Map{"status": "cancelled"})
}
