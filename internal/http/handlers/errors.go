package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"quotedesk/internal/domain"
	applog "quotedesk/internal/log"
)

// respondError maps domain errors onto HTTP statuses with enough structured
// detail for the caller to act (which product, which quantity).
func respondError(c *fiber.Ctx, err error) error {
	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "insufficient stock",
			"items": short.Items,
		})
	}
	var gw *domain.GatewayError
	if errors.As(err, &gw) {
		applog.Error(c, "gateway.fail", err, nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "payment gateway unavailable, try again",
		})
	}

	switch {
	case errors.Is(err, domain.ErrQuoteNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPaymentAlreadyExists),
		errors.Is(err, domain.ErrQuoteExpired):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrDuplicateLine):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	applog.Error(c, "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "something went wrong, please try again",
	})
}
