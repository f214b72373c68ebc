package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"quotedesk/internal/repos"
	"quotedesk/internal/services"
	"quotedesk/internal/validate"
)

type ProductHandler struct {
	Products *repos.ProductRepo
	DB       *sqlx.DB
	Ledger   *services.StockService
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	products, err := h.Products.List(h.DB, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	p, err := h.Products.Get(h.DB, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

// Availability answers the public stock check without exposing exact levels
// beyond the low-stock threshold.
func (h *ProductHandler) Availability(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Query("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	avail, err := h.Ledger.Availability(productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(avail)
}
