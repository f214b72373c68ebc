package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quotedesk/internal/domain"
	applog "quotedesk/internal/log"
	"quotedesk/internal/services"
	"quotedesk/internal/validate"
)

type AdminHandler struct {
	Ledger *services.StockService
}

type stockAdjustmentReq struct {
	ProductID string `json:"productId"`
	Op        string `json:"op"` // increment | decrement | set
	Qty       int    `json:"qty"`
}

type adjustStockReq struct {
	Adjustments []stockAdjustmentReq `json:"adjustments"`
}

// AdjustStock applies a batch of manual corrections. The op names map onto
// the closed adjustment set; anything else fails before touching the ledger.
func (h *AdminHandler) AdjustStock(c *fiber.Ctx) error {
	var req adjustStockReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if len(req.Adjustments) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no adjustments given"})
	}

	adjustments := make([]domain.StockAdjustment, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		if _, ok := validate.ID(a.ProductID); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid productId"})
		}
		var (
			adj domain.StockAdjustment
			err error
		)
		switch a.Op {
		case "increment":
			adj, err = domain.IncrementBy(a.ProductID, a.Qty)
		case "decrement":
			adj, err = domain.DecrementBy(a.ProductID, a.Qty)
		case "set":
			adj, err = domain.SetTo(a.ProductID, a.Qty)
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown op: " + a.Op})
		}
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		adjustments = append(adjustments, adj)
	}

	levels, err := h.Ledger.Adjust(adjustments)
	if err != nil {
		return respondError(c, err)
	}
	applog.Audit(c, "admin.stock.adjust", map[string]any{"levels": levels})
	return c.JSON(fiber.Map{"levels": levels})
}
