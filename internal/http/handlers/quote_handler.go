package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"quotedesk/internal/domain"
	applog "quotedesk/internal/log"
	"quotedesk/internal/services"
	"quotedesk/internal/validate"
)

type QuoteHandler struct {
	Quotes *services.QuoteService
}

// systemFields are generated server-side; a request carrying any of them is
// rejected instead of silently ignored.
var systemFields = []string{"id", "_id", "quoteNumber", "subtotal", "total", "status", "expiresAt", "createdAt", "updatedAt", "paymentId"}

func (h *QuoteHandler) Create(c *fiber.Ctx) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	for _, f := range systemFields {
		if _, ok := raw[f]; ok {
			applog.Security(c, "validation.fail", map[string]any{"field": f})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "field is system-generated: " + f})
		}
	}

	var in services.CreateQuoteInput
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	name, ok := validate.Name(in.CustomerName)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer name is required (max 100 chars)"})
	}
	in.CustomerName = name
	if in.CustomerEmail != "" {
		email, ok := validate.Email(in.CustomerEmail)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email"})
		}
		in.CustomerEmail = email
	}
	if in.CustomerPhone != "" {
		phone, ok := validate.Phone(in.CustomerPhone)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid phone"})
		}
		in.CustomerPhone = phone
	}
	if !validate.Pct(in.DiscountPct) || !validate.Pct(in.TaxPct) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount and tax must be between 0 and 100"})
	}
	if len(in.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "at least one item is required"})
	}
	for _, it := range in.Items {
		if _, ok := validate.ID(it.ProductID); !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid productId"})
		}
		if !validate.Qty(it.Qty) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quantity for " + it.ProductID})
		}
	}

	q, err := h.Quotes.Create(in)
	if err != nil {
		return respondError(c, err)
	}
	applog.Audit(c, "quote.create", map[string]any{
		"quote_id": q.ID,
		"number":   q.QuoteNumber,
		"total":    q.Total,
	})
	return c.Status(fiber.StatusCreated).JSON(q)
}

func (h *QuoteHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quote id"})
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(q)
}

func (h *QuoteHandler) List(c *fiber.Ctx) error {
	status := domain.QuoteStatus(c.Query("status"))
	switch status {
	case "", domain.QuoteStatusPending, domain.QuoteStatusPaid, domain.QuoteStatusCancelled, domain.QuoteStatusExpired:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status filter"})
	}
	quotes, err := h.Quotes.List(status, c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"quotes": quotes})
}

func (h *QuoteHandler) Cancel(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quote id"})
	}
	if err := h.Quotes.Cancel(id, c.Get("X-Actor")); err != nil {
		return respondError(c, err)
	}
	applog.Audit(c, "quote.cancel", map[string]any{"quote_id": id})
	return c.JSON(fiber.Map{"status": domain.QuoteStatusCancelled})
}

// View renders the printable quote page.
func (h *QuoteHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Quote not found"})
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Quote not found"})
	}
	return render(c, "quote", fiber.Map{"Quote": q})
}
