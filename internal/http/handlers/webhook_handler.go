package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"quotedesk/internal/domain"
	applog "quotedesk/internal/log"
	"quotedesk/internal/services"
)

// Authenticator verifies that a notification really came from the gateway.
// It is pluggable because verification schemes are provider-specific.
type Authenticator interface {
	Verify(c *fiber.Ctx, dataID string) bool
}

// HMACAuthenticator implements Mercado Pago's x-signature scheme: an
// HMAC-SHA256 over "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" keyed
// with the webhook secret.
type HMACAuthenticator struct {
	Secret string
}

func (a HMACAuthenticator) Verify(c *fiber.Ctx, dataID string) bool {
	sig := c.Get("x-signature")
	if sig == "" {
		return false
	}
	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, c.Get("x-request-id"), ts)
	mac := hmac.New(sha256.New, []byte(a.Secret))
	mac.Write([]byte(manifest))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(v1))
}

type WebhookHandler struct {
	Reconciler *services.ReconcilerService
	Auth       Authenticator // nil disables verification
}

type webhookBody struct {
	// The raw token is kept so numeric ids dedupe and log exactly as the
	// gateway sent them, not through a float round trip.
	ID     json.RawMessage `json:"id"`
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Handle acknowledges every delivery except genuine infrastructure failures:
// a 500 here is the signal for the gateway to retry, anything else stops
// redelivery.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	var body webhookBody
	// Malformed JSON is acknowledged: retrying it can never succeed.
	_ = json.Unmarshal(c.Body(), &body)

	kind := body.Type
	if kind == "" {
		kind = c.Query("type", c.Query("topic"))
	}
	paymentID := body.Data.ID
	if paymentID == "" {
		paymentID = c.Query("data.id", c.Query("id"))
	}
	eventID := strings.Trim(string(body.ID), `"`)
	if eventID == "" || eventID == "null" {
		eventID = c.Query("id")
	}

	if h.Auth != nil && !h.Auth.Verify(c, paymentID) {
		applog.Security(c, "webhook.auth.fail", map[string]any{"event_id": eventID})
		return c.SendStatus(fiber.StatusOK)
	}

	outcome, err := h.Reconciler.HandleNotification(c.Context(), domain.Notification{
		EventID:          eventID,
		Kind:             kind,
		GatewayPaymentID: paymentID,
		RawBody:          append([]byte(nil), c.Body()...),
	})
	if err != nil {
		// Storage or gateway unreachable: not processed, have them retry.
		applog.Error(c, "webhook.unprocessed", err, map[string]any{"event_id": eventID})
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	applog.Info(c, "webhook.processed", map[string]any{"event_id": eventID, "outcome": outcome})
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"outcome": outcome})
}
