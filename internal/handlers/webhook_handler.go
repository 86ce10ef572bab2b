package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"pibot/internal/logging"
	"pibot/internal/models"
	"pibot/internal/services"
)

// eventTimeout bounds one event's whole pipeline (classification, capability
// call, reply). Image generation is the slowest leg.
const eventTimeout = 3 * time.Minute

// ReplyGateway delivers outbound messages against a reply token
type ReplyGateway interface {
	Reply(ctx context.Context, replyToken string, messages []models.ReplyMessage) error
}

// WebhookHandler receives LINE webhook batches and runs the per-event
// pipeline. The webhook POST is acknowledged immediately; event processing
// happens in the background because LINE expects a fast 200 and retries slow
// endpoints.
type WebhookHandler struct {
	channelSecret string
	classifier    *services.ClassifierService
	dispatcher    *services.Dispatcher
	gateway       ReplyGateway
}

// NewWebhookHandler creates the webhook handler. An empty channelSecret
// disables signature verification (local development only).
func NewWebhookHandler(channelSecret string, classifier *services.ClassifierService, dispatcher *services.Dispatcher, gateway ReplyGateway) *WebhookHandler {
	if channelSecret == "" {
		log.Println("⚠️  [WEBHOOK] No channel secret configured, signature verification disabled")
	}
	return &WebhookHandler{
		channelSecret: channelSecret,
		classifier:    classifier,
		dispatcher:    dispatcher,
		gateway:       gateway,
	}
}

// HandleWebhook is POST /webhook. It verifies the LINE signature over the raw
// body, acknowledges with 200, and processes the batch asynchronously.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	if h.channelSecret != "" {
		signature := c.Get("X-Line-Signature")
		if !h.verifySignature(body, signature) {
			log.Println("🚫 [WEBHOOK] Rejected request with bad signature")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
	}

	var req models.LineWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook body",
		})
	}

	if len(req.Events) > 0 {
		go h.processBatch(req.Events)
	}

	return c.SendStatus(fiber.StatusOK)
}

// verifySignature checks the X-Line-Signature header: base64 of the
// HMAC-SHA256 of the raw body under the channel secret
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.channelSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// processBatch handles every event in arrival order. Each event is isolated:
// a panic or failure in one never skips the rest of the batch.
func (h *WebhookHandler) processBatch(events []models.LineEvent) {
	for _, event := range events {
		h.processEvent(event)
	}
}

func (h *WebhookHandler) processEvent(event models.LineEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [WEBHOOK] Panic while processing event for user %s: %v\n%s",
				event.Source.UserID, r, debug.Stack())
		}
	}()

	if event.Type != models.LineEventTypeMessage || event.Message == nil || event.ReplyToken == "" {
		return
	}
	userID := event.Source.UserID
	if userID == "" {
		return
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordWebhookEvent(event.Message.Type)
	}
	logging.WithEvent(event.Message.Type, userID).Debug("processing webhook event")

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	start := time.Now()
	var replies []models.ReplyMessage

	switch event.Message.Type {
	case models.LineMessageText:
		text := strings.TrimSpace(event.Message.Text)
		if text == "" {
			return
		}
		decision := h.classifier.Classify(ctx, text)
		replies = h.dispatcher.Dispatch(ctx, userID, text, decision)

	case models.LineMessageImage:
		decision := models.IntentDecision{Kind: models.IntentAnalyzeImage, Payload: event.Message.ID}
		replies = h.dispatcher.Dispatch(ctx, userID, "", decision)

	default:
		// Stickers, audio, etc. are silently ignored
		return
	}

	if m := services.GetMetrics(); m != nil {
		m.RecordDispatchLatency(time.Since(start).Seconds())
	}

	if len(replies) == 0 {
		return
	}
	if err := h.gateway.Reply(ctx, event.ReplyToken, replies); err != nil {
		log.Printf("❌ [WEBHOOK] Reply failed for user %s: %v", userID, err)
	}
}
