package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"pibot/internal/models"
)

// Per-capability timeouts. A slow external call times out and is treated as
// a capability failure; it never stalls the user's event indefinitely.
const (
	chatTimeout   = 60 * time.Second
	imageTimeout  = 120 * time.Second
	visionTimeout = 60 * time.Second
	searchTimeout = 20 * time.Second
)

// User-facing reply texts. Wording here mirrors the bot's persona; denials
// are guidance, not error messages.
const (
	textResetDone       = "เคลียร์ความจำเรียบร้อยครับ เริ่มคุยกันใหม่ได้เลย 😄"
	textPlanPrompt      = "ตอนนี้ยังไม่ได้เลือกแพ็กเกจเลยครับ เลือกก่อนได้เลยครับ 👇"
	textPlanFreeDone    = "เลือกแพ็กฟรีเรียบร้อยครับ คุยกันได้วันละ %d ข้อความนะครับ 😄"
	textPlanPremiumDone = "เลือกแพ็กพรีเมียมเรียบร้อยครับ คุยได้ไม่จำกัดเลยครับ 🔥"
	textQuotaExceeded   = "วันนี้ใช้ครบโควต้าแล้วครับ พรุ่งนี้มาคุยกันใหม่ หรืออัปเกรดเป็นพรีเมียมก็ได้ครับ ✨"
	textChatApology     = "ขอโทษครับ ตอนนี้ระบบ AI มีปัญหาชั่วคราว ผมตอบไม่ได้แป๊บหนึ่งนะครับ 😢"
	textImageApology    = "ขอโทษครับ ตอนนี้ผมวาดรูปไม่ได้ ลองใหม่อีกทีนะครับ 😢"
	textVisionApology   = "ขอโทษครับ ผมดูรูปนี้ไม่ออกจริง ๆ ลองส่งใหม่อีกทีนะครับ 😢"

	labelPlanFree       = "แพ็กฟรี"
	labelPlanPremium    = "แพ็กพรีเมียม"
	labelUpgradePremium = "อัปเกรดพรีเมียม"
)

// ChatCapability generates conversational text: replies, prompt rewrites,
// and search summaries
type ChatCapability interface {
	Chat(ctx context.Context, history []models.ChatMessage) (string, error)
	TranslatePrompt(ctx context.Context, text string) (string, error)
	Summarize(ctx context.Context, question string, snippets []string) (string, error)
}

// ImageCapability turns a text prompt into a publicly retrievable image URL
type ImageCapability interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnalyzeCapability describes image bytes
type AnalyzeCapability interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (string, error)
}

// SearchCapability runs a web search and flattens results for summarization
type SearchCapability interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Snippets(ctx context.Context, results []SearchResult) []string
}

// ContentFetcher downloads inbound message content (image bytes) by ID
type ContentFetcher interface {
	FetchContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// Dispatcher invokes the capability matching a classified intent and builds
// the outbound reply. All capability failures are absorbed here and surfaced
// as short apologetic texts; nothing propagates as a crash.
type Dispatcher struct {
	sessions SessionStore
	gate     *UsageGate
	chat     ChatCapability
	images   ImageCapability
	analyzer AnalyzeCapability
	search   SearchCapability
	content  ContentFetcher

	freeDailyLimit int
}

// NewDispatcher wires the dispatcher to its collaborators
func NewDispatcher(
	sessions SessionStore,
	gate *UsageGate,
	chat ChatCapability,
	images ImageCapability,
	analyzer AnalyzeCapability,
	search SearchCapability,
	content ContentFetcher,
	freeDailyLimit int,
) *Dispatcher {
	return &Dispatcher{
		sessions:       sessions,
		gate:           gate,
		chat:           chat,
		images:         images,
		analyzer:       analyzer,
		search:         search,
		content:        content,
		freeDailyLimit: freeDailyLimit,
	}
}

// Dispatch handles one classified event and returns the reply messages.
// userText is the raw inbound text ("" for non-text events); it is appended
// to session memory only after the usage gate admits the event, so a denied
// event leaves no trace in history.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, userText string, decision models.IntentDecision) []models.ReplyMessage {
	if err := d.gate.Ensure(ctx, userID); err != nil {
		log.Printf("⚠️  [DISPATCH] Failed to ensure plan record for %s: %v", userID, err)
	}

	if m := GetMetrics(); m != nil {
		m.RecordIntent(string(decision.Kind))
	}

	// Reserved commands are free; everything else passes the gate first, and
	// check-and-consume happens before any side effect (no session append, no
	// external call on denial).
	if decision.ConsumesQuota() {
		res, err := d.gate.TryConsume(ctx, userID)
		if err != nil {
			log.Printf("⚠️  [DISPATCH] Gate check failed for %s: %v", userID, err)
		}
		if !res.Allowed {
			if m := GetMetrics(); m != nil {
				m.RecordQuotaDenial(res.Reason)
			}
			return d.denialReply(res.Reason)
		}

		if userText != "" {
			d.sessions.Append(userID, models.RoleUser, userText)
		}
	}

	switch decision.Kind {
	case models.IntentReset:
		d.sessions.Reset(userID)
		return []models.ReplyMessage{models.TextReply(textResetDone)}
	case models.IntentSelectPlanFree:
		return d.selectPlan(ctx, userID, models.PlanFree)
	case models.IntentSelectPlanPremium:
		return d.selectPlan(ctx, userID, models.PlanPremium)
	case models.IntentImage:
		return d.dispatchImage(ctx, decision.Payload)
	case models.IntentAnalyzeImage:
		return d.dispatchAnalyzeImage(ctx, userID, decision.Payload)
	case models.IntentWebSearch:
		return d.dispatchWebSearch(ctx, userID, decision.Payload)
	default:
		return d.dispatchChat(ctx, userID)
	}
}

func (d *Dispatcher) selectPlan(ctx context.Context, userID, plan string) []models.ReplyMessage {
	if err := d.gate.SetPlan(ctx, userID, plan); err != nil {
		log.Printf("❌ [DISPATCH] Failed to set plan for %s: %v", userID, err)
		return []models.ReplyMessage{models.TextReply(textChatApology)}
	}
	if plan == models.PlanPremium {
		return []models.ReplyMessage{models.TextReply(textPlanPremiumDone)}
	}
	return []models.ReplyMessage{models.TextReply(fmt.Sprintf(textPlanFreeDone, d.freeDailyLimit))}
}

func (d *Dispatcher) denialReply(reason string) []models.ReplyMessage {
	if reason == DenyLimitReached {
		msg := models.TextReplyWithChoices(textQuotaExceeded,
			map[string]string{labelUpgradePremium: labelPlanPremium},
			[]string{labelUpgradePremium})
		return []models.ReplyMessage{msg}
	}

	msg := models.TextReplyWithChoices(textPlanPrompt,
		map[string]string{
			labelPlanFree:    labelPlanFree,
			labelPlanPremium: labelPlanPremium,
		},
		[]string{labelPlanFree, labelPlanPremium})
	return []models.ReplyMessage{msg}
}

// dispatchImage enriches the prompt (best-effort) and generates an image
func (d *Dispatcher) dispatchImage(ctx context.Context, prompt string) []models.ReplyMessage {
	enriched := prompt
	tctx, cancel := context.WithTimeout(ctx, chatTimeout)
	translated, err := d.chat.TranslatePrompt(tctx, prompt)
	cancel()
	if err != nil {
		// Enrichment is optional; the raw prompt still works
		log.Printf("⚠️  [DISPATCH] Prompt enrichment failed, using original: %v", err)
	} else if translated != "" {
		enriched = translated
	}

	ictx, cancel := context.WithTimeout(ctx, imageTimeout)
	defer cancel()
	url, err := d.images.Generate(ictx, enriched)
	if err != nil {
		log.Printf("❌ [DISPATCH] Image generation failed: %v", err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("image")
		}
		return []models.ReplyMessage{models.TextReply(textImageApology)}
	}

	return []models.ReplyMessage{models.ImageReply(url)}
}

// dispatchAnalyzeImage fetches the inbound image and describes it
func (d *Dispatcher) dispatchAnalyzeImage(ctx context.Context, userID, messageID string) []models.ReplyMessage {
	vctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	data, mimeType, err := d.content.FetchContent(vctx, messageID)
	if err != nil {
		log.Printf("❌ [DISPATCH] Content fetch failed for message %s: %v", messageID, err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("content_fetch")
		}
		return []models.ReplyMessage{models.TextReply(textVisionApology)}
	}

	description, err := d.analyzer.Analyze(vctx, data, mimeType)
	if err != nil {
		log.Printf("❌ [DISPATCH] Image analysis failed: %v", err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("vision")
		}
		return []models.ReplyMessage{models.TextReply(textVisionApology)}
	}

	d.sessions.Append(userID, models.RoleAssistant, description)
	return []models.ReplyMessage{models.TextReply(description)}
}

// dispatchWebSearch searches, then summarizes; an empty result set falls
// back to plain chat over existing history
func (d *Dispatcher) dispatchWebSearch(ctx context.Context, userID, query string) []models.ReplyMessage {
	sctx, cancel := context.WithTimeout(ctx, searchTimeout)
	results, err := d.search.Search(sctx, query)
	cancel()
	if err != nil {
		log.Printf("⚠️  [DISPATCH] Web search failed, falling back to chat: %v", err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("search")
		}
		return d.dispatchChat(ctx, userID)
	}
	if len(results) == 0 {
		log.Printf("🔍 [DISPATCH] No search results for %q, falling back to chat", query)
		return d.dispatchChat(ctx, userID)
	}

	snctx, cancel := context.WithTimeout(ctx, searchTimeout)
	snippets := d.search.Snippets(snctx, results)
	cancel()

	cctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	summary, err := d.chat.Summarize(cctx, query, snippets)
	if err != nil {
		log.Printf("❌ [DISPATCH] Summarization failed: %v", err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("chat")
		}
		return []models.ReplyMessage{models.TextReply(textChatApology)}
	}

	d.sessions.Append(userID, models.RoleAssistant, summary)
	return []models.ReplyMessage{models.TextReply(summary)}
}

// dispatchChat generates a conversational reply over the session history,
// which already ends with the newest user turn
func (d *Dispatcher) dispatchChat(ctx context.Context, userID string) []models.ReplyMessage {
	history := d.sessions.History(userID)
	if len(history) == 0 {
		// Non-text entry points can land here with nothing appended
		return []models.ReplyMessage{models.TextReply(textChatApology)}
	}

	cctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	reply, err := d.chat.Chat(cctx, models.TurnsToMessages(history))
	if err != nil {
		log.Printf("❌ [DISPATCH] Chat completion failed: %v", err)
		if m := GetMetrics(); m != nil {
			m.RecordCapabilityFailure("chat")
		}
		return []models.ReplyMessage{models.TextReply(textChatApology)}
	}

	d.sessions.Append(userID, models.RoleAssistant, reply)
	return []models.ReplyMessage{models.TextReply(reply)}
}
