package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pibot/internal/models"
)

// lineMaxContentSize caps inbound image downloads (LINE's own limit is 10MB
// for images)
const lineMaxContentSize = 12 * 1024 * 1024

// LineService is the reply gateway: it delivers outbound messages through
// the LINE reply API and fetches inbound message content (image bytes).
// Reply tokens are one-shot, so a failed rich reply gets exactly one retry
// as a text-only fallback before the token is considered spent.
type LineService struct {
	accessToken  string
	apiBaseURL   string // https://api.line.me
	dataBaseURL  string // https://api-data.line.me
	client       *http.Client
	fallbackText string
}

// NewLineService creates a LINE Messaging API client
func NewLineService(accessToken, apiBaseURL, dataBaseURL string) *LineService {
	return &LineService{
		accessToken:  accessToken,
		apiBaseURL:   strings.TrimSuffix(apiBaseURL, "/"),
		dataBaseURL:  strings.TrimSuffix(dataBaseURL, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
		fallbackText: "ขอโทษครับ ผมส่งรูปไม่ได้ ลองใหม่อีกทีนะครับ 😢",
	}
}

type lineReplyRequest struct {
	ReplyToken string                `json:"replyToken"`
	Messages   []models.ReplyMessage `json:"messages"`
}

// Reply sends up to five messages against a reply token. If the batch
// contains a rich message and delivery fails, it retries once with a plain
// text apology; a second failure is logged and dropped.
func (s *LineService) Reply(ctx context.Context, replyToken string, messages []models.ReplyMessage) error {
	err := s.send(ctx, replyToken, messages)
	if err == nil {
		s.recordReply("ok")
		return nil
	}

	if !hasRichMessage(messages) {
		log.Printf("❌ [LINE] Text reply failed, dropping: %v", err)
		s.recordReply("dropped")
		return err
	}

	log.Printf("⚠️  [LINE] Rich reply failed, retrying with text fallback: %v", err)
	if retryErr := s.send(ctx, replyToken, []models.ReplyMessage{models.TextReply(s.fallbackText)}); retryErr != nil {
		log.Printf("❌ [LINE] Fallback reply also failed, dropping: %v", retryErr)
		s.recordReply("dropped")
		return retryErr
	}
	s.recordReply("fallback")
	return nil
}

func (s *LineService) recordReply(result string) {
	if m := GetMetrics(); m != nil {
		m.RecordReply(result)
	}
}

func (s *LineService) send(ctx context.Context, replyToken string, messages []models.ReplyMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("no messages to send")
	}
	if len(messages) > 5 {
		messages = messages[:5]
	}

	reqBody, err := json.Marshal(lineReplyRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBaseURL+"/v2/bot/message/reply", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reply rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// FetchContent downloads the binary content of an inbound message (the bytes
// behind an image message ID)
func (s *LineService) FetchContent(ctx context.Context, messageID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", s.dataBaseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("content request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content fetch rejected: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, lineMaxContentSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

func hasRichMessage(messages []models.ReplyMessage) bool {
	for _, m := range messages {
		if m.Type != "text" {
			return true
		}
	}
	return false
}
