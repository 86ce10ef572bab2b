package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pibot/internal/models"
)

// defaultPersona is the assistant's voice. Prompt wording is configuration,
// not logic; override with PERSONA_PROMPT when deploying a different voice.
const defaultPersona = `You are a friendly Thai male assistant.
- พูดจาเป็นกันเอง สุภาพแบบผู้ชาย ใช้สรรพนาม "ผม"
- ตอบแบบมีชีวิตชีวา ใส่อีโมจิได้บ้าง เช่น 😄✨🔥 แต่ไม่เยอะเกินไป
- อธิบายให้เข้าใจง่าย ถ้าผู้ใช้ถามสั้น ตอบสั้นได้
- ถ้าผู้ใช้ถามเรื่องเทคนิค ให้ตอบเป็นขั้น ๆ`

// OpenAIService talks to an OpenAI-compatible chat completions endpoint.
// It covers the conversational reply plus the two auxiliary calls (yes/no
// current-info detection, image prompt translation) and search summarization.
type OpenAIService struct {
	apiKey  string
	baseURL string
	model   string
	persona string
	client  *http.Client
}

// NewOpenAIService creates a chat completion client. baseURL is the API root
// including the version path (e.g. https://api.openai.com/v1).
func NewOpenAIService(apiKey, baseURL, model, persona string) *OpenAIService {
	if persona == "" {
		persona = defaultPersona
	}
	return &OpenAIService{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		persona: persona,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// complete performs one chat completion call and returns the first choice
func (s *OpenAIService) complete(ctx context.Context, messages []models.ChatMessage, temperature *float64) (string, error) {
	reqBody, err := json.Marshal(chatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("chat completion error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("chat completion error: status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Chat generates a conversational reply from the user's session history.
// The persona system prompt is prepended; history already ends with the
// newest user turn.
func (s *OpenAIService) Chat(ctx context.Context, history []models.ChatMessage) (string, error) {
	messages := make([]models.ChatMessage, 0, len(history)+1)
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: s.persona})
	messages = append(messages, history...)
	return s.complete(ctx, messages, nil)
}

// NeedsCurrentInfo asks the model whether the text needs up-to-date
// information that the bot should fetch from the web. The answer is forced
// into a single yes/no token; anything unexpected counts as no.
func (s *OpenAIService) NeedsCurrentInfo(ctx context.Context, text string) (bool, error) {
	zero := 0.0
	answer, err := s.complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: "Answer with exactly one word, yes or no: does this message ask about current events, live prices, recent news, or anything that changes day to day?"},
		{Role: models.RoleUser, Content: text},
	}, &zero)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(answer), "yes"), nil
}

// TranslatePrompt rewrites a user's (often Thai) drawing request into a
// concise English image generation prompt
func (s *OpenAIService) TranslatePrompt(ctx context.Context, text string) (string, error) {
	out, err := s.complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: "Rewrite the user's request as a short English image generation prompt. Keep the subject and style, add no commentary, output the prompt only."},
		{Role: models.RoleUser, Content: text},
	}, nil)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("prompt translation returned empty text")
	}
	return out, nil
}

// Summarize answers the user's question from raw web search snippets,
// in the assistant's voice
func (s *OpenAIService) Summarize(ctx context.Context, question string, snippets []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Web search results:\n")
	for i, snippet := range snippets {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, snippet)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)

	return s.complete(ctx, []models.ChatMessage{
		{Role: models.RoleSystem, Content: s.persona + "\nAnswer the question using only the web search results below. Mention that the information comes from a web search. Answer in the user's language."},
		{Role: models.RoleUser, Content: sb.String()},
	}, nil)
}
