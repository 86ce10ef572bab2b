package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultInstruction is what we ask when the user sends a picture without a
// question attached
const defaultInstruction = "อธิบายว่าในรูปนี้มีอะไรบ้าง ตอบเป็นภาษาไทยแบบเป็นกันเอง"

// Service handles image analysis using a vision-capable chat model
type Service struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewService creates a vision service against an OpenAI-compatible endpoint
func NewService(apiKey, baseURL, model string) *Service {
	return &Service{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// DescribeImageRequest contains parameters for image description
type DescribeImageRequest struct {
	ImageData []byte
	MimeType  string
	Question  string // optional question about the image
}

// visionContent is one part of a multimodal user message
type visionContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionRequest struct {
	Model    string          `json:"model"`
	Messages []visionMessage `json:"messages"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze describes raw image bytes with the default instruction
func (s *Service) Analyze(ctx context.Context, data []byte, mimeType string) (string, error) {
	return s.DescribeImage(ctx, &DescribeImageRequest{ImageData: data, MimeType: mimeType})
}

// DescribeImage analyzes an image and returns a text description
func (s *Service) DescribeImage(ctx context.Context, req *DescribeImageRequest) (string, error) {
	if len(req.ImageData) == 0 {
		return "", fmt.Errorf("no image data provided")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	question := req.Question
	if question == "" {
		question = defaultInstruction
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(req.ImageData))

	imageURL := &struct {
		URL string `json:"url"`
	}{URL: dataURI}

	body, err := json.Marshal(visionRequest{
		Model: s.model,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []visionContent{
					{Type: "text", Text: question},
					{Type: "image_url", ImageURL: imageURL},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal vision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed visionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("vision error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("vision error: status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("vision returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
