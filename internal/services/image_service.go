package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ImageService generates images through an OpenAI-compatible images endpoint
// and turns the result into a durably retrievable URL. Providers answer with
// either a hosted URL or raw base64 bytes; bytes are persisted through the
// file cache and served from our own public base URL.
type ImageService struct {
	apiKey        string
	baseURL       string
	model         string
	size          string
	publicBaseURL string
	fileCache     *FileCacheService
	client        *http.Client
}

// NewImageService creates an image generation client
func NewImageService(apiKey, baseURL, model, size, publicBaseURL string, fileCache *FileCacheService) *ImageService {
	return &ImageService{
		apiKey:        apiKey,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		model:         model,
		size:          size,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		fileCache:     fileCache,
		client:        &http.Client{Timeout: 120 * time.Second},
	}
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

type imageGenerationResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces an image for the prompt and returns a public URL
func (s *ImageService) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(imageGenerationRequest{
		Model:  s.model,
		Prompt: prompt,
		Size:   s.size,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/images/generations", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed imageGenerationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("image generation error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("image generation error: status %d", resp.StatusCode)
	}

	if len(parsed.Data) == 0 {
		return "", fmt.Errorf("image generation returned no data")
	}

	// Hosted URL: hand it through untouched
	if url := parsed.Data[0].URL; url != "" {
		return url, nil
	}

	// Raw bytes: persist and serve from our own image path
	if b64 := parsed.Data[0].B64JSON; b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", fmt.Errorf("failed to decode image data: %w", err)
		}
		filename, err := s.fileCache.StoreImage(data, "png")
		if err != nil {
			return "", err
		}
		url := fmt.Sprintf("%s/images/%s", s.publicBaseURL, filename)
		log.Printf("🖼️  [IMAGE] Generated image persisted, serving at %s", url)
		return url, nil
	}

	return "", fmt.Errorf("image generation returned neither url nor b64_json")
}
