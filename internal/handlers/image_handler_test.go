package handlers

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"pibot/internal/services"
)

func newImageApp(t *testing.T) (*fiber.App, *services.FileCacheService) {
	t.Helper()
	files, err := services.NewFileCacheService(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("Failed to create file cache: %v", err)
	}
	handler := NewImageHandler(files)

	app := fiber.New()
	app.Get("/images/:filename", handler.HandleImage)
	return app, files
}

func TestImageHandlerServesStoredImage(t *testing.T) {
	app, files := newImageApp(t)

	filename, err := files.StoreImage([]byte("png-bytes"), "png")
	if err != nil {
		t.Fatalf("StoreImage failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/images/"+filename, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "png-bytes" {
		t.Errorf("Unexpected body: %q", body)
	}
}

func TestImageHandlerUnknownFile(t *testing.T) {
	app, _ := newImageApp(t)

	req := httptest.NewRequest("GET", "/images/nope.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	sessions := services.NewMemorySessionStore(time.Minute, 20)
	files, err := services.NewFileCacheService(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("Failed to create file cache: %v", err)
	}
	handler := NewHealthHandler(sessions, files, nil)

	app := fiber.New()
	app.Get("/health", handler.HandleHealth)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
