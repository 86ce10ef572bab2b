package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "3000" {
		t.Errorf("Expected default port 3000, got %q", cfg.Port)
	}
	if cfg.ChatModel != "gpt-4.1-mini" {
		t.Errorf("Unexpected default chat model: %q", cfg.ChatModel)
	}
	if cfg.ImageModel != "gpt-image-1" {
		t.Errorf("Unexpected default image model: %q", cfg.ImageModel)
	}
	if cfg.ImageSize != "1024x1024" {
		t.Errorf("Unexpected default image size: %q", cfg.ImageSize)
	}
	if cfg.SessionTTL != 20*time.Minute {
		t.Errorf("Unexpected default session TTL: %v", cfg.SessionTTL)
	}
	if cfg.SessionMaxTurns != 20 {
		t.Errorf("Unexpected default max turns: %d", cfg.SessionMaxTurns)
	}
	if cfg.FreeDailyLimit != 20 {
		t.Errorf("Unexpected default free daily limit: %d", cfg.FreeDailyLimit)
	}
	if cfg.ImageRetention != 7*24*time.Hour {
		t.Errorf("Unexpected default image retention: %v", cfg.ImageRetention)
	}
	if cfg.LineAPIBaseURL != "https://api.line.me" {
		t.Errorf("Unexpected default LINE API base: %q", cfg.LineAPIBaseURL)
	}
	if cfg.LineDataBaseURL != "https://api-data.line.me" {
		t.Errorf("Unexpected default LINE data base: %q", cfg.LineDataBaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("SESSION_MAX_TURNS", "8")
	t.Setenv("FREE_DAILY_LIMIT", "3")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected port override, got %q", cfg.Port)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Errorf("Expected TTL override, got %v", cfg.SessionTTL)
	}
	if cfg.SessionMaxTurns != 8 {
		t.Errorf("Expected max turns override, got %d", cfg.SessionMaxTurns)
	}
	if cfg.FreeDailyLimit != 3 {
		t.Errorf("Expected limit override, got %d", cfg.FreeDailyLimit)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Expected Redis URL override, got %q", cfg.RedisURL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SESSION_MAX_TURNS", "not-a-number")
	t.Setenv("SESSION_TTL", "eventually")

	cfg := Load()

	if cfg.SessionMaxTurns != 20 {
		t.Errorf("Malformed int must fall back to default, got %d", cfg.SessionMaxTurns)
	}
	if cfg.SessionTTL != 20*time.Minute {
		t.Errorf("Malformed duration must fall back to default, got %v", cfg.SessionTTL)
	}
}
