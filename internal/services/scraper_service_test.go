package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8NeverSplitsRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short ascii untouched", "hello", 10, "hello"},
		{"ascii cut exactly", "hello world", 5, "hello"},
		{"thai cut lands mid rune", "สวัสดี", 4, "ส"},       // each Thai char is 3 bytes
		{"thai cut on boundary", "สวัสดี", 6, "สว"},
		{"empty", "", 4, ""},
		{"max zero", "สวัสดี", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateUTF8(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateUTF8(%q, %d) produced invalid UTF-8: %q", tt.in, tt.max, got)
			}
		})
	}

	// A long Thai page body must stay valid UTF-8 at the content limit
	long := strings.Repeat("ข่าววันนี้", 200)
	got := truncateUTF8(long, scraperMaxContent)
	if len(got) > scraperMaxContent {
		t.Errorf("Expected at most %d bytes, got %d", scraperMaxContent, len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("Truncated page content is not valid UTF-8")
	}
}

func TestValidateURLBlocksInternalTargets(t *testing.T) {
	svc := NewScraperService()

	blocked := []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"http://localhost/admin",
		"http://127.0.0.1:8080/",
		"http://[::1]/",
		"http://192.168.1.10/router",
		"http://10.0.0.5/internal",
		"http://172.16.3.4/",
		"http://169.254.169.254/latest/meta-data/",
	}
	for _, u := range blocked {
		if err := svc.validateURL(u); err == nil {
			t.Errorf("validateURL(%q) should be rejected", u)
		}
	}

	allowed := []string{
		"https://example.com/article",
		"http://news.example.co.th/story/123",
	}
	for _, u := range allowed {
		if err := svc.validateURL(u); err != nil {
			t.Errorf("validateURL(%q) unexpectedly rejected: %v", u, err)
		}
	}
}
