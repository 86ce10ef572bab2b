package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"pibot/internal/models"
)

func TestLineReplySendsPayload(t *testing.T) {
	var captured lineReplyRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewLineService("test-token", server.URL, server.URL)

	err := svc.Reply(context.Background(), "reply-token-1", []models.ReplyMessage{
		models.TextReply("สวัสดีครับ"),
	})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Unexpected auth header: %q", gotAuth)
	}
	if captured.ReplyToken != "reply-token-1" {
		t.Errorf("Unexpected reply token: %q", captured.ReplyToken)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Text != "สวัสดีครับ" {
		t.Errorf("Unexpected messages: %+v", captured.Messages)
	}
}

func TestLineReplyCapsAtFiveMessages(t *testing.T) {
	var captured lineReplyRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewLineService("token", server.URL, server.URL)

	messages := make([]models.ReplyMessage, 7)
	for i := range messages {
		messages[i] = models.TextReply("m")
	}
	if err := svc.Reply(context.Background(), "tok", messages); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if len(captured.Messages) != 5 {
		t.Errorf("Expected batch capped at 5, got %d", len(captured.Messages))
	}
}

func TestLineReplyImageFailureFallsBackToText(t *testing.T) {
	var requests []lineReplyRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req lineReplyRequest
		json.Unmarshal(body, &req)
		requests = append(requests, req)

		// Reject the rich batch, accept the text retry
		if len(requests) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewLineService("token", server.URL, server.URL)

	err := svc.Reply(context.Background(), "tok", []models.ReplyMessage{
		models.ImageReply("https://bot.example.com/images/a.png"),
	})
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("Expected exactly 2 requests (rich + fallback), got %d", len(requests))
	}
	fallback := requests[1]
	if len(fallback.Messages) != 1 || fallback.Messages[0].Type != "text" {
		t.Errorf("Expected text fallback message, got %+v", fallback.Messages)
	}
	if fallback.Messages[0].Text == "" {
		t.Error("Fallback text must not be empty")
	}
}

func TestLineReplyTextFailureIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewLineService("token", server.URL, server.URL)

	err := svc.Reply(context.Background(), "tok", []models.ReplyMessage{
		models.TextReply("hello"),
	})
	if err == nil {
		t.Fatal("Expected error for failed text reply")
	}
	if calls != 1 {
		t.Errorf("Text replies must not be retried, got %d calls", calls)
	}
}

func TestLineFetchContent(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/msg-42/content" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer server.Close()

	svc := NewLineService("token", server.URL, server.URL)

	data, mimeType, err := svc.FetchContent(context.Background(), "msg-42")
	if err != nil {
		t.Fatalf("FetchContent failed: %v", err)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("Unexpected mime type: %q", mimeType)
	}
	if len(data) != len(payload) {
		t.Errorf("Expected %d bytes, got %d", len(payload), len(data))
	}
}

func TestLineFetchContentRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewLineService("token", server.URL, server.URL)

	if _, _, err := svc.FetchContent(context.Background(), "gone"); err == nil {
		t.Error("Expected error for missing content")
	}
}
