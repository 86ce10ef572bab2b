package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("Expected format=json, got %q", got)
		}
		json.NewEncoder(w).Encode(searxngResponse{Results: []SearchResult{
			{Title: "Result A", URL: "https://a.example.com", Content: "Content A"},
			{Title: "Result B", URL: "https://b.example.com", Content: "Content B"},
		}})
	}))
	defer server.Close()

	svc := NewSearchService(server.URL, nil)

	results, err := svc.Search(context.Background(), "ข่าววันนี้")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Result A" {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
}

func TestSearchCapsResultCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var many []SearchResult
		for i := 0; i < 12; i++ {
			many = append(many, SearchResult{Title: "r", URL: "https://x.example.com", Content: "c"})
		}
		json.NewEncoder(w).Encode(searxngResponse{Results: many})
	}))
	defer server.Close()

	svc := NewSearchService(server.URL, nil)

	results, err := svc.Search(context.Background(), "query")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != maxSearchSnippets {
		t.Errorf("Expected results capped at %d, got %d", maxSearchSnippets, len(results))
	}
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searxngResponse{})
	}))
	defer server.Close()

	svc := NewSearchService(server.URL, nil)

	results, err := svc.Search(context.Background(), "obscure query")
	if err != nil {
		t.Fatalf("Empty results must not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestSearchEngineErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewSearchService(server.URL, nil)

	if _, err := svc.Search(context.Background(), "query"); err == nil {
		t.Error("Expected error on engine failure")
	}
}

func TestSearchCachesIdenticalQueries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(searxngResponse{Results: []SearchResult{
			{Title: "cached", URL: "https://c.example.com", Content: "x"},
		}})
	}))
	defer server.Close()

	svc := NewSearchService(server.URL, nil)
	ctx := context.Background()

	svc.Search(ctx, "same query")
	svc.Search(ctx, "same query")

	if calls != 1 {
		t.Errorf("Expected 1 engine call for repeated query, got %d", calls)
	}
}

func TestSnippetsFormat(t *testing.T) {
	svc := NewSearchService("http://localhost:8080", nil)

	snippets := svc.Snippets(context.Background(), []SearchResult{
		{Title: "Title", URL: "https://t.example.com", Content: "Body"},
	})

	if len(snippets) != 1 {
		t.Fatalf("Expected 1 snippet, got %d", len(snippets))
	}
	if !strings.Contains(snippets[0], "Title") || !strings.Contains(snippets[0], "Body") || !strings.Contains(snippets[0], "https://t.example.com") {
		t.Errorf("Snippet missing fields: %q", snippets[0])
	}
}
