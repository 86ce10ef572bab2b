package services

import (
	"testing"
	"time"

	"pibot/internal/models"
)

func TestSessionAppendAndHistory(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)

	store.Append("user1", models.RoleUser, "hello")
	store.Append("user1", models.RoleAssistant, "hi there")

	history := store.History("user1")
	if len(history) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "hello" {
		t.Errorf("Unexpected first turn: %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != "hi there" {
		t.Errorf("Unexpected second turn: %+v", history[1])
	}
}

func TestSessionHistoryIsACopy(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)
	store.Append("user1", models.RoleUser, "hello")

	history := store.History("user1")
	history[0].Content = "mutated"

	if got := store.History("user1")[0].Content; got != "hello" {
		t.Errorf("History mutation leaked into the store: %q", got)
	}
}

func TestSessionHistoryUnknownUser(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)
	if history := store.History("nobody"); history != nil {
		t.Errorf("Expected nil history for unknown user, got %v", history)
	}
}

func TestSessionTurnCap(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 4)

	contents := []string{"a", "b", "c", "d", "e", "f"}
	for _, c := range contents {
		store.Append("user1", models.RoleUser, c)
	}

	history := store.History("user1")
	if len(history) != 4 {
		t.Fatalf("Expected history capped at 4 turns, got %d", len(history))
	}
	// Oldest turns are evicted first
	want := []string{"c", "d", "e", "f"}
	for i, w := range want {
		if history[i].Content != w {
			t.Errorf("Turn %d: expected %q, got %q", i, w, history[i].Content)
		}
	}
}

func TestSessionEmptyContentIgnored(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)

	store.Append("user1", models.RoleUser, "")
	if history := store.History("user1"); history != nil {
		t.Errorf("Empty append should not create a record, got %v", history)
	}
	if store.Len() != 0 {
		t.Errorf("Expected 0 live sessions, got %d", store.Len())
	}
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	store := NewMemorySessionStore(50*time.Millisecond, 20)

	store.Append("user1", models.RoleUser, "hello")
	if store.History("user1") == nil {
		t.Fatal("Expected history before TTL")
	}

	time.Sleep(120 * time.Millisecond)

	if history := store.History("user1"); history != nil {
		t.Errorf("Expected session purged after TTL, got %v", history)
	}
	if store.Len() != 0 {
		t.Errorf("Expected 0 live sessions after purge, got %d", store.Len())
	}
}

func TestSessionAppendExtendsDeadline(t *testing.T) {
	store := NewMemorySessionStore(100*time.Millisecond, 20)

	store.Append("user1", models.RoleUser, "first")
	time.Sleep(60 * time.Millisecond)

	// Second append resets the clock; the record must survive past the
	// original deadline.
	store.Append("user1", models.RoleUser, "second")
	time.Sleep(60 * time.Millisecond)

	history := store.History("user1")
	if len(history) != 2 {
		t.Fatalf("Expected session alive after deadline extension, got %d turns", len(history))
	}

	time.Sleep(120 * time.Millisecond)
	if store.History("user1") != nil {
		t.Error("Expected session purged once idle past the extended deadline")
	}
}

func TestSessionReset(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)

	store.Append("user1", models.RoleUser, "hello")
	store.Append("user2", models.RoleUser, "hey")

	store.Reset("user1")

	if store.History("user1") != nil {
		t.Error("Expected user1 history cleared after reset")
	}
	if store.History("user2") == nil {
		t.Error("Reset of user1 must not touch user2")
	}

	// Resetting an absent user is a no-op
	store.Reset("nobody")
}

func TestSessionUsersAreIsolated(t *testing.T) {
	store := NewMemorySessionStore(time.Minute, 20)

	store.Append("user1", models.RoleUser, "one")
	store.Append("user2", models.RoleUser, "two")

	if got := store.History("user1")[0].Content; got != "one" {
		t.Errorf("user1 history polluted: %q", got)
	}
	if got := store.History("user2")[0].Content; got != "two" {
		t.Errorf("user2 history polluted: %q", got)
	}
}
