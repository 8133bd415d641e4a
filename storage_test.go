package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateAndGetConversation(t *testing.T) {
	tempDataDir(t)

	council := []CouncilMember{{Model: "test/model-1"}, {Model: "test/model-2", Persona: "skeptic"}}
	created, err := CreateConversation("conv-1", council, "test/chairman")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if created.Title != "New Conversation" {
		t.Errorf("Title: %q", created.Title)
	}

	loaded, err := GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Conversation not found after create")
	}
	if loaded.ID != "conv-1" || loaded.Chairman != "test/chairman" {
		t.Errorf("Loaded: %+v", loaded)
	}
	if len(loaded.Council) != 2 || loaded.Council[1].Persona != "skeptic" {
		t.Errorf("Council snapshot lost: %+v", loaded.Council)
	}
}

func TestGetConversationMissing(t *testing.T) {
	tempDataDir(t)

	conv, err := GetConversation("nope")
	if err != nil {
		t.Fatalf("Missing conversation should not error: %v", err)
	}
	if conv != nil {
		t.Errorf("Expected nil, got %+v", conv)
	}
}

func TestDeleteConversation(t *testing.T) {
	tempDataDir(t)

	if _, err := CreateConversation("conv-1", nil, "c"); err != nil {
		t.Fatal(err)
	}
	if err := DeleteConversation("conv-1"); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if conv, _ := GetConversation("conv-1"); conv != nil {
		t.Error("Conversation still present after delete")
	}

	err := DeleteConversation("conv-1")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Deleting a missing conversation: %v", err)
	}
}

func TestListConversations(t *testing.T) {
	dir := tempDataDir(t)

	older := &Conversation{ID: "older", CreatedAt: time.Now().UTC().Add(-time.Hour), Title: "Older"}
	newer := &Conversation{ID: "newer", CreatedAt: time.Now().UTC(), Title: "Newer",
		Messages: []Message{{Role: "user", Content: "hi"}}}
	for _, c := range []*Conversation{older, newer} {
		if err := SaveConversation(c); err != nil {
			t.Fatal(err)
		}
	}

	// Garbage in the directory is skipped, not fatal.
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644)

	list, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Got %d conversations, want 2: %+v", len(list), list)
	}
	if list[0].ID != "newer" || list[1].ID != "older" {
		t.Errorf("Not newest-first: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].MessageCount != 1 {
		t.Errorf("Message count: %d", list[0].MessageCount)
	}
}

func TestListConversationsEmpty(t *testing.T) {
	tempDataDir(t)

	list, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("Expected an empty, non-nil slice, got %v", list)
	}
}

func TestAddMessages(t *testing.T) {
	tempDataDir(t)

	if _, err := CreateConversation("conv-1", nil, "c"); err != nil {
		t.Fatal(err)
	}

	err := AddUserMessage("conv-1", "What is Go?", []Attachment{{Name: "doc", Content: "text"}})
	if err != nil {
		t.Fatalf("AddUserMessage failed: %v", err)
	}

	res := &ExchangeResult{
		Stage1: []ModelResult{{Model: "m1", Response: "an answer"}},
		Stage3: ModelResult{Model: "chair", Response: "the verdict"},
		Metadata: Metadata{
			TotalCost: 0.01,
		},
	}
	if err := AddAssistantMessage("conv-1", res, &res.Stage3); err != nil {
		t.Fatalf("AddAssistantMessage failed: %v", err)
	}

	conv, err := GetConversation("conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Got %d messages, want 2", len(conv.Messages))
	}
	user, assistant := conv.Messages[0], conv.Messages[1]
	if user.Role != "user" || len(user.Attachments) != 1 {
		t.Errorf("User message: %+v", user)
	}
	if assistant.Role != "assistant" || assistant.Stage3 == nil || assistant.Stage3.Response != "the verdict" {
		t.Errorf("Assistant message: %+v", assistant)
	}
	if assistant.Metadata == nil || assistant.Metadata.TotalCost != 0.01 {
		t.Errorf("Metadata: %+v", assistant.Metadata)
	}
}

func TestAddAssistantMessageWithoutVerdict(t *testing.T) {
	tempDataDir(t)

	if _, err := CreateConversation("conv-1", nil, "c"); err != nil {
		t.Fatal(err)
	}

	// A chairman failure persists the debate with a nil Stage3.
	res := &ExchangeResult{Stage1: []ModelResult{{Model: "m1", Response: "answer"}}}
	if err := AddAssistantMessage("conv-1", res, nil); err != nil {
		t.Fatalf("AddAssistantMessage failed: %v", err)
	}

	conv, _ := GetConversation("conv-1")
	if conv.Messages[0].Stage3 != nil {
		t.Errorf("Stage3 should be nil: %+v", conv.Messages[0].Stage3)
	}
	if len(conv.Messages[0].Stage1) != 1 {
		t.Error("Debate record lost")
	}
}

func TestAddMessageToMissingConversation(t *testing.T) {
	tempDataDir(t)

	if err := AddUserMessage("ghost", "hello", nil); err == nil {
		t.Error("Expected an error for a missing conversation")
	}
}

func TestUpdateConversationTitle(t *testing.T) {
	tempDataDir(t)

	if _, err := CreateConversation("conv-1", nil, "c"); err != nil {
		t.Fatal(err)
	}
	if err := UpdateConversationTitle("conv-1", "Go Questions"); err != nil {
		t.Fatalf("UpdateConversationTitle failed: %v", err)
	}

	conv, _ := GetConversation("conv-1")
	if conv.Title != "Go Questions" {
		t.Errorf("Title: %q", conv.Title)
	}
}
