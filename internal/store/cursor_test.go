package store

import "testing"

func TestCursorEmptyBeforeFirstSave(t *testing.T) {
	s := NewCursorStore(setupTestDB(t))

	link, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if link != "" {
		t.Errorf("link = %q, want empty before first sync", link)
	}
}

func TestCursorSaveAndLoad(t *testing.T) {
	s := NewCursorStore(setupTestDB(t))

	if err := s.Save("https://graph.example.com/delta?token=abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	link, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if link != "https://graph.example.com/delta?token=abc" {
		t.Errorf("link = %q", link)
	}
}

func TestCursorSaveReplaces(t *testing.T) {
	s := NewCursorStore(setupTestDB(t))

	if err := s.Save("token-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("token-2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	link, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if link != "token-2" {
		t.Errorf("link = %q, want token-2", link)
	}
}
