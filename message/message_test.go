package message

import "testing"

func TestHistoryDropsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		h.Append(RoleUser, content)
	}

	if h.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", h.Len())
	}
	got := h.Messages()
	if got[0].Content != "c" || got[2].Content != "e" {
		t.Fatalf("expected c..e to survive, got %q..%q", got[0].Content, got[2].Content)
	}
}

func TestHistoryRecent(t *testing.T) {
	h := NewHistory(0)
	h.Append(RoleUser, "hi")
	h.Append(RoleAssistant, "hello")
	h.Append(RoleUser, "plan a trek")

	recent := h.Recent(2)
	if len(recent) != 2 || recent[0].Content != "hello" {
		t.Fatalf("unexpected recent window: %+v", recent)
	}
	if all := h.Recent(10); len(all) != 3 {
		t.Fatalf("expected whole history when n exceeds length, got %d", len(all))
	}
	if none := h.Recent(0); none != nil {
		t.Fatalf("expected nil for n=0")
	}
}

func TestTranscript(t *testing.T) {
	msgs := []*Message{
		NewMessage(RoleUser, "any beach?"),
		NewMessage(RoleAssistant, "Alibaug"),
	}
	want := "user: any beach?\nassistant: Alibaug"
	if got := Transcript(msgs); got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewMessage(RoleUser, "hello")
	cloned := Clone(orig)
	cloned.Content = "changed"
	if orig.Content != "hello" {
		t.Fatalf("clone mutated original")
	}
	if Clone(nil) != nil {
		t.Fatalf("expected nil clone of nil")
	}
}
