package webhook

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
)

type recordingSink struct {
	updates []retrieval.Update
	ts      time.Time
}

func (s *recordingSink) AddUpdate(u retrieval.Update) { s.updates = append(s.updates, u) }
func (s *recordingSink) Timestamp() time.Time         { return s.ts }

func TestVerifySignature(t *testing.T) {
	v := NewValidator("test-secret")
	body := []byte(`{"action":"add"}`)
	sig := v.Sign(body)
	if !v.VerifySignature(body, sig) {
		t.Fatalf("expected valid signature")
	}
	if v.VerifySignature(body, "deadbeef") {
		t.Fatalf("expected invalid signature")
	}
	if v.VerifySignature([]byte(`{"action":"delete"}`), sig) {
		t.Fatalf("signature should bind the body")
	}
	if !NewValidator("").VerifySignature(body, "") {
		t.Fatalf("no secret should accept")
	}
}

func TestValidatePayload(t *testing.T) {
	v := NewValidator("")
	cases := []struct {
		name string
		u    retrieval.Update
		ok   bool
	}{
		{"valid", retrieval.Update{Action: "ADD", Type: "Place", Data: map[string]any{"name": "X"}}, true},
		{"id only", retrieval.Update{Action: "delete", Type: "tip", Data: map[string]any{"id": "t1"}}, true},
		{"missing action", retrieval.Update{Type: "place", Data: map[string]any{"name": "X"}}, false},
		{"bad action", retrieval.Update{Action: "merge", Type: "place", Data: map[string]any{"name": "X"}}, false},
		{"bad type", retrieval.Update{Action: "add", Type: "hotel", Data: map[string]any{"name": "X"}}, false},
		{"no data", retrieval.Update{Action: "add", Type: "place"}, false},
		{"no identity", retrieval.Update{Action: "add", Type: "place", Data: map[string]any{"cost": "1"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := tc.u
			err := v.ValidatePayload(&u)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if tc.ok && (u.Action != "add" && u.Action != "delete") {
				t.Fatalf("action not normalised: %q", u.Action)
			}
		})
	}
}

func TestProcessPersistsAndForwards(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "updates_log.json")
	sink := &recordingSink{ts: time.Now()}
	m := NewManager(sink, "s3cret", logPath)

	body := []byte(`{"action":"add","type":"place","data":{"name":"New Beach Spot","cost":"500 INR"}}`)
	msg, err := m.Process(context.Background(), body, m.Validator().Sign(body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if msg != "Successfully processed add for New Beach Spot" {
		t.Fatalf("unexpected message %q", msg)
	}
	if len(sink.updates) != 1 || sink.updates[0].Timestamp.IsZero() {
		t.Fatalf("update not forwarded with timestamp: %+v", sink.updates)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var persisted updatesLog
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if persisted.Count != 1 || len(persisted.Updates) != 1 {
		t.Fatalf("unexpected log %+v", persisted)
	}

	reloaded := NewManager(nil, "s3cret", logPath)
	if reloaded.Stats().TotalUpdates != 1 {
		t.Fatalf("log not reloaded")
	}
}

func TestProcessRejects(t *testing.T) {
	m := NewManager(&recordingSink{}, "s3cret", "")
	body := []byte(`{"action":"add","type":"place","data":{"name":"X"}}`)

	if _, err := m.Process(context.Background(), body, "bad"); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := m.Process(context.Background(), body, ""); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("missing signature should be rejected, got %v", err)
	}
	bad := []byte(`{"action":"add","type":"hotel","data":{"name":"X"}}`)
	if _, err := m.Process(context.Background(), bad, m.Validator().Sign(bad)); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	junk := []byte(`not json`)
	if _, err := m.Process(context.Background(), junk, m.Validator().Sign(junk)); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStatsAndClearOld(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sink := &recordingSink{ts: now}
	m := NewManager(sink, "", filepath.Join(t.TempDir(), "log.json"))
	m.now = func() time.Time { return now }

	m.updates = []retrieval.Update{
		{Action: "add", Type: "place", Timestamp: now.Add(-time.Hour)},
		{Action: "update", Type: "place", Timestamp: now.Add(-48 * time.Hour)},
		{Action: "delete", Type: "tip", Timestamp: now.Add(-10 * 24 * time.Hour)},
		{Action: "add", Type: "category"},
	}

	stats := m.Stats()
	if stats.TotalUpdates != 4 || stats.RecentUpdates24h != 1 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.UpdatesByAction["add"] != 2 || stats.UpdatesByAction["delete"] != 1 {
		t.Fatalf("unexpected by action %v", stats.UpdatesByAction)
	}
	if stats.UpdatesByType["place"] != 2 {
		t.Fatalf("unexpected by type %v", stats.UpdatesByType)
	}
	if stats.LastUpdate == nil || !stats.LastUpdate.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected last update %v", stats.LastUpdate)
	}
	if stats.KBLastUpdated == nil || !stats.KBLastUpdated.Equal(now) {
		t.Fatalf("unexpected kb timestamp %v", stats.KBLastUpdated)
	}

	removed, err := m.ClearOld(0)
	if err != nil {
		t.Fatalf("ClearOld: %v", err)
	}
	if removed != 1 || len(m.RecentUpdates(30*24*time.Hour)) != 2 || m.Stats().TotalUpdates != 3 {
		t.Fatalf("unexpected state after ClearOld: removed=%d total=%d", removed, m.Stats().TotalUpdates)
	}
}
